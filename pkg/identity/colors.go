package identity

import "tracking-server/pkg/utils"

// palette - цвета маркеров, различимые на светлой карте OSM.
var palette = []string{
	"#E6194B", "#3CB44B", "#4363D8", "#F58231", "#911EB4", "#42D4F4",
	"#F032E6", "#469990", "#9A6324", "#800000", "#808000", "#000075",
}

// ColorFor возвращает цвет, закрепленный за стабильным ID пользователя.
func ColorFor(stableUserID string) string {
	return palette[utils.StringToSeed(stableUserID)%int64(len(palette))]
}
