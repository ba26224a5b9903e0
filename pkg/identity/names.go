// Package identity содержит чистые функции для косметики участника:
// имя, цвет маркера и класс устройства. Состояния не хранит.
package identity

import (
	"fmt"
	"math/rand"
)

var adjectives = []string{
	"Swift", "Quiet", "Brave", "Clever", "Sunny", "Lucky", "Misty", "Bold",
	"Gentle", "Rapid", "Silver", "Golden", "Wild", "Calm", "Bright", "Happy",
}

var animals = []string{
	"Fox", "Owl", "Otter", "Falcon", "Panda", "Lynx", "Heron", "Badger",
	"Koala", "Tiger", "Dolphin", "Raven", "Wolf", "Hedgehog", "Moose", "Gecko",
}

// NewDisplayName генерирует имя вида "Swift Fox 42".
func NewDisplayName(rng *rand.Rand) string {
	return fmt.Sprintf("%s %s %d",
		adjectives[rng.Intn(len(adjectives))],
		animals[rng.Intn(len(animals))],
		rng.Intn(100),
	)
}
