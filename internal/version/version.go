// Package version - метаданные сборки трекера для /version, лога и страницы.
//
//	go build -ldflags "-X tracking-server/internal/version.BuildDate=2026-05-14 \
//	  -X tracking-server/internal/version.BuildCommit=$(git rev-parse --short HEAD)"
//
// Без ldflags коммит берется из vcs-меток go build, если они есть.
package version

import (
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

// Заполняются через -ldflags.
var (
	BuildDate   string // YYYY-MM-DD, UTC
	BuildCommit string
	BuildBranch string
	BuildCI     string
)

// ErrNoBuildDate - сборка без BuildDate (go run, тесты).
var ErrNoBuildDate = errors.New("build date not set")

const dateLayout = "2006-01-02"

// Первый релиз трекера. Номер сборки - число дней от него.
var epoch = time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)

// VersionInfo - ответ /version.
type VersionInfo struct {
	BuildID    int    `json:"buildId"`
	BuildDate  string `json:"buildDate,omitempty"`
	Commit     string `json:"commit,omitempty"`
	Branch     string `json:"branch,omitempty"`
	CI         string `json:"ci,omitempty"`
	GoVersion  string `json:"go"`
	Calculated bool   `json:"calculated"`
	Error      string `json:"error,omitempty"`
}

// BuildIDFor - номер сборки для даты YYYY-MM-DD.
func BuildIDFor(date string) (int, error) {
	if date == "" {
		return 0, ErrNoBuildDate
	}
	day, err := time.ParseInLocation(dateLayout, date, time.UTC)
	if err != nil {
		return 0, fmt.Errorf("build date %q: %w", date, err)
	}

	if day.Before(epoch) {
		return 0, fmt.Errorf("build date %s precedes %s", date, epoch.Format(dateLayout))
	}
	return int(day.Sub(epoch) / (24 * time.Hour)), nil
}

func Info() VersionInfo {
	info := VersionInfo{
		BuildDate: BuildDate,
		Commit:    commit(),
		Branch:    BuildBranch,
		CI:        BuildCI,
		GoVersion: runtime.Version(),
	}
	id, err := BuildIDFor(BuildDate)
	if err != nil {
		info.Error = err.Error()
		return info
	}
	info.BuildID, info.Calculated = id, true
	return info
}

// Label - короткая метка сборки: "b10-abc1234", "b10" или "dev".
func Label() string {
	info := Info()
	if !info.Calculated {
		return "dev"
	}
	if info.Commit == "" {
		return fmt.Sprintf("b%d", info.BuildID)
	}
	return fmt.Sprintf("b%d-%s", info.BuildID, info.Commit)
}

// String - строка для лога при старте.
func String() string {
	info := Info()
	var b strings.Builder
	b.WriteString("tracking-server ")
	b.WriteString(Label())
	if info.Calculated {
		fmt.Fprintf(&b, " built %s", info.BuildDate)
	}
	if info.Branch != "" {
		fmt.Fprintf(&b, " on %s", info.Branch)
	}
	if info.CI != "" {
		fmt.Fprintf(&b, " by %s", info.CI)
	}
	fmt.Fprintf(&b, " (%s)", info.GoVersion)
	if !info.Calculated {
		fmt.Fprintf(&b, ": %s", info.Error)
	}
	return b.String()
}

// commit - из ldflags, иначе из vcs.revision.
func commit() string {
	if BuildCommit != "" {
		return BuildCommit
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range bi.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 7 {
			return s.Value[:7]
		}
	}
	return ""
}
