package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"tracking-server/internal/version"
)

func main() {
	if len(os.Args) < 2 {
		printHelp()
		return
	}

	switch os.Args[1] {
	case "now":
		fmt.Println(time.Now().UnixMilli())
	case "build-date":
		// Для -ldflags "-X tracking-server/internal/version.BuildDate=..."
		fmt.Println(time.Now().UTC().Format("2006-01-02"))
	case "build-id":
		date := time.Now().UTC().Format("2006-01-02")
		if len(os.Args) > 2 {
			date = os.Args[2]
		}
		id, err := version.BuildIDFor(date)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		fmt.Println(id)
	case "format":
		if len(os.Args) < 3 {
			fmt.Println("Usage: timeutil format <unix_ms>")
			return
		}
		ms, err := strconv.ParseInt(os.Args[2], 10, 64)
		if err != nil {
			fmt.Printf("Invalid timestamp: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(time.UnixMilli(ms).UTC().Format(time.RFC3339Nano))
	case "ago":
		if len(os.Args) < 3 {
			fmt.Println("Usage: timeutil ago <unix_ms>")
			return
		}
		ms, err := strconv.ParseInt(os.Args[2], 10, 64)
		if err != nil {
			fmt.Printf("Invalid timestamp: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(time.Since(time.UnixMilli(ms)).Round(time.Second))
	default:
		printHelp()
	}
}

func printHelp() {
	fmt.Println(`Time Utility - метки времени трекера (Unix milliseconds) и номер сборки
Commands:
  now                  - текущее время в Unix ms
  format <unix_ms>     - lastActivityAt / timestamp из протокола в RFC3339
  ago <unix_ms>        - сколько прошло (удобно для /debug/participants)
  build-date           - сегодняшняя дата для BuildDate
  build-id [date]      - номер сборки для даты (YYYY-MM-DD)`)
}
