package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"tracking-server/internal/agent"
	"tracking-server/pkg/logger"

	"github.com/joho/godotenv"
)

func init() {
	_ = godotenv.Load()
	logger.Init()
}

// Запускает N синтетических участников против работающего сервера.
func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/ws", "Websocket endpoint")
		count    = flag.Int("n", 5, "Number of simulated participants")
		lat      = flag.Float64("lat", 55.7558, "Start latitude")
		lon      = flag.Float64("lon", 37.6173, "Start longitude")
		spread   = flag.Float64("spread", 0.01, "Start position spread, degrees")
		step     = flag.Float64("step", 0.0005, "Max step per update, degrees")
		interval = flag.Duration("interval", 5*time.Second, "Location update interval")
		duration = flag.Duration("duration", 0, "Stop after this long (0 - until signal)")
		seed     = flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	logger.Log.Infof("Starting %d agents against %s", *count, *url)

	var wg sync.WaitGroup
	for i := 0; i < *count; i++ {
		offset := float64(i) / float64(max(*count, 1))
		bot := agent.NewBot(agent.Config{
			URL:       *url,
			Latitude:  *lat + (offset-0.5)*(*spread),
			Longitude: *lon + (0.5-offset)*(*spread),
			MaxStep:   *step,
			Interval:  *interval,
			Heartbeat: 15 * time.Second,
		}, *seed+int64(i))

		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if err := bot.Run(ctx); err != nil {
				logger.Log.WithError(err).WithField("agent", n).Error("Agent stopped")
			}
		}(i)
	}

	wg.Wait()
	logger.Log.Info("All agents stopped.")
}
