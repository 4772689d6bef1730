package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"campuspay/internal/config"
	"campuspay/internal/handlers"
	"campuspay/internal/httpserver"
	"campuspay/internal/logging"
	"campuspay/internal/store"
	"campuspay/internal/sweeper"
)

func main() {
	logging.Logg = logging.NewLogger("debug")
	if logging.Logg == nil {
		fmt.Println("Failed to initialize logger")
		os.Exit(1)
	}

	var cfg config.Config
	if err := cfg.ParseFlags(); err != nil {
		logging.Logg.Error("Server configuration error", "error", err)
		os.Exit(1)
	}

	server, err := handlers.NewServer(cfg)
	if err != nil {
		logging.Logg.Error("Server creation error", "error", err)
		os.Exit(1)
	}
	defer server.Store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := sweeper.NewWorkerPool(ctx, server.Store, sweeper.MaxWorkers)
	pool.Start()
	defer pool.Stop()

	resultChan := make(chan []store.StaleClaim)
	errorChan := make(chan error)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case stale := <-resultChan:
				logging.Logg.Warn("Stale pending claims awaiting review", "count", len(stale))
				for _, sc := range stale {
					logging.Logg.Warn("Stale pending claim",
						"usn", sc.USN,
						"category", sc.Category,
						"event", sc.EventRef,
						"paidDate", sc.PaidDate,
					)
				}
			case err := <-errorChan:
				logging.Logg.Error("Stale claim sweep failed", "error", err)
			}
		}
	}()

	serv := httpserver.New(cfg, server)
	serv.Start()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			pool.Stop()
			pool.Wait()
			if err := serv.Shutdown(context.Background()); err != nil {
				os.Exit(1)
			}
			return

		case <-ticker.C:
			pool.AddTask(sweeper.Task{
				Cutoff:     time.Now().UTC().Add(-cfg.StaleAge),
				ResultChan: resultChan,
				ErrorChan:  errorChan,
			})
		}
	}
}
