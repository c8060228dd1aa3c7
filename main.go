package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MarkAustinGrow/Marvin-xAccount-monitor/internal/config"
	"github.com/MarkAustinGrow/Marvin-xAccount-monitor/internal/fetcher"
	"github.com/MarkAustinGrow/Marvin-xAccount-monitor/internal/monitor"
	"github.com/MarkAustinGrow/Marvin-xAccount-monitor/internal/quota"
	"github.com/MarkAustinGrow/Marvin-xAccount-monitor/internal/scheduler"
	"github.com/MarkAustinGrow/Marvin-xAccount-monitor/internal/server"
	"github.com/MarkAustinGrow/Marvin-xAccount-monitor/internal/store"
	"github.com/MarkAustinGrow/Marvin-xAccount-monitor/internal/twitter"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Load or create configuration
	cfg, err := config.Load()
	if err != nil {
		if os.IsNotExist(err) {
			// First run - create default config
			cfg = config.Default()
			if err := cfg.Save(); err != nil {
				log.Printf("Warning: could not save default config: %v", err)
			} else {
				path, _ := config.ConfigPath()
				log.Printf("Created default config at: %s", path)
			}
		} else {
			log.Printf("Warning: could not load config: %v (using defaults)", err)
			cfg = config.Default()
		}
		cfg.ApplyEnv()
	}

	if cfg.Twitter.BearerToken == "" {
		log.Fatal("Twitter bearer token is not set (config or TWITTER_BEARER_TOKEN)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.New(cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	cachePath, err := twitter.DefaultUserIDCachePath()
	if err != nil {
		log.Fatalf("Failed to resolve user ID cache path: %v", err)
	}
	ids := twitter.OpenUserIDCache(cachePath)
	log.Printf("Loaded %d cached user IDs from file", ids.Len())

	tracker := quota.New(cfg.Monitor.DailyAPILimit)
	defer tracker.Stop()

	client := twitter.New(cfg.Twitter, tracker, ids)
	f := fetcher.New(client, tracker, cfg.Monitor)
	mon := monitor.New(st, f, tracker, cfg.Monitor)

	web := server.New(cfg.Web, st)

	sched := scheduler.New(ctx)
	if err := sched.AddMonitorJob(cfg.Monitor.CronSchedule, mon.Run); err != nil {
		log.Fatalf("Failed to schedule monitoring job: %v", err)
	}
	sched.Start()

	if cfg.Monitor.TestMode {
		log.Println("Starting in TEST MODE")
	}

	g, gctx := errgroup.WithContext(ctx)

	// The dashboard is a convenience surface: a port clash should not
	// take down monitoring.
	g.Go(func() error {
		if err := web.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Warning: web server failed: %v", err)
		}
		return nil
	})

	// Initial pass on startup, same as every later cron tick. A failed
	// pass is logged, not fatal: the next tick retries.
	g.Go(func() error {
		sched.RunNow("monitor", mon.Run)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		log.Println("Shutting down...")
		mon.StopPending()
		<-sched.Stop().Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := web.Shutdown(shutdownCtx); err != nil {
			log.Printf("Warning: web server shutdown: %v", err)
		}

		if err := ids.Flush(); err != nil {
			log.Printf("Warning: could not flush user ID cache: %v", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("Fatal: %v", err)
	}
	log.Println("Shutdown complete")
}
