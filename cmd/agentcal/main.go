package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"agentcal/internal/applecal"
	"agentcal/internal/bus"
	"agentcal/internal/config"
	"agentcal/internal/feed"
	appLog "agentcal/internal/log"
	"agentcal/internal/mapper"
	"agentcal/internal/web"
)

type flagConfig struct {
	configPath string
	listen     string
	cleanup    bool
	debug      bool
}

func main() {
	appLog.Info("agentcal starting", "version", "0.1.0")

	flags := parseFlags()
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --listen overrides the config file if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"feed_dir", conf.FeedDir,
		"calendar_name", conf.CalendarName,
		"combined", conf.CombinedEnabled(),
		"per_source", conf.PerSourceEnabled(),
		"aggregate", conf.AggregateEnabled(),
		"retention_days", conf.RetentionDays,
		"max_completed_events", conf.MaxCompletedEvents,
		"cleanup_cron", conf.CleanupCron,
		"apple_calendar", conf.AppleCalendar.Enabled,
	)

	router := feed.NewRouter(feed.Options{
		Dir:          conf.FeedDir,
		CalendarName: conf.CalendarName,
		Combined:     conf.CombinedEnabled(),
		PerSource:    conf.PerSourceEnabled(),
	})

	if flags.cleanup {
		removed, err := router.CleanupAll(conf.RetentionDays, conf.MaxCompletedEvents)
		if err != nil {
			appLog.Error("cleanup failed", err)
			os.Exit(1)
		}
		appLog.Info("cleanup completed", "removed", removed)
		return
	}

	var agg *mapper.Aggregator
	if conf.AggregateEnabled() {
		agg = mapper.NewAggregator(router)
	}

	var mirror bus.Mirror
	if conf.AppleCalendar.Enabled {
		mirror = applecal.NewDispatcher(time.Duration(conf.AppleCalendar.TimeoutSec) * time.Second)
	}

	handler := bus.NewHandler(router, agg, mirror)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	// Retention sweep on the configured cron schedule.
	sched := cron.New()
	if _, err := sched.AddFunc(conf.CleanupCron, func() {
		removed, cerr := router.CleanupAll(conf.RetentionDays, conf.MaxCompletedEvents)
		if cerr != nil {
			appLog.Error("scheduled cleanup failed", cerr)
			return
		}
		if removed > 0 {
			appLog.Info("scheduled cleanup completed", "removed", removed)
		}
	}); err != nil {
		appLog.Error("invalid cleanup_cron expression", err, "cleanup_cron", conf.CleanupCron)
		os.Exit(1)
	}
	sched.Start()
	defer sched.Stop()

	srv := &http.Server{
		Addr:              conf.Listen,
		Handler:           web.NewServer(conf, router, handler).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			appLog.Error("HTTP server shutdown failed", err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("HTTP server failed", err)
			os.Exit(1)
		}
	}

	appLog.Info("agentcal exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/agentcal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.cleanup, "cleanup", false, "Run one retention cleanup pass and exit")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}
