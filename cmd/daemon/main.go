package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/carloswaibl/algotrader/internal/config"
	"github.com/carloswaibl/algotrader/internal/market"
	"github.com/carloswaibl/algotrader/internal/notify"
)

const retryBackoff = 15 * time.Minute

func main() {
	os.Exit(run())
}

func run() int {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := loadConfig()
	if err != nil {
		logger.Error("failed to load config", zap.Error(err))
		return 1
	}
	if err := config.ValidateDownloadConfig(cfg.API.APIKey, []string{cfg.Underlying}, cfg.Download.ContractTypes, nil); err != nil {
		logger.Error("invalid download configuration", zap.Error(err))
		return 1
	}

	at, err := market.ParseClock(cfg.Daemon.ScheduleTime)
	if err != nil {
		logger.Error("invalid schedule time", zap.Error(err))
		return 1
	}

	notifyCfg := &notify.Config{
		Enabled:  cfg.Notify.Enabled,
		Server:   cfg.Notify.Server,
		Topic:    cfg.Notify.Topic,
		Priority: cfg.Notify.Priority,
		Tags:     cfg.Notify.Tags,
		Token:    cfg.Notify.Token,
	}
	if err := notifyCfg.Validate(); err != nil {
		logger.Error("invalid notify config", zap.Error(err))
		return 1
	}
	notifier := notify.New(notifyCfg, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	scheduler := NewScheduler(at)
	tracker := NewDownloadTracker(cfg.Daemon.StateFile)

	logger.Info("daemon started",
		zap.String("underlying", cfg.Underlying),
		zap.String("schedule", at.String()+" America/New_York"),
		zap.String("state_file", cfg.Daemon.StateFile),
		zap.String("last_download", tracker.GetLastDownloadDate()),
		zap.Bool("notify", cfg.Notify.Enabled),
	)

	if cfg.Daemon.RunImmediately {
		logger.Info("checking for missed download on startup")
		if shouldDownload(scheduler, tracker, logger) {
			runDownload(ctx, cfg, scheduler, tracker, notifier, logger)
		}
	}

	// Main loop - check every minute, backing off after a failed attempt
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	var retryAfter time.Time
	for {
		select {
		case now := <-ticker.C:
			if now.Before(retryAfter) || !shouldDownload(scheduler, tracker, logger) {
				continue
			}
			if !runDownload(ctx, cfg, scheduler, tracker, notifier, logger) {
				retryAfter = now.Add(retryBackoff)
			}

		case <-ctx.Done():
			logger.Info("shutting down")
			return 0
		}
	}
}

// shouldDownload checks if conditions are met for triggering a download
func shouldDownload(scheduler *Scheduler, tracker *DownloadTracker, logger *zap.Logger) bool {
	today := scheduler.TodayDate()

	if tracker.AlreadyDownloaded(today) {
		return false
	}

	if !scheduler.IsMarketDay(today) {
		logger.Debug("not a market day", zap.String("date", today))
		return false
	}

	if !scheduler.IsDue() {
		return false
	}

	logger.Info("download conditions met", zap.String("date", today), zap.Stringer("schedule", scheduler.Schedule()))
	return true
}

// runDownload executes the download, notifies and updates the tracker
func runDownload(ctx context.Context, cfg *config.Config, scheduler *Scheduler, tracker *DownloadTracker, notifier notify.Notifier, logger *zap.Logger) bool {
	today := scheduler.TodayDate()

	logger.Info("starting scheduled download", zap.String("date", today))
	start := time.Now()

	result, err := executeDownload(ctx, cfg, today, logger)
	duration := time.Since(start)
	if err != nil {
		logger.Error("download failed", zap.Error(err), zap.String("date", today))
		if nerr := notifier.SendFailure(ctx, result, today, duration, err); nerr != nil {
			logger.Warn("failed to send notification", zap.Error(nerr))
		}
		return false
	}

	logger.Info("download succeeded", zap.String("date", today), zap.Duration("duration", duration))
	if nerr := notifier.SendSuccess(ctx, result, today, duration); nerr != nil {
		logger.Warn("failed to send notification", zap.Error(nerr))
	}

	if err := tracker.SetLastDownloadDate(today); err != nil {
		logger.Error("failed to update tracker", zap.Error(err))
	}
	return true
}
