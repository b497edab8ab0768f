package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/carloswaibl/algotrader/internal/api"
	"github.com/carloswaibl/algotrader/internal/config"
	"github.com/carloswaibl/algotrader/internal/download"
	"github.com/carloswaibl/algotrader/internal/market"
	"github.com/carloswaibl/algotrader/internal/staging"
)

type trackerState struct {
	LastDate  string    `json:"last_date"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DownloadTracker tracks the last successfully downloaded date
type DownloadTracker struct {
	stateFile string
}

// NewDownloadTracker creates a new tracker with the given state file path
func NewDownloadTracker(stateFile string) *DownloadTracker {
	return &DownloadTracker{stateFile: stateFile}
}

// GetLastDownloadDate reads the last successful download date from state file
func (t *DownloadTracker) GetLastDownloadDate() string {
	raw, err := os.ReadFile(t.stateFile)
	if err != nil {
		return ""
	}
	var state trackerState
	if err := json.Unmarshal(raw, &state); err != nil {
		return ""
	}
	return state.LastDate
}

// SetLastDownloadDate writes the date to the state file
func (t *DownloadTracker) SetLastDownloadDate(date string) error {
	if err := os.MkdirAll(filepath.Dir(t.stateFile), 0750); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(trackerState{LastDate: date, UpdatedAt: time.Now().UTC()}, "", "  ")
	if err != nil {
		return err
	}
	tmp := t.stateFile + ".tmp"
	if err := os.WriteFile(tmp, raw, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, t.stateFile)
}

// AlreadyDownloaded checks if the given date was already downloaded
func (t *DownloadTracker) AlreadyDownloaded(date string) bool {
	return t.GetLastDownloadDate() == date
}

// executeDownload runs the download for the given date using existing internal packages.
func executeDownload(ctx context.Context, cfg *config.Config, date string, logger *zap.Logger) (*download.BatchResult, error) {
	types := make([]market.ContractType, 0, len(cfg.Download.ContractTypes))
	for _, name := range cfg.Download.ContractTypes {
		ct, err := market.ParseContractType(name)
		if err != nil {
			return nil, err
		}
		types = append(types, ct)
	}

	client := api.NewClient(
		cfg.API.APIKey,
		cfg.Download.RatePerSecond,
		time.Duration(cfg.API.TimeoutSec)*time.Second,
		time.Duration(cfg.API.RetryDelay)*time.Second,
		cfg.API.RetryCount,
		logger,
	)

	svc := download.NewService(client, staging.NewManager(cfg.Output.Directory), cfg.Download.Workers, download.Options{
		Tickers:       []string{cfg.Underlying},
		Options:       cfg.Download.Options,
		ContractTypes: types,
		StrikeRange:   cfg.Download.StrikeRange,
		RiskFreeRate:  cfg.Download.RiskFreeRate,
		ArchiveRaw:    cfg.Download.ArchiveRaw,
		Resume:        cfg.Download.ResumeEnabled,
	}, logger)

	result, err := svc.Run(ctx, []string{date})
	if err != nil {
		return result, err
	}

	logger.Info("download complete",
		zap.Int("total", result.Total),
		zap.Int("success", result.Success),
		zap.Int("skipped", result.Skipped),
		zap.Int("not_found", result.NotFound),
		zap.Int("failed", result.Failed),
		zap.Int("rows", result.Rows),
	)

	if result.HasFailures() {
		for _, e := range result.Errors {
			logger.Error("download error", zap.String("error", e))
		}
		return result, fmt.Errorf("%d downloads failed", result.Failed)
	}

	return result, nil
}
