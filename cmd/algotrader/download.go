package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/carloswaibl/algotrader/internal/api"
	"github.com/carloswaibl/algotrader/internal/config"
	"github.com/carloswaibl/algotrader/internal/download"
	"github.com/carloswaibl/algotrader/internal/staging"
)

func downloadCmd() *cobra.Command {
	var (
		dryRun      bool
		tickers     []string
		withOptions bool
		barsOnly    bool
	)

	cmd := &cobra.Command{
		Use:   "download YYYY-MM-DD [END_DATE]",
		Short: "Download minute bars and 0DTE options for specified date(s)",
		Long: `Download historical minute bars, and optionally the same-day options
chain, from the market data vendor for the specified date(s).

Date format: YYYY-MM-DD (e.g., 2025-06-13)

Examples:
  # Download single date
  algotrader download 2025-06-13

  # Download date range with options
  algotrader download --options 2025-06-02 2025-06-13

  # Override tickers from config
  algotrader download --tickers I:SPX,I:NDX 2025-06-13

  # Dry run to see what would be downloaded
  algotrader download --dry-run 2025-06-13`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			dates, err := parseDates(args)
			if err != nil {
				return err
			}

			effectiveTickers := tickers
			if len(effectiveTickers) == 0 {
				effectiveTickers = []string{cfg.Underlying}
			}

			apiKey := cfg.API.APIKey
			if dryRun && apiKey == "" {
				apiKey = "dry-run"
			}
			if err := config.ValidateDownloadConfig(apiKey, effectiveTickers, cfg.Download.ContractTypes, args); err != nil {
				return err
			}
			types, err := contractTypes(cfg.Download.ContractTypes)
			if err != nil {
				return err
			}

			opts := download.Options{
				Tickers:       effectiveTickers,
				Options:       (cfg.Download.Options || withOptions) && !barsOnly,
				ContractTypes: types,
				StrikeRange:   cfg.Download.StrikeRange,
				RiskFreeRate:  cfg.Download.RiskFreeRate,
				ArchiveRaw:    cfg.Download.ArchiveRaw,
				Resume:        cfg.Download.ResumeEnabled,
			}
			stgMgr := staging.NewManager(cfg.Output.Directory)

			if dryRun {
				svc := download.NewService(nil, stgMgr, cfg.Download.Workers, opts, logger)
				for _, t := range svc.Tasks(download.FilterTradingDays(dates, logger)) {
					fmt.Printf("Would download: %s -> %s\n", t, t.OutputPath(cfg.Output.Directory))
				}
				return nil
			}

			notifier, err := newNotifier(cfg)
			if err != nil {
				return err
			}

			client := api.NewClient(
				cfg.API.APIKey,
				cfg.Download.RatePerSecond,
				time.Duration(cfg.API.TimeoutSec)*time.Second,
				time.Duration(cfg.API.RetryDelay)*time.Second,
				cfg.API.RetryCount,
				logger,
			)
			svc := download.NewService(client, stgMgr, cfg.Download.Workers, opts, logger)

			start := time.Now()
			result, err := svc.Run(ctx, dates)
			duration := time.Since(start)
			label := dateLabel(dates)

			if err != nil {
				if nerr := notifier.SendFailure(ctx, result, label, duration, err); nerr != nil {
					logger.Warn("failed to send notification", zap.Error(nerr))
				}
				return err
			}

			logger.Info("download complete",
				zap.Int("total", result.Total),
				zap.Int("success", result.Success),
				zap.Int("skipped", result.Skipped),
				zap.Int("not_found", result.NotFound),
				zap.Int("failed", result.Failed),
				zap.Int("rows", result.Rows),
				zap.Duration("duration", duration),
			)

			if result.HasFailures() {
				for _, e := range result.Errors {
					logger.Error("download error", zap.String("error", e))
				}
				failErr := fmt.Errorf("%d downloads failed", result.Failed)
				if nerr := notifier.SendFailure(ctx, result, label, duration, failErr); nerr != nil {
					logger.Warn("failed to send notification", zap.Error(nerr))
				}
				return failErr
			}

			if nerr := notifier.SendSuccess(ctx, result, label, duration); nerr != nil {
				logger.Warn("failed to send notification", zap.Error(nerr))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be downloaded")
	cmd.Flags().StringSliceVar(&tickers, "tickers", nil, "override the configured underlying")
	cmd.Flags().BoolVar(&withOptions, "options", false, "also download the 0DTE options chain")
	cmd.Flags().BoolVar(&barsOnly, "bars-only", false, "skip the options chain even when enabled in config")

	return cmd
}
