package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/carloswaibl/algotrader/internal/mock"
)

func mockCmd() *cobra.Command {
	var (
		date string
		seed int64
	)

	cmd := &cobra.Command{
		Use:   "mock",
		Short: "Generate a mock session, options chain and equity curve",
		Long: `Generate deterministic mock data for the configured underlying.

Writes <ROOT>_<YYYYMMDD>.parquet and <ROOT>_OPTIONS_<YYYYMMDD>.parquet to the
data directory and backtest_results_log.csv to the results directory.

Examples:
  # Mock the configured date
  algotrader mock

  # Mock another date with a different seed
  algotrader mock --date 2025-06-13 --seed 7`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mcfg, err := mockConfig(cfg)
			if err != nil {
				return err
			}
			if date != "" {
				mcfg.Date = date
			}
			if cmd.Flags().Changed("seed") {
				mcfg.Seed = seed
			}

			gen, err := mock.NewGenerator(mcfg, logger)
			if err != nil {
				return err
			}
			out, err := gen.WriteAll(cfg.Output.Directory, cfg.Output.ResultsDirectory)
			if err != nil {
				return err
			}

			logger.Info("mock data written",
				zap.String("bars", out.BarsPath),
				zap.Int("bar_count", out.Bars),
				zap.String("options", out.OptionsPath),
				zap.Int("option_rows", out.OptionRows),
				zap.String("equity", out.EquityPath),
				zap.Int("equity_points", out.EquityPoints),
			)
			fmt.Printf("Wrote %s (%d bars)\n", out.BarsPath, out.Bars)
			fmt.Printf("Wrote %s (%d rows)\n", out.OptionsPath, out.OptionRows)
			fmt.Printf("Wrote %s (%d points)\n", out.EquityPath, out.EquityPoints)
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "session date YYYY-MM-DD (default from config)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed (default from config)")

	return cmd
}
