package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/carloswaibl/algotrader/internal/backtest"
	"github.com/carloswaibl/algotrader/internal/config"
	"github.com/carloswaibl/algotrader/internal/data"
	"github.com/carloswaibl/algotrader/internal/market"
	"github.com/carloswaibl/algotrader/internal/report"
	"github.com/carloswaibl/algotrader/internal/strategy"
)

const plotFileName = "backtest_result.png"

func backtestCmd() *cobra.Command {
	var noPlot bool

	cmd := &cobra.Command{
		Use:   "backtest [YYYY-MM-DD]",
		Short: "Run the zero-DTE credit spread strategy over one session",
		Long: `Run the zero-DTE credit spread strategy over a stored session.

The session's bar file is required; the options chain is used when present,
otherwise strikes and credits are approximated. Prints the starting and final
portfolio value with a summary, writes the trade log and equity curve CSVs
and, when the portfolio value changed, saves a PNG plot.

Examples:
  # Backtest the configured date
  algotrader backtest

  # Backtest another session without a plot
  algotrader backtest --no-plot 2025-06-13`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			date := cfg.Backtest.Date
			if len(args) == 1 {
				date = args[0]
			}
			if _, err := market.SessionOpen(date); err != nil {
				return err
			}

			notifier, err := newNotifier(cfg)
			if err != nil {
				return err
			}

			fmt.Printf("Starting Portfolio Value: %.2f\n", cfg.Backtest.Cash)
			result, bars, err := runBacktest(ctx, cfg, date)
			if err != nil {
				return err
			}
			fmt.Printf("Final Portfolio Value: %.2f\n\n", result.FinalValue)

			title := fmt.Sprintf("%s %s", market.Root(cfg.Underlying), date)
			report.Summary(os.Stdout, title, result)
			if len(result.Trades) > 0 {
				fmt.Println()
				report.Trades(os.Stdout, result.Trades)
			}

			if err := writeResults(result, date); err != nil {
				return err
			}

			if result.Changed() {
				if cfg.Backtest.Plot && !noPlot {
					path := filepath.Join(cfg.Output.PlotsDirectory, plotFileName)
					fmt.Printf("Saving plot to %s\n", path)
					if err := report.SavePlot(path, title, bars, result.EquityCurve); err != nil {
						return err
					}
				}
			} else {
				fmt.Println("\nNo trades were executed or portfolio value did not change.")
				fmt.Println("This is likely because the strategy's entry conditions were not met.")
				fmt.Println("Skipping plot generation.")
			}

			if nerr := notifier.SendBacktest(ctx, result, title); nerr != nil {
				logger.Warn("failed to send notification", zap.Error(nerr))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noPlot, "no-plot", false, "skip the PNG plot")

	return cmd
}

// runBacktest loads the stored session of date and runs the strategy over it.
func runBacktest(ctx context.Context, c *config.Config, date string) (*backtest.Result, []market.Bar, error) {
	params, err := strategyParams(c)
	if err != nil {
		return nil, nil, err
	}

	loader := data.NewFileLoader(c.Output.Directory, logger)
	bars, err := loader.LoadBars(c.Underlying, date)
	if err != nil {
		return nil, nil, fmt.Errorf("loading bars: %w", err)
	}

	chain, err := loader.LoadChain(c.Underlying, date)
	switch {
	case errors.Is(err, data.ErrNotFound):
		logger.Warn("no options chain, approximating strikes and credits", zap.String("date", date))
		chain = nil
	case err != nil:
		return nil, nil, fmt.Errorf("loading options chain: %w", err)
	}

	maxAge := c.Backtest.ChainMaxAge()
	quoter := data.NewChainQuoter(chain, maxAge)
	strat := strategy.New(params, strategy.NewSelector(chain, maxAge, params), quoter, logger)
	broker := backtest.NewBroker(c.Backtest.Cash, c.Backtest.Commission, quoter, logger)

	logger.Info("starting backtest",
		zap.String("underlying", c.Underlying),
		zap.String("date", date),
		zap.String("params", params.Describe()),
	)

	result, err := backtest.NewEngine(broker, strat, logger).Run(ctx, bars)
	if err != nil {
		return nil, nil, err
	}
	return result, bars, nil
}

func writeResults(result *backtest.Result, date string) error {
	compact, err := market.CompactDate(date)
	if err != nil {
		return err
	}
	root := market.Root(cfg.Underlying)
	dir := cfg.Output.ResultsDirectory
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating results directory: %w", err)
	}

	tradesPath := filepath.Join(dir, fmt.Sprintf("%s_trades_%s.csv", root, compact))
	if err := report.WriteTradeLog(tradesPath, result.Trades); err != nil {
		return err
	}
	equityPath := filepath.Join(dir, fmt.Sprintf("%s_equity_%s.csv", root, compact))
	if err := report.WriteEquityCurve(equityPath, result.EquityCurve); err != nil {
		return err
	}

	logger.Info("wrote backtest results",
		zap.String("trades", tradesPath),
		zap.String("equity", equityPath),
	)
	return nil
}
