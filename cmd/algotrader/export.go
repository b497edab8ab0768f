package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/carloswaibl/algotrader/internal/data"
	"github.com/carloswaibl/algotrader/internal/market"
)

func exportCmd() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "export YYYY-MM-DD|FILE.parquet ...",
		Short: "Export stored Parquet files to CSV",
		Long: `Export bar and options Parquet files to CSV.

A date argument exports both files of the configured underlying for that
session; a .parquet argument exports that file. CSV files are written to the
results directory unless --out is given.

Examples:
  # Export the underlying's files for a session
  algotrader export 2025-06-13

  # Export a specific file
  algotrader export data/parquet/SPX_OPTIONS_20250613.parquet`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if outDir == "" {
				outDir = cfg.Output.ResultsDirectory
			}
			if err := os.MkdirAll(outDir, 0755); err != nil {
				return fmt.Errorf("creating output directory: %w", err)
			}

			paths, err := exportPaths(cfg.Output.Directory, cfg.Underlying, args)
			if err != nil {
				return err
			}

			var exported, failed int
			for _, src := range paths {
				dst := filepath.Join(outDir, strings.TrimSuffix(filepath.Base(src), ".parquet")+".csv")
				rows, err := data.ExportCSV(src, dst)
				if err != nil {
					logger.Error("export failed", zap.String("file", src), zap.Error(err))
					failed++
					continue
				}
				logger.Info("exported", zap.String("file", src), zap.String("csv", dst), zap.Int("rows", rows))
				exported++
			}

			logger.Info("export complete", zap.Int("exported", exported), zap.Int("failed", failed))
			if failed > 0 {
				return fmt.Errorf("%d files failed to export", failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&outDir, "out", "", "output directory (default results directory)")

	return cmd
}

// exportPaths resolves date and file arguments to existing Parquet files.
func exportPaths(dataDir, ticker string, args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		if strings.HasSuffix(arg, ".parquet") {
			paths = append(paths, arg)
			continue
		}

		names := make([]string, 0, 2)
		bars, err := market.BarsFileName(ticker, arg)
		if err != nil {
			return nil, err
		}
		opts, _ := market.OptionsFileName(ticker, arg)
		names = append(names, bars, opts)

		found := false
		for _, name := range names {
			path := filepath.Join(dataDir, name)
			if _, err := os.Stat(path); err == nil {
				paths = append(paths, path)
				found = true
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: no Parquet files for %s on %s", data.ErrNotFound, market.Root(ticker), arg)
		}
	}
	return paths, nil
}
