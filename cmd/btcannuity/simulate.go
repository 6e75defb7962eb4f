package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rpgo/btc-annuity/internal/calculation"
	"github.com/rpgo/btc-annuity/internal/config"
	"github.com/rpgo/btc-annuity/internal/domain"
	"github.com/rpgo/btc-annuity/internal/metrics"
	"github.com/rpgo/btc-annuity/internal/output"
	"github.com/rpgo/btc-annuity/internal/recalc"
)

var errCalculationFailed = errors.New("calculation produced no results")

var simulateCmd = &cobra.Command{
	Use:   "simulate [input-file]",
	Short: "Simulate every contract under the best, average and worst scenarios",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync()

		cfg, err := loadConfig(args)
		if err != nil {
			return err
		}
		applyFlags(cmd, cfg)

		ctx := cmd.Context()
		prices, err := loadPrices(ctx, cfg.PriceSource, logger)
		if err != nil {
			return err
		}

		var mc *domain.MonteCarloResult
		if cfg.MonteCarlo.IsEnabled() {
			if mc, err = generate(prices, cfg.MonteCarlo, logger); err != nil {
				return err
			}
		}

		results, err := runScenarios(ctx, cfg, recalc.Input{PriceData: prices, Annuities: cfg.Annuities}, mc, logger)
		if err != nil {
			return err
		}

		report := &output.Report{
			GeneratedAt: time.Now(),
			Annuities:   cfg.Annuities,
			Results:     results,
			MonteCarlo:  mc,
		}
		format, _ := cmd.Flags().GetString("format")
		dir, _ := cmd.Flags().GetString("output-dir")
		return writeReport(cmd, report, format, dir)
	},
}

var montecarloCmd = &cobra.Command{
	Use:   "montecarlo [input-file]",
	Short: "Generate the Monte Carlo price envelope",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync()

		cfg, err := loadConfig(args)
		if err != nil {
			return err
		}
		applyFlags(cmd, cfg)

		prices, err := loadPrices(cmd.Context(), cfg.PriceSource, logger)
		if err != nil {
			return err
		}
		mc, err := generate(prices, cfg.MonteCarlo, logger)
		if err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("format")
		return writeReport(cmd, &output.Report{GeneratedAt: time.Now(), MonteCarlo: mc}, format, "")
	},
}

func generate(prices []domain.PricePoint, settings config.MonteCarloSettings, logger calculation.Logger) (*domain.MonteCarloResult, error) {
	gen := calculation.NewPathGenerator(settings.GeneratorConfig())
	gen.SetLogger(logger)

	start := time.Now()
	mc, err := gen.GeneratePaths(prices, settings.NumberOfPaths, settings.ProjectionDays)
	metrics.ObserveSince(metrics.MonteCarloDuration, start)
	if err != nil {
		return nil, fmt.Errorf("failed to generate projection: %w", err)
	}
	logger.Infof("generated %d paths over %d days (seed %d)", settings.NumberOfPaths, settings.ProjectionDays, gen.Seed)
	return mc, nil
}

// runScenarios pushes the input through a recalc.Controller backed by the
// configured cache and returns the published results.
func runScenarios(ctx context.Context, cfg *config.Configuration, in recalc.Input, mc *domain.MonteCarloResult, logger calculation.Logger) (domain.ScenarioResults, error) {
	c, closeCache, err := config.BuildCache(cfg.Cache)
	if err != nil {
		return nil, err
	}
	defer closeCache()

	ctrl := recalc.NewController(c, recalc.WithLogger(logger))
	var results domain.ScenarioResults
	ctrl.Subscribe(func(ev domain.Event) {
		if ev.Type == domain.EventCalculationComplete {
			results = ev.Results
		}
	})
	ctrl.Recalculate(ctx, in, mc)
	if results == nil {
		return nil, errCalculationFailed
	}
	return results, nil
}

func writeReport(cmd *cobra.Command, report *output.Report, format, dir string) error {
	if dir != "" {
		files, err := output.GenerateReport(report, format, dir)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", strings.Join(files, ", "))
		return nil
	}

	f := output.GetFormatterByName(format)
	if f == nil {
		return fmt.Errorf("%w: %q. Try one of: %s", output.ErrUnsupportedFormat, format, strings.Join(output.AvailableFormatterNames(), ", "))
	}
	data, err := f.Format(report)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
