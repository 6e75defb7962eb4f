package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rpgo/btc-annuity/internal/calculation"
	"github.com/rpgo/btc-annuity/internal/config"
	"github.com/rpgo/btc-annuity/internal/domain"
	"github.com/rpgo/btc-annuity/internal/pricefeed"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:           "btcannuity",
	Short:         "BTC annuity scenario calculator",
	Long:          "Cash-flow and valuation engine for BTC-funded annuity contracts under best, average and worst price scenarios",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "btcannuity %s (commit %s, built %s)\n", version, commit, date)
			if info := buildInfo(); info != "" {
				fmt.Fprintln(cmd.OutOrStdout(), info)
			}
		},
	}
}

func buildInfo() string {
	if bi, ok := debug.ReadBuildInfo(); ok && bi != nil {
		return bi.String()
	}
	return ""
}

// newLogger returns a zap logger; *zap.SugaredLogger satisfies
// calculation.Logger.
func newLogger(cmd *cobra.Command) (*zap.SugaredLogger, error) {
	debugMode, _ := cmd.Flags().GetBool("debug")
	var (
		l   *zap.Logger
		err error
	)
	if debugMode {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return l.Sugar(), nil
}

// loadConfig reads the portfolio file, or returns the defaults with
// environment overrides when no file is given.
func loadConfig(args []string) (*config.Configuration, error) {
	parser := config.NewInputParser()
	if len(args) == 0 {
		cfg := config.DefaultConfiguration()
		parser.ApplyEnvironment(cfg)
		return cfg, nil
	}
	return parser.LoadFromFile(args[0])
}

// applyFlags lets command-line flags override the loaded settings.
func applyFlags(cmd *cobra.Command, cfg *config.Configuration) {
	flags := cmd.Flags()
	if flags.Changed("seed") {
		cfg.MonteCarlo.Seed, _ = flags.GetInt64("seed")
	}
	if flags.Changed("paths") {
		cfg.MonteCarlo.NumberOfPaths, _ = flags.GetInt("paths")
	}
	if flags.Changed("days") {
		cfg.MonteCarlo.ProjectionDays, _ = flags.GetInt("days")
	}
	if flags.Changed("no-montecarlo") {
		if off, _ := flags.GetBool("no-montecarlo"); off {
			enabled := false
			cfg.MonteCarlo.Enabled = &enabled
		}
	}
	if flags.Changed("prices") {
		path, _ := flags.GetString("prices")
		cfg.PriceSource = config.PriceSourceConfig{Type: config.SourceCSV, Path: path}
	}
}

// loadPrices loads and normalizes history from the configured source.
func loadPrices(ctx context.Context, cfg config.PriceSourceConfig, logger calculation.Logger) ([]domain.PricePoint, error) {
	src, closeSrc, err := config.BuildPriceSource(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer closeSrc()

	prices, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s price history: %w", cfg.Type, err)
	}
	prices = pricefeed.Normalize(prices)
	if len(prices) == 0 {
		return nil, pricefeed.ErrNoPrices
	}
	logger.Infof("loaded %d prices from %s (%s to %s)", len(prices), cfg.Type, prices[0].Date, prices[len(prices)-1].Date)
	return prices, nil
}

var validateCmd = &cobra.Command{
	Use:   "validate [input-file]",
	Short: "Validate a portfolio file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.NewInputParser().LoadFromFile(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Portfolio file %s is valid (%d contracts, %s prices)\n", args[0], len(cfg.Annuities), cfg.PriceSource.Type)
		return nil
	},
}

var exampleCmd = &cobra.Command{
	Use:   "example",
	Short: "Print an example portfolio file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := config.Marshal(config.NewInputParser().CreateExampleConfiguration())
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	for _, cmd := range []*cobra.Command{simulateCmd, montecarloCmd, serveCmd} {
		cmd.Flags().Int64("seed", 0, "Monte Carlo seed (0 draws one)")
		cmd.Flags().Int("paths", 0, "Number of Monte Carlo paths")
		cmd.Flags().Int("days", 0, "Projection horizon in days")
		cmd.Flags().String("prices", "", "Read price history from this CSV file instead of the configured source")
	}
	simulateCmd.Flags().Bool("no-montecarlo", false, "Only use historical prices")
	serveCmd.Flags().Bool("no-montecarlo", false, "Only use historical prices")
	simulateCmd.Flags().StringP("format", "f", "console", "Output format (console, json, csv, monthly-csv, valuations-csv, envelope-csv, all)")
	simulateCmd.Flags().String("output-dir", "", "Write timestamped report files here instead of stdout")
	montecarloCmd.Flags().StringP("format", "f", "envelope-csv", "Output format (envelope-csv, json)")

	pricesCmd.Flags().String("csv", "", "Write the loaded history to this CSV file")
	pricesCmd.Flags().String("postgres", "", "Upsert the loaded history into this PostgreSQL database")
	pricesCmd.Flags().String("prices", "", "Read price history from this CSV file instead of the configured source")

	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(montecarloCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(exampleCmd)
	rootCmd.AddCommand(pricesCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
