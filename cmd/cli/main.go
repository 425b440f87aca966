package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"happycast/app"
	"happycast/domain/core"
	"happycast/internal"
	"happycast/internal/config"
	"happycast/internal/container"
	"happycast/internal/dashboard"
	"happycast/internal/errors"
	"happycast/internal/report"
	"happycast/internal/testkit"
	"happycast/ports"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var configPath string

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:           "happycast",
		Short:         "Walk-forward backtests of happiness score forecasters",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML configuration file (overrides environment)")

	rootCmd.AddCommand(
		newBacktestCmd(),
		newCompareCmd(),
		newReportCmd(),
		newGenerateCmd(),
		newViewsCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", errors.GetCode(err), err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the container
func setup(ctx context.Context, withDatabase bool) (*container.Container, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger := internal.NewLogger(internal.ParseLogLevel(cfg.Logging.Level))
	c, err := container.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	if withDatabase {
		if err := c.InitWithDatabase(ctx); err != nil {
			logger.Warn("[CLI] result store unavailable, continuing without persistence: %v", err)
		}
	}
	return c, nil
}

func newBacktestCmd() *cobra.Command {
	var maxCountries int
	var output string
	var sortByRMSE string

	cmd := &cobra.Command{
		Use:   "backtest [trees|sarimax]",
		Short: "Run the walk-forward backtest of one model family",
		Long: `Run a walk-forward backtest over the configured dataset.

trees   lag-feature boosted trees; set HAPPYCAST_TREE_ENGINE=off to run the
        mean fallback only. The summary is merged with the sarimax summary
        into model_comparison.csv when that file exists.
sarimax seasonal ARIMA with per-step AIC order selection. The summary is
        sorted by RMSE.

Example: happycast backtest sarimax --max-countries 10`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"trees", "sarimax"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBacktest(cmd.Context(), cmd.OutOrStdout(), args[0], maxCountries, output, sortByRMSE)
		},
	}

	cmd.Flags().IntVar(&maxCountries, "max-countries", 0, "Stop after this many evaluated countries (default from config)")
	cmd.Flags().StringVar(&output, "output", "", "Summary file, .csv or .xlsx (default <output_dir>/<model>_backtest_summary.csv)")
	cmd.Flags().StringVar(&sortByRMSE, "sort", "auto", "Sort by RMSE: auto|yes|no")
	return cmd
}

func runBacktest(ctx context.Context, out io.Writer, family string, maxCountries int, output, sortByRMSE string) error {
	c, err := setup(ctx, true)
	if err != nil {
		return err
	}
	defer c.Shutdown(context.Background())

	ds, err := c.LoadDataset(ctx)
	if err != nil {
		return err
	}

	var forecaster ports.Forecaster
	sortDefault := false
	switch family {
	case "trees", "tree", "gbt":
		tree := c.TreeForecaster()
		if !tree.Enabled() {
			c.Logger.Warn("[CLI] tree engine disabled, every step uses the training mean")
		}
		forecaster = tree
	case "sarimax", "sarima":
		forecaster = c.SeasonalForecaster()
		sortDefault = true
	default:
		return errors.InvalidInput(fmt.Sprintf("unknown model family %q (want trees or sarimax)", family))
	}

	opts := c.BacktestOptions(forecaster.Name())
	if maxCountries > 0 {
		opts.MaxCountries = maxCountries
	}
	if output != "" {
		opts.OutputPath = output
	}
	switch strings.ToLower(sortByRMSE) {
	case "yes", "true":
		opts.SortByRMSE = true
	case "no", "false":
		opts.SortByRMSE = false
	default:
		opts.SortByRMSE = sortDefault
	}

	rep, runErr := c.Backtests.Run(ctx, app.BacktestRequest{Dataset: ds, Forecaster: forecaster, Options: opts})
	if rep == nil {
		return runErr
	}
	fmt.Fprintf(out, "%s: %d countries evaluated, %d failed, %d skipped, %d fallback steps\n",
		rep.Model, rep.Evaluated, rep.Failed, rep.Skipped, rep.Fallbacks)
	fmt.Fprintf(out, "summary written to %s\n", rep.OutputPath)
	if runErr != nil {
		return runErr
	}

	if forecaster.Name() != container.SeasonalModel {
		res, err := c.Comparisons.CompareWithPrevious(ctx, c.SummaryPath(container.SeasonalModel), rep.Table, c.ComparisonPath())
		if err != nil {
			return err
		}
		if !res.Skipped {
			fmt.Fprintf(out, "comparison written to %s\n", res.OutputPath)
		}
	}
	return nil
}

func newCompareCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "compare [left] [right]",
		Short: "Outer-join two summary files on country",
		Long: `Merge two backtest summaries. Metric columns present in both files are
suffixed _x (left) and _y (right).

Without arguments the sarimax and tree summaries of the output directory are merged.`,
		Args: cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := setup(cmd.Context(), false)
			if err != nil {
				return err
			}
			left := c.SummaryPath(container.SeasonalModel)
			right := c.SummaryPath(c.Config.Backtest.TreeModelName)
			if len(args) == 2 {
				left, right = args[0], args[1]
			} else if len(args) == 1 {
				return errors.InvalidInput("compare needs both files or none")
			}
			if output == "" {
				output = c.ComparisonPath()
			}

			res, err := c.Comparisons.CompareFiles(cmd.Context(), left, right, output)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d countries written to %s\n", res.Table.Len(), res.OutputPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&output, "output", "", "Merged file (default <output_dir>/model_comparison.csv)")
	return cmd
}

func newReportCmd() *cobra.Command {
	var output string
	var asHTML bool
	var title string

	cmd := &cobra.Command{
		Use:   "report [table]",
		Short: "Render a summary or comparison file as Markdown or HTML",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := setup(cmd.Context(), false)
			if err != nil {
				return err
			}
			path := c.ComparisonPath()
			if len(args) == 1 {
				path = args[0]
			}
			table, err := c.Tables.ReadTable(cmd.Context(), path)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return errors.StorageError(output, err)
				}
				defer f.Close()
				w = f
			}
			if title == "" {
				title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			}
			if asHTML {
				return report.RenderHTML(w, title, table)
			}
			return report.Render(w, title, table)
		},
	}

	cmd.Flags().StringVar(&output, "output", "", "Write to this file instead of stdout")
	cmd.Flags().BoolVar(&asHTML, "html", false, "Render a standalone HTML page")
	cmd.Flags().StringVar(&title, "title", "", "Document title (default: file name)")
	return cmd
}

func newGenerateCmd() *cobra.Command {
	cfg := testkit.DefaultHappinessConfig()
	var output string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a synthetic happiness panel to CSV",
		Long: `Generate a deterministic country x year panel with the required columns.

Example: happycast generate --countries 60 --years 20 --seed 7 --output dataset/synthetic.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Countries < 1 || cfg.Years < 1 {
				return errors.InvalidInput("countries and years must be positive")
			}
			w := cmd.OutOrStdout()
			if output != "" {
				if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
					return errors.StorageError(output, err)
				}
				f, err := os.Create(output)
				if err != nil {
					return errors.StorageError(output, err)
				}
				defer f.Close()
				w = f
			}
			return testkit.NewHappinessGenerator(cfg).WriteCSV(w)
		},
	}

	cmd.Flags().IntVar(&cfg.Countries, "countries", cfg.Countries, "Number of countries")
	cmd.Flags().IntVar(&cfg.StartYear, "start-year", cfg.StartYear, "First year")
	cmd.Flags().IntVar(&cfg.Years, "years", cfg.Years, "Years per country")
	cmd.Flags().IntVar(&cfg.ShortCountries, "short-countries", cfg.ShortCountries, "Countries with a short history")
	cmd.Flags().Float64Var(&cfg.NoiseSD, "noise", cfg.NoiseSD, "Standard deviation of yearly noise")
	cmd.Flags().Int64Var(&cfg.Seed, "seed", cfg.Seed, "Random seed")
	cmd.Flags().StringVar(&output, "output", "", "Output CSV (default stdout)")
	return cmd
}

func newViewsCmd() *cobra.Command {
	var country string
	var year int
	var n int

	cmd := &cobra.Command{
		Use:   "views",
		Short: "Print the dashboard views of the dataset as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := setup(cmd.Context(), false)
			if err != nil {
				return err
			}
			ds, err := c.LoadDataset(cmd.Context())
			if err != nil {
				return err
			}

			v := dashboard.NewViews(ds)
			if year == 0 {
				year = v.LatestYear()
			}
			out := map[string]interface{}{
				"latest_year": v.LatestYear(),
				"top":         v.Top(year, n),
				"bottom":      v.Bottom(year, n),
				"map":         v.YearMap(year),
			}
			if country != "" {
				s, err := v.CountrySeries(core.Country(country))
				if err != nil {
					return err
				}
				income, err := v.IncomeVsHappiness(core.Country(country))
				if err != nil {
					return err
				}
				out["series"] = s
				out["income"] = income
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	cmd.Flags().StringVar(&country, "country", "", "Include the series and income views of this country")
	cmd.Flags().IntVar(&year, "year", 0, "Year of rankings and map (default latest)")
	cmd.Flags().IntVar(&n, "n", dashboard.DefaultRankSize, "Ranking size")
	return cmd
}
