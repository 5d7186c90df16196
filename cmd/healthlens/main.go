package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/spektr-org/healthlens/config"
	"github.com/spektr-org/healthlens/engine"
	"github.com/spektr-org/healthlens/render"
	"github.com/spektr-org/healthlens/schema"
	"github.com/spektr-org/healthlens/server"
	"github.com/spektr-org/healthlens/session"
	"github.com/spektr-org/healthlens/source"
)

// ============================================================================
// HEALTHLENS CLI — Explore country health statistics
// ============================================================================

const version = "0.3.0"

var flags struct {
	configPath string
	format     string
	outFile    string

	countries  []string
	categories []string
	variable   string
	year       int
	stable     bool
	sortBy     string
	width      int
	height     int
}

var rootCmd = &cobra.Command{
	Use:           "healthlens",
	Short:         "Reactive explorer for country health statistics",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard JSON API",
	RunE:  runServe,
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Print the chart series and summary table for one selection",
	Example: `  healthlens query --country IRL --country IND --variable "Immunisation: Hepatitis B_% of children immunised" --year 2016
  healthlens query --country IRL --variable X --year 2016 --format csv --out ireland.csv
  healthlens query --country IRL --country IND --variable X --year 2016 --sort value_desc --format text
  healthlens query --country IRL --country IND --variable X --year 2016 --format png --out chart.png`,
	RunE: runQuery,
}

var optionsCmd = &cobra.Command{
	Use:   "options",
	Short: "Print the countries, categories, variables and year range on offer",
	RunE:  runOptions,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and exit",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "healthlens %s\n", version)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "Path to YAML config file")
	pf.StringVar(&flags.format, "format", "json", "Output format: json, pretty, text, csv, png (query only)")
	pf.StringVar(&flags.outFile, "out", "", "Write output to file instead of stdout")

	qf := queryCmd.Flags()
	qf.StringArrayVar(&flags.countries, "country", nil, "Country to include (repeatable)")
	qf.StringArrayVar(&flags.categories, "category", nil, "Taxonomy category narrowing the variables (repeatable)")
	qf.StringVar(&flags.variable, "variable", "", "Variable to chart")
	qf.IntVar(&flags.year, "year", 0, "Inclusive year cutoff")
	qf.BoolVar(&flags.stable, "stable", false, "Sort the summary table by country name (same as --sort stable)")
	qf.StringVar(&flags.sortBy, "sort", "", "Summary order: stable, value_desc, value_asc, label_asc, label_desc")
	qf.IntVar(&flags.width, "width", render.DefaultWidth, "PNG width in pixels")
	qf.IntVar(&flags.height, "height", render.DefaultHeight, "PNG height in pixels")
	_ = queryCmd.MarkFlagRequired("variable")
	_ = queryCmd.MarkFlagRequired("year")

	optionsCmd.Flags().StringArrayVar(&flags.categories, "category", nil, "Taxonomy category narrowing the variables (repeatable)")

	rootCmd.AddCommand(serveCmd, queryCmd, optionsCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fatalf("%v", err)
	}
}

// ============================================================================
// COMMANDS
// ============================================================================

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}
	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	fetcher := source.NewAuto(cfg.HTTPTimeout, logger)
	srv := server.New(func(id string) *session.Session {
		return newSession(cfg, fetcher, logger, session.WithID(id))
	}, server.WithLogger(logger), server.WithVersion(version))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Preload {
		if _, err := srv.Default().Load(ctx); err != nil {
			logger.Warn("preload failed; clients may retry with POST /v1/load", "error", err)
		}
	}

	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.ListenAddr, "version", version)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func runQuery(cmd *cobra.Command, _ []string) error {
	sortOpt, err := summaryOrder(flags.stable, flags.sortBy)
	if err != nil {
		return err
	}

	sess, logger, err := loadedSession(cmd.Context())
	if err != nil {
		return err
	}

	if err := sess.SetCategories(flags.categories...); err != nil {
		return err
	}
	if err := sess.SetCountries(flags.countries...); err != nil {
		return err
	}
	if err := sess.SetVariable(flags.variable); err != nil {
		return err
	}
	if err := sess.SetYearCutoff(flags.year); err != nil {
		return err
	}

	view := sess.View()
	if sortOpt != nil && view.Ready {
		view = engine.Build(sess.Dataset().View(), view.Query, sortOpt, engine.WithLogger(logger))
	}
	logger.Info("query complete", "ready", view.Ready, "summary_rows", len(view.Summary))

	return withOutput(cmd.OutOrStdout(), func(w io.Writer) error {
		switch flags.format {
		case "csv":
			return writeCSV(w, view)
		case "png":
			return render.PNG(w, view.Chart, flags.width, flags.height)
		case "text":
			_, err := fmt.Fprintln(w, engine.Reply(view))
			return err
		default:
			return writeJSON(w, view, flags.format)
		}
	})
}

func runOptions(cmd *cobra.Command, _ []string) error {
	sess, _, err := loadedSession(cmd.Context())
	if err != nil {
		return err
	}
	if err := sess.SetCategories(flags.categories...); err != nil {
		return err
	}

	out := optionsOutput{
		Options: sess.Options(),
		Catalog: schema.Describe(sess.Dataset()),
	}

	return withOutput(cmd.OutOrStdout(), func(w io.Writer) error {
		if flags.format == "text" {
			return writeOptionsText(w, out.Options)
		}
		return writeJSON(w, out, flags.format)
	})
}

// ============================================================================
// HELPERS
// ============================================================================

type optionsOutput struct {
	Options session.DerivedOptions `json:"options"`
	Catalog *schema.Catalog        `json:"catalog"`
}

func newSession(cfg *config.Config, fetcher source.Fetcher, logger *slog.Logger, opts ...session.Option) *session.Session {
	ds, tax := cfg.Resources()
	base := []session.Option{
		session.WithLogger(logger),
		session.WithResources(ds, tax),
	}
	return session.New(fetcher, append(base, opts...)...)
}

// summaryOrder turns --stable and --sort into an engine option, nil for the
// default first-seen order.
func summaryOrder(stable bool, sortBy string) (engine.Option, error) {
	mode, err := engine.ParseSort(sortBy)
	switch {
	case err != nil:
		return nil, err
	case stable:
		return engine.WithStableSort(), nil
	case mode != engine.SortFirstSeen:
		return engine.WithSortBy(mode), nil
	}
	return nil, nil
}

// loadedSession builds a one-shot session with text logging and loads it.
func loadedSession(ctx context.Context) (*session.Session, *slog.Logger, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, nil, err
	}
	cfg.LogFormat = "text"
	logger := cfg.NewLogger(os.Stderr)

	sess := newSession(cfg, source.NewAuto(cfg.HTTPTimeout, logger), logger)
	if _, err := sess.Load(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to load data: %w", err)
	}
	return sess, logger, nil
}

// withOutput runs write against --out if set, otherwise against stdout.
func withOutput(stdout io.Writer, write func(io.Writer) error) error {
	if flags.outFile == "" {
		return write(stdout)
	}
	f, err := os.Create(flags.outFile)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
