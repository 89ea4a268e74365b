// Command wikichain finds, verifies and records chains of links between two
// Wikipedia articles.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/latebit/wikichain/internal/config"
	"github.com/latebit/wikichain/internal/logging"
	"github.com/latebit/wikichain/internal/metrics"
	"github.com/latebit/wikichain/internal/prefs"
	"github.com/latebit/wikichain/internal/report"
	"github.com/latebit/wikichain/internal/session"
)

// Exit codes beyond the generic failure.
const (
	exitNotFound = 3
	exitStopped  = 130
)

// exitError carries an exit code for outcomes that were already reported.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(newApp(os.Stdout, os.Stderr)).ExecuteContext(ctx)
	stop()
	if err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// app holds the state shared by every subcommand.
type app struct {
	out    io.Writer
	errOut io.Writer

	configPath  string
	prefsPath   string
	endpoint    string
	format      string
	logFormat   string
	logLevel    string
	metricsAddr string
	http3       bool
	insecure    bool
	maxDepth    int
	maxNodes    int
	batchSize   int
	maxRetries  int
	infobox     bool
	navbox      bool

	cfg    *config.Config
	logger *slog.Logger
	output report.Format

	// openSession is replaced in tests.
	openSession func(cfg *config.Config, logger *slog.Logger) *session.Session
}

func newApp(out, errOut io.Writer) *app {
	return &app{
		out:         out,
		errOut:      errOut,
		openSession: session.Open,
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "wikichain",
		Short: "Find a chain of links between two Wikipedia articles",
		Long: `wikichain searches the Wikipedia link graph from both ends at once,
verifies every link of the chain it finds against the live article,
and retries around links that turn out not to exist.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	defaults := config.Default()
	f := root.PersistentFlags()
	f.StringVar(&a.configPath, "config", config.DefaultPath(), "path to config file")
	f.StringVar(&a.prefsPath, "prefs", prefs.DefaultPath(), "path to saved link preferences")
	f.StringVar(&a.endpoint, "endpoint", defaults.Endpoint, "MediaWiki action API endpoint")
	f.StringVarP(&a.format, "format", "o", string(report.Text), "output format: text, json, yaml, markdown, html, pretty")
	f.StringVar(&a.logFormat, "log-format", defaults.LogFormat, "log format: text or json")
	f.StringVar(&a.logLevel, "log-level", defaults.LogLevel, "log level: debug, info, warn, error, off")
	f.StringVar(&a.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	f.BoolVar(&a.http3, "http3", false, "talk to the API over HTTP/3")
	f.BoolVar(&a.insecure, "insecure", false, "skip TLS certificate verification")
	f.IntVar(&a.maxDepth, "max-depth", defaults.MaxDepth, "maximum depth of each search frontier")
	f.IntVar(&a.maxNodes, "max-nodes", defaults.MaxNodes, "maximum pages expanded per search")
	f.IntVar(&a.batchSize, "batch-size", defaults.BatchSize, "titles per canonicalization request")
	f.IntVar(&a.maxRetries, "max-retries", defaults.MaxRetries, "searches re-run after a failed verification (0 = unbounded)")
	f.BoolVar(&a.infobox, "infobox", defaults.IncludeInfobox, "follow links inside infobox templates")
	f.BoolVar(&a.navbox, "navbox", defaults.IncludeNavbox, "follow links inside navbox templates")

	root.AddCommand(
		newFindCmd(a),
		newVerifyCmd(a),
		newResolveCmd(a),
		newLinksCmd(a),
		newRandomCmd(a),
		newHistoryCmd(a),
		newPrefsCmd(a),
	)
	return root
}

// setup layers configuration as defaults, file, environment, saved
// preferences and finally explicit flags.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	if a.prefsPath != "" {
		store, err := prefs.Load(a.prefsPath)
		if err != nil {
			return err
		}
		store.Apply(&cfg.IncludeInfobox, &cfg.IncludeNavbox)
	}

	flags := cmd.Flags()
	if flags.Changed("endpoint") {
		cfg.Endpoint = a.endpoint
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = a.logFormat
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if flags.Changed("http3") {
		cfg.HTTP3 = a.http3
	}
	if flags.Changed("insecure") {
		cfg.Insecure = a.insecure
	}
	if flags.Changed("max-depth") {
		cfg.MaxDepth = a.maxDepth
	}
	if flags.Changed("max-nodes") {
		cfg.MaxNodes = a.maxNodes
	}
	if flags.Changed("batch-size") {
		cfg.BatchSize = a.batchSize
	}
	if flags.Changed("max-retries") {
		cfg.MaxRetries = a.maxRetries
	}
	if flags.Changed("infobox") {
		cfg.IncludeInfobox = a.infobox
	}
	if flags.Changed("navbox") {
		cfg.IncludeNavbox = a.navbox
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.output, err = report.ParseFormat(a.format)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logging.New(cfg.LogFormat, cfg.LogLevel, a.errOut)

	if a.metricsAddr != "" {
		go func() {
			if err := metrics.Serve(a.metricsAddr); err != nil {
				a.logger.Error("metrics server failed", "addr", a.metricsAddr, "err", err)
			}
		}()
	}
	return nil
}

func (a *app) session() *session.Session {
	return a.openSession(a.cfg, a.logger)
}

// writeValue prints v as JSON or YAML when one of those formats is selected
// and falls back to plain, human-readable output otherwise.
func (a *app) writeValue(v any, plain func(w io.Writer) error) error {
	switch a.output {
	case report.JSON, report.YAML:
		return report.WriteValue(a.out, v, a.output)
	default:
		return plain(a.out)
	}
}
