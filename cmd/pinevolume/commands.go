package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/sawpanic/pinevolume/internal/application"
	"github.com/sawpanic/pinevolume/internal/config"
	"github.com/sawpanic/pinevolume/internal/exchange"
	"github.com/sawpanic/pinevolume/internal/metrics"
	"github.com/sawpanic/pinevolume/internal/providers"
	"github.com/sawpanic/pinevolume/internal/rules"
)

const defaultOutput = "crypto-multi-exchange-volume.pine"

type globalOptions struct {
	logLevel string
	jsonLogs bool
}

func (o *globalOptions) bind(fs *pflag.FlagSet) {
	fs.StringVar(&o.logLevel, "log-level", "info", "Log level (trace|debug|info|warn|error)")
	fs.BoolVar(&o.jsonLogs, "json-logs", false, "Always log JSON, even on a terminal")
}

type configOptions struct {
	rulesPath     string
	providersPath string
}

func (o *configOptions) bind(fs *pflag.FlagSet) {
	fs.StringVar(&o.rulesPath, "rules", "", "Asset rule set YAML (defaults to the embedded rule set)")
	fs.StringVar(&o.providersPath, "providers", "", "Provider config YAML (defaults to the embedded config)")
}

func (o *configOptions) load() (*rules.Set, *config.ProvidersConfig, error) {
	var (
		rs  *rules.Set
		err error
	)
	if o.rulesPath != "" {
		rs, err = rules.Load(o.rulesPath)
	} else {
		rs, err = rules.Default()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load rules: %w", err)
	}

	var providersCfg *config.ProvidersConfig
	if o.providersPath != "" {
		providersCfg, err = config.LoadProvidersConfig(o.providersPath)
	} else {
		providersCfg, err = config.DefaultProvidersConfig()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load providers config: %w", err)
	}
	return rs, providersCfg, nil
}

type generateOptions struct {
	configOptions
	out         string
	report      string
	metricsFile string
	timeout     time.Duration
}

func (o *generateOptions) bind(fs *pflag.FlagSet) {
	o.configOptions.bind(fs)
	fs.StringVarP(&o.out, "out", "o", defaultOutput, "Path of the generated Pine Script")
	fs.StringVar(&o.report, "report", "", "Optional JSON run report path")
	fs.StringVar(&o.metricsFile, "metrics-file", "", "Optional Prometheus textfile path")
	fs.DurationVar(&o.timeout, "timeout", 2*time.Minute, "Whole-run timeout")
}

func newRootCmd() *cobra.Command {
	var global globalOptions

	rootCmd := &cobra.Command{
		Use:           appName,
		Short:         "Generate a TradingView multi-exchange volume indicator",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Long: `pinevolume fetches the spot pair listings of eight exchanges, prunes and
deduplicates them with an asset rule set and writes a Pine Script indicator
that sums the volume of the chart's pair across every exchange.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(cmd.ErrOrStderr(), global.logLevel, global.jsonLogs)
		},
	}
	global.bind(rootCmd.PersistentFlags())

	rootCmd.AddCommand(newGenerateCmd(), newValidateCmd())
	return rootCmd
}

func newGenerateCmd() *cobra.Command {
	var opts generateOptions

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Fetch every exchange and write the volume script",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, &opts)
		},
	}
	opts.bind(cmd.Flags())
	return cmd
}

func newValidateCmd() *cobra.Command {
	var opts configOptions

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the rule set and provider config without fetching",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rs, providersCfg, err := opts.load()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Crypto quote assets: %s\n", strings.Join(rules.Symbols(rs.ExcludedCryptoQuoteAssets), ", "))
			fmt.Fprintf(out, "Fiat quote assets:   %s\n", strings.Join(rules.Symbols(rs.ExcludedFiatQuoteAssets), ", "))
			fmt.Fprintf(out, "Difference rules:    %d\n", len(rs.DifferencePruning))
			for _, ex := range exchange.All() {
				p := providersCfg.Provider(ex)
				prefs := rs.Preferences(ex)
				fmt.Fprintf(out, "  %-9s enabled=%-5t fiat_pruned=%-5t crypto_pruned=%-5t %s\n",
					ex, p.Enabled, prefs.PruneFiatQuotePairs, prefs.PruneCryptoQuotePairs, p.URL)
			}
			return nil
		},
	}
	opts.bind(cmd.Flags())
	return cmd
}

func runGenerate(cmd *cobra.Command, opts *generateOptions) error {
	rs, providersCfg, err := opts.load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	sync := application.NewPairsSync(rs, providersCfg, providers.NewFetcher(providersCfg), metrics.NewRecorder())

	log.Info().Str("out", opts.out).Dur("timeout", opts.timeout).Msg("Starting pairs sync")
	report, err := sync.SyncPairs(ctx, application.PairsSyncConfig{
		OutputPath:  opts.out,
		ReportPath:  opts.report,
		MetricsPath: opts.metricsFile,
	})
	if err != nil {
		return fmt.Errorf("pairs sync failed: %w", err)
	}

	out := cmd.OutOrStdout()
	for _, entry := range report.Exchanges {
		status := "ok"
		switch {
		case !entry.Enabled:
			status = "disabled"
		case entry.Error != "":
			status = entry.ErrorKind + " error"
		}
		fmt.Fprintf(out, "%-9s fetched=%-5d kept=%-5d %s\n", entry.Exchange, entry.Fetched, entry.Deduplicated, status)
	}
	fmt.Fprintf(out, "Wrote %s (%d branches, %d/%d scopes)\n", report.Output, report.Branches, report.Scopes, report.ScopeLimit)
	return nil
}

func setupLogging(w io.Writer, level string, jsonLogs bool) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339

	if !jsonLogs && isTerminal(w) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen})
		return nil
	}
	// Fetches log from several goroutines; only files are safe for concurrent writes as is.
	if _, ok := w.(*os.File); !ok {
		w = zerolog.SyncWriter(w)
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
