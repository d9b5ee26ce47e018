// Package application wires the fetch, pruning and generation stages into one batch run.
package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/sawpanic/pinevolume/internal/config"
	"github.com/sawpanic/pinevolume/internal/exchange"
	atomicio "github.com/sawpanic/pinevolume/internal/io"
	"github.com/sawpanic/pinevolume/internal/metrics"
	"github.com/sawpanic/pinevolume/internal/pairs"
	"github.com/sawpanic/pinevolume/internal/pine"
	"github.com/sawpanic/pinevolume/internal/providers"
	"github.com/sawpanic/pinevolume/internal/prune"
	"github.com/sawpanic/pinevolume/internal/rules"
)

// Stages reported in metrics and the run report
const (
	StageFetch        = "fetch"
	StageNormalized   = "normalized"
	StageDeduplicated = "deduplicated"
	StageGenerate     = "generate"
)

// PairFetcher retrieves the raw pair listing of one exchange
type PairFetcher interface {
	FetchExchangePairs(ctx context.Context, ex exchange.Exchange) (pairs.Table, error)
}

// PairsSyncConfig controls where a run writes its artifacts
type PairsSyncConfig struct {
	OutputPath  string
	ReportPath  string // optional JSON run report
	MetricsPath string // optional Prometheus textfile
}

// ExchangeReport summarizes one exchange's contribution to a run
type ExchangeReport struct {
	Exchange     string `json:"exchange"`
	Enabled      bool   `json:"enabled"`
	Fetched      int    `json:"fetched"`
	Normalized   int    `json:"normalized"`
	Deduplicated int    `json:"deduplicated"`
	Error        string `json:"error,omitempty"`
	ErrorKind    string `json:"error_kind,omitempty"`
}

// SyncReport summarizes a generation run
type SyncReport struct {
	RunID             string           `json:"run_id"`
	Output            string           `json:"output"`
	GeneratedAt       string           `json:"generated_at"`
	Branches          int              `json:"branches"`
	Scopes            int              `json:"scopes"`
	ScopeLimit        int              `json:"scope_limit"`
	ExceedsScopeLimit bool             `json:"exceeds_scope_limit"`
	Exchanges         []ExchangeReport `json:"exchanges"`
}

// PairsSync runs the whole pipeline: fetch every exchange, prune, deduplicate and emit the
// aggregate volume script
type PairsSync struct {
	rules     *rules.Set
	providers *config.ProvidersConfig
	fetcher   PairFetcher
	template  pine.Template
	metrics   *metrics.Recorder
	now       func() time.Time
}

// NewPairsSync creates a pipeline; rec may be nil when metrics are not needed
func NewPairsSync(rs *rules.Set, providersCfg *config.ProvidersConfig, fetcher PairFetcher, rec *metrics.Recorder) *PairsSync {
	if rec == nil {
		rec = metrics.NewRecorder()
	}
	return &PairsSync{
		rules:     rs,
		providers: providersCfg,
		fetcher:   fetcher,
		template:  pine.DefaultTemplate(),
		metrics:   rec,
		now:       time.Now,
	}
}

// WithTemplate overrides the script prologue and epilogue
func (ps *PairsSync) WithTemplate(tpl pine.Template) *PairsSync {
	ps.template = tpl
	return ps
}

type fetchResult struct {
	table pairs.Table
	err   error
}

// Build runs every stage in memory and returns the assembled script with its report
func (ps *PairsSync) Build(ctx context.Context) (pine.Script, *SyncReport, error) {
	runID := uuid.NewString()
	logger := log.With().Str("run_id", runID).Logger()
	ctx = logger.WithContext(ctx)

	report := &SyncReport{
		RunID:       runID,
		GeneratedAt: ps.now().UTC().Format(time.RFC3339),
		ScopeLimit:  pine.ScopeLimit,
	}

	start := time.Now()
	results, err := ps.fetchAll(ctx)
	if err != nil {
		return pine.Script{}, nil, err
	}
	ps.metrics.RecordStage(StageFetch, start)

	start = time.Now()
	normalized := pairs.Tables{}
	entries := make(map[exchange.Exchange]*ExchangeReport, exchange.Count)
	for _, ex := range exchange.All() {
		entry := &ExchangeReport{Exchange: ex.String(), Enabled: ps.providers.Provider(ex).Enabled}
		entries[ex] = entry

		res := results[ex]
		if res.err != nil {
			entry.Error = res.err.Error()
			entry.ErrorKind = errorKind(res.err)
			ps.metrics.RecordFailure(ex, entry.ErrorKind)
			logger.Error().Err(res.err).Str("exchange", ex.String()).Str("kind", entry.ErrorKind).
				Msg("Exchange excluded from this run")
		}

		raw := res.table
		if raw == nil {
			raw = pairs.Table{}
		}
		entry.Fetched = raw.Len()
		ps.metrics.RecordFetched(ex, entry.Fetched)

		kept := prune.Normalize(raw, ps.rules.Preferences(ex), ps.rules)
		entry.Normalized = kept.Len()
		ps.metrics.RecordKept(ex, StageNormalized, entry.Normalized)
		normalized[ex] = kept
	}
	ps.metrics.RecordStage(StageNormalized, start)

	start = time.Now()
	final := prune.Deduplicate(normalized, ps.rules)
	for _, ex := range exchange.All() {
		entries[ex].Deduplicated = final[ex].Len()
		ps.metrics.RecordKept(ex, StageDeduplicated, entries[ex].Deduplicated)
		report.Exchanges = append(report.Exchanges, *entries[ex])

		logger.Info().
			Str("exchange", ex.String()).
			Int("fetched", entries[ex].Fetched).
			Int("normalized", entries[ex].Normalized).
			Int("kept", entries[ex].Deduplicated).
			Msg("Pairs pruned")
	}
	ps.metrics.RecordStage(StageDeduplicated, start)

	start = time.Now()
	logger.Info().Msg("Generating the Pine Script file...")
	script := pine.Assemble(final, ps.template, pine.XBTBaseAssets(final), ps.rules)
	ps.metrics.RecordStage(StageGenerate, start)
	ps.metrics.RecordScript(script.Branches, script.Scopes(), script.ExceedsScopeLimit)

	report.Branches = script.Branches
	report.Scopes = script.Scopes()
	report.ExceedsScopeLimit = script.ExceedsScopeLimit
	return script, report, nil
}

// SyncPairs builds the script and writes it, plus the optional report and metrics files
func (ps *PairsSync) SyncPairs(ctx context.Context, cfg PairsSyncConfig) (*SyncReport, error) {
	if cfg.OutputPath == "" {
		return nil, fmt.Errorf("output path is required")
	}

	script, report, err := ps.Build(ctx)
	if err != nil {
		return nil, err
	}
	report.Output = cfg.OutputPath
	logger := log.With().Str("run_id", report.RunID).Logger()

	if err := atomicio.WriteTextAtomic(cfg.OutputPath, script.Text); err != nil {
		return nil, fmt.Errorf("failed to write script: %w", err)
	}

	if script.ExceedsScopeLimit {
		logger.Warn().
			Int("scopes", script.Scopes()).
			Int("limit", pine.ScopeLimit).
			Msgf("The script has %d local scopes and will not compile successfully. TradingView imposes a %d local scopes limit per script. Try reducing the number of asset pairs.",
				script.Scopes(), pine.ScopeLimit)
	}

	if cfg.ReportPath != "" {
		if err := atomicio.WriteJSONAtomic(cfg.ReportPath, report); err != nil {
			return nil, fmt.Errorf("failed to write report: %w", err)
		}
	}

	if cfg.MetricsPath != "" {
		if err := ps.metrics.WriteTextfile(cfg.MetricsPath); err != nil {
			return nil, fmt.Errorf("failed to write metrics: %w", err)
		}
	}

	logger.Info().Str("output", cfg.OutputPath).Int("branches", script.Branches).Msg("Compiled successfully")
	return report, nil
}

// fetchAll fetches every enabled exchange concurrently; each goroutine owns one result slot.
// Per-exchange failures are recorded in the result, only a cancelled run is returned as error.
func (ps *PairsSync) fetchAll(ctx context.Context) ([exchange.Count]fetchResult, error) {
	var results [exchange.Count]fetchResult

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ps.providers.Global.MaxConcurrent)
	for _, ex := range exchange.All() {
		if !ps.providers.Provider(ex).Enabled {
			log.Ctx(ctx).Info().Str("exchange", ex.String()).Msg("Exchange disabled, skipping fetch")
			continue
		}
		g.Go(func() error {
			table, err := ps.fetcher.FetchExchangePairs(gctx, ex)
			results[ex] = fetchResult{table: table, err: err}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return results, fmt.Errorf("fetch cancelled: %w", err)
	}
	return results, nil
}

func errorKind(err error) string {
	var parseErr *providers.ParseError
	if errors.As(err, &parseErr) {
		return "parse"
	}
	return "fetch"
}
