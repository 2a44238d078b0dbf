// Package services wires the simulation engine to its data sources and
// persistence layers.
package services

import (
	"fmt"

	"github.com/Kevinwu901113/stock-pre-sub001/internal/config"
	"github.com/Kevinwu901113/stock-pre-sub001/internal/domain"
	"github.com/Kevinwu901113/stock-pre-sub001/internal/modules/backtest"
	"github.com/Kevinwu901113/stock-pre-sub001/internal/modules/historical"
	"github.com/Kevinwu901113/stock-pre-sub001/internal/modules/ledger"
	"github.com/Kevinwu901113/stock-pre-sub001/internal/modules/recommendations"
	"github.com/Kevinwu901113/stock-pre-sub001/internal/modules/snapshots"
	"github.com/Kevinwu901113/stock-pre-sub001/internal/utils"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RunRequest describes one backtest to execute. Zero-valued override fields
// fall back to the configured defaults.
type RunRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`

	// Benchmark is an optional symbol whose close series is used for
	// benchmark-relative metrics.
	Benchmark string `json:"benchmark,omitempty"`

	SellType            string  `json:"sell_type,omitempty"`
	InitialCapital      float64 `json:"initial_capital,omitempty"`
	CommissionRate      float64 `json:"commission_rate,omitempty"`
	SlippageRate        float64 `json:"slippage_rate,omitempty"`
	MaxPositionPerStock float64 `json:"max_position_per_stock,omitempty"`
	MaxStocksPerDay     int     `json:"max_stocks_per_day,omitempty"`
}

// BacktestService runs simulations end to end: price loading,
// recommendation lookup, replay, evaluation, and persistence.
type BacktestService struct {
	prices    *historical.PriceStore
	recs      *recommendations.Repository
	scorer    *recommendations.Scorer
	runs      *ledger.RunRepository
	snapshots *snapshots.SnapshotRepository
	defaults  config.BacktestConfig
	log       zerolog.Logger
}

// NewBacktestService creates a backtest service
func NewBacktestService(
	prices *historical.PriceStore,
	recs *recommendations.Repository,
	scorer *recommendations.Scorer,
	runs *ledger.RunRepository,
	snapshotRepo *snapshots.SnapshotRepository,
	defaults config.BacktestConfig,
	log zerolog.Logger,
) *BacktestService {
	return &BacktestService{
		prices:    prices,
		recs:      recs,
		scorer:    scorer,
		runs:      runs,
		snapshots: snapshotRepo,
		defaults:  defaults,
		log:       log.With().Str("service", "backtest").Logger(),
	}
}

// buildConfig merges request overrides onto the configured defaults
func (s *BacktestService) buildConfig(req RunRequest) backtest.Config {
	cfg := backtest.Config{
		StartDate:           req.StartDate,
		EndDate:             req.EndDate,
		InitialCapital:      s.defaults.InitialCapital,
		CommissionRate:      s.defaults.CommissionRate,
		SlippageRate:        s.defaults.SlippageRate,
		MaxPositionPerStock: s.defaults.MaxPositionPerStock,
		MaxStocksPerDay:     s.defaults.MaxStocksPerDay,
		LotSize:             s.defaults.LotSize,
		RiskFreeRate:        s.defaults.RiskFreeRate,
		PeriodsPerYear:      s.defaults.PeriodsPerYear,
	}
	if req.InitialCapital > 0 {
		cfg.InitialCapital = req.InitialCapital
	}
	if req.CommissionRate > 0 {
		cfg.CommissionRate = req.CommissionRate
	}
	if req.SlippageRate > 0 {
		cfg.SlippageRate = req.SlippageRate
	}
	if req.MaxPositionPerStock > 0 {
		cfg.MaxPositionPerStock = req.MaxPositionPerStock
	}
	if req.MaxStocksPerDay > 0 {
		cfg.MaxStocksPerDay = req.MaxStocksPerDay
	}
	return cfg
}

func (s *BacktestService) sellType(req RunRequest) domain.SellType {
	switch req.SellType {
	case string(domain.SellAtVWAP):
		return domain.SellAtVWAP
	case string(domain.SellAtOpen):
		return domain.SellAtOpen
	default:
		return domain.SellType(s.defaults.SellType)
	}
}

// Run executes a backtest and persists its ledger rows and snapshot.
// Returns the new run ID and the result bundle.
func (s *BacktestService) Run(req RunRequest) (string, *snapshots.Bundle, error) {
	defer utils.OperationTimer("backtest_run", s.log)()

	if req.StartDate == "" || req.EndDate == "" || req.StartDate > req.EndDate {
		return "", nil, fmt.Errorf("malformed date range %q to %q", req.StartDate, req.EndDate)
	}

	series, err := s.prices.LoadRange(req.StartDate, req.EndDate)
	if err != nil {
		return "", nil, fmt.Errorf("failed to load prices: %w", err)
	}

	// The benchmark never participates in trading.
	if req.Benchmark != "" {
		delete(series, req.Benchmark)
	}

	recsByDate, err := s.recs.GetRange(req.StartDate, req.EndDate)
	if err != nil {
		return "", nil, fmt.Errorf("failed to load recommendations: %w", err)
	}
	if len(recsByDate) == 0 {
		s.log.Info().Msg("No stored recommendations in range, scoring from price history")
		recsByDate = s.scorer.ScoreAll(series)
	}

	cfg := s.buildConfig(req)
	sim := backtest.NewSimulator(cfg, s.log)
	if err := sim.LoadPrices(series); err != nil {
		return "", nil, err
	}

	result, err := sim.Run(recsByDate, s.sellType(req))
	if err != nil {
		return "", nil, err
	}

	var benchmark []domain.BenchmarkBar
	if req.Benchmark != "" {
		benchmark, err = s.prices.GetBenchmark(req.Benchmark, req.StartDate, req.EndDate)
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", req.Benchmark).Msg("Failed to load benchmark, omitting relative metrics")
			benchmark = nil
		}
	}

	evaluator := backtest.NewEvaluator(cfg.RiskFreeRate, cfg.PeriodsPerYear)
	metrics := evaluator.Evaluate(result, benchmark)

	runID := uuid.New().String()
	if err := s.runs.SaveRun(runID, result); err != nil {
		return "", nil, fmt.Errorf("failed to persist run: %w", err)
	}

	bundle := &snapshots.Bundle{Result: *result, Metrics: metrics}
	if err := s.snapshots.Save(runID, bundle); err != nil {
		// The ledger rows are authoritative; a failed snapshot only costs
		// recomputation on read.
		s.log.Warn().Err(err).Str("run_id", runID).Msg("Failed to store snapshot")
	}

	s.log.Info().
		Str("run_id", runID).
		Float64("total_return", metrics.TotalReturn).
		Float64("max_drawdown", metrics.MaxDrawdown).
		Msg("Backtest run persisted")

	return runID, bundle, nil
}

// GetBundle loads a run's bundle, preferring the snapshot and falling back
// to re-evaluating the ledger rows. Returns nil when the run is unknown.
func (s *BacktestService) GetBundle(runID string) (*snapshots.Bundle, error) {
	bundle, err := s.snapshots.Load(runID)
	if err != nil {
		s.log.Warn().Err(err).Str("run_id", runID).Msg("Snapshot load failed, rebuilding from ledger")
	}
	if bundle != nil {
		return bundle, nil
	}

	run, err := s.runs.GetRun(runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, nil
	}

	trades, err := s.runs.GetTrades(runID)
	if err != nil {
		return nil, err
	}
	valuations, err := s.runs.GetValuations(runID)
	if err != nil {
		return nil, err
	}

	result := backtest.Result{
		Config: backtest.Config{
			StartDate:      run.StartDate,
			EndDate:        run.EndDate,
			InitialCapital: valuationSeed(valuations),
			RiskFreeRate:   s.defaults.RiskFreeRate,
			PeriodsPerYear: s.defaults.PeriodsPerYear,
		},
		Trades:     trades,
		Valuations: valuations,
		Stats:      run.Stats,
	}

	evaluator := backtest.NewEvaluator(s.defaults.RiskFreeRate, s.defaults.PeriodsPerYear)
	metrics := evaluator.Evaluate(&result, nil)

	return &snapshots.Bundle{Result: result, Metrics: metrics}, nil
}

// Report renders the markdown report for a stored run. Returns "" when the
// run is unknown.
func (s *BacktestService) Report(runID string) (string, error) {
	bundle, err := s.GetBundle(runID)
	if err != nil {
		return "", err
	}
	if bundle == nil {
		return "", nil
	}
	return backtest.GenerateReport(&bundle.Result, bundle.Metrics), nil
}

// ListRuns returns summaries of the most recent stored runs
func (s *BacktestService) ListRuns(limit int) ([]ledger.RunSummary, error) {
	return s.runs.ListRuns(limit)
}

func valuationSeed(valuations []domain.DailyValuation) float64 {
	if len(valuations) == 0 {
		return 0
	}
	return valuations[0].TotalValue
}
