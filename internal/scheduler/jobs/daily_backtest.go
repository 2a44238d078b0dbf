// Package jobs holds the scheduled job implementations.
package jobs

import (
	"fmt"
	"time"

	"github.com/Kevinwu901113/stock-pre-sub001/internal/domain"
	"github.com/Kevinwu901113/stock-pre-sub001/internal/services"
	"github.com/rs/zerolog"
)

// trailingWindowDays is the calendar span of the nightly evaluation run.
const trailingWindowDays = 90

// DailyBacktestJob refreshes recommendations and evaluates them over a
// trailing window. It runs after the market close.
type DailyBacktestJob struct {
	recs      *services.RecommendationService
	backtests *services.BacktestService
	benchmark string
	log       zerolog.Logger
}

// NewDailyBacktestJob creates the nightly evaluation job
func NewDailyBacktestJob(
	recs *services.RecommendationService,
	backtests *services.BacktestService,
	benchmark string,
	log zerolog.Logger,
) *DailyBacktestJob {
	return &DailyBacktestJob{
		recs:      recs,
		backtests: backtests,
		benchmark: benchmark,
		log:       log.With().Str("job", "daily-backtest").Logger(),
	}
}

// Name returns the job identifier
func (j *DailyBacktestJob) Name() string {
	return "daily-backtest"
}

// Run refreshes recommendations for the trailing window and backtests them
func (j *DailyBacktestJob) Run() error {
	end := time.Now().Format(domain.DateLayout)
	start := time.Now().AddDate(0, 0, -trailingWindowDays).Format(domain.DateLayout)

	if _, err := j.recs.RefreshRange(start, end); err != nil {
		return fmt.Errorf("failed to refresh recommendations: %w", err)
	}

	runID, bundle, err := j.backtests.Run(services.RunRequest{
		StartDate: start,
		EndDate:   end,
		Benchmark: j.benchmark,
	})
	if err != nil {
		return fmt.Errorf("failed to run backtest: %w", err)
	}

	j.log.Info().
		Str("run_id", runID).
		Str("start", start).
		Str("end", end).
		Float64("total_return", bundle.Result.Stats.TotalReturn).
		Int("trades", bundle.Result.Stats.TradeCount).
		Msg("Trailing backtest completed")

	return nil
}
