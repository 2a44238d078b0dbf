package services

import (
	"fmt"
	"time"

	"github.com/Kevinwu901113/stock-pre-sub001/internal/domain"
	"github.com/Kevinwu901113/stock-pre-sub001/internal/modules/historical"
	"github.com/Kevinwu901113/stock-pre-sub001/internal/modules/recommendations"
	"github.com/Kevinwu901113/stock-pre-sub001/internal/utils"
	"github.com/rs/zerolog"
)

// indicatorWarmupDays is how much extra calendar history is loaded before
// the refresh window so the indicators are defined on its first date.
const indicatorWarmupDays = 60

// RecommendationService scores and stores daily candidates from the price
// history.
type RecommendationService struct {
	prices *historical.PriceStore
	repo   *recommendations.Repository
	scorer *recommendations.Scorer
	log    zerolog.Logger
}

// NewRecommendationService creates a recommendation service
func NewRecommendationService(
	prices *historical.PriceStore,
	repo *recommendations.Repository,
	scorer *recommendations.Scorer,
	log zerolog.Logger,
) *RecommendationService {
	return &RecommendationService{
		prices: prices,
		repo:   repo,
		scorer: scorer,
		log:    log.With().Str("service", "recommendations").Logger(),
	}
}

// RefreshRange recomputes and stores candidates for every date in
// [start, end]. History before the window is loaded for indicator warmup
// but not stored. Returns the number of dates written.
func (s *RecommendationService) RefreshRange(start, end string) (int, error) {
	defer utils.OperationTimer("recommendations_refresh", s.log)()

	if start == "" || end == "" || start > end {
		return 0, fmt.Errorf("malformed date range %q to %q", start, end)
	}

	loadStart := start
	if t, err := time.Parse(domain.DateLayout, start); err == nil {
		loadStart = t.AddDate(0, 0, -indicatorWarmupDays).Format(domain.DateLayout)
	}

	series, err := s.prices.LoadRange(loadStart, end)
	if err != nil {
		return 0, fmt.Errorf("failed to load prices: %w", err)
	}

	byDate := s.scorer.ScoreAll(series)

	written := 0
	for date, recs := range byDate {
		if date < start || date > end {
			continue
		}
		if err := s.repo.SaveForDate(date, recs); err != nil {
			return written, fmt.Errorf("failed to save recommendations for %s: %w", date, err)
		}
		written++
	}

	s.log.Info().
		Str("start", start).
		Str("end", end).
		Int("dates", written).
		Msg("Recommendations refreshed")

	return written, nil
}

// GetByDate returns the stored candidates for one date
func (s *RecommendationService) GetByDate(date string) ([]domain.Recommendation, error) {
	return s.repo.GetByDate(date)
}
