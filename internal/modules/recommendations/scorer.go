// Package recommendations produces and stores the ranked daily buy
// candidates the simulator consumes.
package recommendations

import (
	"sort"

	"github.com/Kevinwu901113/stock-pre-sub001/internal/domain"
	"github.com/markcheno/go-talib"
	"github.com/rs/zerolog"
)

const (
	momentumPeriod = 10
	rsiPeriod      = 14

	// Component weights for the blended score
	momentumWeight = 0.7
	rsiWeight      = 0.3

	// RSI above this is treated as overbought and scores negatively
	rsiOverbought = 70.0
)

// Scorer ranks symbols per trading date from their price history using a
// momentum + RSI blend. It only proposes candidates; position sizing and
// settlement are the simulator's concern.
type Scorer struct {
	log zerolog.Logger
}

// NewScorer creates a new scorer
func NewScorer(log zerolog.Logger) *Scorer {
	return &Scorer{log: log.With().Str("component", "scorer").Logger()}
}

// ScoreAll computes ranked candidates for every date in the per-symbol
// series. Symbols with too little history for the indicators are skipped.
// The result maps date to candidates sorted descending by score.
func (s *Scorer) ScoreAll(series map[string][]domain.PriceBar) map[string][]domain.Recommendation {
	byDate := make(map[string][]domain.Recommendation)

	for symbol, bars := range series {
		if len(bars) <= rsiPeriod {
			s.log.Debug().
				Str("symbol", symbol).
				Int("bars", len(bars)).
				Msg("Not enough history for indicators, skipping symbol")
			continue
		}

		closes := make([]float64, len(bars))
		for i, b := range bars {
			closes[i] = b.Close
		}

		momentum := talib.Mom(closes, momentumPeriod)
		rsi := talib.Rsi(closes, rsiPeriod)

		for i := range bars {
			// Indicators warm up; both series are zero-filled until their
			// period has accumulated.
			if i < momentumPeriod || i < rsiPeriod {
				continue
			}
			if closes[i] == 0 {
				continue
			}

			momentumRate := momentum[i] / closes[i]
			rsiTilt := (rsiOverbought - rsi[i]) / 100

			score := momentumRate*momentumWeight + rsiTilt*rsiWeight
			if score <= 0 {
				continue
			}

			byDate[bars[i].Date] = append(byDate[bars[i].Date], domain.Recommendation{
				Symbol: symbol,
				Score:  score,
			})
		}
	}

	for date := range byDate {
		recs := byDate[date]
		sort.SliceStable(recs, func(i, j int) bool { return recs[i].Score > recs[j].Score })
	}

	return byDate
}
