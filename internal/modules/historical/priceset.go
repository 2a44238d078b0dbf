package historical

import (
	"sort"

	"github.com/Kevinwu901113/stock-pre-sub001/internal/domain"
)

// PriceSet is an immutable in-memory view over per-symbol daily bars.
// The replay loop reads from it exclusively, so a run never touches the
// database once its data is loaded.
type PriceSet struct {
	bars  map[string]map[string]domain.PriceBar // symbol -> date -> bar
	dates []string                              // distinct trading dates, ascending
}

// NewPriceSet indexes per-symbol bar series and derives the sorted set of
// distinct trading dates present in the data.
func NewPriceSet(series map[string][]domain.PriceBar) *PriceSet {
	bars := make(map[string]map[string]domain.PriceBar, len(series))
	dateSet := make(map[string]struct{})

	for symbol, symbolBars := range series {
		byDate := make(map[string]domain.PriceBar, len(symbolBars))
		for _, b := range symbolBars {
			byDate[b.Date] = b
			dateSet[b.Date] = struct{}{}
		}
		bars[symbol] = byDate
	}

	dates := make([]string, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	return &PriceSet{bars: bars, dates: dates}
}

// Bar returns the bar for a symbol on a date, if present
func (ps *PriceSet) Bar(symbol, date string) (domain.PriceBar, bool) {
	byDate, ok := ps.bars[symbol]
	if !ok {
		return domain.PriceBar{}, false
	}
	bar, ok := byDate[date]
	return bar, ok
}

// TradingDates returns the distinct trading dates within [start, end], ascending.
// Empty bounds are open-ended.
func (ps *PriceSet) TradingDates(start, end string) []string {
	var dates []string
	for _, d := range ps.dates {
		if start != "" && d < start {
			continue
		}
		if end != "" && d > end {
			break
		}
		dates = append(dates, d)
	}
	return dates
}

// Symbols returns the symbols in the set, sorted
func (ps *PriceSet) Symbols() []string {
	symbols := make([]string, 0, len(ps.bars))
	for s := range ps.bars {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}
