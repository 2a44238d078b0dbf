// Package domain contains the core record types shared across modules.
// The domain layer is pure: no infrastructure dependencies.
package domain

import (
	"fmt"
	"time"
)

// DateLayout is the canonical date format for trading dates.
// Dates in this format sort lexicographically in chronological order.
const DateLayout = "2006-01-02"

// TradeAction identifies the side of a trade
type TradeAction string

const (
	// ActionBuy opens or adds to a position
	ActionBuy TradeAction = "buy"
	// ActionSell liquidates a position
	ActionSell TradeAction = "sell"
)

// SellType selects the price used when liquidating a position
type SellType string

const (
	// SellAtOpen exits at the day's opening price
	SellAtOpen SellType = "open"
	// SellAtVWAP exits at amount/volume, falling back to the open/close average
	// when either is unavailable. The fallback is an approximation, not a true
	// volume-weighted price.
	SellAtVWAP SellType = "vwap"
)

// PriceBar represents one daily OHLCV row for a symbol.
// Volume and Amount are optional; a nil Amount or zero Volume triggers the
// VWAP fallback on sells.
type PriceBar struct {
	Date   string   `json:"date"`
	Open   float64  `json:"open"`
	High   float64  `json:"high"`
	Low    float64  `json:"low"`
	Close  float64  `json:"close"`
	Volume *int64   `json:"volume,omitempty"`
	Amount *float64 `json:"amount,omitempty"`
}

// Recommendation is one externally supplied purchase candidate for a date
type Recommendation struct {
	Symbol string  `json:"symbol"`
	Score  float64 `json:"score"`
}

// Position is an open holding owned by the simulator's position table.
// CostBasis is the total currency spent including commission; average cost
// is implicit as CostBasis/Shares. Shares and CostBasis accumulate when an
// additional buy lands on the same symbol before liquidation.
type Position struct {
	Symbol    string  `json:"symbol"`
	Shares    int64   `json:"shares"`
	CostBasis float64 `json:"cost_basis"`
	OpenDate  string  `json:"open_date"`
}

// NewPosition validates and constructs a Position. Shares must be a positive
// multiple of the lot size and the cost basis non-negative.
func NewPosition(symbol string, shares int64, costBasis float64, openDate string, lotSize int) (Position, error) {
	if shares <= 0 || shares%int64(lotSize) != 0 {
		return Position{}, fmt.Errorf("shares must be a positive multiple of lot size %d, got %d", lotSize, shares)
	}
	if costBasis < 0 {
		return Position{}, fmt.Errorf("cost basis must be non-negative, got %f", costBasis)
	}
	return Position{
		Symbol:    symbol,
		Shares:    shares,
		CostBasis: costBasis,
		OpenDate:  openDate,
	}, nil
}

// Trade is an immutable ledger record. For buys, Cost is the gross amount
// spent excluding commission. For sells, NetRevenue is revenue minus
// commission, and Profit/ProfitRate are measured against the position's
// cost basis.
type Trade struct {
	Date       string      `json:"date"`
	Symbol     string      `json:"symbol"`
	Action     TradeAction `json:"action"`
	Price      float64     `json:"price"`
	Shares     int64       `json:"shares"`
	Commission float64     `json:"commission"`
	Cost       float64     `json:"cost,omitempty"`
	NetRevenue float64     `json:"net_revenue,omitempty"`
	Profit     float64     `json:"profit,omitempty"`
	ProfitRate float64     `json:"profit_rate,omitempty"`
}

// DailyValuation is the portfolio's mark-to-market state at one day's close.
// TotalValue = Cash + PositionValue always holds.
type DailyValuation struct {
	Date          string  `json:"date"`
	Cash          float64 `json:"cash"`
	PositionValue float64 `json:"position_value"`
	TotalValue    float64 `json:"total_value"`
}

// DailyReturn is the pct-change of consecutive total values.
// The first trading day has no return entry.
type DailyReturn struct {
	Date   string  `json:"date"`
	Return float64 `json:"return"`
}

// BenchmarkBar is one close observation of an optional benchmark series
type BenchmarkBar struct {
	Date  string  `json:"date"`
	Close float64 `json:"close"`
}

// DaysBetween returns the calendar days between two trading dates.
// Returns 0 when either date fails to parse.
func DaysBetween(start, end string) float64 {
	startT, err := time.Parse(DateLayout, start)
	if err != nil {
		return 0
	}
	endT, err := time.Parse(DateLayout, end)
	if err != nil {
		return 0
	}
	return endT.Sub(startT).Hours() / 24
}
