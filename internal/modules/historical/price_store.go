// Package historical provides access to daily price history.
package historical

import (
	"database/sql"
	"fmt"

	"github.com/Kevinwu901113/stock-pre-sub001/internal/database"
	"github.com/Kevinwu901113/stock-pre-sub001/internal/domain"
	"github.com/rs/zerolog"
)

const schema = `
CREATE TABLE IF NOT EXISTS daily_prices (
	symbol TEXT NOT NULL,
	date   TEXT NOT NULL,
	open   REAL NOT NULL,
	high   REAL NOT NULL,
	low    REAL NOT NULL,
	close  REAL NOT NULL,
	volume INTEGER,
	amount REAL,
	PRIMARY KEY (symbol, date)
);
CREATE INDEX IF NOT EXISTS idx_daily_prices_date ON daily_prices(date);
`

// PriceStore handles daily price database operations
type PriceStore struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewPriceStore creates a new price store and ensures its schema exists
func NewPriceStore(db *sql.DB, log zerolog.Logger) (*PriceStore, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to apply daily_prices schema: %w", err)
	}
	return &PriceStore{
		db:  db,
		log: log.With().Str("repo", "prices").Logger(),
	}, nil
}

// UpsertBars inserts or replaces daily bars for a symbol in one transaction
func (s *PriceStore) UpsertBars(symbol string, bars []domain.PriceBar) error {
	return database.WithTransaction(s.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`INSERT OR REPLACE INTO daily_prices
			(symbol, date, open, high, low, close, volume, amount)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare upsert: %w", err)
		}
		defer stmt.Close()

		for _, b := range bars {
			var volume sql.NullInt64
			if b.Volume != nil {
				volume = sql.NullInt64{Int64: *b.Volume, Valid: true}
			}
			var amount sql.NullFloat64
			if b.Amount != nil {
				amount = sql.NullFloat64{Float64: *b.Amount, Valid: true}
			}
			if _, err := stmt.Exec(symbol, b.Date, b.Open, b.High, b.Low, b.Close, volume, amount); err != nil {
				return fmt.Errorf("failed to upsert bar %s/%s: %w", symbol, b.Date, err)
			}
		}
		return nil
	})
}

// GetRange fetches daily bars for a symbol within [start, end], ascending by date
func (s *PriceStore) GetRange(symbol, start, end string) ([]domain.PriceBar, error) {
	query := `
		SELECT date, open, high, low, close, volume, amount
		FROM daily_prices
		WHERE symbol = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`

	rows, err := s.db.Query(query, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily prices: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// GetRecent fetches the most recent daily bars for a symbol, ascending by date
func (s *PriceStore) GetRecent(symbol string, limit int) ([]domain.PriceBar, error) {
	query := `
		SELECT date, open, high, low, close, volume, amount
		FROM (
			SELECT date, open, high, low, close, volume, amount
			FROM daily_prices
			WHERE symbol = ?
			ORDER BY date DESC
			LIMIT ?
		)
		ORDER BY date ASC
	`

	rows, err := s.db.Query(query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent prices: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// Symbols returns all distinct symbols present in the store
func (s *PriceStore) Symbols() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT symbol FROM daily_prices ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, symbol)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating symbols: %w", err)
	}

	return symbols, nil
}

// LoadRange loads all symbols' bars within [start, end], keyed by symbol.
// This is the bulk read the simulator replays from.
func (s *PriceStore) LoadRange(start, end string) (map[string][]domain.PriceBar, error) {
	query := `
		SELECT symbol, date, open, high, low, close, volume, amount
		FROM daily_prices
		WHERE date >= ? AND date <= ?
		ORDER BY symbol, date ASC
	`

	rows, err := s.db.Query(query, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query price range: %w", err)
	}
	defer rows.Close()

	series := make(map[string][]domain.PriceBar)
	for rows.Next() {
		var symbol string
		var bar domain.PriceBar
		var volume sql.NullInt64
		var amount sql.NullFloat64

		err := rows.Scan(&symbol, &bar.Date, &bar.Open, &bar.High, &bar.Low, &bar.Close, &volume, &amount)
		if err != nil {
			return nil, fmt.Errorf("failed to scan price bar: %w", err)
		}

		if volume.Valid {
			bar.Volume = &volume.Int64
		}
		if amount.Valid {
			bar.Amount = &amount.Float64
		}

		series[symbol] = append(series[symbol], bar)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating price range: %w", err)
	}

	return series, nil
}

// GetBenchmark fetches a benchmark's close series within [start, end]
func (s *PriceStore) GetBenchmark(symbol, start, end string) ([]domain.BenchmarkBar, error) {
	bars, err := s.GetRange(symbol, start, end)
	if err != nil {
		return nil, err
	}

	benchmark := make([]domain.BenchmarkBar, len(bars))
	for i, b := range bars {
		benchmark[i] = domain.BenchmarkBar{Date: b.Date, Close: b.Close}
	}
	return benchmark, nil
}

func scanBars(rows *sql.Rows) ([]domain.PriceBar, error) {
	var bars []domain.PriceBar
	for rows.Next() {
		var bar domain.PriceBar
		var volume sql.NullInt64
		var amount sql.NullFloat64

		err := rows.Scan(&bar.Date, &bar.Open, &bar.High, &bar.Low, &bar.Close, &volume, &amount)
		if err != nil {
			return nil, fmt.Errorf("failed to scan price bar: %w", err)
		}

		if volume.Valid {
			bar.Volume = &volume.Int64
		}
		if amount.Valid {
			bar.Amount = &amount.Float64
		}

		bars = append(bars, bar)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating price bars: %w", err)
	}

	return bars, nil
}
