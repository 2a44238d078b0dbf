// Package ledger persists the audit trail of completed backtest runs:
// the run record itself, its trades, and its daily valuations.
package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Kevinwu901113/stock-pre-sub001/internal/database"
	"github.com/Kevinwu901113/stock-pre-sub001/internal/domain"
	"github.com/Kevinwu901113/stock-pre-sub001/internal/modules/backtest"
	"github.com/rs/zerolog"
)

const schema = `
CREATE TABLE IF NOT EXISTS backtest_runs (
	id         TEXT PRIMARY KEY,
	created_at TEXT NOT NULL,
	start_date TEXT NOT NULL,
	end_date   TEXT NOT NULL,
	config     TEXT NOT NULL,
	stats      TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS backtest_trades (
	run_id      TEXT NOT NULL REFERENCES backtest_runs(id),
	seq         INTEGER NOT NULL,
	date        TEXT NOT NULL,
	symbol      TEXT NOT NULL,
	action      TEXT NOT NULL,
	price       REAL NOT NULL,
	shares      INTEGER NOT NULL,
	commission  REAL NOT NULL,
	cost        REAL NOT NULL,
	net_revenue REAL NOT NULL,
	profit      REAL NOT NULL,
	profit_rate REAL NOT NULL,
	PRIMARY KEY (run_id, seq)
);
CREATE TABLE IF NOT EXISTS backtest_valuations (
	run_id         TEXT NOT NULL REFERENCES backtest_runs(id),
	date           TEXT NOT NULL,
	cash           REAL NOT NULL,
	position_value REAL NOT NULL,
	total_value    REAL NOT NULL,
	PRIMARY KEY (run_id, date)
);
`

// RunSummary is the listing row for a stored run
type RunSummary struct {
	ID        string         `json:"id"`
	CreatedAt string         `json:"created_at"`
	StartDate string         `json:"start_date"`
	EndDate   string         `json:"end_date"`
	Stats     backtest.Stats `json:"stats"`
}

// RunRepository handles backtest run persistence
type RunRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRunRepository creates a run repository and ensures its schema
func NewRunRepository(db *sql.DB, log zerolog.Logger) (*RunRepository, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to apply ledger schema: %w", err)
	}
	return &RunRepository{
		db:  db,
		log: log.With().Str("repo", "runs").Logger(),
	}, nil
}

// SaveRun stores a completed result under the given run ID in one transaction
func (r *RunRepository) SaveRun(runID string, result *backtest.Result) error {
	configJSON, err := json.Marshal(result.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal run config: %w", err)
	}
	statsJSON, err := json.Marshal(result.Stats)
	if err != nil {
		return fmt.Errorf("failed to marshal run stats: %w", err)
	}

	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		_, err := tx.Exec(
			`INSERT INTO backtest_runs (id, created_at, start_date, end_date, config, stats)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			runID, time.Now().UTC().Format(time.RFC3339),
			result.Config.StartDate, result.Config.EndDate,
			string(configJSON), string(statsJSON))
		if err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}

		tradeStmt, err := tx.Prepare(
			`INSERT INTO backtest_trades
			 (run_id, seq, date, symbol, action, price, shares, commission, cost, net_revenue, profit, profit_rate)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare trade insert: %w", err)
		}
		defer tradeStmt.Close()

		for i, t := range result.Trades {
			_, err := tradeStmt.Exec(runID, i, t.Date, t.Symbol, string(t.Action),
				t.Price, t.Shares, t.Commission, t.Cost, t.NetRevenue, t.Profit, t.ProfitRate)
			if err != nil {
				return fmt.Errorf("failed to insert trade %d: %w", i, err)
			}
		}

		valuationStmt, err := tx.Prepare(
			`INSERT INTO backtest_valuations (run_id, date, cash, position_value, total_value)
			 VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare valuation insert: %w", err)
		}
		defer valuationStmt.Close()

		for _, v := range result.Valuations {
			_, err := valuationStmt.Exec(runID, v.Date, v.Cash, v.PositionValue, v.TotalValue)
			if err != nil {
				return fmt.Errorf("failed to insert valuation %s: %w", v.Date, err)
			}
		}

		return nil
	})
}

// ListRuns returns summaries of the most recent runs
func (r *RunRepository) ListRuns(limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(
		`SELECT id, created_at, start_date, end_date, stats
		 FROM backtest_runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var run RunSummary
		var statsJSON string
		if err := rows.Scan(&run.ID, &run.CreatedAt, &run.StartDate, &run.EndDate, &statsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if err := json.Unmarshal([]byte(statsJSON), &run.Stats); err != nil {
			return nil, fmt.Errorf("failed to unmarshal stats for run %s: %w", run.ID, err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// GetRun returns one run summary, or nil when the run does not exist
func (r *RunRepository) GetRun(runID string) (*RunSummary, error) {
	var run RunSummary
	var statsJSON string
	err := r.db.QueryRow(
		`SELECT id, created_at, start_date, end_date, stats FROM backtest_runs WHERE id = ?`,
		runID).Scan(&run.ID, &run.CreatedAt, &run.StartDate, &run.EndDate, &statsJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run %s: %w", runID, err)
	}
	if err := json.Unmarshal([]byte(statsJSON), &run.Stats); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stats for run %s: %w", runID, err)
	}
	return &run, nil
}

// GetTrades returns a run's trade ledger in execution order
func (r *RunRepository) GetTrades(runID string) ([]domain.Trade, error) {
	rows, err := r.db.Query(
		`SELECT date, symbol, action, price, shares, commission, cost, net_revenue, profit, profit_rate
		 FROM backtest_trades WHERE run_id = ? ORDER BY seq ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var t domain.Trade
		var action string
		err := rows.Scan(&t.Date, &t.Symbol, &action, &t.Price, &t.Shares,
			&t.Commission, &t.Cost, &t.NetRevenue, &t.Profit, &t.ProfitRate)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		t.Action = domain.TradeAction(action)
		trades = append(trades, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trades: %w", err)
	}

	return trades, nil
}

// GetValuations returns a run's daily valuation series in date order
func (r *RunRepository) GetValuations(runID string) ([]domain.DailyValuation, error) {
	rows, err := r.db.Query(
		`SELECT date, cash, position_value, total_value
		 FROM backtest_valuations WHERE run_id = ? ORDER BY date ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query valuations: %w", err)
	}
	defer rows.Close()

	var valuations []domain.DailyValuation
	for rows.Next() {
		var v domain.DailyValuation
		if err := rows.Scan(&v.Date, &v.Cash, &v.PositionValue, &v.TotalValue); err != nil {
			return nil, fmt.Errorf("failed to scan valuation: %w", err)
		}
		valuations = append(valuations, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating valuations: %w", err)
	}

	return valuations, nil
}
