package recommendations

import (
	"database/sql"
	"fmt"

	"github.com/Kevinwu901113/stock-pre-sub001/internal/database"
	"github.com/Kevinwu901113/stock-pre-sub001/internal/domain"
	"github.com/rs/zerolog"
)

const schema = `
CREATE TABLE IF NOT EXISTS recommendations (
	date   TEXT NOT NULL,
	symbol TEXT NOT NULL,
	score  REAL NOT NULL,
	PRIMARY KEY (date, symbol)
);
`

// Repository persists daily recommendation candidates
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a recommendation repository and ensures its schema
func NewRepository(db *sql.DB, log zerolog.Logger) (*Repository, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to apply recommendations schema: %w", err)
	}
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "recommendations").Logger(),
	}, nil
}

// SaveForDate replaces the stored candidates for one date
func (r *Repository) SaveForDate(date string, recs []domain.Recommendation) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM recommendations WHERE date = ?`, date); err != nil {
			return fmt.Errorf("failed to clear recommendations for %s: %w", date, err)
		}

		stmt, err := tx.Prepare(`INSERT INTO recommendations (date, symbol, score) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, rec := range recs {
			if _, err := stmt.Exec(date, rec.Symbol, rec.Score); err != nil {
				return fmt.Errorf("failed to insert recommendation %s/%s: %w", date, rec.Symbol, err)
			}
		}
		return nil
	})
}

// GetByDate returns the stored candidates for one date, descending by score
func (r *Repository) GetByDate(date string) ([]domain.Recommendation, error) {
	rows, err := r.db.Query(
		`SELECT symbol, score FROM recommendations WHERE date = ? ORDER BY score DESC`, date)
	if err != nil {
		return nil, fmt.Errorf("failed to query recommendations: %w", err)
	}
	defer rows.Close()

	return scanRecommendations(rows)
}

// GetRange returns stored candidates for every date in [start, end], keyed
// by date, each list descending by score
func (r *Repository) GetRange(start, end string) (map[string][]domain.Recommendation, error) {
	rows, err := r.db.Query(
		`SELECT date, symbol, score FROM recommendations
		 WHERE date >= ? AND date <= ?
		 ORDER BY date ASC, score DESC`, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query recommendation range: %w", err)
	}
	defer rows.Close()

	byDate := make(map[string][]domain.Recommendation)
	for rows.Next() {
		var date string
		var rec domain.Recommendation
		if err := rows.Scan(&date, &rec.Symbol, &rec.Score); err != nil {
			return nil, fmt.Errorf("failed to scan recommendation: %w", err)
		}
		byDate[date] = append(byDate[date], rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recommendations: %w", err)
	}

	return byDate, nil
}

func scanRecommendations(rows *sql.Rows) ([]domain.Recommendation, error) {
	var recs []domain.Recommendation
	for rows.Next() {
		var rec domain.Recommendation
		if err := rows.Scan(&rec.Symbol, &rec.Score); err != nil {
			return nil, fmt.Errorf("failed to scan recommendation: %w", err)
		}
		recs = append(recs, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recommendations: %w", err)
	}

	return recs, nil
}
