// Package snapshots stores serialized result bundles so completed runs can
// be reloaded without recomputation.
package snapshots

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/Kevinwu901113/stock-pre-sub001/internal/modules/backtest"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

const schema = `
CREATE TABLE IF NOT EXISTS result_snapshots (
	run_id     TEXT PRIMARY KEY,
	created_at TEXT NOT NULL,
	payload    BLOB NOT NULL
);
`

// Bundle is the snapshot payload: the full result plus its evaluated metrics
type Bundle struct {
	Result  backtest.Result  `msgpack:"result"`
	Metrics backtest.Metrics `msgpack:"metrics"`
}

// SnapshotRepository handles snapshot persistence in the cache database
type SnapshotRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewSnapshotRepository creates a snapshot repository and ensures its schema
func NewSnapshotRepository(db *sql.DB, log zerolog.Logger) (*SnapshotRepository, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to apply snapshots schema: %w", err)
	}
	return &SnapshotRepository{
		db:  db,
		log: log.With().Str("repo", "snapshots").Logger(),
	}, nil
}

// Save stores the msgpack-encoded bundle for a run, replacing any previous one
func (r *SnapshotRepository) Save(runID string, bundle *Bundle) error {
	payload, err := msgpack.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot for run %s: %w", runID, err)
	}

	_, err = r.db.Exec(
		`INSERT OR REPLACE INTO result_snapshots (run_id, created_at, payload) VALUES (?, ?, ?)`,
		runID, time.Now().UTC().Format(time.RFC3339), payload)
	if err != nil {
		return fmt.Errorf("failed to store snapshot for run %s: %w", runID, err)
	}

	r.log.Debug().Str("run_id", runID).Int("bytes", len(payload)).Msg("Snapshot stored")
	return nil
}

// Load returns the decoded bundle for a run, or nil when none exists
func (r *SnapshotRepository) Load(runID string) (*Bundle, error) {
	var payload []byte
	err := r.db.QueryRow(
		`SELECT payload FROM result_snapshots WHERE run_id = ?`, runID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot for run %s: %w", runID, err)
	}

	var bundle Bundle
	if err := msgpack.Unmarshal(payload, &bundle); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot for run %s: %w", runID, err)
	}
	return &bundle, nil
}

// Delete removes a run's snapshot
func (r *SnapshotRepository) Delete(runID string) error {
	if _, err := r.db.Exec(`DELETE FROM result_snapshots WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("failed to delete snapshot for run %s: %w", runID, err)
	}
	return nil
}
