package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/technomancy/server-go/internal/game"
)

const resultsSchema = `
CREATE TABLE IF NOT EXISTS game_results (
    game_id     TEXT PRIMARY KEY,
    winner_id   TEXT NOT NULL,
    reason      TEXT NOT NULL,
    turns       INT NOT NULL,
    history_len INT NOT NULL,
    started_at  TIMESTAMPTZ NOT NULL,
    finished_at TIMESTAMPTZ NOT NULL,
    analytics   JSONB NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS game_results_finished_at_idx
    ON game_results (finished_at DESC);
`

// ResultRepository persists completed game outcomes.
type ResultRepository struct {
	db *DB
}

func NewResultRepository(db *DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// EnsureSchema creates the results table if it does not exist.
func (r *ResultRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.pool.Exec(ctx, resultsSchema); err != nil {
		return fmt.Errorf("ensure results schema: %w", err)
	}
	return nil
}

// SaveResult upserts a final game report.
func (r *ResultRepository) SaveResult(ctx context.Context, report game.FinalStateReport) error {
	analytics, err := json.Marshal(report.Analytics)
	if err != nil {
		return fmt.Errorf("marshal analytics: %w", err)
	}
	_, err = r.db.pool.Exec(ctx, `
		INSERT INTO game_results
		    (game_id, winner_id, reason, turns, history_len, started_at, finished_at, analytics)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (game_id) DO UPDATE SET
		    winner_id = EXCLUDED.winner_id,
		    reason = EXCLUDED.reason,
		    turns = EXCLUDED.turns,
		    history_len = EXCLUDED.history_len,
		    finished_at = EXCLUDED.finished_at,
		    analytics = EXCLUDED.analytics`,
		report.GameID, report.WinnerID, report.Reason, report.Turns,
		report.HistoryLen, report.StartedAt, report.FinishedAt, analytics)
	if err != nil {
		return fmt.Errorf("save result %s: %w", report.GameID, err)
	}
	return nil
}

// GetResult loads a single game report by id.
func (r *ResultRepository) GetResult(ctx context.Context, gameID string) (game.FinalStateReport, error) {
	var (
		report    game.FinalStateReport
		analytics []byte
	)
	row := r.db.pool.QueryRow(ctx, `
		SELECT game_id, winner_id, reason, turns, history_len, started_at, finished_at, analytics
		FROM game_results WHERE game_id = $1`, gameID)
	err := row.Scan(&report.GameID, &report.WinnerID, &report.Reason, &report.Turns,
		&report.HistoryLen, &report.StartedAt, &report.FinishedAt, &analytics)
	if errors.Is(err, pgx.ErrNoRows) {
		return game.FinalStateReport{}, game.ErrGameNotFound
	}
	if err != nil {
		return game.FinalStateReport{}, fmt.Errorf("get result %s: %w", gameID, err)
	}
	if err := json.Unmarshal(analytics, &report.Analytics); err != nil {
		return game.FinalStateReport{}, fmt.Errorf("decode analytics %s: %w", gameID, err)
	}
	return report, nil
}

// ListRecent returns the most recently finished games, newest first.
func (r *ResultRepository) ListRecent(ctx context.Context, limit int) ([]game.FinalStateReport, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.pool.Query(ctx, `
		SELECT game_id, winner_id, reason, turns, history_len, started_at, finished_at, analytics
		FROM game_results ORDER BY finished_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var reports []game.FinalStateReport
	for rows.Next() {
		var (
			report    game.FinalStateReport
			analytics []byte
		)
		if err := rows.Scan(&report.GameID, &report.WinnerID, &report.Reason, &report.Turns,
			&report.HistoryLen, &report.StartedAt, &report.FinishedAt, &analytics); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		if err := json.Unmarshal(analytics, &report.Analytics); err != nil {
			return nil, fmt.Errorf("decode analytics: %w", err)
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}
