package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/fitcoach/internal/domain"
)

// AddWeightEntry records a body-weight reading.
func (s *SQLiteStore) AddWeightEntry(ctx context.Context, userID string, entry domain.WeightEntry) error {
	_, err := s.exec(ctx, "add weight entry",
		`INSERT INTO weight_entries (user_id, recorded_on, weight) VALUES (?, ?, ?)`,
		userID, entry.Date.Unix(), entry.Weight)
	return err
}

// SaveWorkoutSession inserts or replaces a logged session. A missing id is generated.
func (s *SQLiteStore) SaveWorkoutSession(ctx context.Context, userID string, session domain.WorkoutSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	raw, err := encode(session.Exercises)
	if err != nil {
		return err
	}
	var startedAt any
	if session.StartedAt != nil {
		startedAt = session.StartedAt.Unix()
	}

	query := `
	INSERT INTO workout_sessions (id, user_id, session_date, started_at, completed, exercises_json)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		session_date = excluded.session_date,
		started_at = excluded.started_at,
		completed = excluded.completed,
		exercises_json = excluded.exercises_json
	WHERE workout_sessions.user_id = excluded.user_id`
	_, err = s.exec(ctx, "save workout session", query,
		session.ID, userID, session.Date.Unix(), startedAt, session.Completed, raw)
	return err
}

// GetProgress returns all weight readings and sessions of a user.
func (s *SQLiteStore) GetProgress(ctx context.Context, userID string) (*domain.ProgressSnapshot, error) {
	snap := &domain.ProgressSnapshot{}

	weights, err := s.db.QueryContext(ctx,
		`SELECT recorded_on, weight FROM weight_entries WHERE user_id = ? ORDER BY recorded_on DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query weight entries: %w", err)
	}
	defer closeRows(weights, "weight entries")
	for weights.Next() {
		var ts int64
		var e domain.WeightEntry
		if err := weights.Scan(&ts, &e.Weight); err != nil {
			return nil, fmt.Errorf("scan weight entry: %w", err)
		}
		e.Date = time.Unix(ts, 0).UTC()
		snap.Weights = append(snap.Weights, e)
	}
	if err := weights.Err(); err != nil {
		return nil, fmt.Errorf("iterate weight entries: %w", err)
	}

	sessions, err := s.db.QueryContext(ctx, `
		SELECT id, session_date, started_at, completed, exercises_json
		FROM workout_sessions WHERE user_id = ? ORDER BY session_date DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query workout sessions: %w", err)
	}
	defer closeRows(sessions, "workout sessions")
	for sessions.Next() {
		var (
			w         domain.WorkoutSession
			date      int64
			startedAt sql.NullInt64
			raw       string
		)
		if err := sessions.Scan(&w.ID, &date, &startedAt, &w.Completed, &raw); err != nil {
			return nil, fmt.Errorf("scan workout session: %w", err)
		}
		w.Date = time.Unix(date, 0).UTC()
		if startedAt.Valid {
			ts := time.Unix(startedAt.Int64, 0).UTC()
			w.StartedAt = &ts
		}
		if err := json.Unmarshal([]byte(raw), &w.Exercises); err != nil {
			return nil, fmt.Errorf("decode workout session %s: %w", w.ID, err)
		}
		snap.Workouts = append(snap.Workouts, w)
	}
	if err := sessions.Err(); err != nil {
		return nil, fmt.Errorf("iterate workout sessions: %w", err)
	}

	return snap, nil
}

func closeRows(rows *sql.Rows, what string) {
	if err := rows.Close(); err != nil {
		slog.Warn("failed to close rows", "rows", what, "error", err)
	}
}
