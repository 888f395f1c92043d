package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ashureev/fitcoach/internal/domain"
)

// AppendAnalysis stores a result and trims the user's history to the newest
// domain.MaxStoredAnalyses entries.
func (s *SQLiteStore) AppendAnalysis(ctx context.Context, userID string, result domain.AnalysisResult) error {
	raw, err := encode(result)
	if err != nil {
		return err
	}
	return s.inTx(ctx, "append analysis", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO analysis_results (id, user_id, created_at, result_json) VALUES (?, ?, ?, ?)`,
			result.ID, userID, result.Timestamp.UnixMilli(), raw); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			DELETE FROM analysis_results
			WHERE user_id = ? AND seq NOT IN (
				SELECT seq FROM analysis_results WHERE user_id = ? ORDER BY seq DESC LIMIT ?
			)`, userID, userID, domain.MaxStoredAnalyses)
		return err
	})
}

// LatestAnalysis returns the newest stored result.
func (s *SQLiteStore) LatestAnalysis(ctx context.Context, userID string) (*domain.AnalysisResult, error) {
	var r domain.AnalysisResult
	ok, err := s.getJSON(ctx, "get latest analysis",
		`SELECT result_json FROM analysis_results WHERE user_id = ? ORDER BY seq DESC LIMIT 1`, &r, userID)
	if err != nil || !ok {
		return nil, err
	}
	return &r, nil
}

// ListAnalyses returns stored results newest first.
func (s *SQLiteStore) ListAnalyses(ctx context.Context, userID string) ([]domain.AnalysisResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT result_json FROM analysis_results WHERE user_id = ? ORDER BY seq DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query analyses: %w", err)
	}
	defer closeRows(rows, "analyses")

	var out []domain.AnalysisResult
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		var r domain.AnalysisResult
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, fmt.Errorf("decode analysis: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analyses: %w", err)
	}
	return out, nil
}

// GetAnalysisMarkers returns the debounce markers; zero values when unset.
func (s *SQLiteStore) GetAnalysisMarkers(ctx context.Context, userID string) (domain.AnalysisMarkers, error) {
	var (
		m    domain.AnalysisMarkers
		last int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT last_analysis_at, last_workout_count FROM analysis_markers WHERE user_id = ?`, userID,
	).Scan(&last, &m.LastWorkoutCount)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AnalysisMarkers{}, nil
	}
	if err != nil {
		return domain.AnalysisMarkers{}, fmt.Errorf("get analysis markers: %w", err)
	}
	m.LastAnalysisAt = time.UnixMilli(last).UTC()
	return m, nil
}

// SetAnalysisMarkers replaces the debounce markers.
func (s *SQLiteStore) SetAnalysisMarkers(ctx context.Context, userID string, m domain.AnalysisMarkers) error {
	_, err := s.exec(ctx, "set analysis markers", `
		INSERT INTO analysis_markers (user_id, last_analysis_at, last_workout_count) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			last_analysis_at = excluded.last_analysis_at,
			last_workout_count = excluded.last_workout_count`,
		userID, m.LastAnalysisAt.UnixMilli(), m.LastWorkoutCount)
	return err
}
