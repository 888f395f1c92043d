package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ashureev/fitcoach/internal/domain"
)

// AppendMessages appends to the user's transcript in order.
func (s *SQLiteStore) AppendMessages(ctx context.Context, userID string, msgs ...domain.ChatMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	return s.inTx(ctx, "append messages", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO chat_messages (id, user_id, role, content, metadata_json, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, m := range msgs {
			var meta any
			if len(m.Metadata) > 0 {
				raw, err := encode(m.Metadata)
				if err != nil {
					return err
				}
				meta = raw
			}
			if _, err := stmt.ExecContext(ctx, m.ID, userID, string(m.Role), m.Content, meta, m.Timestamp.UnixMilli()); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListMessages returns the transcript oldest first.
func (s *SQLiteStore) ListMessages(ctx context.Context, userID string) ([]domain.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, content, metadata_json, created_at
		FROM chat_messages WHERE user_id = ? ORDER BY seq`, userID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer closeRows(rows, "messages")

	var msgs []domain.ChatMessage
	for rows.Next() {
		var (
			m    domain.ChatMessage
			role string
			meta sql.NullString
			ts   int64
		)
		if err := rows.Scan(&m.ID, &role, &m.Content, &meta, &ts); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Role = domain.Role(role)
		m.Timestamp = time.UnixMilli(ts).UTC()
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &m.Metadata); err != nil {
				return nil, fmt.Errorf("decode message metadata: %w", err)
			}
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return msgs, nil
}

// ClearMessages deletes the whole transcript.
func (s *SQLiteStore) ClearMessages(ctx context.Context, userID string) error {
	_, err := s.exec(ctx, "clear messages", `DELETE FROM chat_messages WHERE user_id = ?`, userID)
	return err
}
