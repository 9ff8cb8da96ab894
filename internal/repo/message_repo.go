// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message
// model: the append-only conversation log of the assistant widget.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/pmarques/go-drops-backend/internal/domain"
)

// CreateMessage inserts a new message row. The identifier is assigned by the
// database (AUTOINCREMENT, strictly increasing, never reused) and the
// timestamp is assigned here; callers never supply either. audioURL may be
// nil for turns that did not originate from a recording.
func CreateMessage(ctx context.Context, db *gorm.DB, role, content string, audioURL *string) (*domain.Message, error) {
	m := &domain.Message{
		Role:      role,
		Content:   content,
		AudioURL:  audioURL,
		Timestamp: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// ListMessages returns every message ordered deterministically
// (Timestamp ASC, ID ASC). The result is a fresh slice on each call; callers
// never observe internal store state.
func ListMessages(ctx context.Context, db *gorm.DB) ([]domain.Message, error) {
	out := []domain.Message{}
	err := db.WithContext(ctx).
		Order("timestamp ASC, id ASC").
		Find(&out).Error
	return out, err
}

// CountMessages uses a raw COUNT so a missing table surfaces as an error.
func CountMessages(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Raw("SELECT COUNT(*) FROM messages").Scan(&total).Error
	return total, err
}

// ClearMessages deletes every message and resets the identifier sequence, so
// the next insert receives the initial id again. It exists for test isolation
// and operator resets; it is deliberately not reachable over HTTP.
func ClearMessages(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM messages").Error; err != nil {
			return err
		}
		// The sequence row only exists after the first insert; deleting an
		// absent row is a no-op.
		return tx.Exec("DELETE FROM sqlite_sequence WHERE name = 'messages'").Error
	})
}
