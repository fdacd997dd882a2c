package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"modmail-relay/internal/domain/thread"
	relay_errors "modmail-relay/pkg/errors"
)

type PostgresThreadMessageRepository struct {
	db *gorm.DB
}

func NewThreadMessageRepository(db *gorm.DB) ThreadMessageRepository {
	return &PostgresThreadMessageRepository{db: db}
}

func (r *PostgresThreadMessageRepository) Create(ctx context.Context, m *thread.Message) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	if m.Type != thread.MessageTypeToUser {
		return r.db.WithContext(ctx).Create(m).Error
	}

	// TO_USER rows carry the sequential reply number. Lock the parent
	// thread row so two concurrent replies serialize on the max+1 read.
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t thread.Thread
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", m.ThreadID).
			First(&t).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return relay_errors.ErrNotFound
			}
			return err
		}

		var next int64
		err = tx.Raw(
			"SELECT COALESCE(MAX(message_number), 0) + 1 FROM thread_messages WHERE thread_id = ?",
			m.ThreadID,
		).Scan(&next).Error
		if err != nil {
			return err
		}

		m.MessageNumber = sql.NullInt64{Int64: next, Valid: true}
		return tx.Create(m).Error
	})
}

func (r *PostgresThreadMessageRepository) SetInboxMessageID(ctx context.Context, id int64, inboxMessageID string) error {
	res := r.db.WithContext(ctx).
		Model(&thread.Message{}).
		Where("id = ?", id).
		Update("inbox_message_id", inboxMessageID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return relay_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresThreadMessageRepository) GetThreadMessages(ctx context.Context, threadID uuid.UUID) ([]thread.Message, error) {
	var messages []thread.Message
	err := r.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *PostgresThreadMessageRepository) GetByMessageNumber(ctx context.Context, threadID uuid.UUID, number int64) (thread.Message, error) {
	var m thread.Message
	err := r.db.WithContext(ctx).
		Where("thread_id = ? AND message_number = ?", threadID, number).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return thread.Message{}, relay_errors.ErrNotFound
		}
		return thread.Message{}, err
	}
	return m, nil
}

func (r *PostgresThreadMessageRepository) UpdateBodyByDMMessageID(ctx context.Context, threadID uuid.UUID, dmMessageID, body string) error {
	return r.db.WithContext(ctx).
		Model(&thread.Message{}).
		Where("thread_id = ? AND dm_message_id = ?", threadID, dmMessageID).
		Update("body", body).Error
}

func (r *PostgresThreadMessageRepository) DeleteByDMMessageID(ctx context.Context, threadID uuid.UUID, dmMessageID string) error {
	return r.db.WithContext(ctx).
		Where("thread_id = ? AND dm_message_id = ?", threadID, dmMessageID).
		Delete(&thread.Message{}).Error
}
