package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"modmail-relay/internal/domain/thread"
	relay_errors "modmail-relay/pkg/errors"
)

type PostgresThreadRepository struct {
	db *gorm.DB
}

func NewThreadRepository(db *gorm.DB) ThreadRepository {
	return &PostgresThreadRepository{db: db}
}

func (r *PostgresThreadRepository) Create(ctx context.Context, t *thread.Thread) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	res := r.db.WithContext(ctx).Create(t)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return relay_errors.ErrConflict
		}
		return res.Error
	}
	return nil
}

func (r *PostgresThreadRepository) GetByID(ctx context.Context, id uuid.UUID) (thread.Thread, error) {
	var t thread.Thread
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return thread.Thread{}, relay_errors.ErrNotFound
		}
		return thread.Thread{}, err
	}
	return t, nil
}

func (r *PostgresThreadRepository) GetOpenByUserID(ctx context.Context, userID string) (thread.Thread, error) {
	var t thread.Thread
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, thread.StatusOpen).
		First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return thread.Thread{}, relay_errors.ErrNotFound
		}
		return thread.Thread{}, err
	}
	return t, nil
}

func (r *PostgresThreadRepository) GetByChannelID(ctx context.Context, channelID string) (thread.Thread, error) {
	var t thread.Thread
	err := r.db.WithContext(ctx).
		Where("channel_id = ? AND status != ?", channelID, thread.StatusClosed).
		First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return thread.Thread{}, relay_errors.ErrNotFound
		}
		return thread.Thread{}, err
	}
	return t, nil
}

func (r *PostgresThreadRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status thread.Status) error {
	return r.updateFields(ctx, id, map[string]interface{}{"status": status})
}

func (r *PostgresThreadRepository) SetScheduledClose(ctx context.Context, id uuid.UUID, at time.Time, actorID, actorName string, silent bool) error {
	return r.updateFields(ctx, id, map[string]interface{}{
		"scheduled_close_at":     at,
		"scheduled_close_id":     actorID,
		"scheduled_close_name":   actorName,
		"scheduled_close_silent": silent,
	})
}

func (r *PostgresThreadRepository) ClearScheduledClose(ctx context.Context, id uuid.UUID) error {
	return r.updateFields(ctx, id, map[string]interface{}{
		"scheduled_close_at":     nil,
		"scheduled_close_id":     nil,
		"scheduled_close_name":   nil,
		"scheduled_close_silent": nil,
	})
}

func (r *PostgresThreadRepository) SetScheduledSuspend(ctx context.Context, id uuid.UUID, at time.Time, actorID, actorName string) error {
	return r.updateFields(ctx, id, map[string]interface{}{
		"scheduled_suspend_at":   at,
		"scheduled_suspend_id":   actorID,
		"scheduled_suspend_name": actorName,
	})
}

func (r *PostgresThreadRepository) ClearScheduledSuspend(ctx context.Context, id uuid.UUID) error {
	return r.updateFields(ctx, id, map[string]interface{}{
		"scheduled_suspend_at":   nil,
		"scheduled_suspend_id":   nil,
		"scheduled_suspend_name": nil,
	})
}

func (r *PostgresThreadRepository) Suspend(ctx context.Context, id uuid.UUID) error {
	return r.updateFields(ctx, id, map[string]interface{}{
		"status":                 thread.StatusSuspended,
		"scheduled_suspend_at":   nil,
		"scheduled_suspend_id":   nil,
		"scheduled_suspend_name": nil,
	})
}

func (r *PostgresThreadRepository) SetAlert(ctx context.Context, id uuid.UUID, userID string) error {
	return r.updateFields(ctx, id, map[string]interface{}{
		"alert_id": sql.NullString{String: userID, Valid: userID != ""},
	})
}

func (r *PostgresThreadRepository) ClearAlert(ctx context.Context, id uuid.UUID) error {
	return r.updateFields(ctx, id, map[string]interface{}{"alert_id": nil})
}

func (r *PostgresThreadRepository) GetDueScheduledCloses(ctx context.Context, now time.Time, limit int) ([]thread.Thread, error) {
	var threads []thread.Thread
	err := r.db.WithContext(ctx).
		Where("scheduled_close_at IS NOT NULL AND scheduled_close_at <= ? AND status != ?", now, thread.StatusClosed).
		Limit(limit).
		Find(&threads).Error
	if err != nil {
		return nil, err
	}
	return threads, nil
}

func (r *PostgresThreadRepository) GetDueScheduledSuspends(ctx context.Context, now time.Time, limit int) ([]thread.Thread, error) {
	var threads []thread.Thread
	err := r.db.WithContext(ctx).
		Where("scheduled_suspend_at IS NOT NULL AND scheduled_suspend_at <= ? AND status = ?", now, thread.StatusOpen).
		Limit(limit).
		Find(&threads).Error
	if err != nil {
		return nil, err
	}
	return threads, nil
}

func (r *PostgresThreadRepository) updateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).
		Model(&thread.Thread{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return relay_errors.ErrNotFound
	}
	return nil
}
