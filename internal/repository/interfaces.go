package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"modmail-relay/internal/domain/thread"
)

type ThreadRepository interface {
	Create(ctx context.Context, t *thread.Thread) error
	GetByID(ctx context.Context, id uuid.UUID) (thread.Thread, error)
	GetOpenByUserID(ctx context.Context, userID string) (thread.Thread, error)
	GetByChannelID(ctx context.Context, channelID string) (thread.Thread, error)

	UpdateStatus(ctx context.Context, id uuid.UUID, status thread.Status) error

	SetScheduledClose(ctx context.Context, id uuid.UUID, at time.Time, actorID, actorName string, silent bool) error
	ClearScheduledClose(ctx context.Context, id uuid.UUID) error
	SetScheduledSuspend(ctx context.Context, id uuid.UUID, at time.Time, actorID, actorName string) error
	ClearScheduledSuspend(ctx context.Context, id uuid.UUID) error

	// Suspend sets status=SUSPENDED and clears the scheduled-suspend
	// fields in one update.
	Suspend(ctx context.Context, id uuid.UUID) error

	SetAlert(ctx context.Context, id uuid.UUID, userID string) error
	ClearAlert(ctx context.Context, id uuid.UUID) error

	GetDueScheduledCloses(ctx context.Context, now time.Time, limit int) ([]thread.Thread, error)
	GetDueScheduledSuspends(ctx context.Context, now time.Time, limit int) ([]thread.Thread, error)
}

type ThreadMessageRepository interface {
	// Create persists the row. For TO_USER messages the message number is
	// assigned inside the call as one atomic max+1 against the thread.
	Create(ctx context.Context, m *thread.Message) error

	SetInboxMessageID(ctx context.Context, id int64, inboxMessageID string) error

	GetThreadMessages(ctx context.Context, threadID uuid.UUID) ([]thread.Message, error)
	GetByMessageNumber(ctx context.Context, threadID uuid.UUID, number int64) (thread.Message, error)

	UpdateBodyByDMMessageID(ctx context.Context, threadID uuid.UUID, dmMessageID, body string) error
	DeleteByDMMessageID(ctx context.Context, threadID uuid.UUID, dmMessageID string) error
}
