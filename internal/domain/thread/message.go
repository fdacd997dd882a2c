package thread

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// MessageType classifies a logged thread event.
type MessageType int

const (
	MessageTypeFromUser     MessageType = 1
	MessageTypeToUser       MessageType = 2
	MessageTypeSystem       MessageType = 3
	MessageTypeSystemToUser MessageType = 4
	MessageTypeChat         MessageType = 5
	MessageTypeCommand      MessageType = 6
	MessageTypeLegacy       MessageType = 7
)

// Message represents the thread_messages table: one log record of something
// that happened in a thread. Rows are append-mostly; only the body (for CHAT
// sync) and the surface-message linkage ids mutate after creation.
//
// The integer primary key is load-bearing: display ordering is
// (created_at ASC, id ASC) and the id breaks created_at ties.
type Message struct {
	ID       int64     `gorm:"primaryKey;autoIncrement"`
	ThreadID uuid.UUID `gorm:"type:uuid;not null;index"`
	Type     MessageType `gorm:"column:message_type;not null"`

	// MessageNumber is the human-facing sequential index shown next to
	// staff replies. Assigned only to TO_USER messages, never renumbered.
	MessageNumber sql.NullInt64 `gorm:"index"`

	UserID      sql.NullString
	UserName    string `gorm:"not null;default:''"`
	Body        string `gorm:"type:text;not null"`
	IsAnonymous bool   `gorm:"not null;default:false"`

	// Identifiers of the concrete message instances produced on each
	// surface. InboxMessageID is backfilled after the inbox send succeeds
	// and stays unset if it never did.
	DMChannelID    sql.NullString
	DMMessageID    sql.NullString `gorm:"index"`
	InboxMessageID sql.NullString

	CreatedAt time.Time `gorm:"not null;index"`
}

func (Message) TableName() string {
	return "thread_messages"
}
