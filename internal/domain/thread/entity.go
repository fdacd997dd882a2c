package thread

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Status enumerates the thread lifecycle. CLOSED is terminal.
type Status int

const (
	StatusOpen      Status = 0
	StatusClosed    Status = 1
	StatusSuspended Status = 2
)

// Thread represents the threads table: one tracked conversation between an
// external user and the staff team. While OPEN or SUSPENDED it is bound to a
// private DM channel on the user side and a dedicated inbox channel on the
// staff side; ChannelID is meaningless once the thread is CLOSED.
type Thread struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Status    Status    `gorm:"not null;default:0"`
	UserID    string    `gorm:"not null;index"`
	UserName  string    `gorm:"not null"`
	ChannelID string    `gorm:"not null"`

	ScheduledCloseAt     sql.NullTime
	ScheduledCloseID     sql.NullString
	ScheduledCloseName   sql.NullString
	ScheduledCloseSilent sql.NullBool

	ScheduledSuspendAt   sql.NullTime
	ScheduledSuspendID   sql.NullString
	ScheduledSuspendName sql.NullString

	// AlertID names a staff member to ping on the next inbound user
	// message; cleared once fired.
	AlertID sql.NullString

	CreatedAt time.Time `gorm:"not null"`
}

func (Thread) TableName() string {
	return "threads"
}

// HasScheduledClose reports whether a deferred close is pending.
func (t *Thread) HasScheduledClose() bool {
	return t.ScheduledCloseAt.Valid
}

// HasScheduledSuspend reports whether a deferred suspend is pending.
func (t *Thread) HasScheduledSuspend() bool {
	return t.ScheduledSuspendAt.Valid
}

// HasAlert reports whether an alert is armed.
func (t *Thread) HasAlert() bool {
	return t.AlertID.Valid && t.AlertID.String != ""
}
