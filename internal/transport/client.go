package transport

import "context"

// FilePayload is a sendable file attachment.
type FilePayload struct {
	Name        string
	ContentType string
	Data        []byte
}

// SendOutcome distinguishes a delivered send from one whose target channel no
// longer exists. The latter is an outcome, not an error: callers decide
// whether to cascade (the relay auto-closes the thread).
type SendOutcome int

const (
	OutcomeDelivered SendOutcome = iota
	OutcomeTargetGone
)

// SendResult reports a completed SendMessage call. MessageID is set only for
// OutcomeDelivered.
type SendResult struct {
	Outcome   SendOutcome
	MessageID string
}

// Delivered reports whether the send produced a message.
func (r SendResult) Delivered() bool {
	return r.Outcome == OutcomeDelivered
}

// ChatClient is the narrow capability surface the relay consumes from the
// chat platform. Implementations wrap the concrete platform SDK.
//
// OpenPrivateChannel returns relay_errors.ErrDMUnavailable when the user's DM
// surface cannot be opened. EditMessage and DeleteMessage report a vanished
// target as relay_errors.ErrNotFound. DeleteChannel treats a missing channel
// as success.
type ChatClient interface {
	OpenPrivateChannel(ctx context.Context, userID string) (string, error)
	SendMessage(ctx context.Context, channelID string, content Content, files []FilePayload) (SendResult, error)
	EditMessage(ctx context.Context, channelID, messageID string, content Content) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	DeleteChannel(ctx context.Context, channelID, reason string) error
}
