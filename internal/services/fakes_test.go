package services_test

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"modmail-relay/internal/attachments"
	"modmail-relay/internal/domain/thread"
	"modmail-relay/internal/transport"
	relay_errors "modmail-relay/pkg/errors"
)

type fakeThreadRepo struct {
	mu      sync.Mutex
	threads map[uuid.UUID]*thread.Thread
}

func newFakeThreadRepo() *fakeThreadRepo {
	return &fakeThreadRepo{threads: map[uuid.UUID]*thread.Thread{}}
}

func (r *fakeThreadRepo) add(t thread.Thread) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := t
	r.threads[t.ID] = &stored
}

func (r *fakeThreadRepo) get(id uuid.UUID) thread.Thread {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.threads[id]
}

func (r *fakeThreadRepo) Create(ctx context.Context, t *thread.Thread) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	r.add(*t)
	return nil
}

func (r *fakeThreadRepo) GetByID(ctx context.Context, id uuid.UUID) (thread.Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.threads[id]; ok {
		return *t, nil
	}
	return thread.Thread{}, relay_errors.ErrNotFound
}

func (r *fakeThreadRepo) GetOpenByUserID(ctx context.Context, userID string) (thread.Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.threads {
		if t.UserID == userID && t.Status == thread.StatusOpen {
			return *t, nil
		}
	}
	return thread.Thread{}, relay_errors.ErrNotFound
}

func (r *fakeThreadRepo) GetByChannelID(ctx context.Context, channelID string) (thread.Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.threads {
		if t.ChannelID == channelID && t.Status != thread.StatusClosed {
			return *t, nil
		}
	}
	return thread.Thread{}, relay_errors.ErrNotFound
}

func (r *fakeThreadRepo) update(id uuid.UUID, fn func(*thread.Thread)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.threads[id]
	if !ok {
		return relay_errors.ErrNotFound
	}
	fn(t)
	return nil
}

func (r *fakeThreadRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status thread.Status) error {
	return r.update(id, func(t *thread.Thread) { t.Status = status })
}

func (r *fakeThreadRepo) SetScheduledClose(ctx context.Context, id uuid.UUID, at time.Time, actorID, actorName string, silent bool) error {
	return r.update(id, func(t *thread.Thread) {
		t.ScheduledCloseAt = sql.NullTime{Time: at, Valid: true}
		t.ScheduledCloseID = sql.NullString{String: actorID, Valid: true}
		t.ScheduledCloseName = sql.NullString{String: actorName, Valid: true}
		t.ScheduledCloseSilent = sql.NullBool{Bool: silent, Valid: true}
	})
}

func (r *fakeThreadRepo) ClearScheduledClose(ctx context.Context, id uuid.UUID) error {
	return r.update(id, func(t *thread.Thread) {
		t.ScheduledCloseAt = sql.NullTime{}
		t.ScheduledCloseID = sql.NullString{}
		t.ScheduledCloseName = sql.NullString{}
		t.ScheduledCloseSilent = sql.NullBool{}
	})
}

func (r *fakeThreadRepo) SetScheduledSuspend(ctx context.Context, id uuid.UUID, at time.Time, actorID, actorName string) error {
	return r.update(id, func(t *thread.Thread) {
		t.ScheduledSuspendAt = sql.NullTime{Time: at, Valid: true}
		t.ScheduledSuspendID = sql.NullString{String: actorID, Valid: true}
		t.ScheduledSuspendName = sql.NullString{String: actorName, Valid: true}
	})
}

func (r *fakeThreadRepo) ClearScheduledSuspend(ctx context.Context, id uuid.UUID) error {
	return r.update(id, func(t *thread.Thread) {
		t.ScheduledSuspendAt = sql.NullTime{}
		t.ScheduledSuspendID = sql.NullString{}
		t.ScheduledSuspendName = sql.NullString{}
	})
}

func (r *fakeThreadRepo) Suspend(ctx context.Context, id uuid.UUID) error {
	return r.update(id, func(t *thread.Thread) {
		t.Status = thread.StatusSuspended
		t.ScheduledSuspendAt = sql.NullTime{}
		t.ScheduledSuspendID = sql.NullString{}
		t.ScheduledSuspendName = sql.NullString{}
	})
}

func (r *fakeThreadRepo) SetAlert(ctx context.Context, id uuid.UUID, userID string) error {
	return r.update(id, func(t *thread.Thread) {
		t.AlertID = sql.NullString{String: userID, Valid: userID != ""}
	})
}

func (r *fakeThreadRepo) ClearAlert(ctx context.Context, id uuid.UUID) error {
	return r.update(id, func(t *thread.Thread) { t.AlertID = sql.NullString{} })
}

func (r *fakeThreadRepo) GetDueScheduledCloses(ctx context.Context, now time.Time, limit int) ([]thread.Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []thread.Thread
	for _, t := range r.threads {
		if t.ScheduledCloseAt.Valid && !t.ScheduledCloseAt.Time.After(now) && t.Status != thread.StatusClosed {
			due = append(due, *t)
		}
	}
	return due, nil
}

func (r *fakeThreadRepo) GetDueScheduledSuspends(ctx context.Context, now time.Time, limit int) ([]thread.Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []thread.Thread
	for _, t := range r.threads {
		if t.ScheduledSuspendAt.Valid && !t.ScheduledSuspendAt.Time.After(now) && t.Status == thread.StatusOpen {
			due = append(due, *t)
		}
	}
	return due, nil
}

type fakeMessageRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*thread.Message
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{rows: map[int64]*thread.Message{}}
}

func (r *fakeMessageRepo) Create(ctx context.Context, m *thread.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if m.Type == thread.MessageTypeToUser {
		var max int64
		for _, row := range r.rows {
			if row.ThreadID == m.ThreadID && row.MessageNumber.Valid && row.MessageNumber.Int64 > max {
				max = row.MessageNumber.Int64
			}
		}
		m.MessageNumber = sql.NullInt64{Int64: max + 1, Valid: true}
	}

	r.nextID++
	m.ID = r.nextID
	stored := *m
	r.rows[m.ID] = &stored
	return nil
}

func (r *fakeMessageRepo) SetInboxMessageID(ctx context.Context, id int64, inboxMessageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return relay_errors.ErrNotFound
	}
	row.InboxMessageID = sql.NullString{String: inboxMessageID, Valid: true}
	return nil
}

func (r *fakeMessageRepo) GetThreadMessages(ctx context.Context, threadID uuid.UUID) ([]thread.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []thread.Message
	for _, row := range r.rows {
		if row.ThreadID == threadID {
			out = append(out, *row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *fakeMessageRepo) GetByMessageNumber(ctx context.Context, threadID uuid.UUID, number int64) (thread.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.ThreadID == threadID && row.MessageNumber.Valid && row.MessageNumber.Int64 == number {
			return *row, nil
		}
	}
	return thread.Message{}, relay_errors.ErrNotFound
}

func (r *fakeMessageRepo) UpdateBodyByDMMessageID(ctx context.Context, threadID uuid.UUID, dmMessageID, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.ThreadID == threadID && row.DMMessageID.Valid && row.DMMessageID.String == dmMessageID {
			row.Body = body
		}
	}
	return nil
}

func (r *fakeMessageRepo) DeleteByDMMessageID(ctx context.Context, threadID uuid.UUID, dmMessageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, row := range r.rows {
		if row.ThreadID == threadID && row.DMMessageID.Valid && row.DMMessageID.String == dmMessageID {
			delete(r.rows, id)
		}
	}
	return nil
}

func (r *fakeMessageRepo) byType(threadID uuid.UUID, typ thread.MessageType) []thread.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []thread.Message
	for _, row := range r.rows {
		if row.ThreadID == threadID && row.Type == typ {
			out = append(out, *row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type sentMessage struct {
	ChannelID string
	Content   transport.Content
	Files     []transport.FilePayload
	MessageID string
}

type editedMessage struct {
	ChannelID string
	MessageID string
	Content   transport.Content
}

type deletedMessage struct {
	ChannelID string
	MessageID string
}

type fakeChat struct {
	mu sync.Mutex

	dmUnavailable bool
	goneChannels  map[string]bool
	sendErrors    map[string]error
	deleteErr     error

	nextID          int
	sent            []sentMessage
	edited          []editedMessage
	deleted         []deletedMessage
	deletedChannels []string
}

func newFakeChat() *fakeChat {
	return &fakeChat{
		goneChannels: map[string]bool{},
		sendErrors:   map[string]error{},
	}
}

func (c *fakeChat) OpenPrivateChannel(ctx context.Context, userID string) (string, error) {
	if c.dmUnavailable {
		return "", relay_errors.ErrDMUnavailable
	}
	return "dm-" + userID, nil
}

func (c *fakeChat) SendMessage(ctx context.Context, channelID string, content transport.Content, files []transport.FilePayload) (transport.SendResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err, ok := c.sendErrors[channelID]; ok {
		return transport.SendResult{}, err
	}
	if c.goneChannels[channelID] {
		return transport.SendResult{Outcome: transport.OutcomeTargetGone}, nil
	}

	c.nextID++
	id := fmt.Sprintf("m%d", c.nextID)
	c.sent = append(c.sent, sentMessage{ChannelID: channelID, Content: content, Files: files, MessageID: id})
	return transport.SendResult{Outcome: transport.OutcomeDelivered, MessageID: id}, nil
}

func (c *fakeChat) EditMessage(ctx context.Context, channelID, messageID string, content transport.Content) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.edited = append(c.edited, editedMessage{ChannelID: channelID, MessageID: messageID, Content: content})
	return nil
}

func (c *fakeChat) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deleteErr != nil {
		return c.deleteErr
	}
	c.deleted = append(c.deleted, deletedMessage{ChannelID: channelID, MessageID: messageID})
	return nil
}

func (c *fakeChat) DeleteChannel(ctx context.Context, channelID, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletedChannels = append(c.deletedChannels, channelID)
	return nil
}

func (c *fakeChat) sentTo(channelID string) []sentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []sentMessage
	for _, m := range c.sent {
		if m.ChannelID == channelID {
			out = append(out, m)
		}
	}
	return out
}

type fakeAttachmentRelay struct {
	persistErr error
}

func (r *fakeAttachmentRelay) Persist(ctx context.Context, att attachments.Attachment) (string, error) {
	if r.persistErr != nil {
		return "", r.persistErr
	}
	return "https://files.example/" + att.ID, nil
}

func (r *fakeAttachmentRelay) FilePayload(ctx context.Context, att attachments.Attachment) (transport.FilePayload, error) {
	return transport.FilePayload{
		Name:        att.Name,
		ContentType: att.ContentType,
		Data:        []byte("data-" + att.ID),
	}, nil
}

func plainText(content transport.Content) string {
	if text, ok := content.(transport.PlainText); ok {
		return text.Text
	}
	return ""
}
