package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"modmail-relay/internal/attachments"
	"modmail-relay/internal/domain/thread"
	"modmail-relay/internal/formatter"
	"modmail-relay/internal/redis"
	"modmail-relay/internal/repository"
	"modmail-relay/internal/transport"
	"modmail-relay/pkg/logger"
	relay_errors "modmail-relay/pkg/errors"
)

// Actor identifies the human behind an operation (a moderator or the party
// who scheduled a deferred transition).
type Actor struct {
	ID   string
	Name string
}

// InboundMessage is a message received on the user's DM surface, or a native
// inbox-channel message being mirrored into the logs.
type InboundMessage struct {
	ID          string
	ChannelID   string
	AuthorID    string
	AuthorName  string
	Content     string
	Attachments []attachments.Attachment
}

// SystemMessageOpts controls log persistence for system messages.
type SystemMessageOpts struct {
	// SkipLog suppresses the SYSTEM log row entirely.
	SkipLog bool
	// LogBody overrides the default log body (the rendered content).
	LogBody string
}

// ThreadService owns every relay, log, and lifecycle operation on a thread.
// All collaborators are injected; there is no shared module state.
type ThreadService struct {
	threads  repository.ThreadRepository
	messages repository.ThreadMessageRepository
	chat     transport.ChatClient
	files    attachments.Relay
	format   formatter.Formatter
	cache    *redis.CacheStore
	log      *logger.Logger

	smallAttachmentLimit int64
}

func NewThreadService(
	threads repository.ThreadRepository,
	messages repository.ThreadMessageRepository,
	chat transport.ChatClient,
	files attachments.Relay,
	format formatter.Formatter,
	cache *redis.CacheStore,
	log *logger.Logger,
	smallAttachmentLimit int64,
) *ThreadService {
	if log == nil {
		log = logger.NewNop()
	}
	return &ThreadService{
		threads:              threads,
		messages:             messages,
		chat:                 chat,
		files:                files,
		format:               format,
		cache:                cache,
		log:                  log,
		smallAttachmentLimit: smallAttachmentLimit,
	}
}

// ReplyToUser relays a staff reply to the user's DM surface, records it as a
// numbered TO_USER log row, and mirrors it into the inbox channel. Returns
// whether the reply reached the user; the inbox mirror outcome does not
// affect the return value.
func (s *ThreadService) ReplyToUser(ctx context.Context, t *thread.Thread, moderator Actor, text string, replyAttachments []attachments.Attachment, anonymous bool) (bool, error) {
	files := make([]transport.FilePayload, len(replyAttachments))
	attachmentLinks := make([]string, len(replyAttachments))

	// Upload and payload conversion run concurrently per attachment; any
	// failure aborts the whole reply.
	g, gctx := errgroup.WithContext(ctx)
	for i, att := range replyAttachments {
		i, att := i, att
		g.Go(func() error {
			file, err := s.files.FilePayload(gctx, att)
			if err != nil {
				return err
			}
			files[i] = file
			return nil
		})
		g.Go(func() error {
			url, err := s.files.Persist(gctx, att)
			if err != nil {
				return err
			}
			attachmentLinks[i] = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return false, err
	}

	dmContent := transport.PlainText{Text: s.format.StaffReplyDM(moderator.Name, text, anonymous)}
	dmChannelID, dmMessageID, err := s.sendDMToUser(ctx, t, dmContent, files)
	if err != nil {
		notice := transport.PlainText{Text: fmt.Sprintf("Error while replying to user: %v", err)}
		if postErr := s.PostSystemMessage(ctx, t, notice, nil, SystemMessageOpts{}); postErr != nil {
			return false, postErr
		}
		return false, nil
	}

	msg := &thread.Message{
		ThreadID:    t.ID,
		Type:        thread.MessageTypeToUser,
		UserID:      sql.NullString{String: moderator.ID, Valid: true},
		UserName:    moderator.Name,
		Body:        s.format.StaffReplyLog(moderator.Name, text, anonymous, compact(attachmentLinks)),
		IsAnonymous: anonymous,
		DMChannelID: sql.NullString{String: dmChannelID, Valid: true},
		DMMessageID: sql.NullString{String: dmMessageID, Valid: true},
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return false, err
	}

	inboxContent := transport.PlainText{Text: s.format.StaffReplyChannel(moderator.Name, text, msg.MessageNumber.Int64, anonymous)}
	res, err := s.postToInbox(ctx, t, inboxContent, files)
	if err != nil {
		return false, err
	}
	if res.Delivered() {
		if err := s.messages.SetInboxMessageID(ctx, msg.ID, res.MessageID); err != nil {
			return false, err
		}
	}

	// New staff activity interrupts a pending close.
	if t.HasScheduledClose() {
		if err := s.CancelScheduledClose(ctx, t); err != nil {
			return false, err
		}
		notice := transport.PlainText{Text: "Cancelling scheduled closing of this thread due to new reply"}
		if err := s.PostSystemMessage(ctx, t, notice, nil, SystemMessageOpts{}); err != nil {
			return false, err
		}
	}

	return true, nil
}

// ReceiveUserReply records an inbound user DM as a FROM_USER log row and
// mirrors it into the inbox channel. Small attachments are re-uploaded as
// files; large ones are linked only.
func (s *ThreadService) ReceiveUserReply(ctx context.Context, t *thread.Thread, msg InboundMessage) error {
	var inboxFiles []transport.FilePayload
	var inboxAttachmentLines []string
	var logAttachmentLines []string

	for _, att := range msg.Attachments {
		url, err := s.files.Persist(ctx, att)
		if err != nil {
			return err
		}

		formatted := s.format.Attachment(att.Name, att.Size, url)
		logAttachmentLines = append(logAttachmentLines, formatted)

		if attachments.ForwardAsFile(att, s.smallAttachmentLimit) {
			file, err := s.files.FilePayload(ctx, att)
			if err != nil {
				return err
			}
			inboxFiles = append(inboxFiles, file)
		} else {
			inboxAttachmentLines = append(inboxAttachmentLines, formatted)
		}
	}

	row := &thread.Message{
		ThreadID:    t.ID,
		Type:        thread.MessageTypeFromUser,
		UserID:      sql.NullString{String: t.UserID, Valid: true},
		UserName:    msg.AuthorName,
		Body:        s.format.UserReplyLog(msg.AuthorName, msg.Content, logAttachmentLines),
		DMChannelID: sql.NullString{String: msg.ChannelID, Valid: msg.ChannelID != ""},
		DMMessageID: sql.NullString{String: msg.ID, Valid: msg.ID != ""},
	}
	if err := s.messages.Create(ctx, row); err != nil {
		return err
	}

	inboxContent := transport.PlainText{Text: s.format.UserReplyChannel(msg.AuthorName, msg.Content, inboxAttachmentLines)}
	res, err := s.postToInbox(ctx, t, inboxContent, inboxFiles)
	if err != nil {
		return err
	}
	if res.Delivered() {
		if err := s.messages.SetInboxMessageID(ctx, row.ID, res.MessageID); err != nil {
			return err
		}
	}

	if t.HasScheduledClose() {
		schedulerID := t.ScheduledCloseID.String
		if err := s.CancelScheduledClose(ctx, t); err != nil {
			return err
		}
		notice := transport.PlainText{Text: fmt.Sprintf("%s Thread that was scheduled to be closed got a new reply. Cancelling.", s.format.Mention(schedulerID))}
		if err := s.PostSystemMessage(ctx, t, notice, nil, SystemMessageOpts{}); err != nil {
			return err
		}
	}

	if t.HasAlert() {
		alertID := t.AlertID.String
		if err := s.SetAlert(ctx, t, ""); err != nil {
			return err
		}
		notice := transport.PlainText{Text: fmt.Sprintf("%s New message from %s", s.format.Mention(alertID), t.UserName)}
		if err := s.PostSystemMessage(ctx, t, notice, nil, SystemMessageOpts{}); err != nil {
			return err
		}
	}

	return nil
}

// PostSystemMessage sends content to the inbox channel and, unless
// suppressed, persists a SYSTEM log row.
func (s *ThreadService) PostSystemMessage(ctx context.Context, t *thread.Thread, content transport.Content, files []transport.FilePayload, opts SystemMessageOpts) error {
	res, err := s.postToInbox(ctx, t, content, files)
	if err != nil {
		return err
	}
	if !res.Delivered() || opts.SkipLog {
		return nil
	}

	row := &thread.Message{
		ThreadID:       t.ID,
		Type:           thread.MessageTypeSystem,
		Body:           s.logBody(opts.LogBody, content),
		InboxMessageID: sql.NullString{String: res.MessageID, Valid: true},
	}
	return s.messages.Create(ctx, row)
}

// SendSystemMessageToUser sends content to the user's DM surface and, unless
// suppressed, persists a SYSTEM_TO_USER log row.
func (s *ThreadService) SendSystemMessageToUser(ctx context.Context, t *thread.Thread, content transport.Content, files []transport.FilePayload, opts SystemMessageOpts) error {
	dmChannelID, dmMessageID, err := s.sendDMToUser(ctx, t, content, files)
	if err != nil {
		return err
	}
	if opts.SkipLog {
		return nil
	}

	row := &thread.Message{
		ThreadID:    t.ID,
		Type:        thread.MessageTypeSystemToUser,
		Body:        s.logBody(opts.LogBody, content),
		DMChannelID: sql.NullString{String: dmChannelID, Valid: true},
		DMMessageID: sql.NullString{String: dmMessageID, Valid: true},
	}
	return s.messages.Create(ctx, row)
}

// PostNonLogMessage sends an ephemeral notice to the inbox channel; nothing
// is persisted.
func (s *ThreadService) PostNonLogMessage(ctx context.Context, t *thread.Thread, content transport.Content, files []transport.FilePayload) error {
	_, err := s.postToInbox(ctx, t, content, files)
	return err
}

// SaveChatMessageToLogs records a native inbox-channel conversation message.
// No relay happens; the message is already visible where it was written.
func (s *ThreadService) SaveChatMessageToLogs(ctx context.Context, t *thread.Thread, msg InboundMessage) error {
	return s.saveRawMessage(ctx, t, thread.MessageTypeChat, msg)
}

// SaveCommandMessageToLogs records a staff command invocation.
func (s *ThreadService) SaveCommandMessageToLogs(ctx context.Context, t *thread.Thread, msg InboundMessage) error {
	return s.saveRawMessage(ctx, t, thread.MessageTypeCommand, msg)
}

// UpdateChatMessageInLogs syncs a logged CHAT row's body after the
// originating message was edited.
func (s *ThreadService) UpdateChatMessageInLogs(ctx context.Context, t *thread.Thread, messageID, newContent string) error {
	return s.messages.UpdateBodyByDMMessageID(ctx, t.ID, messageID, newContent)
}

// DeleteChatMessageFromLogs removes a logged CHAT row after the originating
// message was deleted.
func (s *ThreadService) DeleteChatMessageFromLogs(ctx context.Context, t *thread.Thread, messageID string) error {
	return s.messages.DeleteByDMMessageID(ctx, t.ID, messageID)
}

// EditStaffReply re-renders a prior reply from its stored anonymity flag and
// the new text, then edits both surface messages in place. The log row's
// number, linkage ids, and created_at are untouched.
func (s *ThreadService) EditStaffReply(ctx context.Context, t *thread.Thread, moderator Actor, tm thread.Message, newText string, quiet bool) error {
	dmContent := transport.PlainText{Text: s.format.StaffReplyDM(moderator.Name, newText, tm.IsAnonymous)}
	channelContent := transport.PlainText{Text: s.format.StaffReplyChannel(moderator.Name, newText, tm.MessageNumber.Int64, tm.IsAnonymous)}

	if err := s.chat.EditMessage(ctx, tm.DMChannelID.String, tm.DMMessageID.String, dmContent); err != nil {
		return err
	}
	if err := s.chat.EditMessage(ctx, t.ChannelID, tm.InboxMessageID.String, channelContent); err != nil {
		return err
	}

	if !quiet {
		channelNotice := s.format.StaffReplyEditNotificationChannel(moderator.Name, tm.MessageNumber.Int64, newText)
		logNotice := s.format.StaffReplyEditNotificationLog(moderator.Name, tm.MessageNumber.Int64, tm.Body, newText)
		return s.PostSystemMessage(ctx, t, transport.PlainText{Text: channelNotice}, nil, SystemMessageOpts{LogBody: logNotice})
	}
	return nil
}

// DeleteStaffReply removes a prior reply from both surfaces. The log row is
// kept as historical record. Messages already gone are not an error.
func (s *ThreadService) DeleteStaffReply(ctx context.Context, t *thread.Thread, moderator Actor, tm thread.Message, quiet bool) error {
	if err := s.chat.DeleteMessage(ctx, tm.DMChannelID.String, tm.DMMessageID.String); err != nil && !errors.Is(err, relay_errors.ErrNotFound) {
		return err
	}
	if err := s.chat.DeleteMessage(ctx, t.ChannelID, tm.InboxMessageID.String); err != nil && !errors.Is(err, relay_errors.ErrNotFound) {
		return err
	}

	if !quiet {
		channelNotice := s.format.StaffReplyDeletionNotificationChannel(moderator.Name, tm.MessageNumber.Int64)
		logNotice := s.format.StaffReplyDeletionNotificationLog(moderator.Name, tm.MessageNumber.Int64, tm.Body)
		return s.PostSystemMessage(ctx, t, transport.PlainText{Text: channelNotice}, nil, SystemMessageOpts{LogBody: logNotice})
	}
	return nil
}

// Close transitions the thread to CLOSED and tears down the inbox channel,
// best-effort. Scheduled-close/suspend fields are intentionally left as-is;
// callers cancel them if relevant.
func (s *ThreadService) Close(ctx context.Context, t *thread.Thread, suppressNotice, silent bool) error {
	if !suppressNotice {
		s.log.Infof("Closing thread %s", t.ID)

		text := "Closing thread..."
		if silent {
			text = "Closing thread silently..."
		}
		if err := s.PostSystemMessage(ctx, t, transport.PlainText{Text: text}, nil, SystemMessageOpts{}); err != nil {
			s.log.Errorf("Failed to post closing notice for thread %s: %v", t.ID, err)
		}
	}

	if err := s.threads.UpdateStatus(ctx, t.ID, thread.StatusClosed); err != nil {
		return err
	}
	t.Status = thread.StatusClosed

	if s.cache != nil {
		if err := s.cache.InvalidateOpenThread(ctx, t.UserID); err != nil {
			s.log.Errorf("Failed to invalidate thread cache for user %s: %v", t.UserID, err)
		}
	}

	if err := s.chat.DeleteChannel(ctx, t.ChannelID, "Thread closed"); err != nil {
		s.log.Errorf("Failed to delete channel %s: %v", t.ChannelID, err)
	}
	return nil
}

// Suspend sets status=SUSPENDED and clears any scheduled suspend, atomically.
func (s *ThreadService) Suspend(ctx context.Context, t *thread.Thread) error {
	if err := s.threads.Suspend(ctx, t.ID); err != nil {
		return err
	}
	t.Status = thread.StatusSuspended
	t.ScheduledSuspendAt = sql.NullTime{}
	t.ScheduledSuspendID = sql.NullString{}
	t.ScheduledSuspendName = sql.NullString{}
	return nil
}

// Unsuspend returns the thread to OPEN; nothing else changes.
func (s *ThreadService) Unsuspend(ctx context.Context, t *thread.Thread) error {
	if err := s.threads.UpdateStatus(ctx, t.ID, thread.StatusOpen); err != nil {
		return err
	}
	t.Status = thread.StatusOpen
	return nil
}

// ScheduleClose records a deferred close as data; an external poller executes
// it. Any new thread activity cancels it.
func (s *ThreadService) ScheduleClose(ctx context.Context, t *thread.Thread, at sql.NullTime, actor Actor, silent bool) error {
	if !at.Valid {
		return relay_errors.ErrInvalidInput
	}
	if err := s.threads.SetScheduledClose(ctx, t.ID, at.Time, actor.ID, actor.Name, silent); err != nil {
		return err
	}
	t.ScheduledCloseAt = at
	t.ScheduledCloseID = sql.NullString{String: actor.ID, Valid: true}
	t.ScheduledCloseName = sql.NullString{String: actor.Name, Valid: true}
	t.ScheduledCloseSilent = sql.NullBool{Bool: silent, Valid: true}
	return nil
}

func (s *ThreadService) CancelScheduledClose(ctx context.Context, t *thread.Thread) error {
	if err := s.threads.ClearScheduledClose(ctx, t.ID); err != nil {
		return err
	}
	t.ScheduledCloseAt = sql.NullTime{}
	t.ScheduledCloseID = sql.NullString{}
	t.ScheduledCloseName = sql.NullString{}
	t.ScheduledCloseSilent = sql.NullBool{}
	return nil
}

func (s *ThreadService) ScheduleSuspend(ctx context.Context, t *thread.Thread, at sql.NullTime, actor Actor) error {
	if !at.Valid {
		return relay_errors.ErrInvalidInput
	}
	if err := s.threads.SetScheduledSuspend(ctx, t.ID, at.Time, actor.ID, actor.Name); err != nil {
		return err
	}
	t.ScheduledSuspendAt = at
	t.ScheduledSuspendID = sql.NullString{String: actor.ID, Valid: true}
	t.ScheduledSuspendName = sql.NullString{String: actor.Name, Valid: true}
	return nil
}

func (s *ThreadService) CancelScheduledSuspend(ctx context.Context, t *thread.Thread) error {
	if err := s.threads.ClearScheduledSuspend(ctx, t.ID); err != nil {
		return err
	}
	t.ScheduledSuspendAt = sql.NullTime{}
	t.ScheduledSuspendID = sql.NullString{}
	t.ScheduledSuspendName = sql.NullString{}
	return nil
}

// SetAlert arms the alert for the given staff member; an empty id disarms it.
func (s *ThreadService) SetAlert(ctx context.Context, t *thread.Thread, userID string) error {
	var err error
	if userID == "" {
		err = s.threads.ClearAlert(ctx, t.ID)
	} else {
		err = s.threads.SetAlert(ctx, t.ID, userID)
	}
	if err != nil {
		return err
	}
	t.AlertID = sql.NullString{String: userID, Valid: userID != ""}
	return nil
}

// Messages returns the thread's log in display order (created_at, id).
func (s *ThreadService) Messages(ctx context.Context, t *thread.Thread) ([]thread.Message, error) {
	return s.messages.GetThreadMessages(ctx, t.ID)
}

// MessageByNumber resolves a staff reply by its human-facing number.
func (s *ThreadService) MessageByNumber(ctx context.Context, t *thread.Thread, number int64) (thread.Message, error) {
	return s.messages.GetByMessageNumber(ctx, t.ID, number)
}

func (s *ThreadService) saveRawMessage(ctx context.Context, t *thread.Thread, typ thread.MessageType, msg InboundMessage) error {
	row := &thread.Message{
		ThreadID:    t.ID,
		Type:        typ,
		UserID:      sql.NullString{String: msg.AuthorID, Valid: msg.AuthorID != ""},
		UserName:    msg.AuthorName,
		Body:        msg.Content,
		DMChannelID: sql.NullString{String: msg.ChannelID, Valid: msg.ChannelID != ""},
		DMMessageID: sql.NullString{String: msg.ID, Valid: msg.ID != ""},
	}
	return s.messages.Create(ctx, row)
}

// sendDMToUser opens the user's private channel and sends the content,
// chunking plain text. Files go with the last chunk. Returns the channel id
// and the id of the first message produced.
func (s *ThreadService) sendDMToUser(ctx context.Context, t *thread.Thread, content transport.Content, files []transport.FilePayload) (string, string, error) {
	dmChannelID, err := s.chat.OpenPrivateChannel(ctx, t.UserID)
	if err != nil {
		if errors.Is(err, relay_errors.ErrDMUnavailable) || errors.Is(err, relay_errors.ErrNotFound) {
			return "", "", fmt.Errorf("%w: they may have blocked the bot or set their privacy settings higher", relay_errors.ErrDMUnavailable)
		}
		return "", "", err
	}

	res, err := s.sendChunked(ctx, dmChannelID, content, files)
	if err != nil {
		return "", "", err
	}
	if !res.Delivered() {
		return "", "", relay_errors.ErrDMUnavailable
	}
	return dmChannelID, res.MessageID, nil
}

// postToInbox sends content to the thread's inbox channel. A vanished
// channel is not an error: the thread is auto-closed and the returned result
// reports no message, so callers skip the linkage backfill.
func (s *ThreadService) postToInbox(ctx context.Context, t *thread.Thread, content transport.Content, files []transport.FilePayload) (transport.SendResult, error) {
	res, err := s.sendChunked(ctx, t.ChannelID, content, files)
	if err != nil {
		return transport.SendResult{}, err
	}
	if res.Outcome == transport.OutcomeTargetGone {
		s.log.Infof("Failed to send message to thread channel for %s because the channel no longer exists. Auto-closing the thread.", t.UserName)
		if closeErr := s.Close(ctx, t, true, false); closeErr != nil {
			return transport.SendResult{}, closeErr
		}
	}
	return res, nil
}

// sendChunked splits plain text at the platform chunk limit; a rich payload
// is sent as-is. The first chunk's message id identifies the send.
func (s *ThreadService) sendChunked(ctx context.Context, channelID string, content transport.Content, files []transport.FilePayload) (transport.SendResult, error) {
	text, ok := content.(transport.PlainText)
	if !ok {
		return s.chat.SendMessage(ctx, channelID, content, files)
	}

	chunks := transport.Chunk(text.Text, transport.MaxChunkLength)
	var first transport.SendResult
	for i, chunk := range chunks {
		var chunkFiles []transport.FilePayload
		if i == len(chunks)-1 {
			// Files only go with the last chunk
			chunkFiles = files
		}
		res, err := s.chat.SendMessage(ctx, channelID, transport.PlainText{Text: chunk}, chunkFiles)
		if err != nil {
			return transport.SendResult{}, err
		}
		if !res.Delivered() {
			return res, nil
		}
		if i == 0 {
			first = res
		}
	}
	return first, nil
}

func (s *ThreadService) logBody(override string, content transport.Content) string {
	if override != "" {
		return override
	}
	if text, ok := content.(transport.PlainText); ok && text.Text != "" {
		return text.Text
	}
	return "<empty message>"
}

func compact(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
