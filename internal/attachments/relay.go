package attachments

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"modmail-relay/internal/storage"
	"modmail-relay/internal/transport"
	relay_errors "modmail-relay/pkg/errors"

	"github.com/google/uuid"
)

// Attachment is a reference to a file the chat platform is hosting for the
// originating message. Bytes are fetched lazily from SourceURL.
type Attachment struct {
	ID          string
	Name        string
	ContentType string
	Size        int64
	SourceURL   string
}

// Relay persists attachments outside the chat platform and converts them
// into sendable payloads for re-upload on the opposite surface.
type Relay interface {
	// Persist stores the attachment externally and returns a stable URL.
	Persist(ctx context.Context, att Attachment) (string, error)
	// FilePayload fetches the attachment bytes for re-sending.
	FilePayload(ctx context.Context, att Attachment) (transport.FilePayload, error)
}

// ForwardAsFile is the size policy split: attachments at or under the limit
// are forwarded as real files, larger ones are linked only.
func ForwardAsFile(att Attachment, limit int64) bool {
	return att.Size <= limit
}

// S3Relay stores attachments in an S3 bucket.
type S3Relay struct {
	store  *storage.Client
	client *http.Client
}

func NewS3Relay(store *storage.Client) *S3Relay {
	return &S3Relay{
		store:  store,
		client: http.DefaultClient,
	}
}

func (r *S3Relay) Persist(ctx context.Context, att Attachment) (string, error) {
	data, err := r.fetch(ctx, att)
	if err != nil {
		return "", err
	}
	return r.store.Upload(ctx, buildObjectKey(att), att.ContentType, data)
}

func (r *S3Relay) FilePayload(ctx context.Context, att Attachment) (transport.FilePayload, error) {
	data, err := r.fetch(ctx, att)
	if err != nil {
		return transport.FilePayload{}, err
	}
	return transport.FilePayload{
		Name:        att.Name,
		ContentType: att.ContentType,
		Data:        data,
	}, nil
}

func (r *S3Relay) fetch(ctx context.Context, att Attachment) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, att.SourceURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching attachment %s: %w (status %d)", att.ID, relay_errors.ErrNotUploaded, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func buildObjectKey(att Attachment) string {
	id := att.ID
	if id == "" {
		id = uuid.NewString()
	}
	ext := strings.ToLower(path.Ext(att.Name))
	base := fmt.Sprintf("attachments/%s", id)
	if ext == "" {
		return base
	}
	return base + ext
}
