package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"modmail-relay/internal/repository"
	relay_errors "modmail-relay/pkg/errors"
)

// LogServer serves a thread's audit log over HTTP. Log URLs carry a signed
// token scoped to one thread.
type LogServer struct {
	threads  repository.ThreadRepository
	messages repository.ThreadMessageRepository
	signer   *TokenSigner
	baseURL  string
}

func NewLogServer(threads repository.ThreadRepository, messages repository.ThreadMessageRepository, signer *TokenSigner, baseURL string) *LogServer {
	return &LogServer{
		threads:  threads,
		messages: messages,
		signer:   signer,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

// LogURL builds the shareable URL for a thread's log.
func (s *LogServer) LogURL(threadID uuid.UUID) (string, error) {
	token, err := s.signer.Sign(threadID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/logs/%s?token=%s", s.baseURL, threadID, token), nil
}

func (s *LogServer) Register(r *gin.Engine) {
	r.GET("/logs/:id", s.getLog)
}

func (s *LogServer) getLog(c *gin.Context) {
	threadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.String(http.StatusBadRequest, "invalid thread id")
		return
	}

	if err := s.signer.Verify(c.Query("token"), threadID); err != nil {
		c.String(http.StatusForbidden, "invalid or expired token")
		return
	}

	t, err := s.threads.GetByID(c.Request.Context(), threadID)
	if err != nil {
		if errors.Is(err, relay_errors.ErrNotFound) {
			c.String(http.StatusNotFound, "thread not found")
			return
		}
		c.String(http.StatusInternalServerError, "failed to load thread")
		return
	}

	messages, err := s.messages.GetThreadMessages(c.Request.Context(), threadID)
	if err != nil {
		c.String(http.StatusInternalServerError, "failed to load messages")
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Thread with %s (%s), started %s\n\n", t.UserName, t.UserID, t.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
	for _, m := range messages {
		fmt.Fprintf(&b, "[%s] %s\n", m.CreatedAt.UTC().Format("2006-01-02 15:04:05"), m.Body)
	}

	c.String(http.StatusOK, b.String())
}
