package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	relay_errors "modmail-relay/pkg/errors"
)

// RestClient is a thin ChatClient over a bot-gateway style REST API. It owns
// nothing but the HTTP mapping; all relay behavior lives in the service.
type RestClient struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewRestClient(baseURL, token string) *RestClient {
	return &RestClient{
		baseURL: baseURL,
		token:   token,
		client:  http.DefaultClient,
	}
}

type restMessage struct {
	ID string `json:"id"`
}

type restChannel struct {
	ID string `json:"id"`
}

func (c *RestClient) OpenPrivateChannel(ctx context.Context, userID string) (string, error) {
	body, _ := json.Marshal(map[string]string{"recipient_id": userID})
	resp, err := c.do(ctx, http.MethodPost, "/users/@me/channels", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		var ch restChannel
		if err := json.NewDecoder(resp.Body).Decode(&ch); err != nil {
			return "", err
		}
		return ch.ID, nil
	case http.StatusForbidden, http.StatusNotFound:
		return "", relay_errors.ErrDMUnavailable
	default:
		return "", fmt.Errorf("open private channel for %s: unexpected status %d", userID, resp.StatusCode)
	}
}

func (c *RestClient) SendMessage(ctx context.Context, channelID string, content Content, files []FilePayload) (SendResult, error) {
	contentType, body, err := encodeMessage(content, files)
	if err != nil {
		return SendResult{}, err
	}

	resp, err := c.do(ctx, http.MethodPost, "/channels/"+channelID+"/messages", contentType, body)
	if err != nil {
		return SendResult{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		var msg restMessage
		if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
			return SendResult{}, err
		}
		return SendResult{Outcome: OutcomeDelivered, MessageID: msg.ID}, nil
	case http.StatusNotFound:
		// The channel is gone; an outcome, not an error.
		return SendResult{Outcome: OutcomeTargetGone}, nil
	default:
		return SendResult{}, fmt.Errorf("send to channel %s: unexpected status %d", channelID, resp.StatusCode)
	}
}

func (c *RestClient) EditMessage(ctx context.Context, channelID, messageID string, content Content) error {
	body, err := json.Marshal(contentJSON(content))
	if err != nil {
		return err
	}

	resp, err := c.do(ctx, http.MethodPatch, "/channels/"+channelID+"/messages/"+messageID, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return relay_errors.ErrNotFound
	default:
		return fmt.Errorf("edit message %s: unexpected status %d", messageID, resp.StatusCode)
	}
}

func (c *RestClient) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/channels/"+channelID+"/messages/"+messageID, "", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return relay_errors.ErrNotFound
	default:
		return fmt.Errorf("delete message %s: unexpected status %d", messageID, resp.StatusCode)
	}
}

func (c *RestClient) DeleteChannel(ctx context.Context, channelID, reason string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/channels/"+channelID, nil)
	if err != nil {
		return err
	}
	c.authorize(req)
	if reason != "" {
		req.Header.Set("X-Audit-Log-Reason", reason)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		// A missing channel is already the desired end state.
		return nil
	default:
		return fmt.Errorf("delete channel %s: unexpected status %d", channelID, resp.StatusCode)
	}
}

func (c *RestClient) do(ctx context.Context, method, path, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	c.authorize(req)
	return c.client.Do(req)
}

func (c *RestClient) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bot "+c.token)
	}
}

func contentJSON(content Content) map[string]interface{} {
	switch v := content.(type) {
	case PlainText:
		return map[string]interface{}{"content": v.Text}
	case RichPayload:
		return map[string]interface{}{
			"embeds": []map[string]interface{}{{
				"title":       v.Title,
				"description": v.Description,
				"color":       v.Color,
			}},
		}
	default:
		return map[string]interface{}{}
	}
}

// encodeMessage builds either a JSON body or, when files are present, a
// multipart body with the JSON payload in its own part.
func encodeMessage(content Content, files []FilePayload) (string, io.Reader, error) {
	payload, err := json.Marshal(contentJSON(content))
	if err != nil {
		return "", nil, err
	}

	if len(files) == 0 {
		return "application/json", bytes.NewReader(payload), nil
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormField("payload_json")
	if err != nil {
		return "", nil, err
	}
	if _, err := part.Write(payload); err != nil {
		return "", nil, err
	}

	for i, f := range files {
		fw, err := w.CreateFormFile(fmt.Sprintf("files[%d]", i), f.Name)
		if err != nil {
			return "", nil, err
		}
		if _, err := fw.Write(f.Data); err != nil {
			return "", nil, err
		}
	}

	if err := w.Close(); err != nil {
		return "", nil, err
	}
	return w.FormDataContentType(), &buf, nil
}
