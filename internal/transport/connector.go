package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-assistant/internal/config"
	"github.com/spec-kit/support-assistant/internal/domain"
)

// HTTPConnector implements Connector against the chat platform's
// conversations REST API.
type HTTPConnector struct {
	botID             string
	botName           string
	authToken         string
	defaultServiceURL string
	httpClient        *http.Client
	logger            *zap.Logger
}

// NewHTTPConnector constructs a connector from bot config.
func NewHTTPConnector(cfg config.BotConfig, logger *zap.Logger) *HTTPConnector {
	return &HTTPConnector{
		botID:             cfg.BotID,
		botName:           cfg.BotName,
		authToken:         cfg.TransportAuthToken,
		defaultServiceURL: cfg.DefaultServiceURL,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TransportTimeoutSeconds) * time.Second,
		},
		logger: logger,
	}
}

type outboundActivity struct {
	Type         string           `json:"type"`
	From         *domain.Account  `json:"from,omitempty"`
	Text         string           `json:"text,omitempty"`
	TextFormat   string           `json:"textFormat,omitempty"`
	Summary      string           `json:"summary,omitempty"`
	Attachments  []Attachment     `json:"attachments,omitempty"`
	Conversation *conversationRef `json:"conversation,omitempty"`
}

type conversationRef struct {
	ID string `json:"id"`
}

type resourceResponse struct {
	ID         string `json:"id"`
	ActivityID string `json:"activityId"`
}

func (c *HTTPConnector) SendMessage(ctx context.Context, serviceURL string, msg Message) (string, error) {
	activity := c.toActivity(domain.ActivityTypeMessage, msg)

	path := fmt.Sprintf("/v3/conversations/%s/activities", url.PathEscape(msg.ConversationID))
	if msg.ReplyToID != "" {
		path += "/" + url.PathEscape(msg.ReplyToID)
	}

	var resp resourceResponse
	if err := c.do(ctx, http.MethodPost, serviceURL, path, activity, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (c *HTTPConnector) SendTyping(ctx context.Context, serviceURL, conversationID string) error {
	activity := outboundActivity{
		Type: domain.ActivityTypeTyping,
		From: &domain.Account{ID: c.botID, Name: c.botName},
	}
	path := fmt.Sprintf("/v3/conversations/%s/activities", url.PathEscape(conversationID))
	return c.do(ctx, http.MethodPost, serviceURL, path, activity, nil)
}

func (c *HTTPConnector) UpdateMessage(ctx context.Context, serviceURL, conversationID, activityID string, msg Message) error {
	activity := c.toActivity(domain.ActivityTypeMessage, msg)
	path := fmt.Sprintf("/v3/conversations/%s/activities/%s",
		url.PathEscape(conversationID), url.PathEscape(activityID))
	return c.do(ctx, http.MethodPut, serviceURL, path, activity, nil)
}

func (c *HTTPConnector) CreateThreadConversation(ctx context.Context, serviceURL, teamID string, msg Message) (string, string, error) {
	payload := struct {
		IsGroup     bool             `json:"isGroup"`
		Bot         domain.Account   `json:"bot"`
		ChannelData map[string]any   `json:"channelData"`
		Activity    outboundActivity `json:"activity"`
	}{
		IsGroup: true,
		Bot:     domain.Account{ID: c.botID, Name: c.botName},
		ChannelData: map[string]any{
			"channel": map[string]string{"id": teamID},
		},
		Activity: c.toActivity(domain.ActivityTypeMessage, msg),
	}

	var resp resourceResponse
	if err := c.do(ctx, http.MethodPost, serviceURL, "/v3/conversations", payload, &resp); err != nil {
		return "", "", err
	}
	return resp.ID, resp.ActivityID, nil
}

func (c *HTTPConnector) GetConversationMembers(ctx context.Context, serviceURL, conversationID string) ([]Member, error) {
	path := fmt.Sprintf("/v3/conversations/%s/members", url.PathEscape(conversationID))
	var members []Member
	if err := c.do(ctx, http.MethodGet, serviceURL, path, nil, &members); err != nil {
		return nil, err
	}
	return members, nil
}

func (c *HTTPConnector) UploadFile(ctx context.Context, uploadURL string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Content-Range", fmt.Sprintf("bytes 0-%d/%d", len(data)-1, len(data)))
	req.ContentLength = int64(len(data))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("file upload failed (%d): %s", resp.StatusCode, string(detail))
	}
	return nil
}

func (c *HTTPConnector) DownloadFile(ctx context.Context, downloadURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("file download failed (%d)", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (c *HTTPConnector) toActivity(activityType string, msg Message) outboundActivity {
	activity := outboundActivity{
		Type:        activityType,
		From:        &domain.Account{ID: c.botID, Name: c.botName},
		Text:        msg.Text,
		TextFormat:  msg.TextFormat,
		Summary:     msg.Summary,
		Attachments: msg.Attachments,
	}
	if msg.ConversationID != "" {
		activity.Conversation = &conversationRef{ID: msg.ConversationID}
	}
	return activity
}

func (c *HTTPConnector) do(ctx context.Context, method, serviceURL, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	if serviceURL == "" {
		serviceURL = c.defaultServiceURL
	}
	endpoint := strings.TrimRight(serviceURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("transport call %s %s failed (%d): %s", method, path, resp.StatusCode, string(detail))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
