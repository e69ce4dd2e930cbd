package translator

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
)

// Client is the HTTP implementation of Gateway.
type Client struct {
	endpoint   string
	key        string
	region     string
	pivot      string
	allowed    map[string]struct{}
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient constructs a translator client from config.
func NewClient(cfg config.TranslatorConfig, logger *zap.Logger) *Client {
	allowed := make(map[string]struct{}, len(cfg.AllowedLanguages))
	for _, code := range cfg.AllowedLanguages {
		allowed[strings.ToLower(strings.TrimSpace(code))] = struct{}{}
	}
	return &Client{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		key:        cfg.SubscriptionKey,
		region:     cfg.Region,
		pivot:      cfg.PivotLanguage,
		allowed:    allowed,
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		logger:     logger,
	}
}

type translateItem struct {
	Text string `json:"Text"`
}

type translateResult struct {
	Translations []struct {
		Text string `json:"text"`
		To   string `json:"to"`
	} `json:"translations"`
}

func (c *Client) TranslateBatch(ctx context.Context, texts []string, from, to string) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if strings.EqualFold(from, to) {
		out := make([]string, len(texts))
		copy(out, texts)
		return out, nil
	}

	items := make([]translateItem, len(texts))
	for i, text := range texts {
		items[i] = translateItem{Text: text}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/translate?api-version=3.0&from=%s&to=%s",
		c.endpoint, url.QueryEscape(from), url.QueryEscape(to))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Ocp-Apim-Subscription-Key", c.key)
	if c.region != "" {
		req.Header.Set("Ocp-Apim-Subscription-Region", c.region)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("translator error (%d): %s", resp.StatusCode, string(detail))
	}

	var results []translateResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, err
	}
	if len(results) != len(texts) {
		return nil, fmt.Errorf("translator returned %d results for %d inputs", len(results), len(texts))
	}

	out := make([]string, len(texts))
	for i, result := range results {
		if len(result.Translations) == 0 {
			out[i] = texts[i]
			continue
		}
		out[i] = result.Translations[0].Text
	}
	return out, nil
}

func (c *Client) IsValidLanguageCode(code string) bool {
	_, ok := c.allowed[strings.ToLower(strings.TrimSpace(code))]
	return ok
}

func (c *Client) DefaultLanguage() string {
	return c.pivot
}
