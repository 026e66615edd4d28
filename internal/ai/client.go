// Package ai talks to the Gemini generateContent API and turns its free
// text answers into the structured results the service layer consumes.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/iliyamo/civic-budget/internal/config"
)

// ErrEmptyResponse is returned when the model produced no usable text.
var ErrEmptyResponse = errors.New("ai: empty response")

// Client is a throttled Gemini client. It satisfies service.Advisor.
type Client struct {
	HTTP    *http.Client
	BaseURL string
	Model   string
	APIKey  string

	limiter *rate.Limiter
	schemas *schemas
}

// NewClient builds a client from cfg. The HTTP timeout is a backstop; the
// caller's context normally expires first.
func NewClient(cfg config.AIConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("ai: GEMINI_API_KEY is not set")
	}
	s, err := compileSchemas()
	if err != nil {
		return nil, err
	}
	limit := rate.Limit(cfg.RatePerSec)
	if cfg.RatePerSec <= 0 {
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Client{
		HTTP:    &http.Client{Timeout: 2 * timeout},
		BaseURL: strings.TrimRight(cfg.BaseURL, "/"),
		Model:   cfg.Model,
		APIKey:  cfg.APIKey,
		limiter: rate.NewLimiter(limit, burst),
		schemas: s,
	}, nil
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMIMEType string  `json:"responseMimeType,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// generate sends one conversation and returns the model's text. A limiter
// wait that cannot finish before ctx's deadline fails immediately.
func (c *Client) generate(ctx context.Context, turns []content, jsonOut bool) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("ai: throttled: %w", err)
	}

	req := generateRequest{Contents: turns, GenerationConfig: &generationConfig{Temperature: 0.4}}
	if jsonOut {
		req.GenerationConfig.ResponseMIMEType = "application/json"
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.BaseURL, url.PathEscape(c.Model), url.QueryEscape(c.APIKey))
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	hreq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(hreq)
	if err != nil {
		return "", fmt.Errorf("ai: request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("ai: read body: %w", err)
	}

	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("ai: decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := http.StatusText(resp.StatusCode)
		if out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return "", fmt.Errorf("ai: status %d: %s", resp.StatusCode, msg)
	}
	var sb strings.Builder
	for _, cand := range out.Candidates {
		for _, p := range cand.Content.Parts {
			sb.WriteString(p.Text)
		}
		if sb.Len() > 0 {
			break
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// extractJSON returns the outermost JSON object in s, which models often
// wrap in markdown fences or prose.
func extractJSON(s string) (string, error) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("ai: no JSON object in response")
	}
	return s[start : end+1], nil
}

// decodeInto extracts the JSON object from text, validates it against sch
// and decodes it into dst.
func decodeInto(text string, sch validator, dst any) error {
	obj, err := extractJSON(text)
	if err != nil {
		return err
	}
	var generic any
	if err := json.Unmarshal([]byte(obj), &generic); err != nil {
		return fmt.Errorf("ai: malformed JSON: %w", err)
	}
	if err := sch.Validate(generic); err != nil {
		return fmt.Errorf("ai: response rejected: %w", err)
	}
	return json.Unmarshal([]byte(obj), dst)
}

func userTurn(text string) content {
	return content{Role: "user", Parts: []part{{Text: text}}}
}
