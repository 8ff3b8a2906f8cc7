// ABOUTME: Client for the LLM Responses API that turns a Request into a Story
// ABOUTME: One POST per story; failures are wrapped with ErrGenerate

package story

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// ErrGenerate wraps every upstream failure.
var ErrGenerate = errors.New("story generation failed")

// maxResponseBytes caps how much of the upstream body is read.
const maxResponseBytes = 4 << 20

// Generator produces stories.
type Generator interface {
	Generate(ctx context.Context, req Request) (Story, error)
}

// Config configures a Client.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
	Logger  *slog.Logger
	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client
}

// Client calls {BaseURL}/responses.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a Client.
func NewClient(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		http:    hc,
		logger:  logger.With("component", "story"),
	}
}

type responsesRequest struct {
	Model        string `json:"model"`
	Instructions string `json:"instructions"`
	Input        string `json:"input"`
}

// Generate asks the model for a story. req is normalized first.
func (c *Client) Generate(ctx context.Context, req Request) (Story, error) {
	req, err := req.Normalize()
	if err != nil {
		return Story{}, err
	}

	body, err := json.Marshal(responsesRequest{
		Model:        c.model,
		Instructions: Instructions(req.Language),
		Input:        Input(req.Topic, req.Words),
	})
	if err != nil {
		return Story{}, fmt.Errorf("%w: marshaling request: %v", ErrGenerate, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/responses", bytes.NewReader(body))
	if err != nil {
		return Story{}, fmt.Errorf("%w: creating request: %v", ErrGenerate, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Story{}, fmt.Errorf("%w: sending request: %v", ErrGenerate, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Story{}, fmt.Errorf("%w: reading response: %v", ErrGenerate, err)
	}
	if resp.StatusCode != http.StatusOK {
		return Story{}, upstreamError(resp.StatusCode, payload)
	}
	if !gjson.ValidBytes(payload) {
		return Story{}, fmt.Errorf("%w: upstream returned invalid JSON", ErrGenerate)
	}

	title, content, moral := parseStory(outputText(payload))

	requestID := resp.Header.Get("x-request-id")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	model := gjson.GetBytes(payload, "model").String()
	if model == "" {
		model = c.model
	}

	c.logger.Debug("story generated",
		"model", model,
		"request_id", requestID,
		"language", req.Language,
		"duration", time.Since(start))

	return Story{
		Title:     title,
		Content:   content,
		Moral:     moral,
		Model:     model,
		RequestID: requestID,
	}, nil
}

// upstreamError prefers the API's own error.message.
func upstreamError(status int, payload []byte) error {
	if msg := gjson.GetBytes(payload, "error.message").String(); msg != "" {
		return fmt.Errorf("%w: upstream status %d: %s", ErrGenerate, status, msg)
	}
	return fmt.Errorf("%w: upstream status %d: %s", ErrGenerate, status, truncate(string(payload), 200))
}
