package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const defaultTimeout = 10 * time.Second

// Client talks to the external memory service over HTTP. Memories are
// keyed by user; the profile travels along for operational context.
// Memory is an augmentation layer: callers that can proceed without
// memories should use SearchBestEffort.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a memory service client
func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger: logger,
	}
}

type addRequest struct {
	UserID    int64           `json:"userId"`
	ProfileID int64           `json:"profileId,omitempty"`
	Text      string          `json:"text"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

type searchRequest struct {
	UserID int64  `json:"userId"`
	Query  string `json:"query"`
	Limit  int    `json:"limit,omitempty"`
}

// ackEnvelope is the memory service's acknowledgement body
type ackEnvelope struct {
	Message string `json:"message"`
}

// resultsEnvelope tolerates extra fields per memory entry; only the
// memory text is consumed.
type resultsEnvelope struct {
	Results []struct {
		Memory string `json:"memory"`
	} `json:"results"`
}

// Add stores a memory for a user and returns the service's ack message.
// metadata is passed through opaquely; nil means no metadata.
func (c *Client) Add(ctx context.Context, userID, profileID int64, text string, metadata json.RawMessage) (string, error) {
	payload := addRequest{
		UserID:    userID,
		ProfileID: profileID,
		Text:      text,
		Metadata:  metadata,
	}

	var ack ackEnvelope
	if err := c.post(ctx, "/memories", payload, &ack); err != nil {
		return "", fmt.Errorf("failed to add memory: %w", err)
	}
	return ack.Message, nil
}

// Search retrieves memories relevant to a query for a user
func (c *Client) Search(ctx context.Context, userID int64, query string, limit int) ([]string, error) {
	payload := searchRequest{
		UserID: userID,
		Query:  query,
		Limit:  limit,
	}

	var envelope resultsEnvelope
	if err := c.post(ctx, "/memories/search", payload, &envelope); err != nil {
		return nil, fmt.Errorf("failed to search memories: %w", err)
	}

	return envelope.memories(), nil
}

// GetAll retrieves every memory stored for a user
func (c *Client) GetAll(ctx context.Context, userID int64) ([]string, error) {
	url := fmt.Sprintf("%s/memories?userId=%d", c.baseURL, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var envelope resultsEnvelope
	if err := c.do(req, &envelope); err != nil {
		return nil, fmt.Errorf("failed to get memories: %w", err)
	}

	return envelope.memories(), nil
}

// SearchBestEffort searches memories but never fails: any error is
// logged and an empty result returned so the caller can continue without
// augmentation.
func (c *Client) SearchBestEffort(ctx context.Context, userID int64, query string, limit int) []string {
	memories, err := c.Search(ctx, userID, query, limit)
	if err != nil {
		c.logger.Warn("memory_search_failed",
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
		return nil
	}
	return memories
}

func (e *resultsEnvelope) memories() []string {
	memories := make([]string, 0, len(e.Results))
	for _, r := range e.Results {
		if r.Memory != "" {
			memories = append(memories, r.Memory)
		}
	}
	return memories
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("memory service returned status %d", resp.StatusCode)
	}

	if out == nil {
		// Drain so the connection can be reused
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	// An empty 2xx body is a valid ack
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
