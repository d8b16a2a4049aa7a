package forwarder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/sproutlog/sproutlog/internal/models"
)

const defaultTimeout = 15 * time.Second

// Client delivers extracted events to the downstream event service.
// Delivery is best-effort from the pipeline's point of view: failures
// are retried by the queue worker, never surfaced to the parent.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates an event forwarding client
func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger: logger,
	}
}

// ForwardPayload is the wire format the event service accepts
type ForwardPayload struct {
	ProfileID   int64                   `json:"profileId"`
	UserMessage string                  `json:"userMessage"`
	AIMessage   string                  `json:"aiMessage"`
	Events      []models.ExtractedEvent `json:"events"`
}

type forwardAck struct {
	Message string `json:"message"`
}

// Forward posts the events for one pipeline run downstream
func (c *Client) Forward(ctx context.Context, payload ForwardPayload) error {
	if len(payload.Events) == 0 {
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal forward payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/events", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to forward events: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("event service returned status %d", resp.StatusCode)
	}

	var ack forwardAck
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		// A 2xx without a parsable ack still counts as delivered
		c.logger.Debug("event_forward_ack_unparsable", zap.Error(err))
		return nil
	}

	c.logger.Info("events_forwarded",
		zap.Int64("profile_id", payload.ProfileID),
		zap.Int("event_count", len(payload.Events)),
		zap.String("ack", ack.Message),
	)
	return nil
}
