// Package push wraps the push-notification provider's REST API. Every call
// is a logged no-op while the provider is not configured, so provider
// outages never cascade into the scheduling pipeline.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const requestTimeout = 10 * time.Second

// Config identifies the provider app and credentials. Leaving AppID or
// APIKey empty disables dispatch entirely.
type Config struct {
	BaseURL string
	AppID   string
	APIKey  string
}

// Client talks to the provider. Sends always target a single user by their
// stable external id, never a broadcast segment.
type Client struct {
	cfg       Config
	http      *http.Client
	cb        *gobreaker.CircuitBreaker
	log       *zap.Logger
	available bool
}

// NewClient builds a provider client. Calls fail fast through a circuit
// breaker once the provider starts rejecting requests.
func NewClient(cfg Config, log *zap.Logger) *Client {
	available := cfg.AppID != "" && cfg.APIKey != ""
	if !available {
		log.Info("push provider not configured, dispatch disabled")
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: requestTimeout},
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "push-provider",
			MaxRequests: 3,
			Interval:    time.Minute,
			Timeout:     time.Minute,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				ratio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && ratio >= 0.6
			},
		}),
		log:       log,
		available: available,
	}
}

// Available reports whether the provider is configured.
func (c *Client) Available() bool { return c.available }

type notificationRequest struct {
	AppID              string            `json:"app_id"`
	IncludeExternalIDs []string          `json:"include_external_user_ids"`
	Contents           map[string]string `json:"contents"`
	Data               map[string]string `json:"data,omitempty"`
	SendAfter          string            `json:"send_after,omitempty"`
}

type notificationResponse struct {
	ID string `json:"id"`
}

// SendNow delivers a message to one user immediately. A nil return with the
// provider unconfigured is a deliberate no-op, not a failure.
func (c *Client) SendNow(ctx context.Context, userID, message string, data map[string]string) error {
	return c.create(ctx, notificationRequest{
		IncludeExternalIDs: []string{userID},
		Contents:           map[string]string{"en": message},
		Data:               data,
	})
}

// ScheduleAt asks the provider to deliver at a future instant. Best-effort
// backup path; the store-side poller remains the source of truth.
func (c *Client) ScheduleAt(ctx context.Context, userID, message string, data map[string]string, at time.Time) error {
	return c.create(ctx, notificationRequest{
		IncludeExternalIDs: []string{userID},
		Contents:           map[string]string{"en": message},
		Data:               data,
		SendAfter:          at.UTC().Format(time.RFC3339),
	})
}

func (c *Client) create(ctx context.Context, req notificationRequest) error {
	if !c.available {
		c.log.Debug("push disabled, skipping send")
		return nil
	}
	req.AppID = c.cfg.AppID

	res, err := c.cb.Execute(func() (interface{}, error) {
		return c.post(ctx, "/notifications", req)
	})
	if err != nil {
		return fmt.Errorf("push provider: %w", err)
	}
	c.log.Debug("push accepted", zap.String("provider_id", res.(string)))
	return nil
}

func (c *Client) post(ctx context.Context, path string, body any) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Basic "+c.cfg.APIKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, raw)
	}
	var out notificationResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		// Accepted but unparseable body; delivery still succeeded.
		return "", nil
	}
	return out.ID, nil
}

// SetUserProperties tags the user's provider profile for segmentation.
// Fire-and-forget: failures are logged and swallowed.
func (c *Client) SetUserProperties(ctx context.Context, userID string, props map[string]string) {
	if !c.available {
		return
	}
	payload, err := json.Marshal(map[string]any{"tags": props})
	if err != nil {
		c.log.Warn("marshal user properties failed", zap.Error(err))
		return
	}
	url := fmt.Sprintf("%s/apps/%s/users/%s", c.cfg.BaseURL, c.cfg.AppID, userID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(payload))
	if err != nil {
		c.log.Warn("build user properties request failed", zap.Error(err))
		return
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Basic "+c.cfg.APIKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.log.Warn("set user properties failed", zap.Error(err))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Warn("set user properties rejected", zap.Int("status", resp.StatusCode))
	}
}
