package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ViviZhou160916/medicine-inventory/internal/util"

	"go.uber.org/zap"
)

// ErrNotConfigured is returned when the gateway has no delivery key set.
var ErrNotConfigured = errors.New("notification gateway not configured")

// Gateway delivers a pre-formatted message to a notification channel. It
// never inspects domain objects; callers hand it plain title and body text.
type Gateway interface {
	Send(ctx context.Context, title, body string) error
}

const defaultServerChanBaseURL = "https://sctapi.ftqq.com"

// ServerChanGateway sends notifications through the ServerChan push channel
type ServerChanGateway struct {
	key     string
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewServerChanGateway creates a ServerChan gateway. An empty key leaves the
// gateway in place but every Send fails with ErrNotConfigured.
func NewServerChanGateway(key string, timeout time.Duration) *ServerChanGateway {
	return &ServerChanGateway{
		key:     key,
		baseURL: defaultServerChanBaseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  util.GetLogger(),
	}
}

// WithBaseURL overrides the API endpoint, used in tests
func (g *ServerChanGateway) WithBaseURL(baseURL string) *ServerChanGateway {
	g.baseURL = baseURL
	return g
}

type serverChanRequest struct {
	Title string `json:"title"`
	Desp  string `json:"desp"`
}

type serverChanResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Send delivers a message via ServerChan
func (g *ServerChanGateway) Send(ctx context.Context, title, body string) error {
	if g.key == "" {
		g.logger.Info("ServerChan key not configured, skipping notification")
		return ErrNotConfigured
	}

	start := time.Now()
	defer func() {
		util.NotificationSendLatency.Observe(time.Since(start).Seconds())
	}()

	payload, err := json.Marshal(serverChanRequest{Title: title, Desp: body})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	url := fmt.Sprintf("%s/%s.send", g.baseURL, g.key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		util.NotificationsSentTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("notification request failed: %w", err)
	}
	defer resp.Body.Close()

	var result serverChanResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		util.NotificationsSentTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to decode notification response: %w", err)
	}

	if result.Code != 0 {
		util.NotificationsSentTotal.WithLabelValues("rejected").Inc()
		return fmt.Errorf("notification rejected: %s", result.Message)
	}

	util.NotificationsSentTotal.WithLabelValues("success").Inc()
	g.logger.Info("Notification delivered", zap.String("title", title))
	return nil
}
