// Package notify delivers review-desk events to the newsroom: escalation
// packages opened or resolved, pipeline runs finished, budget alerts.
// Delivery is best-effort; a failed notification never fails the operation
// that triggered it.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/100PercentTuna/the-undertow-sub000/config"
)

// Event names a notification kind.
type Event string

const (
	EventEscalationCreated  Event = "escalation.created"
	EventEscalationResolved Event = "escalation.resolved"
	EventPipelineCompleted  Event = "pipeline.completed"
	EventBudgetAlert        Event = "budget.alert"
)

// Notifier delivers one event with an arbitrary JSON-serializable payload.
type Notifier interface {
	Notify(ctx context.Context, event Event, payload any) error
}

// LogNotifier writes events to the structured log. It is the fallback sink
// when no webhook is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger.With(zap.String("component", "notify"))}
}

// Notify logs the event at info level.
func (n *LogNotifier) Notify(_ context.Context, event Event, payload any) error {
	n.logger.Info("notification",
		zap.String("event", string(event)),
		zap.Any("payload", payload),
	)
	return nil
}

// envelope is the webhook wire format.
type envelope struct {
	Event     Event     `json:"event"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// WebhookNotifier POSTs event envelopes to a configured URL. Outbound calls
// are rate limited so a burst of escalations cannot flood the receiver.
type WebhookNotifier struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewWebhookNotifier creates a webhook notifier from config. It returns an
// error when the webhook URL is empty or not an absolute URL.
func NewWebhookNotifier(cfg config.NotifyConfig, logger *zap.Logger) (*WebhookNotifier, error) {
	if cfg.WebhookURL == "" {
		return nil, errors.New("notify: webhook URL is required")
	}
	if u, err := url.Parse(cfg.WebhookURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("notify: invalid webhook URL %q", cfg.WebhookURL)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultNotifyConfig().Timeout
	}
	rps := cfg.RatePerSecond
	if rps <= 0 {
		rps = config.DefaultNotifyConfig().RatePerSecond
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = config.DefaultNotifyConfig().Burst
	}
	return &WebhookNotifier{
		url:     cfg.WebhookURL,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		logger:  logger.With(zap.String("component", "notify")),
	}, nil
}

// Notify POSTs the event envelope as JSON. It blocks on the rate limiter
// until a slot is available or the context is done.
func (n *WebhookNotifier) Notify(ctx context.Context, event Event, payload any) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("notify: rate limit wait: %w", err)
	}

	body, err := json.Marshal(envelope{Event: event, Timestamp: time.Now().UTC(), Payload: payload})
	if err != nil {
		return fmt.Errorf("notify: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: post %s: %w", event, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("notify: webhook returned %d for %s", resp.StatusCode, event)
	}

	n.logger.Debug("notification delivered",
		zap.String("event", string(event)),
		zap.Int("status", resp.StatusCode),
	)
	return nil
}

// Multi fans one event out to several sinks. Every sink is attempted even
// when earlier ones fail; the joined error reports all failures.
type Multi struct {
	sinks []Notifier
}

// NewMulti combines notifiers into one. Nil entries are dropped.
func NewMulti(sinks ...Notifier) *Multi {
	kept := make([]Notifier, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &Multi{sinks: kept}
}

// Notify delivers the event to every sink.
func (m *Multi) Notify(ctx context.Context, event Event, payload any) error {
	var errs []error
	for _, sink := range m.sinks {
		if err := sink.Notify(ctx, event, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
