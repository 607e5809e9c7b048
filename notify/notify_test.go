package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/100PercentTuna/the-undertow-sub000/config"
)

func webhookConfig(url string) config.NotifyConfig {
	return config.NotifyConfig{
		WebhookURL:    url,
		Timeout:       2 * time.Second,
		RatePerSecond: 100,
		Burst:         10,
	}
}

func TestLogNotifier_NeverFails(t *testing.T) {
	t.Parallel()

	n := NewLogNotifier(nil)
	err := n.Notify(context.Background(), EventPipelineCompleted, map[string]any{"run_id": "r-1"})
	assert.NoError(t, err)
}

func TestWebhookNotifier_PostsEnvelope(t *testing.T) {
	t.Parallel()

	var (
		mu       sync.Mutex
		received envelope
		method   string
		ctype    string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		method = r.Method
		ctype = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n, err := NewWebhookNotifier(webhookConfig(srv.URL), nil)
	require.NoError(t, err)

	payload := map[string]any{"escalation_id": "esc-42", "priority": "high"}
	require.NoError(t, n.Notify(context.Background(), EventEscalationCreated, payload))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, "application/json", ctype)
	assert.Equal(t, EventEscalationCreated, received.Event)
	assert.False(t, received.Timestamp.IsZero())

	got, ok := received.Payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "esc-42", got["escalation_id"])
}

func TestWebhookNotifier_ErrorOnBadStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "downstream unavailable", http.StatusBadGateway)
	}))
	defer srv.Close()

	n, err := NewWebhookNotifier(webhookConfig(srv.URL), nil)
	require.NoError(t, err)

	err = n.Notify(context.Background(), EventBudgetAlert, map[string]any{"spent": 41.0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestWebhookNotifier_RequiresURL(t *testing.T) {
	t.Parallel()

	_, err := NewWebhookNotifier(config.NotifyConfig{}, nil)
	assert.Error(t, err)
}

func TestWebhookNotifier_RejectsRelativeURL(t *testing.T) {
	t.Parallel()

	_, err := NewWebhookNotifier(config.NotifyConfig{WebhookURL: "/hooks/review"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid webhook URL")
}

func TestWebhookNotifier_CancelledContext(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n, err := NewWebhookNotifier(webhookConfig(srv.URL), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, n.Notify(ctx, EventEscalationResolved, nil))
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (r *recordingNotifier) Notify(_ context.Context, event Event, _ any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}

func TestMulti_AttemptsAllSinks(t *testing.T) {
	t.Parallel()

	failing := &recordingNotifier{err: errors.New("sink down")}
	healthy := &recordingNotifier{}
	multi := NewMulti(failing, nil, healthy)

	err := multi.Notify(context.Background(), EventPipelineCompleted, nil)

	require.Error(t, err)
	assert.Equal(t, []Event{EventPipelineCompleted}, healthy.events, "later sinks still run after a failure")
	assert.Equal(t, []Event{EventPipelineCompleted}, failing.events)
}

func TestMulti_NoSinksIsNoop(t *testing.T) {
	t.Parallel()

	multi := NewMulti()
	assert.NoError(t, multi.Notify(context.Background(), EventBudgetAlert, nil))
}
