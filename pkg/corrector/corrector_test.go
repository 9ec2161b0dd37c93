package corrector

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type staticNotifier struct {
	calls int
	err   error
}

func (s *staticNotifier) Notify(context.Context, string, map[string]interface{}) error {
	s.calls++
	return s.err
}

func TestDispatcherDeliversToAllTransports(t *testing.T) {
	first := &staticNotifier{}
	second := &staticNotifier{}

	dispatcher := NewDispatcher(zerolog.Nop(), first, nil, second)

	err := dispatcher.Notify(context.Background(), EventExamCorrection, map[string]interface{}{"exam_id": 1})
	require.NoError(t, err)
	require.Equal(t, 1, first.calls)
	require.Equal(t, 1, second.calls)
}

func TestDispatcherSucceedsWithOneWorkingTransport(t *testing.T) {
	broken := &staticNotifier{err: errors.New("nats down")}
	working := &staticNotifier{}

	dispatcher := NewDispatcher(zerolog.Nop(), broken, working)

	require.NoError(t, dispatcher.Notify(context.Background(), EventExamCorrection, nil))
}

func TestDispatcherFailsWhenAllTransportsFail(t *testing.T) {
	first := &staticNotifier{err: errors.New("down")}
	second := &staticNotifier{err: errors.New("also down")}

	dispatcher := NewDispatcher(zerolog.Nop(), first, second)

	require.Error(t, dispatcher.Notify(context.Background(), EventExamCorrection, nil))
}

func TestDispatcherWithoutTransportsIsNoOp(t *testing.T) {
	dispatcher := NewDispatcher(zerolog.Nop())

	require.NoError(t, dispatcher.Notify(context.Background(), EventExamCorrection, nil))
}

func TestWebhookClientPostsEnvelope(t *testing.T) {
	var received webhookEnvelope
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := NewWebhookClient(WebhookConfig{URL: server.URL, Timeout: time.Second, Logger: zerolog.Nop()})
	require.NoError(t, err)

	payload := map[string]interface{}{"exam_attempt_id": float64(12), "score": 15.0}
	require.NoError(t, client.Notify(context.Background(), EventExamCorrection, payload))

	require.NotEmpty(t, received.EventID)
	require.Equal(t, EventExamCorrection, received.EventType)
	require.Equal(t, payload, received.Payload)
}

func TestWebhookClientRejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client, err := NewWebhookClient(WebhookConfig{URL: server.URL, Timeout: time.Second, Logger: zerolog.Nop()})
	require.NoError(t, err)

	require.Error(t, client.Notify(context.Background(), EventExamCorrection, nil))
}

func TestWebhookClientRequiresURL(t *testing.T) {
	_, err := NewWebhookClient(WebhookConfig{})
	require.Error(t, err)
}
