package alert

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAlert() Alert {
	return Alert{
		Type:    AlertTypeRunFailed,
		Network: "mainnet",
		Title:   "poolsync run failed",
		Message: "decode paused of pool B at position 5: call failed",
		Fields: map[string]string{
			"class": "decode",
			"block": "20000000",
		},
	}
}

func TestMulti_SendsToAllChannels(t *testing.T) {
	var slackReceived, webhookReceived atomic.Int32

	slackSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slackReceived.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer slackSrv.Close()

	webhookSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		webhookReceived.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer webhookSrv.Close()

	multi := NewMulti(testLogger(), NewSlackAlerter(slackSrv.URL), NewWebhookAlerter(webhookSrv.URL))
	assert.Equal(t, 2, multi.Len())

	require.NoError(t, multi.Send(context.Background(), testAlert()))
	assert.Equal(t, int32(1), slackReceived.Load())
	assert.Equal(t, int32(1), webhookReceived.Load())
}

func TestMulti_PartialFailure(t *testing.T) {
	var webhookReceived atomic.Int32

	slackSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer slackSrv.Close()

	webhookSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		webhookReceived.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer webhookSrv.Close()

	multi := NewMulti(testLogger(), NewSlackAlerter(slackSrv.URL), NewWebhookAlerter(webhookSrv.URL))

	err := multi.Send(context.Background(), testAlert())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slack returned status 500")
	assert.Equal(t, int32(1), webhookReceived.Load(), "webhook still receives the alert")
}

func TestMulti_NoChannels(t *testing.T) {
	multi := NewMulti(nil)
	assert.Zero(t, multi.Len())
	assert.NoError(t, multi.Send(context.Background(), testAlert()))
}

func TestSlackAlerter_PayloadFormat(t *testing.T) {
	var payload map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, NewSlackAlerter(srv.URL).Send(context.Background(), testAlert()))

	want := ":rotating_light: *[RUN_FAILED]* mainnet: poolsync run failed\n" +
		"decode paused of pool B at position 5: call failed\n" +
		"- *block*: 20000000\n" +
		"- *class*: decode\n"
	assert.Equal(t, want, payload["text"])
}

func TestWebhookAlerter_PayloadFormat(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	webhook := NewWebhookAlerter(srv.URL)
	webhook.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("x", 3600)) }
	require.NoError(t, webhook.Send(context.Background(), testAlert()))

	assert.Equal(t, "RUN_FAILED", payload["type"])
	assert.Equal(t, "mainnet", payload["network"])
	assert.Equal(t, "poolsync run failed", payload["title"])
	assert.Equal(t, "2026-01-02T02:04:05Z", payload["time"])
	assert.Equal(t, map[string]any{"class": "decode", "block": "20000000"}, payload["fields"])
}

func TestWebhookAlerter_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	err := NewWebhookAlerter(url).Send(context.Background(), testAlert())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "send webhook alert")
}
