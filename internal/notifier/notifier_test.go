package notifier

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWebhookNotifier_SendToForward_Success(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, "", false, nil)
	_ = gotBody
	if !n.SendToForward(context.Background(), map[string]any{"title": "x"}) {
		t.Error("expected success on 2xx response")
	}
}

func TestWebhookNotifier_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewWebhookNotifier("", srv.URL, false, nil)
	if n.SendToIncident(context.Background(), map[string]any{}) {
		t.Error("expected failure on 5xx response")
	}
}

func TestWebhookNotifier_NoURLConfigured(t *testing.T) {
	n := NewWebhookNotifier("", "", false, nil)
	if n.SendToForward(context.Background(), map[string]any{}) {
		t.Error("expected failure when webhook URL unset")
	}
}

func TestNoopNotifier_AlwaysFails(t *testing.T) {
	n := NoopNotifier{}
	if n.SendToForward(context.Background(), map[string]any{"title": "t"}) {
		t.Error("expected NoopNotifier to report failure")
	}
	if n.SendToIncident(context.Background(), map[string]any{"title": "t"}) {
		t.Error("expected NoopNotifier to report failure")
	}
}
