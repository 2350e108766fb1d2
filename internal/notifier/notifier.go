// Package notifier defines the outbound webhook port the core depends
// on and a concrete HTTPS implementation of it.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nugget/alert-sentinel/internal/events"
	"github.com/nugget/alert-sentinel/internal/httpkit"
)

// requestDeadline is the fixed 5-second per-request timeout the
// outbound notifier contract mandates.
const requestDeadline = 5 * time.Second

// Notifier is the abstract two-channel outbound port. Implementations
// may retry internally or not; callers only log the returned success
// boolean — delivery is at-most-once, fire-and-forget.
type Notifier interface {
	SendToForward(ctx context.Context, card map[string]any) bool
	SendToIncident(ctx context.Context, card map[string]any) bool
}

// WebhookNotifier posts cards to two configured Teams-style incoming
// webhook URLs over HTTPS.
type WebhookNotifier struct {
	forwardURL  string
	incidentURL string
	client      *http.Client
	bus         *events.Bus
	logger      *slog.Logger
}

// NewWebhookNotifier builds a WebhookNotifier. tlsInsecureSkipVerify
// mirrors the external contract's "TLS verification is a configurable
// boolean (default disabled for internal environments)."
func NewWebhookNotifier(forwardURL, incidentURL string, tlsInsecureSkipVerify bool, logger *slog.Logger) *WebhookNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	opts := []httpkit.ClientOption{httpkit.WithTimeout(requestDeadline)}
	if tlsInsecureSkipVerify {
		opts = append(opts, httpkit.WithTLSInsecureSkipVerify())
	}
	return &WebhookNotifier{
		forwardURL:  forwardURL,
		incidentURL: incidentURL,
		client:      httpkit.NewClient(opts...),
		logger:      logger,
	}
}

// SetEventBus wires the operational event bus. When unset, post
// publishes nothing (Bus itself is also nil-safe).
func (n *WebhookNotifier) SetEventBus(b *events.Bus) {
	n.bus = b
}

// SendToForward posts card to the forward channel webhook.
func (n *WebhookNotifier) SendToForward(ctx context.Context, card map[string]any) bool {
	return n.post(ctx, "forward", n.forwardURL, card)
}

// SendToIncident posts card to the incident channel webhook.
func (n *WebhookNotifier) SendToIncident(ctx context.Context, card map[string]any) bool {
	return n.post(ctx, "incident", n.incidentURL, card)
}

func (n *WebhookNotifier) post(ctx context.Context, channel, webhookURL string, card map[string]any) bool {
	if webhookURL == "" {
		n.logger.Warn("notifier: no webhook configured, dropping", "channel", channel)
		return false
	}

	body, err := json.Marshal(card)
	if err != nil {
		n.logger.Error("notifier: marshal card failed", "channel", channel, "error", err)
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		n.logger.Error("notifier: build request failed", "channel", channel, "error", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Error("notifier: post failed", "channel", channel, "error", err)
		n.publishPostFailed(channel, 0)
		return false
	}
	defer httpkit.DrainAndClose(resp.Body, 4096)

	success := resp.StatusCode >= 200 && resp.StatusCode < 300
	if !success {
		n.logger.Error("notifier: non-2xx response",
			"channel", channel, "status", resp.StatusCode,
			"body", httpkit.ReadErrorBody(resp.Body, 2048))
		n.publishPostFailed(channel, resp.StatusCode)
	}
	return success
}

// publishPostFailed emits KindDownstreamPostFailed, attributing the
// event to the source that owns the failing channel.
func (n *WebhookNotifier) publishPostFailed(channel string, status int) {
	source := events.SourceFeed
	if channel == "incident" {
		source = events.SourceIncident
	}
	n.bus.Publish(events.Event{
		Timestamp: time.Now().UTC(),
		Source:    source,
		Kind:      events.KindDownstreamPostFailed,
		Data:      map[string]any{"channel": channel, "status": status},
	})
}

// NoopNotifier is used in development mode when webhook configuration
// is missing: it logs and always reports failure, per the
// ConfigurationMissing degrade policy.
type NoopNotifier struct {
	Logger *slog.Logger
}

func (n NoopNotifier) SendToForward(_ context.Context, card map[string]any) bool {
	n.log("forward", card)
	return false
}

func (n NoopNotifier) SendToIncident(_ context.Context, card map[string]any) bool {
	n.log("incident", card)
	return false
}

func (n NoopNotifier) log(channel string, card map[string]any) {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn(fmt.Sprintf("notifier: no-op notifier dropped %s card (no webhook configured)", channel),
		"title", card["title"])
}
