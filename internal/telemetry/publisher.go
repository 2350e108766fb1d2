// Package telemetry publishes a small JSON payload to an MQTT broker
// each time the correlation engine emits an incident. It is entirely
// optional: callers only construct a Publisher when a broker URL is
// configured, and the incident service tolerates a nil Publisher.
package telemetry

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
)

// DefaultTopic is used when Config.Topic is empty.
const DefaultTopic = "alert-sentinel/incidents"

// Config holds the MQTT connection parameters.
type Config struct {
	BrokerURL string
	Username  string
	Password  string
	Topic     string
	ClientID  string
}

// Incident is the payload published for each triggered incident.
type Incident struct {
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher manages a single autopaho connection and publishes
// Incident payloads on demand.
type Publisher struct {
	cfg    Config
	logger *slog.Logger
	cm     *autopaho.ConnectionManager
}

// New creates a Publisher. Call Start before Publish.
func New(cfg Config, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "alert-sentinel"
	}
	return &Publisher{cfg: cfg, logger: logger}
}

// Start connects to the broker. It returns once the connection is
// established or the 30-second connect deadline elapses; autopaho
// keeps retrying in the background either way.
func (p *Publisher) Start(ctx context.Context) error {
	brokerURL, err := url.Parse(p.cfg.BrokerURL)
	if err != nil {
		return fmt.Errorf("parse mqtt broker url: %w", err)
	}

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:      []*url.URL{brokerURL},
		KeepAlive:       30,
		ConnectUsername: p.cfg.Username,
		ConnectPassword: []byte(p.cfg.Password),
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			p.logger.Info("telemetry: connected", "broker", p.cfg.BrokerURL)
		},
		OnConnectError: func(err error) {
			p.logger.Warn("telemetry: connection error", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: p.cfg.ClientID,
		},
	}

	if brokerURL.Scheme == "mqtts" || brokerURL.Scheme == "ssl" {
		pahoCfg.TlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return fmt.Errorf("telemetry: connect: %w", err)
	}
	p.cm = cm

	connCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := cm.AwaitConnection(connCtx); err != nil {
		p.logger.Warn("telemetry: initial connection timed out, retrying in background", "error", err)
	}
	return nil
}

// Stop disconnects from the broker. Safe to call on a Publisher that
// was never started.
func (p *Publisher) Stop(ctx context.Context) error {
	if p.cm == nil {
		return nil
	}
	return p.cm.Disconnect(ctx)
}

// Publish sends one Incident payload. Failures are returned to the
// caller to log; telemetry delivery is best-effort and never blocks
// the incident pipeline's own decision-making.
func (p *Publisher) Publish(ctx context.Context, kind string, ts time.Time) error {
	if p.cm == nil {
		return fmt.Errorf("telemetry: publisher not started")
	}

	payload, err := json.Marshal(Incident{Kind: kind, Timestamp: ts})
	if err != nil {
		return fmt.Errorf("telemetry: marshal incident: %w", err)
	}

	_, err = p.cm.Publish(ctx, &paho.Publish{
		Topic:   p.cfg.Topic,
		Payload: payload,
		QoS:     0,
	})
	return err
}
