// Package config loads alert-sentinel configuration from the process
// environment, optionally seeded from a .env file in the working
// directory.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvProduction and EnvDevelopment are the recognized values for ENV.
const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

// Config holds all alert-sentinel configuration.
type Config struct {
	Env string

	TeamID         string
	Feed1ChannelID string
	Feed2ChannelID string

	GraphBaseURL string
	TenantID     string
	ClientID     string
	ClientSecret string

	ForwardWebhookURL  string
	IncidentWebhookURL string
	WebhookTLSInsecure bool

	PollInterval time.Duration
	FetchTop     int

	AdminAddress string
	AdminPort    int

	MQTTBrokerURL string
	MQTTUsername  string
	MQTTPassword  string
	MQTTTopic     string

	LogLevel string
}

// requiredVar names the environment variable backing a required field,
// for use in Validate's missing-variable report.
type requiredVar struct {
	name  string
	value string
}

// Load reads configuration from the environment. If a .env file exists
// in the working directory, its values are loaded first (without
// overriding variables already set in the environment).
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}

	cfg := Config{
		Env:            getenv("ENV", EnvDevelopment),
		TeamID:         os.Getenv("TEAMS_TEAM_ID"),
		Feed1ChannelID: os.Getenv("TEAMS_FEED1_CHANNEL_ID"),
		Feed2ChannelID: os.Getenv("TEAMS_FEED2_CHANNEL_ID"),

		GraphBaseURL: getenv("MICROSOFT_GRAPH_BASE_URL", "https://graph.microsoft.com/v1.0"),
		TenantID:     os.Getenv("MICROSOFT_TENANT_ID"),
		ClientID:     os.Getenv("MICROSOFT_APP_ID"),
		ClientSecret: os.Getenv("MICROSOFT_APP_PASSWORD"),

		ForwardWebhookURL:  os.Getenv("TEAMS_FORWARD_WEBHOOK_URL"),
		IncidentWebhookURL: os.Getenv("TEAMS_INCIDENT_WEBHOOK_URL"),
		WebhookTLSInsecure: getenvBool("WEBHOOK_TLS_INSECURE_SKIP_VERIFY", false),

		PollInterval: getenvDuration("POLL_INTERVAL", 10*time.Second),
		FetchTop:     getenvInt("FETCH_TOP", 10),

		AdminAddress: getenv("ADMIN_ADDRESS", "127.0.0.1"),
		AdminPort:    getenvInt("ADMIN_PORT", 8090),

		MQTTBrokerURL: os.Getenv("MQTT_BROKER_URL"),
		MQTTUsername:  os.Getenv("MQTT_USERNAME"),
		MQTTPassword:  os.Getenv("MQTT_PASSWORD"),
		MQTTTopic:     getenv("MQTT_TOPIC", "alert-sentinel/incidents"),

		LogLevel: getenv("LOG_LEVEL", "info"),
	}

	return cfg, nil
}

// Validate checks that every variable required for the configured
// environment is present, returning a single error that enumerates ALL
// missing variables (not just the first) so an operator can fix a
// misconfigured deployment in one pass.
//
// In development, missing upstream/webhook credentials are tolerated
// rather than failing startup. The bootstrap falls back to the no-op
// notifier only when both webhook URLs are empty; the poller still runs
// against the message source with whatever credentials are set.
func (c Config) Validate() error {
	required := []requiredVar{
		{"TEAMS_TEAM_ID", c.TeamID},
		{"TEAMS_FEED1_CHANNEL_ID", c.Feed1ChannelID},
		{"TEAMS_FEED2_CHANNEL_ID", c.Feed2ChannelID},
		{"MICROSOFT_TENANT_ID", c.TenantID},
		{"MICROSOFT_APP_ID", c.ClientID},
		{"MICROSOFT_APP_PASSWORD", c.ClientSecret},
		{"TEAMS_FORWARD_WEBHOOK_URL", c.ForwardWebhookURL},
		{"TEAMS_INCIDENT_WEBHOOK_URL", c.IncidentWebhookURL},
	}

	if c.Env != EnvProduction {
		return nil
	}

	var missing []string
	for _, v := range required {
		if strings.TrimSpace(v.value) == "" {
			missing = append(missing, v.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

// TelemetryEnabled reports whether an MQTT broker was configured.
func (c Config) TelemetryEnabled() bool {
	return c.MQTTBrokerURL != ""
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
