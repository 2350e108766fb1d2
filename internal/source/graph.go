package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/nugget/alert-sentinel/internal/httpkit"
)

// GraphSource is the default MessageSource, grounded on a Microsoft
// Graph-style "team/channel messages" API reachable over OAuth2 client
// credentials. GetMessages never returns an error for a transport or
// decode failure: it logs and returns an empty slice, per the
// UpstreamFetchFailed recovery policy the poller depends on.
type GraphSource struct {
	baseURL string

	// tokenClient is an *http.Client built by clientcredentials.Config
	// that transparently fetches and caches the bearer token, reusing
	// it until shortly before expiry and renewing it on demand.
	tokenClient *http.Client
	logger      *slog.Logger
}

// NewGraphSource builds a GraphSource. baseURL defaults to the public
// Microsoft Graph v1.0 endpoint when empty, which lets tests point it
// at an httptest.Server instead.
func NewGraphSource(baseURL, tenantID, clientID, clientSecret string, logger *slog.Logger) *GraphSource {
	tokenURL := fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", tenantID)
	return newGraphSource(baseURL, tokenURL, clientID, clientSecret, logger)
}

// newGraphSource builds a GraphSource against an explicit token
// endpoint, letting tests point both the message and token endpoints
// at the same httptest.Server.
func newGraphSource(baseURL, tokenURL, clientID, clientSecret string, logger *slog.Logger) *GraphSource {
	if baseURL == "" {
		baseURL = "https://graph.microsoft.com/v1.0"
	}
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := httpkit.NewClient(httpkit.WithTimeout(10 * time.Second))

	tokenCfg := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		Scopes:       []string{"https://graph.microsoft.com/.default"},
	}
	// Route the token endpoint's own requests through the same
	// httpkit client (timeouts, User-Agent) the message fetch uses.
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)

	return &GraphSource{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		tokenClient: tokenCfg.Client(tokenCtx),
		logger:      logger,
	}
}

// GetMessages fetches up to top messages from a channel, filtering
// client-side by since (lexical comparison on lastModifiedDateTime,
// per the external-interface contract) when since is non-zero.
func (g *GraphSource) GetMessages(ctx context.Context, teamID, channelID string, since time.Time, top int) ([]Message, error) {
	if top <= 0 {
		top = 10
	}

	endpoint := fmt.Sprintf("%s/teams/%s/channels/%s/messages?$top=%s",
		g.baseURL, url.PathEscape(teamID), url.PathEscape(channelID), strconv.Itoa(top))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		g.logger.Error("graph: build request failed", "error", err)
		return nil, nil
	}

	// tokenClient's oauth2.Transport acquires and caches the
	// client-credentials bearer token and injects the Authorization
	// header; renewal on near-expiry is handled internally.
	resp, err := g.tokenClient.Do(req)
	if err != nil {
		g.logger.Error("graph: request failed", "team_id", teamID, "channel_id", channelID, "error", err)
		return nil, nil
	}
	defer httpkit.DrainAndClose(resp.Body, 1<<20)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		g.logger.Error("graph: non-2xx response",
			"team_id", teamID, "channel_id", channelID, "status", resp.StatusCode,
			"body", httpkit.ReadErrorBody(resp.Body, 4096))
		return nil, nil
	}

	var page struct {
		Value []Message `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		g.logger.Error("graph: decode response failed", "error", err)
		return nil, nil
	}

	if since.IsZero() {
		return page.Value, nil
	}

	sinceStr := since.UTC().Format(time.RFC3339)
	filtered := make([]Message, 0, len(page.Value))
	for _, m := range page.Value {
		if m.LastModifiedDateTime == "" || m.LastModifiedDateTime >= sinceStr {
			filtered = append(filtered, m)
		}
	}
	return filtered, nil
}
