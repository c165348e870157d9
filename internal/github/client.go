// Package github proxies the public repository listing shown on developer profiles.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Togather-Foundation/devconnector/internal/config"
	"github.com/Togather-Foundation/devconnector/internal/telemetry"
)

// ErrNotFound covers every non-200 upstream answer; callers only need to
// know there is nothing to show.
var ErrNotFound = errors.New("github profile not found")

const (
	repoCount = 5
	repoSort  = "created"
	repoOrder = "desc"
	userAgent = "devconnector"

	// maxBodyBytes caps how much of an upstream response is read.
	maxBodyBytes = 1 << 20
)

// Client fetches repositories from the GitHub REST API with the app's OAuth
// credentials.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client
}

func NewClient(cfg config.GitHubConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	baseURL := cfg.APIBaseURL
	if baseURL == "" {
		baseURL = "https://api.github.com"
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

// Repos returns the user's most recent public repositories as GitHub sent
// them. The body is passed through untouched so clients see every field.
func (c *Client) Repos(ctx context.Context, username string) (_ json.RawMessage, err error) {
	username = strings.TrimSpace(username)
	if username == "" || strings.ContainsAny(username, "/?#") {
		return nil, ErrNotFound
	}

	ctx, span := telemetry.Tracer().Start(ctx, "github.Repos")
	span.SetAttributes(attribute.String("github.username", username))
	defer func() {
		if err != nil && !errors.Is(err, ErrNotFound) {
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	params := url.Values{
		"per_page":  {fmt.Sprint(repoCount)},
		"sort":      {repoSort},
		"direction": {repoOrder},
	}
	endpoint := fmt.Sprintf("%s/users/%s/repos?%s", c.baseURL, url.PathEscape(username), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create repos request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", userAgent)
	if c.clientID != "" && c.clientSecret != "" {
		req.SetBasicAuth(c.clientID, c.clientSecret)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch repos: %w", err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, fmt.Errorf("%w: upstream status %d", ErrNotFound, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read repos response: %w", err)
	}

	var repos []json.RawMessage
	if err := json.Unmarshal(body, &repos); err != nil {
		return nil, fmt.Errorf("failed to decode repos response: %w", err)
	}
	return json.RawMessage(body), nil
}
