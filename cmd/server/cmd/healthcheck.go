package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// HealthResponse matches the /readyz body.
type HealthResponse struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthCheckResult is one probe of the server.
type HealthCheckResult struct {
	URL        string          `json:"url"`
	Status     string          `json:"status"`
	StatusCode int             `json:"status_code,omitempty"`
	IsHealthy  bool            `json:"healthy"`
	LatencyMs  int64           `json:"latency_ms"`
	RetryCount int             `json:"retry_count,omitempty"`
	Error      string          `json:"error,omitempty"`
	Response   *HealthResponse `json:"response,omitempty"`
}

type healthcheckOptions struct {
	url        string
	timeout    time.Duration
	retries    int
	retryDelay time.Duration
	format     string
	// allowDegraded treats "degraded" (a failing job queue) as healthy.
	allowDegraded bool
}

func newHealthcheckCommand() *cobra.Command {
	opts := &healthcheckOptions{}
	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Check if the server is healthy",
		Long: `Performs a health check by calling the /readyz endpoint.

This command is used by Docker HEALTHCHECK to monitor container health.
It exits with code 0 if the server is healthy, non-zero otherwise.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.url == "" {
				opts.url = defaultHealthURL()
			}
			client := &http.Client{Timeout: opts.timeout}
			result := performHealthCheckWithRetries(cmd.Context(), client, opts)
			if err := writeHealthResult(cmd.OutOrStdout(), result, opts.format); err != nil {
				return err
			}
			if !result.IsHealthy {
				return fmt.Errorf("unhealthy: %s", result.Status)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.url, "url", "", "health check URL (default: http://localhost:{SERVER_PORT}/readyz)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 5*time.Second, "per-attempt timeout")
	cmd.Flags().IntVar(&opts.retries, "retries", 0, "retries after a failed attempt")
	cmd.Flags().DurationVar(&opts.retryDelay, "retry-delay", 2*time.Second, "delay between retries")
	cmd.Flags().StringVar(&opts.format, "format", "simple", "output format (simple, json)")
	cmd.Flags().BoolVar(&opts.allowDegraded, "allow-degraded", true, "accept a degraded status")
	return cmd
}

func defaultHealthURL() string {
	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = "5000"
	}
	return fmt.Sprintf("http://localhost:%s/readyz", port)
}

func performHealthCheckWithRetries(ctx context.Context, client *http.Client, opts *healthcheckOptions) HealthCheckResult {
	var result HealthCheckResult
	for attempt := 0; ; attempt++ {
		result = performHealthCheck(ctx, client, opts.url, opts.allowDegraded)
		result.RetryCount = attempt
		if result.IsHealthy || attempt >= opts.retries {
			return result
		}
		select {
		case <-ctx.Done():
			result.Error = ctx.Err().Error()
			return result
		case <-time.After(opts.retryDelay):
		}
	}
}

func performHealthCheck(ctx context.Context, client *http.Client, url string, allowDegraded bool) HealthCheckResult {
	result := HealthCheckResult{URL: url, Status: "unreachable"}
	start := time.Now()
	defer func() { result.LatencyMs = time.Since(start).Milliseconds() }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	resp, err := client.Do(req)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	defer func() { _ = resp.Body.Close() }()
	result.StatusCode = resp.StatusCode

	var body HealthResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		result.Status = "invalid_response"
		result.Error = fmt.Sprintf("parse response: %v", err)
		return result
	}
	result.Response = &body
	result.Status = body.Status

	switch {
	case resp.StatusCode != http.StatusOK:
		result.Error = fmt.Sprintf("status %d", resp.StatusCode)
	case body.Status == "healthy":
		result.IsHealthy = true
	case body.Status == "degraded" && allowDegraded:
		result.IsHealthy = true
	}
	return result
}

func writeHealthResult(w io.Writer, result HealthCheckResult, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case "simple", "":
		state := "OK"
		if !result.IsHealthy {
			state = "FAIL"
		}
		line := fmt.Sprintf("%s %s status=%s latency=%dms", state, result.URL, result.Status, result.LatencyMs)
		if result.Error != "" {
			line += " error=" + result.Error
		}
		_, err := fmt.Fprintln(w, line)
		return err
	default:
		return errors.New("unknown format " + format)
	}
}
