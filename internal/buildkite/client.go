// Package buildkite is a minimal client for the slice of the Buildkite REST API
// this tool needs: listing recent builds (with embedded jobs) for one pipeline
// branch, and retrying a single job.
package buildkite

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	// DefaultBaseURL is the public Buildkite REST API endpoint.
	DefaultBaseURL = "https://api.buildkite.com/v2"

	// DefaultPageSize matches Buildkite's default builds page size. One page is
	// the whole detection window; there is no pagination.
	DefaultPageSize = 30

	// AgentLostExitStatus is the sentinel exit status Buildkite reports when an
	// agent disconnects mid-job.
	AgentLostExitStatus = -1

	apiTimeout = 10 * time.Second
)

// Build is one pipeline execution as returned by the builds listing.
type Build struct {
	Number int    `json:"number"`
	State  string `json:"state"`
	WebURL string `json:"web_url,omitempty"`
	Jobs   []Job  `json:"jobs"`
}

// Job is one unit of work within a build. ExitStatus is a pointer because
// Buildkite omits it for jobs that never ran.
type Job struct {
	ID         string `json:"id"`
	Name       string `json:"name,omitempty"`
	State      string `json:"state,omitempty"`
	ExitStatus *int   `json:"exit_status"`
}

// TerminalJob returns the last job in the build's job sequence, or nil if the
// build has no jobs. The last job is the gate whose failure decides the build.
func (b Build) TerminalJob() *Job {
	if len(b.Jobs) == 0 {
		return nil
	}
	return &b.Jobs[len(b.Jobs)-1]
}

// ConnConfig is the immutable connection configuration for one poll cycle.
type ConnConfig struct {
	BaseURL      string
	Token        string
	OrgSlug      string
	PipelineSlug string
	Branch       string
	LarkWebhook  string
}

// BuildURL returns the human-facing URL for a build number.
func (c ConnConfig) BuildURL(number int) string {
	return fmt.Sprintf("https://buildkite.com/%s/%s/builds/%d", c.OrgSlug, c.PipelineSlug, number)
}

// ConfigError reports required connection fields that were missing for an
// operation. Callers treat it as "nothing to do", not as a fatal condition.
type ConfigError struct {
	Op      string
	Missing []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: missing required config fields: %v", e.Op, e.Missing)
}

// TransportError wraps a network or HTTP-level failure of a single operation.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Client talks to the Buildkite REST API for one pipeline/branch.
type Client struct {
	cfg        ConnConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a Client. A nil logger falls back to slog.Default().
func New(cfg ConnConfig, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: apiTimeout},
		logger:     logger,
	}
}

// Config returns the connection configuration the client was built with.
func (c *Client) Config() ConnConfig { return c.cfg }

func (c *Client) missingFields(needBranch bool) []string {
	var missing []string
	if c.cfg.BaseURL == "" {
		missing = append(missing, "base_url")
	}
	if c.cfg.Token == "" {
		missing = append(missing, "api_token")
	}
	if c.cfg.OrgSlug == "" {
		missing = append(missing, "org_slug")
	}
	if c.cfg.PipelineSlug == "" {
		missing = append(missing, "pipeline_slug")
	}
	if needBranch && c.cfg.Branch == "" {
		missing = append(missing, "target_branch")
	}
	return missing
}

func (c *Client) newRequest(ctx context.Context, method, rawURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "AutoOncallSupervisor/1.0")
	return req, nil
}

// ListRecentBuilds fetches the most recent page of builds (newest first) for
// the configured pipeline and branch, with job data embedded so no second
// round trip is needed. The fetch is not retried; a transient failure is
// tolerated until the next poll cycle.
func (c *Client) ListRecentBuilds(ctx context.Context) ([]Build, error) {
	if missing := c.missingFields(true); len(missing) > 0 {
		return nil, &ConfigError{Op: "list builds", Missing: missing}
	}

	buildsURL := fmt.Sprintf("%s/organizations/%s/pipelines/%s/builds",
		c.cfg.BaseURL, c.cfg.OrgSlug, c.cfg.PipelineSlug)
	params := url.Values{}
	params.Set("branch", c.cfg.Branch)
	params.Set("include", "jobs")
	params.Set("per_page", strconv.Itoa(DefaultPageSize))

	c.logger.Info("fetching recent builds",
		"pipeline", c.cfg.PipelineSlug, "branch", c.cfg.Branch, "per_page", DefaultPageSize)

	req, err := c.newRequest(ctx, http.MethodGet, buildsURL+"?"+params.Encode())
	if err != nil {
		return nil, &TransportError{Op: "list builds", Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "list builds", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &TransportError{
			Op:  "list builds",
			Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body)),
		}
	}

	var builds []Build
	if err := json.NewDecoder(resp.Body).Decode(&builds); err != nil {
		return nil, &TransportError{Op: "list builds", Err: fmt.Errorf("decoding response: %w", err)}
	}

	c.logger.Info("fetched builds", "count", len(builds))
	return builds, nil
}

// RetryJob asks Buildkite to retry one job of one build. The new execution is
// not waited on or tracked, and the request itself is not retried on failure.
func (c *Client) RetryJob(ctx context.Context, buildNumber int, jobID string) error {
	missing := c.missingFields(false)
	if buildNumber <= 0 {
		missing = append(missing, "build_number")
	}
	if jobID == "" {
		missing = append(missing, "job_id")
	}
	if len(missing) > 0 {
		return &ConfigError{Op: "retry job", Missing: missing}
	}

	retryURL := fmt.Sprintf("%s/organizations/%s/pipelines/%s/builds/%d/jobs/%s/retry",
		c.cfg.BaseURL, c.cfg.OrgSlug, c.cfg.PipelineSlug, buildNumber, jobID)

	c.logger.Info("retrying job", "job", jobID, "build", buildNumber)

	req, err := c.newRequest(ctx, http.MethodPut, retryURL)
	if err != nil {
		return &TransportError{Op: "retry job", Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: "retry job", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &TransportError{
			Op:  "retry job",
			Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body)),
		}
	}

	return nil
}
