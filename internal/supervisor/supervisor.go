// Package supervisor drives one agent-lost detection and retry cycle: fetch a
// window of recent builds, keep the failed ones, classify each by its terminal
// job's exit status, and for every agent-lost build run a notify/retry/notify
// sequence.
//
// Only the last job in a build's job sequence is inspected. A build whose
// earlier job was agent-lost but whose terminal job failed for other reasons
// is never retried; that scope limitation is deliberate.
package supervisor

import (
	"context"
	"log/slog"

	"github.com/liEric123/AutoOncallSupervisor/internal/buildkite"
)

// CIClient is the slice of the Buildkite client the supervisor uses.
type CIClient interface {
	ListRecentBuilds(ctx context.Context) ([]buildkite.Build, error)
	RetryJob(ctx context.Context, buildNumber int, jobID string) error
}

// Notifier delivers case notifications. Delivery failures are reported back
// but never abort the retry workflow.
type Notifier interface {
	NotifyAgentLost(ctx context.Context, c Case) error
	NotifyRetryOutcome(ctx context.Context, c Case, retryErr error) error
}

// Case is one detected agent-lost instance. It composes the cycle's connection
// configuration with the case-specific build and job, lives only for the
// duration of its notify/retry/notify sequence, and is never persisted.
type Case struct {
	Conn        buildkite.ConnConfig
	BuildNumber int
	JobID       string
	BuildURL    string
}

// Classification is the per-build decision: agent lost (with the terminal
// job's ID) or not.
type Classification struct {
	AgentLost bool
	JobID     string
}

// Classify inspects only the terminal job of a build. A build with no jobs is
// ambiguous and classified as not agent lost. An absent exit status means the
// job never finished normally but was not agent-lost either.
func Classify(b buildkite.Build) Classification {
	job := b.TerminalJob()
	if job == nil {
		return Classification{}
	}
	if job.ExitStatus != nil && *job.ExitStatus == buildkite.AgentLostExitStatus {
		return Classification{AgentLost: true, JobID: job.ID}
	}
	return Classification{}
}

// Supervisor owns the side-effect sequencing of one poll cycle.
type Supervisor struct {
	conn     buildkite.ConnConfig
	client   CIClient
	notifier Notifier
	logger   *slog.Logger
}

// New creates a Supervisor. A nil logger falls back to slog.Default().
func New(conn buildkite.ConnConfig, client CIClient, notifier Notifier, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		conn:     conn,
		client:   client,
		notifier: notifier,
		logger:   logger,
	}
}

// FilterFailed returns the order-preserving subset of builds with state
// "failed". An empty input yields an empty output, not an error.
func (s *Supervisor) FilterFailed(builds []buildkite.Build) []buildkite.Build {
	failed := make([]buildkite.Build, 0, len(builds))
	for _, b := range builds {
		if b.State == "failed" {
			failed = append(failed, b)
		}
	}
	s.logger.Info("filtered failed builds",
		"failed", len(failed), "total", len(builds), "branch", s.conn.Branch)
	return failed
}

// Run executes one poll cycle. Fetch and classification errors are contained
// here: a failed or misconfigured fetch yields an empty cycle, never an abort.
func (s *Supervisor) Run(ctx context.Context) {
	builds, err := s.client.ListRecentBuilds(ctx)
	if err != nil {
		s.logger.Error("fetching builds failed", "err", err)
		return
	}
	if len(builds) == 0 {
		s.logger.Info("no recent builds found, nothing to do")
		return
	}

	failed := s.FilterFailed(builds)
	if len(failed) == 0 {
		s.logger.Info("no failed builds in the most recent page, nothing to do")
		return
	}

	s.Process(ctx, failed)
}

// Process classifies each failed build in order and, for every agent-lost
// case, sends a detection notification, retries the job once, and sends an
// outcome notification. Every failed build in the window is independently
// evaluated; there is no stop-on-first-match. Notification and retry are
// independent side effects: a failure of either is logged, never escalated.
func (s *Supervisor) Process(ctx context.Context, failed []buildkite.Build) {
	found := false

	for _, build := range failed {
		buildURL := s.conn.BuildURL(build.Number)
		s.logger.Info("checking build", "build", build.Number, "url", buildURL)

		cl := Classify(build)
		if !cl.AgentLost {
			continue
		}
		found = true
		s.logger.Warn("agent lost detected", "build", build.Number, "job", cl.JobID, "url", buildURL)

		c := Case{
			Conn:        s.conn,
			BuildNumber: build.Number,
			JobID:       cl.JobID,
			BuildURL:    buildURL,
		}

		if err := s.notifier.NotifyAgentLost(ctx, c); err != nil {
			s.logger.Error("agent lost notification failed", "build", c.BuildNumber, "err", err)
		}

		retryErr := s.client.RetryJob(ctx, c.BuildNumber, c.JobID)
		if retryErr != nil {
			s.logger.Error("retry failed", "build", c.BuildNumber, "job", c.JobID, "err", retryErr)
		} else {
			s.logger.Info("retry requested", "build", c.BuildNumber, "job", c.JobID, "url", buildURL)
		}

		if err := s.notifier.NotifyRetryOutcome(ctx, c, retryErr); err != nil {
			s.logger.Error("retry outcome notification failed", "build", c.BuildNumber, "err", err)
		}
	}

	if !found {
		s.logger.Info("no agent lost scenarios detected, no notifications needed")
	}
}
