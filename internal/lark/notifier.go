package lark

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/liEric123/AutoOncallSupervisor/internal/supervisor"
)

const webhookTimeout = 10 * time.Second

// Notifier posts case cards to a Lark bot webhook. An empty webhook URL makes
// every send a logged no-op; configuring a webhook is optional and absence is
// never an error.
type Notifier struct {
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewNotifier creates a Notifier. A nil logger falls back to slog.Default().
func NewNotifier(webhookURL string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: webhookTimeout},
		logger:     logger,
	}
}

func caseNumber(c supervisor.Case) string {
	return fmt.Sprintf("BUILD-%d", c.BuildNumber)
}

// DetectionContext builds the card fields for an agent-lost detection.
func DetectionContext(c supervisor.Case) CaseContext {
	return CaseContext{
		CaseNumber:        caseNumber(c),
		BuildURL:          c.BuildURL,
		FailureReason:     "Agent Lost - Exit Status -1",
		ResolutionPlan:    "Automatic retry initiated",
		ResolutionBasis:   "Agent disconnection detected by AutoOncall Supervisor",
		CustomerNotified:  "System notification sent",
		CustomerClickedAt: "N/A",
		LastRetryTime:     "In progress",
		RetryCount:        "1",
	}
}

// RetryOutcomeContext builds the card fields for a retry result. A nil
// retryErr yields the success variant; otherwise the failure variant embeds
// the error message.
func RetryOutcomeContext(c supervisor.Case, retryErr error) CaseContext {
	cc := CaseContext{
		CaseNumber:        caseNumber(c),
		BuildURL:          c.BuildURL,
		CustomerClickedAt: "N/A",
		RetryCount:        "1",
	}
	if retryErr == nil {
		cc.FailureReason = "Agent Lost - Resolved"
		cc.ResolutionPlan = "Retry completed successfully"
		cc.ResolutionBasis = "Automatic retry by AutoOncall Supervisor"
		cc.CustomerNotified = "Success notification sent"
		cc.LastRetryTime = "Just completed"
	} else {
		cc.FailureReason = fmt.Sprintf("Agent Lost Retry Failed: %v", retryErr)
		cc.ResolutionPlan = "Manual intervention required"
		cc.ResolutionBasis = "Automatic retry failed - see error details"
		cc.CustomerNotified = "Failure notification sent"
		cc.LastRetryTime = "Failed"
	}
	return cc
}

// NotifyAgentLost sends the detection card for a case.
func (n *Notifier) NotifyAgentLost(ctx context.Context, c supervisor.Case) error {
	return n.send(ctx, DetectionContext(c))
}

// NotifyRetryOutcome sends the retry success or failure card for a case.
func (n *Notifier) NotifyRetryOutcome(ctx context.Context, c supervisor.Case, retryErr error) error {
	return n.send(ctx, RetryOutcomeContext(c, retryErr))
}

// send delivers one card in a single POST. Success is any 2xx status.
func (n *Notifier) send(ctx context.Context, cc CaseContext) error {
	if n.webhookURL == "" {
		n.logger.Info("no lark webhook configured, skipping notification", "case", cc.CaseNumber)
		return nil
	}

	payload, err := json.Marshal(BuildCard(cc))
	if err != nil {
		return fmt.Errorf("encoding card: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending lark card: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("lark webhook returned %d: %s", resp.StatusCode, string(body))
	}

	n.logger.Info("sent lark card", "case", cc.CaseNumber, "response", string(body))
	return nil
}
