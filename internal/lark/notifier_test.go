package lark

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/liEric123/AutoOncallSupervisor/internal/supervisor"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCase() supervisor.Case {
	return supervisor.Case{
		BuildNumber: 123,
		JobID:       "j2",
		BuildURL:    "https://buildkite.com/acme/deploy/builds/123",
	}
}

func TestSendSkippedWithoutWebhook(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer ts.Close()

	n := NewNotifier("", discardLogger())
	if err := n.NotifyAgentLost(context.Background(), testCase()); err != nil {
		t.Fatalf("expected nil error for unset webhook, got %v", err)
	}
	if calls != 0 {
		t.Errorf("expected zero HTTP calls, got %d", calls)
	}
}

func TestNotifyAgentLostPayload(t *testing.T) {
	var got Card
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding payload: %v", err)
		}
		w.Write([]byte(`{"code":0}`))
	}))
	defer ts.Close()

	n := NewNotifier(ts.URL, discardLogger())
	if err := n.NotifyAgentLost(context.Background(), testCase()); err != nil {
		t.Fatalf("NotifyAgentLost failed: %v", err)
	}

	if got.MsgType != "interactive" {
		t.Errorf("msg_type = %q, want interactive", got.MsgType)
	}
	if got.Card.Header.Title.Content != "Case BUILD-123" {
		t.Errorf("unexpected header title %q", got.Card.Header.Title.Content)
	}
	if got.Card.Header.Template != "blue" {
		t.Errorf("unexpected header template %q", got.Card.Header.Template)
	}
	if len(got.Card.Elements) != 2 {
		t.Fatalf("expected 2 card elements, got %d", len(got.Card.Elements))
	}
	md := got.Card.Elements[0]
	if md.Tag != "markdown" {
		t.Errorf("first element tag %q, want markdown", md.Tag)
	}
	if !strings.Contains(md.Content, "Agent Lost - Exit Status -1") {
		t.Errorf("markdown missing failure reason: %q", md.Content)
	}
	if !strings.Contains(md.Content, "失败原因") {
		t.Errorf("markdown missing bilingual label: %q", md.Content)
	}
	action := got.Card.Elements[1]
	if len(action.Actions) != 1 {
		t.Fatalf("expected 1 action, got %d", len(action.Actions))
	}
	if action.Actions[0].MultiURL.URL != testCase().BuildURL {
		t.Errorf("button URL = %q, want build URL", action.Actions[0].MultiURL.URL)
	}
}

func TestRetryOutcomeContexts(t *testing.T) {
	success := RetryOutcomeContext(testCase(), nil)
	if success.FailureReason != "Agent Lost - Resolved" {
		t.Errorf("unexpected success reason %q", success.FailureReason)
	}
	if strings.Contains(success.FailureReason, "Failed") {
		t.Errorf("success reason should carry no error text: %q", success.FailureReason)
	}
	if success.LastRetryTime != "Just completed" {
		t.Errorf("unexpected last retry time %q", success.LastRetryTime)
	}

	failure := RetryOutcomeContext(testCase(), errors.New("timeout"))
	if !strings.Contains(failure.FailureReason, "timeout") {
		t.Errorf("failure reason should embed the error, got %q", failure.FailureReason)
	}
	if failure.ResolutionPlan != "Manual intervention required" {
		t.Errorf("unexpected failure plan %q", failure.ResolutionPlan)
	}
}

func TestNotifyRetryOutcomeFailurePayload(t *testing.T) {
	var got Card
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	n := NewNotifier(ts.URL, discardLogger())
	err := n.NotifyRetryOutcome(context.Background(), testCase(), errors.New("timeout"))
	if err != nil {
		t.Fatalf("NotifyRetryOutcome failed: %v", err)
	}
	if !strings.Contains(got.Card.Elements[0].Content, "timeout") {
		t.Errorf("outcome card should contain error message: %q", got.Card.Elements[0].Content)
	}
}

func TestSendDeliveryFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad webhook", http.StatusBadRequest)
	}))
	defer ts.Close()

	n := NewNotifier(ts.URL, discardLogger())
	err := n.NotifyAgentLost(context.Background(), testCase())
	if err == nil {
		t.Fatal("expected error on non-2xx status")
	}
	if !strings.Contains(err.Error(), "400") {
		t.Errorf("expected status in error, got %q", err)
	}
}

func TestDetectionContext(t *testing.T) {
	cc := DetectionContext(testCase())
	if cc.CaseNumber != "BUILD-123" {
		t.Errorf("case number = %q", cc.CaseNumber)
	}
	if cc.ResolutionPlan != "Automatic retry initiated" {
		t.Errorf("unexpected plan %q", cc.ResolutionPlan)
	}
	if cc.RetryCount != "1" {
		t.Errorf("unexpected retry count %q", cc.RetryCount)
	}
}
