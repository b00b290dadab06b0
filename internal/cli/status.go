package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"unicode/utf8"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/liEric123/AutoOncallSupervisor/internal/buildkite"
	"github.com/liEric123/AutoOncallSupervisor/internal/supervisor"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the recent build window and agent-lost classification",
		Long: `Status fetches the same build window the run command inspects and shows
each build's state, its terminal job's exit status, and whether it would be
classified as agent lost. No retries or notifications are triggered.

Examples:
  autooncall status            # Styled table
  autooncall status --json     # Machine-readable output`,
		Args: cobra.NoArgs,
		RunE: runStatus,
	}
}

type statusRow struct {
	Org        string `json:"org"`
	Pipeline   string `json:"pipeline"`
	Number     int    `json:"number"`
	State      string `json:"state"`
	ExitStatus *int   `json:"exit_status,omitempty"`
	AgentLost  bool   `json:"agent_lost"`
	URL        string `json:"url"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	cfg, pipelines, err := loadSetup()
	if err != nil {
		return err
	}

	var rows []statusRow
	for _, t := range cfg.Targets(pipelines) {
		conn := buildkite.ConnConfig{
			BaseURL:      cfg.APIBaseURL,
			Token:        cfg.APIToken,
			OrgSlug:      t.Org,
			PipelineSlug: t.Pipeline,
			Branch:       t.Branch,
		}
		client := buildkite.New(conn, logger)

		builds, err := client.ListRecentBuilds(cmd.Context())
		if err != nil {
			logger.Error("fetching builds failed", "org", t.Org, "pipeline", t.Pipeline, "err", err)
			continue
		}

		for _, b := range builds {
			row := statusRow{
				Org:      t.Org,
				Pipeline: t.Pipeline,
				Number:   b.Number,
				State:    b.State,
				URL:      conn.BuildURL(b.Number),
			}
			if job := b.TerminalJob(); job != nil {
				row.ExitStatus = job.ExitStatus
			}
			if b.State == "failed" {
				row.AgentLost = supervisor.Classify(b).AgentLost
			}
			rows = append(rows, row)
		}
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	colored := !noColor && isatty.IsTerminal(os.Stdout.Fd())
	maxWidth := 0
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
		maxWidth = w
	}

	table := newBuildTable(colored, "BUILD", "PIPELINE", "STATE", "EXIT", "AGENT LOST", "URL")
	table.withTitle(fmt.Sprintf("Recent builds (%d)", len(rows)))
	for _, r := range rows {
		exit := "-"
		if r.ExitStatus != nil {
			exit = strconv.Itoa(*r.ExitStatus)
		}
		lost := ""
		if r.AgentLost {
			lost = "yes"
		}
		table.addRow(
			strconv.Itoa(r.Number),
			r.Pipeline,
			r.State,
			exit,
			lost,
			truncate(r.URL, urlColumnWidth(maxWidth)),
		)
	}

	fmt.Fprintln(cmd.OutOrStdout(), table.render())
	return nil
}

// urlColumnWidth leaves room for the other columns and borders; zero means no
// terminal width was available and the URL is printed in full.
func urlColumnWidth(termWidth int) int {
	if termWidth <= 0 {
		return 0
	}
	w := termWidth - 60
	if w < 20 {
		w = 20
	}
	return w
}

func truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	if max <= 1 {
		return string(runes[:max])
	}
	return string(runes[:max-1]) + "…"
}
