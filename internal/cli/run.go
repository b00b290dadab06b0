package cli

import (
	"github.com/spf13/cobra"

	"github.com/liEric123/AutoOncallSupervisor/internal/buildkite"
	"github.com/liEric123/AutoOncallSupervisor/internal/lark"
	"github.com/liEric123/AutoOncallSupervisor/internal/supervisor"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one agent-lost detection and retry cycle",
		Long: `Run fetches the most recent page of builds for every configured pipeline,
classifies each failed build's terminal job, retries every job that exited with
status -1, and sends Lark cards for each detection and retry outcome.

The command exits 0 on normal completion whether or not anything was detected.
Only a configuration load failure exits non-zero, and it does so before any
API interaction.`,
		Args: cobra.NoArgs,
		RunE: runRun,
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	logger.Info("starting AutoOncall Supervisor", "version", Version)

	cfg, pipelines, err := loadSetup()
	if err != nil {
		return err
	}
	logger.Info("configuration loaded")

	for _, t := range cfg.Targets(pipelines) {
		conn := buildkite.ConnConfig{
			BaseURL:      cfg.APIBaseURL,
			Token:        cfg.APIToken,
			OrgSlug:      t.Org,
			PipelineSlug: t.Pipeline,
			Branch:       t.Branch,
			LarkWebhook:  t.LarkWebhook,
		}
		plog := logger.With("org", t.Org, "pipeline", t.Pipeline)

		client := buildkite.New(conn, plog)
		notifier := lark.NewNotifier(t.LarkWebhook, plog)
		sup := supervisor.New(conn, client, notifier, plog)
		sup.Run(cmd.Context())
	}

	return nil
}
