package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/auditlog"
	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/paths"
)

func newLogsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logs <session-id>",
		Short: "Print a session's audit log",
		Long: `Print the transition audit log for a session: every hook received and
every status change, with its source and timing.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := paths.AuditLogDir()
			if err != nil {
				return fmt.Errorf("resolving audit log directory: %w", err)
			}
			f, err := auditlog.New(dir).Open(args[0])
			if err != nil {
				return fmt.Errorf("no audit log for session %q: %w", args[0], err)
			}
			defer f.Close()

			_, err = io.Copy(cmd.OutOrStdout(), f)
			return err
		},
	}
}
