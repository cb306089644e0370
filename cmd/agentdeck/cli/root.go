// Package cli wires the agentdeck commands together: the daemon itself
// plus the install/logs helpers around it.
package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/settings"
	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/statemachine"
	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/telemetry"
	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/versioncheck"
)

const gettingStarted = `

Getting Started:
  Run 'agentdeck install' once to wire your agent's hooks to the daemon,
  then 'agentdeck serve' to start it. Point a dashboard at the stream
  port to watch your sessions.
`

// Version information (can be set at build time)
var (
	Version = "dev"
	Commit  = "unknown"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agentdeck",
		Short: "Live status daemon for agentic coding sessions",
		Long:  "agentdeck watches your coding agent's hooks and transcripts and publishes live per-session status." + gettingStarted,
		// Let main.go handle error printing to avoid duplication
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			var enabled *bool
			if st, err := settings.Load(); err == nil {
				enabled = st.Telemetry
			}
			client := telemetry.NewClient(Version, enabled)
			defer client.Close()
			client.TrackCommand(cmd)

			versioncheck.CheckAndNotify(cmd, Version)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newInstallCmd())
	cmd.AddCommand(newUninstallCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newDiagramCmd())

	return cmd
}

func newDiagramCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "diagram",
		Short:  "Print the status state machine as a Mermaid diagram",
		Hidden: true,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), statemachine.MermaidDiagram())
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "agentdeck %s (%s)\n", Version, Commit)
			fmt.Fprintf(w, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(w, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
