package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/hookinstall"
	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/settings"
)

func newInstallCmd() *cobra.Command {
	var (
		port  int
		force bool
		yes   bool
	)

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Wire the agent's hooks to the daemon",
		Long: `Add hook forwarders to the agent's settings file so every hook event
is POSTed to the local daemon. Existing settings, including other
tools' hooks, are left untouched. Safe to run repeatedly.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("port") {
				st, err := settings.Load()
				if err != nil {
					return fmt.Errorf("loading settings: %w", err)
				}
				port = st.HookPort
			}

			path, err := hookinstall.SettingsPath()
			if err != nil {
				return fmt.Errorf("locating agent settings: %w", err)
			}

			if !yes {
				if !term.IsTerminal(int(os.Stdin.Fd())) {
					return errors.New("not a terminal; re-run with --yes to skip confirmation")
				}
				confirmed := false
				form := huh.NewForm(huh.NewGroup(
					huh.NewConfirm().
						Title(fmt.Sprintf("Add hook forwarders to %s?", path)).
						Description(fmt.Sprintf("Hook events will be forwarded to 127.0.0.1:%d.", port)).
						Value(&confirmed),
				))
				if err := form.Run(); err != nil {
					return NewSilentError(err)
				}
				if !confirmed {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
					return nil
				}
			}

			n, err := hookinstall.Install(path, port, force)
			if err != nil {
				return err
			}
			if n == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Hook forwarders already installed.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Installed %d hook forwarders in %s\n", n, path)
			fmt.Fprintln(cmd.OutOrStdout(), "Run 'agentdeck serve' to start the daemon.")
			return nil
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "hook port the forwarders target (defaults to settings)")
	cmd.Flags().BoolVar(&force, "force", false, "replace existing forwarders, e.g. after a port change")
	cmd.Flags().BoolVar(&yes, "yes", false, "skip the confirmation prompt")

	return cmd
}

func newUninstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the daemon's hook forwarders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := hookinstall.SettingsPath()
			if err != nil {
				return fmt.Errorf("locating agent settings: %w", err)
			}
			removed, err := hookinstall.Uninstall(path)
			if err != nil {
				return err
			}
			if removed == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No hook forwarders found.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d hook forwarders from %s\n", removed, path)
			return nil
		},
	}
}
