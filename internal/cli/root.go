// Package cli implements the hud command line interface.
package cli

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/Dicklesworthstone/hud/internal/config"
	"github.com/Dicklesworthstone/hud/internal/tui/theme"
)

var (
	cfgFile    string
	cfg        *config.Config
	jsonOutput bool

	// Build information, set via ldflags.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "hud",
	Short: "hud - live agent dashboard with persistent, synchronized state",
	Long: `hud renders a live dashboard of AI agent activity: project status,
token usage, an activity feed and alerts. Dashboard state survives
restarts, synchronizes across hud instances on the same machine, and
can mirror to a remote session store.

Quick Start:
  hud dashboard               # Open the live dashboard
  hud dashboard --demo        # Dashboard fed by a demo agent
  hud state show              # Inspect the persisted snapshot
  hud sync now                # Push state to the remote store`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		if cfg.Dashboard.Theme == "plain" || !isatty.IsTerminal(os.Stdout.Fd()) {
			theme.Set(theme.Plain)
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		if _, werr := os.Stderr.WriteString("Error: " + err.Error() + "\n"); werr != nil {
			return err
		}
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.config/hud/config.toml)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format (machine-readable)")

	rootCmd.AddCommand(
		newDashboardCmd(),
		newStateCmd(),
		newSyncCmd(),
		newRenderCmd(),
		newVersionCmd(),
	)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("hud %s (commit %s, built %s)\n", Version, Commit, Date)
		},
	}
}
