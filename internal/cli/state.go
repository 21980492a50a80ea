package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/Dicklesworthstone/hud/internal/crosstab"
	"github.com/Dicklesworthstone/hud/internal/serversync"
	"github.com/Dicklesworthstone/hud/internal/state"
)

func newStateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect and manage the persisted dashboard state",
	}
	cmd.AddCommand(
		newStateShowCmd(),
		newStateExportCmd(),
		newStateDiffCmd(),
		newStateClearCmd(),
	)
	return cmd
}

// loadSnapshot loads the persisted snapshot through the full gated load
// path (decompression, version checks, TTL).
func loadSnapshot() (*state.DashboardState, error) {
	store := state.NewStore()
	pc := newPersistController(store, cfg)
	return pc.Load()
}

func newStateShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show a summary of the persisted snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := loadSnapshot()
			if err != nil {
				return err
			}
			if snap == nil {
				cmd.Println("No persisted state (never saved, expired, or cleared).")
				return nil
			}
			if jsonOutput {
				data, err := json.MarshalIndent(snap, "", "  ")
				if err != nil {
					return err
				}
				cmd.Println(string(data))
				return nil
			}
			printSummary(cmd, snap)
			return nil
		},
	}
}

func printSummary(cmd *cobra.Command, snap *state.DashboardState) {
	width := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		width = w
	}

	rule := strings.Repeat("-", min(width, 60))

	cmd.Println(rule)
	cmd.Printf("Schema version: %d\n", snap.Version)
	cmd.Printf("Last updated:   %s (%s ago)\n",
		time.UnixMilli(snap.Timestamp).Format(time.RFC3339),
		snap.Age(time.Now()).Round(time.Second))
	if snap.ActiveProject != "" {
		cmd.Printf("Active project: %s\n", snap.ActiveProject)
	}
	if snap.WorkspaceID != "" {
		cmd.Printf("Workspace:      %s\n", snap.WorkspaceID)
	}
	cmd.Println(rule)

	for _, kind := range state.Kinds {
		status := "no data"
		if snap.HasPayload(kind) {
			status = widgetSummary(snap, kind)
		}
		cmd.Printf("%-15s %s\n", kind+":", status)
	}
}

func widgetSummary(snap *state.DashboardState, kind state.Kind) string {
	switch kind {
	case state.KindProjectStatus:
		ps := snap.Widgets.ProjectStatus
		return fmt.Sprintf("%s, %.0f%% (%s)", ps.Project, ps.Progress, healthWord(ps.Healthy))
	case state.KindMetrics:
		m := snap.Widgets.Metrics
		return fmt.Sprintf("%d tokens, $%.2f, %d agents", m.TotalTokens, m.TotalCost, len(m.Agents))
	case state.KindActivity:
		return fmt.Sprintf("%d entries", len(snap.Widgets.Activity.Entries))
	case state.KindAlerts:
		active := 0
		for _, a := range snap.Widgets.Alerts {
			if !a.Dismissed {
				active++
			}
		}
		return fmt.Sprintf("%d active of %d", active, len(snap.Widgets.Alerts))
	}
	return ""
}

func healthWord(healthy bool) string {
	if healthy {
		return "healthy"
	}
	return "unhealthy"
}

func newStateExportCmd() *cobra.Command {
	var format string
	var outPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the persisted snapshot as JSON or YAML",
		Long: `Export the persisted snapshot for backup or inspection.

Examples:
  hud state export
  hud state export --format yaml
  hud state export --out backup.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := loadSnapshot()
			if err != nil {
				return err
			}
			if snap == nil {
				return fmt.Errorf("no persisted state to export")
			}

			var data []byte
			switch format {
			case "json":
				data, err = json.MarshalIndent(snap, "", "  ")
			case "yaml":
				data, err = marshalYAML(snap)
			default:
				return fmt.Errorf("unknown format %q (want json or yaml)", format)
			}
			if err != nil {
				return err
			}

			if outPath == "" {
				cmd.Println(string(data))
				return nil
			}
			return os.WriteFile(outPath, data, 0o644)
		},
	}

	cmd.Flags().StringVar(&format, "format", "json", "Export format: json or yaml")
	cmd.Flags().StringVar(&outPath, "out", "", "Write to file instead of stdout")
	return cmd
}

// marshalYAML routes through JSON so the wire field names (json tags)
// survive into the YAML output.
func marshalYAML(snap *state.DashboardState) ([]byte, error) {
	raw, err := json.Marshal(snap)
	if err != nil {
		return nil, err
	}
	var tree map[string]any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, err
	}
	return yaml.Marshal(tree)
}

func newStateDiffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff",
		Short: "Diff the local snapshot against the remote session store",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cfg.Server.Enabled || cfg.Server.URL == "" {
				return fmt.Errorf("no remote session store configured (set server.url)")
			}

			local, err := loadSnapshot()
			if err != nil {
				return err
			}
			client := serversync.NewClient(cfg.Server.URL, cfg.Server.Token, 0)
			remote, err := client.Fetch(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetching remote state: %w", err)
			}

			localJSON := marshalForDiff(local)
			remoteJSON := marshalForDiff(remote)
			if localJSON == remoteJSON {
				cmd.Println("Local and remote state are identical.")
				return nil
			}

			dmp := diffmatchpatch.New()
			diffs := dmp.DiffMain(localJSON, remoteJSON, true)
			dmp.DiffCleanupSemantic(diffs)
			cmd.Println(dmp.DiffPrettyText(diffs))
			return nil
		},
	}
}

func marshalForDiff(snap *state.DashboardState) string {
	if snap == nil {
		return "(no state)\n"
	}
	data, err := json.MarshalIndent(snap.Snapshot(), "", "  ")
	if err != nil {
		return "(unmarshalable state)\n"
	}
	return string(data) + "\n"
}

func newStateClearCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete the persisted snapshot and notify sibling instances",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to clear without --yes")
			}

			store := state.NewStore()
			pc := newPersistController(store, cfg)

			if cfg.Sync.Enabled {
				if bc, err := connectBroadcaster(cmd.Context(), cfg.Sync); err == nil {
					defer bc.Close()
					sync := crosstab.NewSynchronizer(store, pc, bc, crosstab.Options{
						Enabled: true,
						TTL:     cfg.Sync.TTL(),
					})
					sync.Clear(cmd.Context())
					cmd.Println("Cleared persisted state and notified siblings.")
					return nil
				}
			}

			pc.Clear()
			cmd.Println("Cleared persisted state.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm deletion")
	return cmd
}
