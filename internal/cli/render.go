package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Dicklesworthstone/hud/internal/schema"
	"github.com/Dicklesworthstone/hud/internal/state"
	"github.com/Dicklesworthstone/hud/internal/tui/dashboard/panels"
)

func newRenderCmd() *cobra.Command {
	var payloadPath string
	var width, height int

	cmd := &cobra.Command{
		Use:   "render <widget>",
		Short: "Validate and render a single widget payload",
		Long: `Validate an agent payload against the widget schema and render the
widget once to stdout. Useful for checking what agents produce without
opening the dashboard.

The payload is read as JSON from --payload, or from stdin.

Examples:
  hud render metrics --payload metrics.json
  echo '{"project":"demo","progress":50}' | hud render project_status`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, state.Kind(args[0]), payloadPath, width, height)
		},
	}

	cmd.Flags().StringVar(&payloadPath, "payload", "", "JSON payload file (default stdin)")
	cmd.Flags().IntVar(&width, "width", 60, "Render width")
	cmd.Flags().IntVar(&height, "height", 14, "Render height")
	return cmd
}

func runRender(cmd *cobra.Command, kind state.Kind, payloadPath string, width, height int) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown widget %q (want one of %v)", kind, state.Kinds)
	}

	var data []byte
	var err error
	if payloadPath != "" {
		data, err = os.ReadFile(payloadPath)
	} else {
		data, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		return err
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}

	typed, err := schema.Validate(kind, raw)
	if err != nil {
		return err
	}

	view, err := renderWidget(kind, typed, width, height)
	if err != nil {
		return err
	}
	cmd.Println(view)
	return nil
}

func renderWidget(kind state.Kind, typed any, width, height int) (string, error) {
	switch kind {
	case state.KindProjectStatus:
		p := panels.NewStatusPanel()
		p.SetSize(width, height)
		p.SetData(typed.(*state.ProjectStatus), false, "")
		return p.View(), nil
	case state.KindMetrics:
		p := panels.NewMetricsPanel()
		p.SetSize(width, height)
		p.SetData(typed.(*state.Metrics), false, "")
		return p.View(), nil
	case state.KindActivity:
		p := panels.NewActivityPanel()
		p.SetSize(width, height)
		p.SetData(typed.(*state.Activity), false, "")
		return p.View(), nil
	case state.KindAlerts:
		p := panels.NewAlertsPanel()
		p.SetSize(width, height)
		p.SetData(typed.([]state.Alert), false, "")
		return p.View(), nil
	}
	return "", fmt.Errorf("unknown widget %q", kind)
}
