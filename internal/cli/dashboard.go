package cli

import (
	"context"
	"fmt"
	"log"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/Dicklesworthstone/hud/internal/agentfeed"
	"github.com/Dicklesworthstone/hud/internal/config"
	"github.com/Dicklesworthstone/hud/internal/crosstab"
	"github.com/Dicklesworthstone/hud/internal/persist"
	"github.com/Dicklesworthstone/hud/internal/serversync"
	"github.com/Dicklesworthstone/hud/internal/state"
	"github.com/Dicklesworthstone/hud/internal/tui/dashboard"
	"github.com/Dicklesworthstone/hud/internal/tui/theme"
)

func newDashboardCmd() *cobra.Command {
	var demo bool

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Open the live agent dashboard",
		Long: `Open the live dashboard TUI. State is restored from the last
persisted snapshot, kept in sync with other hud instances over the
broadcast channel, and mirrored to the remote session store when one is
configured.

Examples:
  hud dashboard
  hud dashboard --demo`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDashboard(cmd.Context(), demo)
		},
	}

	cmd.Flags().BoolVar(&demo, "demo", false, "Feed the dashboard from a built-in demo agent")
	return cmd
}

func runDashboard(ctx context.Context, demo bool) error {
	store := state.NewStore()
	pc := newPersistController(store, cfg)

	if snap, err := pc.Load(); err != nil {
		log.Printf("snapshot load failed: %v", err)
	} else if snap != nil {
		store.ReplaceIfNewer(*snap)
	}
	pc.Start()
	defer func() {
		pc.Flush()
		pc.Stop()
	}()

	if cfg.Sync.Enabled {
		bc, err := connectBroadcaster(ctx, cfg.Sync)
		if err != nil {
			log.Printf("cross-instance sync unavailable: %v", err)
		} else {
			sync := crosstab.NewSynchronizer(store, pc, bc, crosstab.Options{
				Enabled: true,
				TTL:     cfg.Sync.TTL(),
			})
			if err := sync.Start(ctx); err != nil {
				log.Printf("cross-instance sync unavailable: %v", err)
				bc.Close()
			} else {
				defer func() {
					sync.Stop()
					bc.Close()
				}()
			}
		}
	}

	var srv *serversync.Bridge
	if cfg.Server.Enabled && cfg.Server.URL != "" {
		client := serversync.NewClient(cfg.Server.URL, cfg.Server.Token, 0)
		srv = serversync.NewBridge(store, client, serversync.Options{
			SyncWindow: cfg.Server.SyncWindow(),
			TTL:        cfg.Persistence.TTL(),
		})
		srv.Start()
		srv.SetAuthenticated(ctx, cfg.Server.Token != "")
		defer srv.Stop()
	}

	feed := agentfeed.NewFeed()
	bridge := agentfeed.NewBridge(store, feed, cfg.Agents.MergeWindow())
	bridge.Start()
	defer bridge.Stop()

	// Theme changes apply without restarting the dashboard.
	stopWatch, err := config.Watch(cfgFile, func(updated *config.Config) {
		if updated.Dashboard.Theme == "plain" {
			theme.Set(theme.Plain)
		} else {
			theme.Set(theme.Mocha)
		}
	})
	if err != nil {
		log.Printf("config watch unavailable: %v", err)
	} else {
		defer stopWatch()
	}

	if demo {
		demoCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go runDemoFeeder(demoCtx, feed)
	}

	m := dashboard.New(store)
	m.SetRetry(func(panelID string) error {
		if srv != nil {
			return srv.RestoreNow(ctx)
		}
		clearWidgetErrors(store, panelID)
		return nil
	}, cfg.Dashboard.MaxRetries)

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}

func newPersistController(store *state.Store, cfg *config.Config) *persist.Controller {
	dir := cfg.Persistence.Dir
	if dir == "" {
		dir = persist.DefaultDir()
	}
	return persist.NewController(store, persist.NewFileStorage(dir), persist.Options{
		SaveWindow:        cfg.Persistence.SaveWindow(),
		TTL:               cfg.Persistence.TTL(),
		CompressThreshold: cfg.Persistence.CompressThreshold(),
	})
}

func connectBroadcaster(ctx context.Context, sc config.SyncConfig) (crosstab.Broadcaster, error) {
	opts, err := redis.ParseURL(sc.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	bc, err := crosstab.NewRedisBroadcaster(opts, sc.Channel)
	if err != nil {
		return nil, err
	}
	if err := bc.Ping(ctx); err != nil {
		bc.Close()
		return nil, fmt.Errorf("redis unreachable: %w", err)
	}
	return bc, nil
}

// clearWidgetErrors drops agent errors addressed at the given widget so
// the slot leaves its error presentation.
func clearWidgetErrors(store *state.Store, widget string) {
	kind := state.Kind(widget)
	if !kind.Valid() {
		return
	}
	store.Mutate(func(s *state.DashboardState) {
		for agent, e := range s.Errors {
			if e.Widget == kind {
				delete(s.Errors, agent)
			}
		}
	})
}
