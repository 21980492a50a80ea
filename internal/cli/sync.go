package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Dicklesworthstone/hud/internal/serversync"
	"github.com/Dicklesworthstone/hud/internal/state"
)

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Push or restore dashboard state via the remote session store",
	}
	cmd.AddCommand(newSyncNowCmd(), newSyncRestoreCmd())
	return cmd
}

func remoteClient() (*serversync.Client, error) {
	if !cfg.Server.Enabled || cfg.Server.URL == "" {
		return nil, fmt.Errorf("no remote session store configured (set server.url)")
	}
	return serversync.NewClient(cfg.Server.URL, cfg.Server.Token, 0), nil
}

func newSyncNowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "now",
		Short: "Push the persisted snapshot to the remote store",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := remoteClient()
			if err != nil {
				return err
			}
			snap, err := loadSnapshot()
			if err != nil {
				return err
			}
			if snap == nil {
				return fmt.Errorf("no persisted state to push")
			}
			if err := client.Push(cmd.Context(), snap.Snapshot()); err != nil {
				return fmt.Errorf("pushing state: %w", err)
			}
			cmd.Printf("Pushed state from %s to %s\n",
				time.UnixMilli(snap.Timestamp).Format(time.RFC3339), cfg.Server.URL)
			return nil
		},
	}
}

func newSyncRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore",
		Short: "Restore dashboard state from the remote store",
		Long: `Fetch the remote snapshot, verify its schema version and age, and
install it as the local persisted state. The local snapshot wins if it
is newer than the remote one.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := remoteClient()
			if err != nil {
				return err
			}

			store := state.NewStore()
			pc := newPersistController(store, cfg)
			if local, err := pc.Load(); err == nil && local != nil {
				store.ReplaceIfNewer(*local)
			}
			pc.Start()
			defer pc.Stop()

			bridge := serversync.NewBridge(store, client, serversync.Options{
				SyncWindow: cfg.Server.SyncWindow(),
				TTL:        cfg.Persistence.TTL(),
			})
			if err := bridge.RestoreNow(cmd.Context()); err != nil {
				return fmt.Errorf("restoring state: %w", err)
			}
			pc.Flush()

			snap := store.Get()
			cmd.Printf("Restored state from %s (last updated %s)\n",
				cfg.Server.URL, time.UnixMilli(snap.Timestamp).Format(time.RFC3339))
			return nil
		},
	}
}
