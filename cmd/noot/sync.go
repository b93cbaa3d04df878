package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"noot/internal/config"
	"noot/internal/logging"
	"noot/internal/scheduler"
	"noot/internal/workspace"

	"github.com/spf13/cobra"
)

var (
	syncNoteID string
	syncWatch  bool
	syncJSON   bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push notes to the connected workspace",
	Long: `Push notes into the connected remote workspace.

By default this runs one full sweep: every eligible note whose content
changed since its last push is created or updated remotely, and unchanged
notes are left alone. A note that fails does not stop the sweep.

Examples:
  noot sync
  noot sync --note 4f6b1f0a-8a9e-4d57-bb0e-2f41f6f2a915
  noot sync --watch`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().StringVar(&syncNoteID, "note", "", "Sync a single note by id")
	syncCmd.Flags().BoolVar(&syncWatch, "watch", false, "Keep running and sweep on the configured interval")
	syncCmd.Flags().BoolVar(&syncJSON, "json", false, "Print the result as JSON")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	if syncNoteID != "" && syncWatch {
		return fmt.Errorf("--note and --watch are mutually exclusive")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLoggerFromConfig(cfg)

	conn, err := requireConnection(cfg)
	if err != nil {
		return err
	}

	db, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	client := workspace.NewClient(conn.BaseURL, conn.Token, logger)
	syncer := workspace.NewSyncer(db, client, conn, cfg, logger)
	ctx := context.Background()

	if syncNoteID != "" {
		result, err := syncer.SyncNote(ctx, syncNoteID)
		if err != nil {
			return err
		}
		return printSyncResult(result)
	}

	if syncWatch {
		return runSyncWatch(syncer, cfg, logger)
	}

	result, err := syncer.Sweep(ctx, syncProgressPrinter())
	if err != nil {
		return err
	}
	return printSyncResult(result)
}

// runSyncWatch sweeps on the configured interval until interrupted. The
// scheduler holds the in-flight gate, so a slow sweep never overlaps the
// next tick.
func runSyncWatch(syncer *workspace.Syncer, cfg *config.Config, logger *logging.Logger) error {
	interval := time.Duration(cfg.Sync.IntervalMinutes) * time.Minute
	sched, err := scheduler.New(func(ctx context.Context) error {
		result, err := syncer.Sweep(ctx, nil)
		if err != nil {
			return err
		}
		if result.Failed > 0 {
			return fmt.Errorf("%d notes failed to sync", result.Failed)
		}
		return nil
	}, interval, logger)
	if err != nil {
		return err
	}

	if err := sched.Start(); err != nil {
		return err
	}
	fmt.Printf("Syncing every %s. Press Ctrl+C to stop.\n", interval)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	return sched.Stop(30 * time.Second)
}

func printSyncResult(result *workspace.SyncResult) error {
	if syncJSON {
		return printJSON(result)
	}
	fmt.Printf("Sync complete: %d created, %d updated, %d unchanged, %d failed\n",
		result.Created, result.Updated, result.Unchanged, result.Failed)
	for _, e := range result.Errors {
		fmt.Printf("  error: %s\n", e)
	}
	return nil
}

// syncProgressPrinter writes per-note progress to stderr, keeping stdout
// clean for the result. Quiet under --json.
func syncProgressPrinter() workspace.SyncProgressFunc {
	if syncJSON {
		return nil
	}
	return func(p workspace.SyncProgress) {
		fmt.Fprintf(os.Stderr, "\r\033[K%d/%d %s", p.Current, p.Total, p.NoteLabel)
		if p.Current == p.Total {
			fmt.Fprintln(os.Stderr)
		}
	}
}
