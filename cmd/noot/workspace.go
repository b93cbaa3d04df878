package main

import (
	"context"
	"fmt"
	"strings"

	"noot/internal/workspace"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	connectURL       string
	connectToken     string
	connectContainer string
)

var workspaceCmd = &cobra.Command{
	Use:   "workspace",
	Short: "Manage the remote workspace connection",
}

var workspaceConnectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect to a remote workspace container",
	Long: `Connect noot to a container in a remote document workspace.

The container's schema is checked for the properties sync needs (title,
note id, updated timestamp, archived flag, meeting reference); missing ones
are created. Existing properties are matched by name case-insensitively and
reused as-is.

Examples:
  noot workspace connect --url https://ws.example.com --token wsk_... --container Notes`,
	RunE: runWorkspaceConnect,
}

var workspaceDisconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Remove the workspace connection and its sync ledger",
	RunE:  runWorkspaceDisconnect,
}

var workspaceResyncCmd = &cobra.Command{
	Use:   "resync",
	Short: "Clear the sync ledger and push every note again",
	Long: `Drop the per-note sync ledger for the current connection and run a full
sweep. Every note is re-created remotely, which recovers from pages that
were deleted or mangled on the remote side.`,
	RunE: runWorkspaceResync,
}

func init() {
	workspaceConnectCmd.Flags().StringVar(&connectURL, "url", "", "Workspace base URL")
	workspaceConnectCmd.Flags().StringVar(&connectToken, "token", "", "API token")
	workspaceConnectCmd.Flags().StringVar(&connectContainer, "container", "", "Container title to sync into")
	_ = workspaceConnectCmd.MarkFlagRequired("url")
	_ = workspaceConnectCmd.MarkFlagRequired("token")
	_ = workspaceConnectCmd.MarkFlagRequired("container")

	workspaceCmd.AddCommand(workspaceConnectCmd)
	workspaceCmd.AddCommand(workspaceDisconnectCmd)
	workspaceCmd.AddCommand(workspaceResyncCmd)
	rootCmd.AddCommand(workspaceCmd)
}

func runWorkspaceConnect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLoggerFromConfig(cfg)

	if existing, err := workspace.LoadConnection(cfg.DataDir); err != nil {
		return err
	} else if existing != nil {
		return fmt.Errorf("already connected to container %q. Run 'noot workspace disconnect' first", existing.ContainerTitle)
	}

	ctx := context.Background()
	client := workspace.NewClient(connectURL, connectToken, logger)

	containers, err := client.SearchContainers(ctx, connectContainer)
	if err != nil {
		return fmt.Errorf("failed to search containers: %w", err)
	}

	container := matchContainer(containers, connectContainer)
	if container == nil {
		return fmt.Errorf("no container titled %q found", connectContainer)
	}

	if _, err := workspace.EnsureProperties(ctx, client, container.ID); err != nil {
		return fmt.Errorf("failed to prepare container schema: %w", err)
	}

	conn := &workspace.ConnectionConfig{
		ID:             uuid.NewString(),
		BaseURL:        connectURL,
		Token:          connectToken,
		ContainerID:    container.ID,
		ContainerTitle: container.Title,
	}
	if err := conn.Save(cfg.DataDir); err != nil {
		return err
	}

	logger.Info("Workspace connected", map[string]interface{}{
		"connection": conn.ID,
		"container":  container.ID,
	})
	fmt.Printf("Connected to container %q. Run 'noot sync' to push your notes.\n", container.Title)
	return nil
}

// matchContainer prefers an exact case-insensitive title match, falling back
// to the first result.
func matchContainer(containers []workspace.Container, title string) *workspace.Container {
	for i := range containers {
		if strings.EqualFold(containers[i].Title, title) {
			return &containers[i]
		}
	}
	if len(containers) > 0 {
		return &containers[0]
	}
	return nil
}

func runWorkspaceDisconnect(cmd *cobra.Command, args []string) error {
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

	deleted, err := syncer.ClearLedger()
	if err != nil {
		return fmt.Errorf("failed to clear sync ledger: %w", err)
	}
	if err := workspace.Remove(cfg.DataDir); err != nil {
		return fmt.Errorf("failed to remove connection file: %w", err)
	}

	fmt.Printf("Disconnected from %q. Removed %d ledger entries; remote pages were left in place.\n",
		conn.ContainerTitle, deleted)
	return nil
}

func runWorkspaceResync(cmd *cobra.Command, args []string) error {
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

	if _, err := syncer.ClearLedger(); err != nil {
		return fmt.Errorf("failed to clear sync ledger: %w", err)
	}

	result, err := syncer.Sweep(context.Background(), syncProgressPrinter())
	if err != nil {
		return err
	}
	return printSyncResult(result)
}
