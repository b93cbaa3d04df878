package main

import (
	"fmt"
	"os"

	"noot/internal/config"

	"github.com/spf13/cobra"
)

var (
	initForce bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the noot data directory",
	Long:  "Creates the data directory with a default configuration, the note store, and the attachment and backup trees",
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Rewrite the config file even if one exists")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	dataDir, err := resolveDataDir()
	if err != nil {
		return err
	}

	cfg := config.DefaultConfig(dataDir)

	if _, statErr := os.Stat(cfg.Path()); statErr == nil && !initForce {
		// Idempotent behavior: already initialized is success
		fmt.Println("noot already initialized.")
		fmt.Printf("Configuration at: %s\n", cfg.Path())
		fmt.Println("\nRun 'noot init --force' to rewrite the default configuration.")
		return nil
	}

	for _, dir := range []string{dataDir, cfg.Attachments.Dir, cfg.Backups.Dir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	logger := newLoggerFromConfig(cfg)

	// Open the store once so the schema exists before the first command
	// that needs it.
	db, err := openStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create note store: %w", err)
	}
	defer db.Close()

	logger.Info("noot initialized", map[string]interface{}{
		"data_dir": dataDir,
	})

	fmt.Println("noot initialized successfully!")
	fmt.Printf("Configuration written to: %s\n", cfg.Path())
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Run 'noot export' to snapshot your store as a bundle")
	fmt.Println("  2. Run 'noot workspace connect' to set up remote sync")

	return nil
}
