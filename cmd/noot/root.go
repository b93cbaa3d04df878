package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"noot/internal/config"
	"noot/internal/logging"
	"noot/internal/storage"
	"noot/internal/version"
	"noot/internal/workspace"

	"github.com/spf13/cobra"
)

var (
	// dataDirFlag is the CLI --data-dir flag value
	dataDirFlag string
)

var rootCmd = &cobra.Command{
	Use:   "noot",
	Short: "Noot - personal knowledge capture",
	Long: `Noot is a personal knowledge capture tool. It keeps notes, contexts,
meetings, and attachments in a local store, exports and imports them as
portable bundles, and pushes notes into a connected remote document workspace.`,
	Version: version.Version,
}

func init() {
	rootCmd.SetVersionTemplate("noot version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "",
		"Data directory (default: $NOOT_DATA_DIR or ~/.noot)")
}

// resolveDataDir determines the effective data directory.
// Precedence: CLI flag > NOOT_DATA_DIR env var > ~/.noot
func resolveDataDir() (string, error) {
	if dataDirFlag != "" {
		return dataDirFlag, nil
	}
	if env := os.Getenv("NOOT_DATA_DIR"); env != "" {
		return env, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".noot"), nil
}

// loadConfig resolves the data directory and loads its configuration,
// falling back to defaults when no config file exists yet.
func loadConfig() (*config.Config, error) {
	dataDir, err := resolveDataDir()
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadConfig(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLoggerFromConfig builds the logger the config asks for.
func newLoggerFromConfig(cfg *config.Config) *logging.Logger {
	return logging.NewLogger(logging.Config{
		Format: logging.Format(cfg.Logging.Format),
		Level:  logging.LogLevel(cfg.Logging.Level),
	})
}

// openStore opens the SQLite store under the data directory, creating the
// schema on first use.
func openStore(cfg *config.Config, logger *logging.Logger) (*storage.DB, error) {
	return storage.Open(cfg.DataDir, logger)
}

// requireConnection loads the workspace connection and fails with a hint
// when none exists.
func requireConnection(cfg *config.Config) (*workspace.ConnectionConfig, error) {
	conn, err := workspace.LoadConnection(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, fmt.Errorf("no workspace connected. Run 'noot workspace connect' first")
	}
	return conn, nil
}

// printJSON renders v as indented JSON on stdout.
func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
