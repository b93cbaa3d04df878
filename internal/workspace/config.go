package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// ConnectionFile is the name of the per-data-dir connection document.
const ConnectionFile = "workspace.toml"

// ConnectionConfig identifies one remote workspace connection: where to
// reach it, how to authenticate, and which container receives the pages.
// The sync ledger is keyed by ID, so disconnecting deletes all ledger rows
// carrying it.
type ConnectionConfig struct {
	ID             string `toml:"id"`
	BaseURL        string `toml:"base_url"`
	Token          string `toml:"token"`
	ContainerID    string `toml:"container_id"`
	ContainerTitle string `toml:"container_title"`
}

// ConnectionPath returns the location of the connection file under dataDir.
func ConnectionPath(dataDir string) string {
	return filepath.Join(dataDir, ConnectionFile)
}

// LoadConnection reads the connection file. It returns (nil, nil) when no
// workspace has been connected yet.
func LoadConnection(dataDir string) (*ConnectionConfig, error) {
	path := ConnectionPath(dataDir)
	var conn ConnectionConfig
	if _, err := toml.DecodeFile(path, &conn); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read workspace connection: %w", err)
	}
	if conn.ID == "" || conn.ContainerID == "" {
		return nil, fmt.Errorf("workspace connection at %s is incomplete", path)
	}
	return &conn, nil
}

// Save writes the connection file. The token is a secret, so the file is
// created owner-readable only.
func (c *ConnectionConfig) Save(dataDir string) error {
	f, err := os.OpenFile(ConnectionPath(dataDir), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to write workspace connection: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("failed to encode workspace connection: %w", err)
	}
	return f.Close()
}

// Remove deletes the connection file. Missing is not an error.
func Remove(dataDir string) error {
	err := os.Remove(ConnectionPath(dataDir))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
