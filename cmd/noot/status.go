package main

import (
	"fmt"

	"noot/internal/storage"
	"noot/internal/workspace"

	"github.com/spf13/cobra"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store contents and connection state",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print the status as JSON")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLoggerFromConfig(cfg)

	db, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	var counts *storage.Counts
	err = db.Read(func(q *storage.Queries) error {
		counts, err = q.CountAll()
		return err
	})
	if err != nil {
		return err
	}

	conn, err := workspace.LoadConnection(cfg.DataDir)
	if err != nil {
		return err
	}

	if statusJSON {
		out := map[string]interface{}{
			"dataDir": cfg.DataDir,
			"counts":  counts,
		}
		if conn != nil {
			out["workspace"] = map[string]string{
				"container": conn.ContainerTitle,
				"baseUrl":   conn.BaseURL,
			}
		}
		return printJSON(out)
	}

	fmt.Printf("Data directory: %s\n", cfg.DataDir)
	fmt.Printf("Notes:          %d\n", counts.Notes)
	fmt.Printf("Contexts:       %d\n", counts.Contexts)
	fmt.Printf("Meetings:       %d\n", counts.Meetings)
	fmt.Printf("Attachments:    %d\n", counts.Attachments)
	if conn != nil {
		fmt.Printf("Workspace:      %s (%s)\n", conn.ContainerTitle, conn.BaseURL)
	} else {
		fmt.Println("Workspace:      not connected")
	}
	return nil
}
