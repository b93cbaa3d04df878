package main

import (
	"fmt"
	"os"

	"noot/internal/bundle"

	"github.com/spf13/cobra"
)

var (
	exportDest    string
	exportArchive bool
	exportJSON    bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the store as a portable bundle",
	Long: `Export every note, context, meeting, attachment, and calendar record
into a self-contained bundle directory.

The bundle holds one markdown file per note with YAML frontmatter, JSON
collections for the other entities, the attachment files, and a manifest
with entity counts. A bundle can be imported back with 'noot import'.

Examples:
  noot export
  noot export --dest /backups
  noot export --archive`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportDest, "dest", "", "Destination directory (default: current directory)")
	exportCmd.Flags().BoolVar(&exportArchive, "archive", false, "Compress the bundle into a .tar.zst archive")
	exportCmd.Flags().BoolVar(&exportJSON, "json", false, "Print the result as JSON")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
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

	dest := exportDest
	if dest == "" {
		if dest, err = os.Getwd(); err != nil {
			return err
		}
	}

	exporter := bundle.NewExporter(db, cfg, logger)
	result, err := exporter.Export(dest, progressPrinter(exportJSON))
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	location := result.Dir
	if exportArchive {
		archive, err := bundle.ArchiveBundle(result.Dir)
		if err != nil {
			return fmt.Errorf("failed to archive bundle: %w", err)
		}
		if err := os.RemoveAll(result.Dir); err != nil {
			return fmt.Errorf("failed to remove bundle directory after archiving: %w", err)
		}
		location = archive
	}

	if exportJSON {
		return printJSON(map[string]interface{}{
			"location":           location,
			"manifest":           result.Manifest,
			"copiedAttachments":  result.CopiedAttachments,
			"skippedAttachments": result.SkippedAttachments,
		})
	}

	fmt.Printf("Exported %d notes, %d contexts, %d meetings, %d attachments\n",
		result.Manifest.NoteCount, result.Manifest.ContextCount,
		result.Manifest.MeetingCount, result.Manifest.AttachmentCount)
	for _, id := range result.SkippedAttachments {
		fmt.Printf("  skipped attachment %s: file missing on disk\n", id)
	}
	fmt.Printf("Bundle written to: %s\n", location)
	return nil
}

// progressPrinter writes progress ticks to stderr so stdout stays clean for
// the result. Quiet when the caller asked for JSON output.
func progressPrinter(jsonOut bool) bundle.ProgressFunc {
	if jsonOut {
		return nil
	}
	return func(p bundle.Progress) {
		fmt.Fprintf(os.Stderr, "\r%s: %d/%d", p.Phase, p.Current, p.Total)
		if p.Current == p.Total {
			fmt.Fprintln(os.Stderr)
		}
	}
}
