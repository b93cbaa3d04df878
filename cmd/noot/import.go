package main

import (
	"fmt"
	"os"
	"strings"

	"noot/internal/bundle"

	"github.com/spf13/cobra"
)

var (
	importMode   string
	importFolder bool
	importJSON   bool
)

var importCmd = &cobra.Command{
	Use:   "import <path>",
	Short: "Import a bundle or a folder of markdown files",
	Long: `Import notes from a bundle directory, a .tar.zst bundle archive, or a
plain folder of markdown files.

Merge mode adds entities that are not in the store yet and skips the rest;
it never overwrites existing data. Replace mode backs up the current store,
wipes it, and loads the bundle as the new truth in one transaction.

Plain folders (--folder) have no frontmatter: every markdown file becomes a
new note, and first-level subfolder names become contexts.

Examples:
  noot import ./noot-export-20260827-120000
  noot import backup.tar.zst --mode replace
  noot import ~/Documents/notes --folder`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVar(&importMode, "mode", "merge", "Conflict policy: merge or replace")
	importCmd.Flags().BoolVar(&importFolder, "folder", false, "Treat the path as a plain markdown folder, not a bundle")
	importCmd.Flags().BoolVar(&importJSON, "json", false, "Print the report as JSON")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	path := args[0]

	mode := bundle.Mode(importMode)
	if mode != bundle.ModeMerge && mode != bundle.ModeReplace {
		return fmt.Errorf("invalid mode %q: must be merge or replace", importMode)
	}

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

	importer := bundle.NewImporter(db, cfg, logger)
	progress := progressPrinter(importJSON)

	var report *bundle.Report
	switch {
	case importFolder:
		report, err = importer.ImportFolder(path, progress)
	case strings.HasSuffix(path, ".tar.zst"):
		tmp, mkErr := os.MkdirTemp("", "noot-import-")
		if mkErr != nil {
			return mkErr
		}
		defer os.RemoveAll(tmp)

		extracted, exErr := bundle.ExtractArchive(path, tmp)
		if exErr != nil {
			return fmt.Errorf("failed to extract archive: %w", exErr)
		}
		report, err = importer.Import(extracted, mode, progress)
	default:
		report, err = importer.Import(path, mode, progress)
	}
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	if importJSON {
		return printJSON(report)
	}

	printReport(report)
	return nil
}

func printReport(report *bundle.Report) {
	fmt.Printf("Imported %d notes, %d contexts, %d meetings, %d attachments\n",
		report.NotesImported, report.ContextsImported,
		report.MeetingsImported, report.AttachmentsImported)
	if report.BackupDir != "" {
		fmt.Printf("Previous store backed up to: %s\n", report.BackupDir)
	}
	for _, s := range report.Skipped {
		fmt.Printf("  skipped %s %s: %s\n", s.Kind, s.ID, s.Reason)
	}
	for _, w := range report.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
}
