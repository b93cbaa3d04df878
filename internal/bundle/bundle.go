package bundle

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"noot/internal/types"
)

const (
	notesDir       = "notes"
	attachmentsDir = "attachments"
	configFile     = "config.json"
)

// NoteFile is one parsed note from the bundle's notes/ directory.
type NoteFile struct {
	Frontmatter *NoteFrontmatter
	Body        string
	Path        string
}

// SkippedItem records one entity the importer did not apply, with a named
// reason ("already exists", "no frontmatter", "invalid id", ...).
type SkippedItem struct {
	Kind   string `json:"kind"`
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// Bundle is a fully deserialized export directory, ready for validation and
// import. Skipped carries per-file parse skips; Warnings carries
// compatibility notes from manifest migration and missing collections.
type Bundle struct {
	Dir      string
	Manifest *Manifest

	Contexts         []*types.Context
	ContextLinks     []*types.ContextLink
	Meetings         []*types.Meeting
	CalendarAccounts []*types.CalendarAccount
	CalendarEvents   []*types.CalendarEvent
	CalendarRules    []*types.CalendarSeriesContextRule
	Notes            []*NoteFile

	Skipped  []SkippedItem
	Warnings []string
}

// ReadBundle loads a bundle directory into memory. An absent or unparsable
// manifest fails with ErrNotABundle before anything else is touched; per-note
// parse failures are recorded as skips, not errors.
func ReadBundle(dir string) (*Bundle, error) {
	manifest, warnings, err := readManifest(dir)
	if err != nil {
		return nil, err
	}

	b := &Bundle{
		Dir:      dir,
		Manifest: manifest,
		Warnings: warnings,
	}

	for _, c := range []struct {
		name string
		dst  interface{}
	}{
		{"contexts.json", &b.Contexts},
		{"context-links.json", &b.ContextLinks},
		{"meetings.json", &b.Meetings},
		{"calendar-accounts.json", &b.CalendarAccounts},
		{"calendar-events.json", &b.CalendarEvents},
		{"calendar-rules.json", &b.CalendarRules},
	} {
		if err := readJSONCollection(dir, c.name, c.dst, &b.Warnings); err != nil {
			return nil, err
		}
	}

	if err := b.readNotes(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Bundle) readNotes() error {
	dir := filepath.Join(b.Dir, notesDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			b.Warnings = append(b.Warnings, "bundle has no notes directory")
			return nil
		}
		return fmt.Errorf("failed to read notes directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".md") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read note file %s: %w", name, err)
		}

		fm, body, err := DecodeNote(data)
		if err == ErrNoFrontmatter {
			b.Skipped = append(b.Skipped, SkippedItem{Kind: "note", ID: name, Reason: "no frontmatter"})
			continue
		}
		if err != nil {
			b.Skipped = append(b.Skipped, SkippedItem{Kind: "note", ID: name, Reason: "invalid frontmatter"})
			continue
		}
		if uuid.Validate(fm.ID) != nil {
			b.Skipped = append(b.Skipped, SkippedItem{Kind: "note", ID: name, Reason: "invalid id"})
			continue
		}
		b.Notes = append(b.Notes, &NoteFile{Frontmatter: fm, Body: body, Path: path})
	}
	return nil
}

// AttachmentPath returns the on-disk location inside the bundle for one
// attachment ref: attachments/{id}-{type}{original extension}.
func (b *Bundle) AttachmentPath(ref AttachmentRef) string {
	ext := filepath.Ext(ref.Filename)
	return filepath.Join(b.Dir, attachmentsDir, ref.ID+"-"+ref.Type+ext)
}

// ConfigPath returns the bundle's config document path and whether it exists.
func (b *Bundle) ConfigPath() (string, bool) {
	path := filepath.Join(b.Dir, configFile)
	_, err := os.Stat(path)
	return path, err == nil
}
