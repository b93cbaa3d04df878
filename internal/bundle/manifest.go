package bundle

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"noot/internal/storage"
	"noot/internal/version"
)

// SchemaVersion is the current bundle export-format version. Bundles written
// at older versions are upgraded by the migrator at import time.
const SchemaVersion = 1

// ManifestFile is the name of the bundle's self-description document.
const ManifestFile = "manifest.json"

// ErrNotABundle marks a directory that cannot be imported because its
// manifest is absent or unparsable. Callers match it with errors.Is.
var ErrNotABundle = errors.New("not a valid bundle")

// Manifest is the bundle's self-description: entity counts, the app version
// that wrote it, the export-format version, and the export timestamp.
// Counts reflect database rows at export time, not files actually copied.
type Manifest struct {
	NootVersion          string    `json:"nootVersion"`
	SchemaVersion        int       `json:"schemaVersion"`
	ExportedAt           time.Time `json:"exportedAt"`
	NoteCount            int       `json:"noteCount"`
	AttachmentCount      int       `json:"attachmentCount"`
	ContextCount         int       `json:"contextCount"`
	MeetingCount         int       `json:"meetingCount"`
	ContextLinkCount     int       `json:"contextLinkCount"`
	NoteLinkCount        int       `json:"noteLinkCount"`
	ScreenContextCount   int       `json:"screenContextCount"`
	CalendarEventCount   int       `json:"calendarEventCount"`
	CalendarAccountCount int       `json:"calendarAccountCount"`
}

func newManifest(counts *storage.Counts, exportedAt time.Time) *Manifest {
	return &Manifest{
		NootVersion:          version.Version,
		SchemaVersion:        SchemaVersion,
		ExportedAt:           exportedAt,
		NoteCount:            counts.Notes,
		AttachmentCount:      counts.Attachments,
		ContextCount:         counts.Contexts,
		MeetingCount:         counts.Meetings,
		ContextLinkCount:     counts.ContextLinks,
		NoteLinkCount:        counts.NoteLinks,
		ScreenContextCount:   counts.ScreenContexts,
		CalendarEventCount:   counts.CalendarEvents,
		CalendarAccountCount: counts.CalendarAccounts,
	}
}

// readManifest loads and migrates the manifest of a bundle directory. The raw
// JSON is decoded untyped first so the migrator can apply additive defaults,
// then re-decoded into the typed Manifest. Warnings (for example a
// newer-than-supported schema version) are returned alongside.
func readManifest(dir string) (*Manifest, []string, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotABundle, err)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, nil, fmt.Errorf("%w: malformed manifest: %s", ErrNotABundle, err)
	}

	declared := 0
	if v, ok := payload["schemaVersion"].(float64); ok {
		declared = int(v)
	}

	payload, warnings := MigratePayload(payload, declared)

	migrated, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotABundle, err)
	}
	var m Manifest
	if err := json.Unmarshal(migrated, &m); err != nil {
		return nil, nil, fmt.Errorf("%w: malformed manifest: %s", ErrNotABundle, err)
	}
	return &m, warnings, nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// readJSONCollection decodes a flat JSON collection file into dst. A missing
// file is tolerated with a warning since older bundles may predate the
// collection; any other failure is returned.
func readJSONCollection(dir, name string, dst interface{}, warnings *[]string) error {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			*warnings = append(*warnings, fmt.Sprintf("bundle has no %s", name))
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return nil
}
