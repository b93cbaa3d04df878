package bundle

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"noot/internal/config"
	"noot/internal/logging"
	"noot/internal/storage"
	"noot/internal/types"
)

// Exporter serializes the full entity graph into a self-contained bundle
// directory. Exports are read-only against the store and never mutate a
// previously written bundle.
type Exporter struct {
	db     *storage.DB
	cfg    *config.Config
	logger *logging.Logger
}

// NewExporter creates an exporter over the given store.
func NewExporter(db *storage.DB, cfg *config.Config, logger *logging.Logger) *Exporter {
	return &Exporter{db: db, cfg: cfg, logger: logger}
}

// ExportResult describes one completed export.
type ExportResult struct {
	Dir                string
	Manifest           *Manifest
	CopiedAttachments  int
	SkippedAttachments []string
}

// snapshot holds everything the export needs, read in one transaction so the
// manifest counts and the serialized rows are mutually consistent.
type snapshot struct {
	counts           *storage.Counts
	notes            []*types.Note
	contexts         []*types.Context
	contextLinks     []*types.ContextLink
	noteContexts     []*types.NoteContext
	noteLinks        []*types.NoteLink
	meetings         []*types.Meeting
	noteMeetings     []*types.NoteMeeting
	screenContexts   []*types.ScreenContext
	attachments      []*types.Attachment
	calendarAccounts []*types.CalendarAccount
	calendarEvents   []*types.CalendarEvent
	calendarRules    []*types.CalendarSeriesContextRule
}

// Export writes a new timestamp-named bundle under destDir and returns its
// location. A missing attachment file on disk is skipped silently; any other
// I/O failure aborts the export.
func (e *Exporter) Export(destDir string, progress ProgressFunc) (*ExportResult, error) {
	snap, err := e.readSnapshot()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	dir := filepath.Join(destDir, "noot-export-"+now.Format("20060102-150405"))
	for _, sub := range []string{dir, filepath.Join(dir, notesDir), filepath.Join(dir, attachmentsDir)} {
		if err := os.MkdirAll(sub, 0755); err != nil {
			return nil, fmt.Errorf("failed to create bundle directory: %w", err)
		}
	}

	manifest := newManifest(snap.counts, now)
	if err := e.writeCollections(dir, manifest, snap, progress); err != nil {
		return nil, err
	}
	if err := e.writeNotes(dir, snap, progress); err != nil {
		return nil, err
	}

	result := &ExportResult{Dir: dir, Manifest: manifest}
	if err := e.copyAttachments(dir, snap, result, progress); err != nil {
		return nil, err
	}
	if err := e.copyConfig(dir); err != nil {
		return nil, err
	}

	e.logger.Info("Export complete", map[string]interface{}{
		"dir":                 dir,
		"notes":               manifest.NoteCount,
		"attachments":         manifest.AttachmentCount,
		"attachments_skipped": len(result.SkippedAttachments),
	})
	return result, nil
}

func (e *Exporter) readSnapshot() (*snapshot, error) {
	snap := &snapshot{}
	err := e.db.Read(func(q *storage.Queries) error {
		var err error
		if snap.counts, err = q.CountAll(); err != nil {
			return err
		}
		if snap.notes, err = q.ListNotes(true); err != nil {
			return err
		}
		if snap.contexts, err = q.ListContexts(); err != nil {
			return err
		}
		if snap.contextLinks, err = q.ListContextLinks(); err != nil {
			return err
		}
		if snap.noteContexts, err = q.ListNoteContexts(); err != nil {
			return err
		}
		if snap.noteLinks, err = q.ListNoteLinks(); err != nil {
			return err
		}
		if snap.meetings, err = q.ListMeetings(); err != nil {
			return err
		}
		if snap.noteMeetings, err = q.ListNoteMeetings(); err != nil {
			return err
		}
		if snap.screenContexts, err = q.ListScreenContexts(); err != nil {
			return err
		}
		if snap.attachments, err = q.ListAttachments(); err != nil {
			return err
		}
		if snap.calendarAccounts, err = q.ListCalendarAccounts(); err != nil {
			return err
		}
		if snap.calendarEvents, err = q.ListCalendarEvents(); err != nil {
			return err
		}
		snap.calendarRules, err = q.ListCalendarSeriesContextRules()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read store snapshot: %w", err)
	}
	return snap, nil
}

func (e *Exporter) writeCollections(dir string, manifest *Manifest, snap *snapshot, progress ProgressFunc) error {
	files := []struct {
		name string
		v    interface{}
	}{
		{ManifestFile, manifest},
		{"contexts.json", emptyNotNull(snap.contexts)},
		{"context-links.json", emptyNotNull(snap.contextLinks)},
		{"meetings.json", emptyNotNull(snap.meetings)},
		{"calendar-accounts.json", emptyNotNull(snap.calendarAccounts)},
		{"calendar-events.json", emptyNotNull(snap.calendarEvents)},
		{"calendar-rules.json", emptyNotNull(snap.calendarRules)},
	}
	for i, f := range files {
		if err := writeJSON(filepath.Join(dir, f.name), f.v); err != nil {
			return err
		}
		emit(progress, "collections", i+1, len(files))
	}
	return nil
}

// emptyNotNull keeps empty collections as [] rather than null in the JSON.
func emptyNotNull[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func (e *Exporter) writeNotes(dir string, snap *snapshot, progress ProgressFunc) error {
	contextsByID := make(map[string]*types.Context, len(snap.contexts))
	for _, c := range snap.contexts {
		contextsByID[c.ID] = c
	}
	contextRefs := make(map[string][]ContextRef)
	for _, nc := range snap.noteContexts {
		ref := ContextRef{ID: nc.ContextID}
		if c := contextsByID[nc.ContextID]; c != nil {
			ref.Name = c.Name
		}
		contextRefs[nc.NoteID] = append(contextRefs[nc.NoteID], ref)
	}
	linkRefs := make(map[string][]LinkRef)
	for _, l := range snap.noteLinks {
		linkRefs[l.SourceID] = append(linkRefs[l.SourceID], LinkRef{
			TargetID:     l.TargetID,
			Relationship: string(l.Relationship),
		})
	}
	meetingByNote := make(map[string]string)
	for _, nm := range snap.noteMeetings {
		if _, ok := meetingByNote[nm.NoteID]; !ok {
			meetingByNote[nm.NoteID] = nm.MeetingID
		}
	}
	screenByNote := make(map[string]*types.ScreenContext, len(snap.screenContexts))
	for _, sc := range snap.screenContexts {
		screenByNote[sc.NoteID] = sc
	}
	attachmentRefs := make(map[string][]AttachmentRef)
	for _, a := range snap.attachments {
		attachmentRefs[a.NoteID] = append(attachmentRefs[a.NoteID], AttachmentRef{
			ID:              a.ID,
			Type:            string(a.Type),
			Filename:        a.FileName,
			FileSize:        a.FileSize,
			DurationSeconds: a.DurationSeconds,
		})
	}

	for i, n := range snap.notes {
		fm := &NoteFrontmatter{
			ID:          n.ID,
			CreatedAt:   n.CreatedAt,
			UpdatedAt:   n.UpdatedAt,
			ClosedAt:    n.ClosedAt,
			Archived:    n.Archived,
			Contexts:    contextRefs[n.ID],
			Links:       linkRefs[n.ID],
			MeetingID:   meetingByNote[n.ID],
			Attachments: attachmentRefs[n.ID],
		}
		if sc := screenByNote[n.ID]; sc != nil {
			fm.ScreenContext = &ScreenContextRef{
				AppName:    sc.AppName,
				WindowName: sc.WindowName,
				URL:        sc.URL,
				CapturedAt: sc.CapturedAt,
			}
		}

		data, err := EncodeNote(fm, n.Body)
		if err != nil {
			return fmt.Errorf("failed to serialize note %s: %w", n.ID, err)
		}
		path := filepath.Join(dir, notesDir, n.ID+".md")
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("failed to write note %s: %w", n.ID, err)
		}
		emit(progress, "notes", i+1, len(snap.notes))
	}
	return nil
}

func (e *Exporter) copyAttachments(dir string, snap *snapshot, result *ExportResult, progress ProgressFunc) error {
	for i, a := range snap.attachments {
		src := a.FilePath
		if _, err := os.Stat(src); os.IsNotExist(err) {
			// Best-effort: the row stays in the manifest count, only the
			// file is absent from the bundle.
			result.SkippedAttachments = append(result.SkippedAttachments, a.ID)
			e.logger.Debug("Attachment file missing, skipping", map[string]interface{}{
				"attachment_id": a.ID,
				"path":          src,
			})
			emit(progress, "attachments", i+1, len(snap.attachments))
			continue
		}

		dst := filepath.Join(dir, attachmentsDir, a.ID+"-"+string(a.Type)+filepath.Ext(a.FileName))
		if err := copyFile(src, dst); err != nil {
			return fmt.Errorf("failed to copy attachment %s: %w", a.ID, err)
		}
		result.CopiedAttachments++
		emit(progress, "attachments", i+1, len(snap.attachments))
	}
	return nil
}

// copyConfig copies the live config document verbatim into the bundle. A
// store running on pure defaults has no config file yet; that is not an error.
func (e *Exporter) copyConfig(dir string) error {
	src := e.cfg.Path()
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return nil
	}
	if err := copyFile(src, filepath.Join(dir, configFile)); err != nil {
		return fmt.Errorf("failed to copy config: %w", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
