package bundle

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"noot/internal/config"
	"noot/internal/logging"
	"noot/internal/storage"
	"noot/internal/types"
)

// Mode selects the import conflict policy.
type Mode string

const (
	// ModeMerge adds entities whose ids are absent and skips the rest. It
	// never overwrites existing data.
	ModeMerge Mode = "merge"
	// ModeReplace backs up the current store, wipes it, and loads the
	// bundle as the new truth inside one atomic transaction.
	ModeReplace Mode = "replace"
)

// Report is the terminal result of an import. It is the single source of
// truth for what happened: created counts, skips with named reasons, and
// warnings. There is no silent-success path.
type Report struct {
	Mode                     Mode          `json:"mode"`
	NotesImported            int           `json:"notesImported"`
	ContextsImported         int           `json:"contextsImported"`
	ContextLinksImported     int           `json:"contextLinksImported"`
	NoteLinksImported        int           `json:"noteLinksImported"`
	MeetingsImported         int           `json:"meetingsImported"`
	AttachmentsImported      int           `json:"attachmentsImported"`
	CalendarAccountsImported int           `json:"calendarAccountsImported"`
	CalendarEventsImported   int           `json:"calendarEventsImported"`
	CalendarRulesImported    int           `json:"calendarRulesImported"`
	BackupDir                string        `json:"backupDir,omitempty"`
	Skipped                  []SkippedItem `json:"skipped,omitempty"`
	Warnings                 []string      `json:"warnings,omitempty"`
}

func (r *Report) warn(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

func (r *Report) skip(kind, id, reason string) {
	r.Skipped = append(r.Skipped, SkippedItem{Kind: kind, ID: id, Reason: reason})
}

// Importer parses bundle directories back into entities and commits them
// under one of the two conflict policies.
type Importer struct {
	db     *storage.DB
	cfg    *config.Config
	logger *logging.Logger
}

// NewImporter creates an importer over the given store.
func NewImporter(db *storage.DB, cfg *config.Config, logger *logging.Logger) *Importer {
	return &Importer{db: db, cfg: cfg, logger: logger}
}

// Import loads the bundle at dir into the store under the given mode.
//
// A missing or unparsable manifest fails before any mutation. Integrity
// violations are warnings under merge (merge is purely additive) and a hard
// error under replace. Merge failures are per-entity: the failing entity is
// skipped or warned about and the import continues. Replace is all-or-nothing.
func (i *Importer) Import(dir string, mode Mode, progress ProgressFunc) (*Report, error) {
	b, err := ReadBundle(dir)
	if err != nil {
		return nil, err
	}

	report := &Report{Mode: mode, Skipped: b.Skipped, Warnings: b.Warnings}

	violations := b.Validate()
	if len(violations) > 0 {
		if mode == ModeReplace {
			msgs := make([]string, len(violations))
			for n, v := range violations {
				msgs[n] = v.Message
			}
			return nil, fmt.Errorf("bundle failed integrity validation (%d violations): %s",
				len(violations), strings.Join(msgs, "; "))
		}
		for _, v := range violations {
			report.warn("integrity: %s", v.Message)
		}
	}

	switch mode {
	case ModeMerge:
		err = i.importMerge(b, report, progress)
	case ModeReplace:
		err = i.importReplace(b, report, progress)
	default:
		return nil, fmt.Errorf("unknown import mode %q", mode)
	}
	if err != nil {
		return nil, err
	}

	i.logger.Info("Import complete", map[string]interface{}{
		"mode":     string(mode),
		"notes":    report.NotesImported,
		"contexts": report.ContextsImported,
		"skipped":  len(report.Skipped),
		"warnings": len(report.Warnings),
	})
	return report, nil
}

// importMerge applies the bundle additively. Each phase is its own write
// transaction; inside a phase, entity failures are recorded and skipped so
// partial success is expected and reported.
func (i *Importer) importMerge(b *Bundle, report *Report, progress ProgressFunc) error {
	if err := i.db.Write(func(q *storage.Queries) error {
		i.mergeCollections(q, b, report, progress)
		return nil
	}); err != nil {
		return err
	}

	if err := i.db.Write(func(q *storage.Queries) error {
		for n, nf := range b.Notes {
			i.mergeNote(q, nf, report)
			emit(progress, "notes", n+1, len(b.Notes))
		}
		return nil
	}); err != nil {
		return err
	}

	return i.db.Write(func(q *storage.Queries) error {
		i.mergeAttachments(q, b, report, progress)
		return nil
	})
}

func (i *Importer) mergeCollections(q *storage.Queries, b *Bundle, report *Report, progress ProgressFunc) {
	total := len(b.Contexts) + len(b.ContextLinks) + len(b.Meetings) +
		len(b.CalendarAccounts) + len(b.CalendarEvents) + len(b.CalendarRules)
	done := 0
	tick := func() {
		done++
		emit(progress, "collections", done, total)
	}

	for _, c := range b.Contexts {
		outcome, err := q.InsertContext(c)
		switch {
		case err != nil:
			report.warn("context %s: %v", c.ID, err)
		case outcome == storage.AlreadyExists:
			report.skip("context", c.ID, "already exists")
		default:
			report.ContextsImported++
		}
		tick()
	}
	for _, l := range b.ContextLinks {
		// Duplicate pairs are silent no-ops; link rows are additive.
		outcome, err := q.InsertContextLink(l)
		if err != nil {
			report.warn("context link %s -> %s: %v", l.ParentID, l.ChildID, err)
		} else if outcome == storage.Inserted {
			report.ContextLinksImported++
		}
		tick()
	}
	for _, m := range b.Meetings {
		outcome, err := q.InsertMeeting(m)
		switch {
		case err != nil:
			report.warn("meeting %s: %v", m.ID, err)
		case outcome == storage.AlreadyExists:
			report.skip("meeting", m.ID, "already exists")
		default:
			report.MeetingsImported++
		}
		tick()
	}
	for _, a := range b.CalendarAccounts {
		outcome, err := q.InsertCalendarAccount(a)
		switch {
		case err != nil:
			report.warn("calendar account %s: %v", a.ID, err)
		case outcome == storage.AlreadyExists:
			report.skip("calendar_account", a.ID, "already exists")
		default:
			report.CalendarAccountsImported++
		}
		tick()
	}
	for _, e := range b.CalendarEvents {
		outcome, err := q.InsertCalendarEvent(e)
		switch {
		case err != nil:
			report.warn("calendar event %s: %v", e.ID, err)
		case outcome == storage.AlreadyExists:
			report.skip("calendar_event", e.ID, "already exists")
		default:
			report.CalendarEventsImported++
		}
		tick()
	}
	for _, r := range b.CalendarRules {
		outcome, err := q.InsertCalendarSeriesContextRule(r)
		if err != nil {
			report.warn("calendar rule %s/%s: %v", r.SeriesID, r.ContextID, err)
		} else if outcome == storage.Inserted {
			report.CalendarRulesImported++
		}
		tick()
	}
}

// mergeNote inserts one note and its join rows. The note itself is
// insert-if-absent; join rows are best-effort regardless of whether the note
// was new, since duplicates are harmless no-ops.
func (i *Importer) mergeNote(q *storage.Queries, nf *NoteFile, report *Report) {
	fm := nf.Frontmatter
	note := noteFromFile(nf)

	outcome, err := q.InsertNote(note)
	switch {
	case err != nil:
		report.warn("note %s: %v", fm.ID, err)
		return
	case outcome == storage.AlreadyExists:
		report.skip("note", fm.ID, "already exists")
	default:
		report.NotesImported++
	}

	for _, ref := range fm.Contexts {
		if _, err := q.InsertNoteContext(&types.NoteContext{
			NoteID: fm.ID, ContextID: ref.ID, AssignedAt: fm.CreatedAt,
		}); err != nil {
			report.warn("note %s context %s: %v", fm.ID, ref.ID, err)
		}
	}
	for _, link := range fm.Links {
		outcome, err := q.InsertNoteLink(&types.NoteLink{
			SourceID: fm.ID, TargetID: link.TargetID,
			Relationship: types.LinkRelationship(link.Relationship),
		})
		if err != nil {
			report.warn("note %s link %s: %v", fm.ID, link.TargetID, err)
		} else if outcome == storage.Inserted {
			report.NoteLinksImported++
		}
	}
	if fm.MeetingID != "" {
		if _, err := q.InsertNoteMeeting(&types.NoteMeeting{
			NoteID: fm.ID, MeetingID: fm.MeetingID,
		}); err != nil {
			report.warn("note %s meeting %s: %v", fm.ID, fm.MeetingID, err)
		}
	}
	if fm.ScreenContext != nil {
		if _, err := q.InsertScreenContext(screenContextFromRef(fm.ID, fm.ScreenContext)); err != nil {
			report.warn("note %s screen context: %v", fm.ID, err)
		}
	}
}

// mergeAttachments copies referenced files into the live attachment tree,
// re-keyed by attachment id under a type-specific subdirectory, and inserts
// the corresponding rows. Each attachment succeeds or fails independently of
// its owning note.
func (i *Importer) mergeAttachments(q *storage.Queries, b *Bundle, report *Report, progress ProgressFunc) {
	refs := collectAttachmentRefs(b)
	for n, ar := range refs {
		i.importAttachment(q, b, ar, report)
		emit(progress, "attachments", n+1, len(refs))
	}
}

type ownedRef struct {
	noteID string
	ref    AttachmentRef
}

func collectAttachmentRefs(b *Bundle) []ownedRef {
	var refs []ownedRef
	for _, nf := range b.Notes {
		for _, ref := range nf.Frontmatter.Attachments {
			refs = append(refs, ownedRef{noteID: nf.Frontmatter.ID, ref: ref})
		}
	}
	return refs
}

func (i *Importer) importAttachment(q *storage.Queries, b *Bundle, ar ownedRef, report *Report) {
	ref := ar.ref
	existing, err := q.GetAttachment(ref.ID)
	if err != nil {
		report.warn("attachment %s: %v", ref.ID, err)
		return
	}
	if existing != nil {
		report.skip("attachment", ref.ID, "already exists")
		return
	}

	src := b.AttachmentPath(ref)
	dst := filepath.Join(i.cfg.Attachments.Dir, ref.Type, ref.ID+filepath.Ext(ref.Filename))
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		report.skip("attachment", ref.ID, "copy failed")
		return
	}
	if _, err := os.Stat(src); os.IsNotExist(err) {
		report.skip("attachment", ref.ID, "file missing from bundle")
		return
	}
	if err := copyFile(src, dst); err != nil {
		report.skip("attachment", ref.ID, "copy failed")
		return
	}

	if _, err := q.InsertAttachment(&types.Attachment{
		ID:              ref.ID,
		NoteID:          ar.noteID,
		Type:            types.AttachmentType(ref.Type),
		FileName:        ref.Filename,
		FilePath:        dst,
		FileSize:        ref.FileSize,
		DurationSeconds: ref.DurationSeconds,
		CreatedAt:       time.Now().UTC(),
	}); err != nil {
		report.warn("attachment %s: %v", ref.ID, err)
		return
	}
	report.AttachmentsImported++
}

// importReplace wipes the store and loads the bundle as the new truth. A
// full export of the current store is taken first as a safety backup; the
// wipe and reload are one atomic transaction so a crash cannot leave the
// store half-cleared.
func (i *Importer) importReplace(b *Bundle, report *Report, progress ProgressFunc) error {
	exporter := NewExporter(i.db, i.cfg, i.logger)
	backup, err := exporter.Export(i.cfg.Backups.Dir, nil)
	if err != nil {
		return fmt.Errorf("pre-replace backup failed: %w", err)
	}
	report.BackupDir = backup.Dir
	if archive, err := ArchiveBundle(backup.Dir); err != nil {
		report.warn("backup archive failed, keeping plain directory: %v", err)
	} else {
		os.RemoveAll(backup.Dir)
		report.BackupDir = archive
	}

	// File copies happen before the transaction; a row whose file failed to
	// copy still imports, mirroring export's missing-file tolerance.
	copied := i.copyReplaceAttachments(b, report)

	err = i.db.Write(func(q *storage.Queries) error {
		if err := q.ClearAll(); err != nil {
			return err
		}
		return i.insertAll(q, b, report, copied, progress)
	})
	if err != nil {
		return fmt.Errorf("replace import failed (backup at %s): %w", report.BackupDir, err)
	}

	// The bundle's configuration becomes live only once replace succeeded.
	if src, ok := b.ConfigPath(); ok {
		if err := copyFile(src, i.cfg.Path()); err != nil {
			report.warn("failed to apply bundle config: %v", err)
		}
	}
	return nil
}

func (i *Importer) copyReplaceAttachments(b *Bundle, report *Report) map[string]string {
	copied := make(map[string]string)
	for _, ar := range collectAttachmentRefs(b) {
		ref := ar.ref
		src := b.AttachmentPath(ref)
		dst := filepath.Join(i.cfg.Attachments.Dir, ref.Type, ref.ID+filepath.Ext(ref.Filename))
		if _, err := os.Stat(src); os.IsNotExist(err) {
			report.warn("attachment %s: file missing from bundle", ref.ID)
			copied[ref.ID] = dst
			continue
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			report.warn("attachment %s: %v", ref.ID, err)
			continue
		}
		if err := copyFile(src, dst); err != nil {
			report.warn("attachment %s: %v", ref.ID, err)
			continue
		}
		copied[ref.ID] = dst
	}
	return copied
}

// insertAll loads every bundle entity inside the replace transaction. Any
// failure aborts the whole transaction.
func (i *Importer) insertAll(q *storage.Queries, b *Bundle, report *Report, attachmentPaths map[string]string, progress ProgressFunc) error {
	i.resetCounts(report)

	for _, c := range b.Contexts {
		if _, err := q.InsertContext(c); err != nil {
			return err
		}
		report.ContextsImported++
	}
	for _, l := range b.ContextLinks {
		if _, err := q.InsertContextLink(l); err != nil {
			return err
		}
		report.ContextLinksImported++
	}
	for _, m := range b.Meetings {
		if _, err := q.InsertMeeting(m); err != nil {
			return err
		}
		report.MeetingsImported++
	}
	for _, a := range b.CalendarAccounts {
		if _, err := q.InsertCalendarAccount(a); err != nil {
			return err
		}
		report.CalendarAccountsImported++
	}
	for _, e := range b.CalendarEvents {
		if _, err := q.InsertCalendarEvent(e); err != nil {
			return err
		}
		report.CalendarEventsImported++
	}
	for _, r := range b.CalendarRules {
		if _, err := q.InsertCalendarSeriesContextRule(r); err != nil {
			return err
		}
		report.CalendarRulesImported++
	}

	for n, nf := range b.Notes {
		if err := i.insertNoteReplace(q, nf, report, attachmentPaths); err != nil {
			return err
		}
		emit(progress, "notes", n+1, len(b.Notes))
	}
	return nil
}

func (i *Importer) insertNoteReplace(q *storage.Queries, nf *NoteFile, report *Report, attachmentPaths map[string]string) error {
	fm := nf.Frontmatter
	if _, err := q.InsertNote(noteFromFile(nf)); err != nil {
		return err
	}
	report.NotesImported++

	for _, ref := range fm.Contexts {
		if _, err := q.InsertNoteContext(&types.NoteContext{
			NoteID: fm.ID, ContextID: ref.ID, AssignedAt: fm.CreatedAt,
		}); err != nil {
			return err
		}
	}
	for _, link := range fm.Links {
		if _, err := q.InsertNoteLink(&types.NoteLink{
			SourceID: fm.ID, TargetID: link.TargetID,
			Relationship: types.LinkRelationship(link.Relationship),
		}); err != nil {
			return err
		}
		report.NoteLinksImported++
	}
	if fm.MeetingID != "" {
		if _, err := q.InsertNoteMeeting(&types.NoteMeeting{NoteID: fm.ID, MeetingID: fm.MeetingID}); err != nil {
			return err
		}
	}
	if fm.ScreenContext != nil {
		if _, err := q.InsertScreenContext(screenContextFromRef(fm.ID, fm.ScreenContext)); err != nil {
			return err
		}
	}
	for _, ref := range fm.Attachments {
		dst, ok := attachmentPaths[ref.ID]
		if !ok {
			// The file never made it into the live tree; the row is dropped
			// with it, already warned about during the copy phase.
			continue
		}
		if _, err := q.InsertAttachment(&types.Attachment{
			ID:              ref.ID,
			NoteID:          fm.ID,
			Type:            types.AttachmentType(ref.Type),
			FileName:        ref.Filename,
			FilePath:        dst,
			FileSize:        ref.FileSize,
			DurationSeconds: ref.DurationSeconds,
			CreatedAt:       time.Now().UTC(),
		}); err != nil {
			return err
		}
		report.AttachmentsImported++
	}
	return nil
}

func (i *Importer) resetCounts(report *Report) {
	report.NotesImported = 0
	report.ContextsImported = 0
	report.ContextLinksImported = 0
	report.NoteLinksImported = 0
	report.MeetingsImported = 0
	report.AttachmentsImported = 0
	report.CalendarAccountsImported = 0
	report.CalendarEventsImported = 0
	report.CalendarRulesImported = 0
}

func noteFromFile(nf *NoteFile) *types.Note {
	fm := nf.Frontmatter
	return &types.Note{
		ID:        fm.ID,
		Body:      nf.Body,
		CreatedAt: fm.CreatedAt,
		UpdatedAt: fm.UpdatedAt,
		ClosedAt:  fm.ClosedAt,
		Archived:  fm.Archived,
	}
}

func screenContextFromRef(noteID string, ref *ScreenContextRef) *types.ScreenContext {
	return &types.ScreenContext{
		NoteID:     noteID,
		AppName:    ref.AppName,
		WindowName: ref.WindowName,
		URL:        ref.URL,
		CapturedAt: ref.CapturedAt,
	}
}
