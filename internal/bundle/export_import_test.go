package bundle

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"noot/internal/config"
	"noot/internal/logging"
	"noot/internal/storage"
	"noot/internal/types"
)

type harness struct {
	db       *storage.DB
	cfg      *config.Config
	exporter *Exporter
	importer *Importer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dataDir := t.TempDir()
	cfg := config.DefaultConfig(dataDir)
	logger := logging.NewLogger(logging.Config{Level: logging.ErrorLevel, Format: logging.JSONFormat})

	db, err := storage.Open(dataDir, logger)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return &harness{
		db:       db,
		cfg:      cfg,
		exporter: NewExporter(db, cfg, logger),
		importer: NewImporter(db, cfg, logger),
	}
}

func (h *harness) write(t *testing.T, fn func(q *storage.Queries) error) {
	t.Helper()
	if err := h.db.Write(fn); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
}

type scenarioIDs struct {
	noteA, noteB, contextID, attachmentID string
}

// seedScenario builds the store of spec scenario A: note A tagged "Backend"
// with one attachment, note B untagged.
func seedScenario(t *testing.T, h *harness) scenarioIDs {
	t.Helper()
	ids := scenarioIDs{
		noteA:        uuid.NewString(),
		noteB:        uuid.NewString(),
		contextID:    uuid.NewString(),
		attachmentID: uuid.NewString(),
	}
	now := time.Date(2026, 5, 20, 14, 0, 0, 0, time.UTC)

	attachmentFile := filepath.Join(h.cfg.Attachments.Dir, "image", ids.attachmentID+".png")
	if err := os.MkdirAll(filepath.Dir(attachmentFile), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(attachmentFile, []byte("png-bytes"), 0644); err != nil {
		t.Fatal(err)
	}

	h.write(t, func(q *storage.Queries) error {
		if _, err := q.InsertContext(&types.Context{
			ID: ids.contextID, Name: "Backend", Type: types.ContextDomain, CreatedAt: now,
		}); err != nil {
			return err
		}
		for _, n := range []*types.Note{
			{ID: ids.noteA, Body: "note A body", CreatedAt: now, UpdatedAt: now},
			{ID: ids.noteB, Body: "note B body", CreatedAt: now, UpdatedAt: now},
		} {
			if _, err := q.InsertNote(n); err != nil {
				return err
			}
		}
		if _, err := q.InsertNoteContext(&types.NoteContext{
			NoteID: ids.noteA, ContextID: ids.contextID, AssignedAt: now,
		}); err != nil {
			return err
		}
		_, err := q.InsertAttachment(&types.Attachment{
			ID: ids.attachmentID, NoteID: ids.noteA, Type: types.AttachmentImage,
			FileName: "diagram.png", FilePath: attachmentFile, FileSize: 9, CreatedAt: now,
		})
		return err
	})
	return ids
}

func TestExportScenario(t *testing.T) {
	h := newHarness(t)
	ids := seedScenario(t, h)

	result, err := h.exporter.Export(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	m := result.Manifest
	if m.NoteCount != 2 || m.ContextCount != 1 || m.AttachmentCount != 1 {
		t.Errorf("unexpected manifest counts: %+v", m)
	}

	// Note A carries its context ref with the human-readable name.
	dataA, err := os.ReadFile(filepath.Join(result.Dir, "notes", ids.noteA+".md"))
	if err != nil {
		t.Fatal(err)
	}
	fmA, body, err := DecodeNote(dataA)
	if err != nil {
		t.Fatalf("note A did not decode: %v", err)
	}
	if body != "note A body" {
		t.Errorf("note A body mismatch: %q", body)
	}
	if len(fmA.Contexts) != 1 || fmA.Contexts[0].ID != ids.contextID || fmA.Contexts[0].Name != "Backend" {
		t.Errorf("note A contexts: %+v", fmA.Contexts)
	}
	if len(fmA.Attachments) != 1 || fmA.Attachments[0].ID != ids.attachmentID {
		t.Errorf("note A attachments: %+v", fmA.Attachments)
	}

	// Note B has no contexts key at all.
	dataB, err := os.ReadFile(filepath.Join(result.Dir, "notes", ids.noteB+".md"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(dataB), "contexts:") {
		t.Error("untagged note has a contexts key")
	}

	// Exactly one copied attachment file.
	entries, err := os.ReadDir(filepath.Join(result.Dir, "attachments"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 attachment file, got %d", len(entries))
	}
	wantName := ids.attachmentID + "-image.png"
	if entries[0].Name() != wantName {
		t.Errorf("attachment file named %q, want %q", entries[0].Name(), wantName)
	}
}

func TestMergeReimportSameStore(t *testing.T) {
	h := newHarness(t)
	seedScenario(t, h)

	result, err := h.exporter.Export(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	report, err := h.importer.Import(result.Dir, ModeMerge, nil)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	if report.NotesImported != 0 {
		t.Errorf("notesImported = %d, want 0", report.NotesImported)
	}
	if report.ContextsImported != 0 {
		t.Errorf("contextsImported = %d, want 0", report.ContextsImported)
	}

	noteSkips := 0
	for _, s := range report.Skipped {
		if s.Kind == "note" {
			if s.Reason != "already exists" {
				t.Errorf("note skip reason %q", s.Reason)
			}
			noteSkips++
		}
	}
	if noteSkips != 2 {
		t.Errorf("expected 2 skipped notes, got %d", noteSkips)
	}
}

func TestMergeImportEmptyStore(t *testing.T) {
	source := newHarness(t)
	seedScenario(t, source)

	result, err := source.exporter.Export(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	dest := newHarness(t)
	report, err := dest.importer.Import(result.Dir, ModeMerge, nil)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	if report.NotesImported != 2 || report.ContextsImported != 1 || report.AttachmentsImported != 1 {
		t.Errorf("unexpected report: %+v", report)
	}
	if len(report.Skipped) != 0 {
		t.Errorf("expected no skips, got %v", report.Skipped)
	}

	// The attachment file landed in the destination's live tree.
	err = dest.db.Read(func(q *storage.Queries) error {
		atts, err := q.ListAttachments()
		if err != nil {
			return err
		}
		if len(atts) != 1 {
			t.Fatalf("expected 1 attachment row, got %d", len(atts))
		}
		if _, err := os.Stat(atts[0].FilePath); err != nil {
			t.Errorf("attachment file not copied: %v", err)
		}
		if !strings.HasPrefix(atts[0].FilePath, dest.cfg.Attachments.Dir) {
			t.Errorf("attachment outside live tree: %s", atts[0].FilePath)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
}

func TestSchemaVersionZeroMigratesOnce(t *testing.T) {
	dir := t.TempDir()
	manifest := `{"nootVersion":"0.9.0","schemaVersion":0,"noteCount":0}`
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), []byte(manifest), 0644); err != nil {
		t.Fatal(err)
	}

	m, warnings, err := readManifest(dir)
	if err != nil {
		t.Fatalf("readManifest failed: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
	if m.SchemaVersion != SchemaVersion {
		t.Errorf("schemaVersion = %d, want %d", m.SchemaVersion, SchemaVersion)
	}
	if m.ContextLinkCount != 0 {
		t.Errorf("contextLinkCount = %d, want defaulted 0", m.ContextLinkCount)
	}
}

func TestRoundTripReplaceImport(t *testing.T) {
	source := newHarness(t)
	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	noteA, noteB := uuid.NewString(), uuid.NewString()
	ctxParent, ctxChild := uuid.NewString(), uuid.NewString()
	meetingID := uuid.NewString()

	source.write(t, func(q *storage.Queries) error {
		for _, c := range []*types.Context{
			{ID: ctxParent, Name: "Platform", Type: types.ContextDomain, Pinned: true, CreatedAt: now},
			{ID: ctxChild, Name: "Billing", Type: types.ContextWorkstream, CreatedAt: now},
		} {
			if _, err := q.InsertContext(c); err != nil {
				return err
			}
		}
		if _, err := q.InsertContextLink(&types.ContextLink{ParentID: ctxParent, ChildID: ctxChild}); err != nil {
			return err
		}
		if _, err := q.InsertMeeting(&types.Meeting{ID: meetingID, Title: "Review", StartedAt: now}); err != nil {
			return err
		}
		for _, n := range []*types.Note{
			{ID: noteA, Body: "alpha", CreatedAt: now, UpdatedAt: now.Add(time.Hour)},
			{ID: noteB, Body: "beta", CreatedAt: now, UpdatedAt: now, Archived: true},
		} {
			if _, err := q.InsertNote(n); err != nil {
				return err
			}
		}
		if _, err := q.InsertNoteContext(&types.NoteContext{NoteID: noteA, ContextID: ctxChild, AssignedAt: now}); err != nil {
			return err
		}
		if _, err := q.InsertNoteLink(&types.NoteLink{SourceID: noteA, TargetID: noteB, Relationship: types.LinkContinues}); err != nil {
			return err
		}
		if _, err := q.InsertNoteMeeting(&types.NoteMeeting{NoteID: noteA, MeetingID: meetingID}); err != nil {
			return err
		}
		_, err := q.InsertScreenContext(&types.ScreenContext{
			NoteID: noteA, AppName: "Browser", URL: "https://example.com", CapturedAt: now,
		})
		return err
	})

	result, err := source.exporter.Export(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	dest := newHarness(t)
	report, err := dest.importer.Import(result.Dir, ModeReplace, nil)
	if err != nil {
		t.Fatalf("replace import failed: %v", err)
	}
	if report.NotesImported != 2 || report.ContextsImported != 2 || report.MeetingsImported != 1 {
		t.Errorf("unexpected report: %+v", report)
	}

	err = dest.db.Read(func(q *storage.Queries) error {
		a, err := q.GetNote(noteA)
		if err != nil {
			return err
		}
		if a == nil || a.Body != "alpha" || !a.UpdatedAt.Equal(now.Add(time.Hour)) {
			t.Errorf("note A not reproduced: %+v", a)
		}
		b, err := q.GetNote(noteB)
		if err != nil {
			return err
		}
		if b == nil || !b.Archived {
			t.Errorf("note B archived flag lost: %+v", b)
		}
		links, err := q.ListNoteLinks()
		if err != nil {
			return err
		}
		if len(links) != 1 || links[0].Relationship != types.LinkContinues {
			t.Errorf("note links not reproduced: %v", links)
		}
		ctxLinks, err := q.ListContextLinks()
		if err != nil {
			return err
		}
		if len(ctxLinks) != 1 || ctxLinks[0].ParentID != ctxParent {
			t.Errorf("context links not reproduced: %v", ctxLinks)
		}
		m, err := q.GetMeetingForNote(noteA)
		if err != nil {
			return err
		}
		if m == nil || m.Title != "Review" {
			t.Errorf("meeting association not reproduced: %+v", m)
		}
		sc, err := q.GetScreenContext(noteA)
		if err != nil {
			return err
		}
		if sc == nil || sc.URL != "https://example.com" {
			t.Errorf("screen context not reproduced: %+v", sc)
		}
		parent, err := q.GetContext(ctxParent)
		if err != nil {
			return err
		}
		if parent == nil || !parent.Pinned {
			t.Errorf("context pinned flag lost: %+v", parent)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
}

func TestReplaceWipesExistingData(t *testing.T) {
	source := newHarness(t)
	seedScenario(t, source)
	result, err := source.exporter.Export(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	dest := newHarness(t)
	preexisting := uuid.NewString()
	dest.write(t, func(q *storage.Queries) error {
		_, err := q.InsertNote(&types.Note{
			ID: preexisting, Body: "doomed", CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
		})
		return err
	})

	report, err := dest.importer.Import(result.Dir, ModeReplace, nil)
	if err != nil {
		t.Fatalf("replace import failed: %v", err)
	}
	if report.BackupDir == "" {
		t.Error("no backup recorded")
	}
	if _, err := os.Stat(report.BackupDir); err != nil {
		t.Errorf("backup missing: %v", err)
	}

	err = dest.db.Read(func(q *storage.Queries) error {
		gone, err := q.GetNote(preexisting)
		if err != nil {
			return err
		}
		if gone != nil {
			t.Error("pre-existing note survived replace")
		}
		notes, err := q.ListNotes(true)
		if err != nil {
			return err
		}
		if len(notes) != 2 {
			t.Errorf("expected 2 notes after replace, got %d", len(notes))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
}

func TestReplaceRejectsBrokenBundle(t *testing.T) {
	source := newHarness(t)
	ids := seedScenario(t, source)
	result, err := source.exporter.Export(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	// Break the bundle: drop the context collection so note A's context ref
	// dangles.
	if err := os.WriteFile(filepath.Join(result.Dir, "contexts.json"), []byte("[]"), 0644); err != nil {
		t.Fatal(err)
	}

	dest := newHarness(t)
	if _, err := dest.importer.Import(result.Dir, ModeReplace, nil); err == nil {
		t.Fatal("replace accepted a bundle with dangling references")
	}

	// Merge tolerates the same bundle, downgrading violations to warnings.
	report, err := dest.importer.Import(result.Dir, ModeMerge, nil)
	if err != nil {
		t.Fatalf("merge import failed: %v", err)
	}
	found := false
	for _, w := range report.Warnings {
		if strings.Contains(w, ids.contextID) {
			found = true
		}
	}
	if !found {
		t.Errorf("integrity warning not surfaced: %v", report.Warnings)
	}
}

func TestImportRejectsNonBundle(t *testing.T) {
	h := newHarness(t)

	_, err := h.importer.Import(t.TempDir(), ModeMerge, nil)
	if err == nil {
		t.Fatal("expected error for directory without manifest")
	}
	if !strings.Contains(err.Error(), "not a valid bundle") {
		t.Errorf("error not distinguishable as invalid bundle: %v", err)
	}
}

func TestExportSkipsMissingAttachmentFile(t *testing.T) {
	h := newHarness(t)
	noteID := uuid.NewString()
	now := time.Now().UTC()

	h.write(t, func(q *storage.Queries) error {
		if _, err := q.InsertNote(&types.Note{ID: noteID, Body: "x", CreatedAt: now, UpdatedAt: now}); err != nil {
			return err
		}
		_, err := q.InsertAttachment(&types.Attachment{
			ID: uuid.NewString(), NoteID: noteID, Type: types.AttachmentFile,
			FileName: "gone.pdf", FilePath: "/nonexistent/gone.pdf", CreatedAt: now,
		})
		return err
	})

	result, err := h.exporter.Export(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("export aborted on missing attachment file: %v", err)
	}

	// The manifest counts the row, not the copied file.
	if result.Manifest.AttachmentCount != 1 {
		t.Errorf("attachmentCount = %d, want 1", result.Manifest.AttachmentCount)
	}
	if result.CopiedAttachments != 0 {
		t.Errorf("copied = %d, want 0", result.CopiedAttachments)
	}
	if len(result.SkippedAttachments) != 1 {
		t.Errorf("skipped = %v, want one entry", result.SkippedAttachments)
	}
	entries, err := os.ReadDir(filepath.Join(result.Dir, "attachments"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty attachments dir, found %d files", len(entries))
	}
}

func TestImportSkipsNotesWithoutFrontmatter(t *testing.T) {
	source := newHarness(t)
	seedScenario(t, source)
	result, err := source.exporter.Export(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	loose := filepath.Join(result.Dir, "notes", "readme.md")
	if err := os.WriteFile(loose, []byte("no header at all"), 0644); err != nil {
		t.Fatal(err)
	}
	badID := filepath.Join(result.Dir, "notes", "badid.md")
	bad := "---\nid: not-a-uuid\ncreatedAt: 2026-01-01T00:00:00Z\nupdatedAt: 2026-01-01T00:00:00Z\narchived: false\n---\n\nbody"
	if err := os.WriteFile(badID, []byte(bad), 0644); err != nil {
		t.Fatal(err)
	}

	dest := newHarness(t)
	report, err := dest.importer.Import(result.Dir, ModeMerge, nil)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if report.NotesImported != 2 {
		t.Errorf("notesImported = %d, want 2", report.NotesImported)
	}

	reasons := make(map[string]string)
	for _, s := range report.Skipped {
		reasons[s.ID] = s.Reason
	}
	if reasons["readme.md"] != "no frontmatter" {
		t.Errorf("readme.md skip reason %q", reasons["readme.md"])
	}
	if reasons["badid.md"] != "invalid id" {
		t.Errorf("badid.md skip reason %q", reasons["badid.md"])
	}
}

func TestArchiveRoundTrip(t *testing.T) {
	h := newHarness(t)
	seedScenario(t, h)
	result, err := h.exporter.Export(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	archive, err := ArchiveBundle(result.Dir)
	if err != nil {
		t.Fatalf("ArchiveBundle failed: %v", err)
	}
	if !strings.HasSuffix(archive, ".tar.zst") {
		t.Errorf("unexpected archive name: %s", archive)
	}

	extracted, err := ExtractArchive(archive, t.TempDir())
	if err != nil {
		t.Fatalf("ExtractArchive failed: %v", err)
	}

	dest := newHarness(t)
	report, err := dest.importer.Import(extracted, ModeMerge, nil)
	if err != nil {
		t.Fatalf("import of extracted archive failed: %v", err)
	}
	if report.NotesImported != 2 {
		t.Errorf("notesImported = %d, want 2", report.NotesImported)
	}
}

func TestExportProgressTicks(t *testing.T) {
	h := newHarness(t)
	seedScenario(t, h)

	var phases []string
	var lastNotes Progress
	_, err := h.exporter.Export(t.TempDir(), func(p Progress) {
		phases = append(phases, p.Phase)
		if p.Phase == "notes" {
			lastNotes = p
		}
	})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	seen := make(map[string]bool)
	for _, ph := range phases {
		seen[ph] = true
	}
	for _, want := range []string{"collections", "notes", "attachments"} {
		if !seen[want] {
			t.Errorf("phase %q never reported", want)
		}
	}
	if lastNotes.Current != 2 || lastNotes.Total != 2 {
		t.Errorf("final notes tick %d/%d, want 2/2", lastNotes.Current, lastNotes.Total)
	}
}
