package workspace

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"noot/internal/config"
	"noot/internal/logging"
	"noot/internal/storage"
	"noot/internal/types"
)

var defaultFakeProperties = []PropertySchema{
	{ID: "p1", Name: "Title", Type: "title"},
	{ID: "p2", Name: "Note ID", Type: "text"},
	{ID: "p3", Name: "Updated", Type: "date"},
	{ID: "p4", Name: "Archived", Type: "checkbox"},
	{ID: "p5", Name: "Meeting", Type: "text"},
}

type syncHarness struct {
	db     *storage.DB
	cfg    *config.Config
	fake   *fakeWorkspace
	syncer *Syncer
	conn   *ConnectionConfig
}

func newSyncHarness(t *testing.T, properties ...PropertySchema) *syncHarness {
	t.Helper()
	if len(properties) == 0 {
		properties = defaultFakeProperties
	}

	dataDir := t.TempDir()
	cfg := config.DefaultConfig(dataDir)
	logger := logging.NewLogger(logging.Config{Level: logging.ErrorLevel, Format: logging.JSONFormat})

	db, err := storage.Open(dataDir, logger)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	fake := newFakeWorkspace(properties...)
	t.Cleanup(fake.Close)

	conn := &ConnectionConfig{
		ID:          "conn-1",
		BaseURL:     fake.URL(),
		Token:       "test-token",
		ContainerID: "cont-1",
	}
	client := NewClient(conn.BaseURL, conn.Token, logger)

	return &syncHarness{
		db:     db,
		cfg:    cfg,
		fake:   fake,
		syncer: NewSyncer(db, client, conn, cfg, logger),
		conn:   conn,
	}
}

func (h *syncHarness) insertNote(t *testing.T, body string) *types.Note {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Second)
	note := &types.Note{ID: uuid.NewString(), Body: body, CreatedAt: now, UpdatedAt: now}
	if err := h.db.Write(func(q *storage.Queries) error {
		_, err := q.InsertNote(note)
		return err
	}); err != nil {
		t.Fatalf("insert note: %v", err)
	}
	return note
}

func (h *syncHarness) syncState(t *testing.T, noteID string) *types.NoteSyncState {
	t.Helper()
	var state *types.NoteSyncState
	if err := h.db.Read(func(q *storage.Queries) error {
		var err error
		state, err = q.GetSyncState(noteID, h.conn.ID)
		return err
	}); err != nil {
		t.Fatalf("read sync state: %v", err)
	}
	return state
}

func TestSweepCreatesThenNoOps(t *testing.T) {
	h := newSyncHarness(t)
	h.insertNote(t, "# First\n\nbody one")
	h.insertNote(t, "# Second\n\nbody two")

	result, err := h.syncer.Sweep(context.Background(), nil)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if result.Created != 2 || result.Updated != 0 || result.Failed != 0 {
		t.Errorf("first sweep: %+v", result)
	}
	if h.fake.createPageCalls != 2 {
		t.Errorf("createPageCalls = %d, want 2", h.fake.createPageCalls)
	}

	// Nothing changed, so the second sweep issues zero remote writes.
	result, err = h.syncer.Sweep(context.Background(), nil)
	if err != nil {
		t.Fatalf("second Sweep failed: %v", err)
	}
	if result.Unchanged != 2 || result.Created != 0 || result.Updated != 0 {
		t.Errorf("second sweep: %+v", result)
	}
	if h.fake.createPageCalls != 2 || h.fake.updatePageCalls != 0 {
		t.Errorf("remote calls after no-op sweep: create=%d update=%d",
			h.fake.createPageCalls, h.fake.updatePageCalls)
	}
}

func TestModifiedNoteUpdatesExactlyOnce(t *testing.T) {
	h := newSyncHarness(t)
	note := h.insertNote(t, "original body")

	if _, err := h.syncer.Sweep(context.Background(), nil); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	firstState := h.syncState(t, note.ID)
	if firstState == nil {
		t.Fatal("no ledger row after create")
	}

	note.Body = "edited body"
	note.UpdatedAt = note.UpdatedAt.Add(time.Minute)
	if err := h.db.Write(func(q *storage.Queries) error {
		return q.UpdateNote(note)
	}); err != nil {
		t.Fatalf("update note: %v", err)
	}

	result, err := h.syncer.Sweep(context.Background(), nil)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if result.Updated != 1 || result.Created != 0 {
		t.Errorf("sweep after edit: %+v", result)
	}

	// Update went to the same remote page with a fresh hash.
	state := h.syncState(t, note.ID)
	if state.RemotePageID != firstState.RemotePageID {
		t.Errorf("remote page changed: %s -> %s", firstState.RemotePageID, state.RemotePageID)
	}
	if state.ContentHash == firstState.ContentHash {
		t.Error("content hash did not change after edit")
	}

	page, ok := h.fake.page(state.RemotePageID)
	if !ok {
		t.Fatal("remote page missing")
	}
	if len(page.Blocks) != 1 || page.Blocks[0].Text != "edited body" {
		t.Errorf("remote blocks not replaced: %+v", page.Blocks)
	}
	if h.fake.deleteBlockCalls == 0 {
		t.Error("update did not delete existing blocks")
	}
}

func TestSweepContinuesPastFailures(t *testing.T) {
	h := newSyncHarness(t)
	h.insertNote(t, "note one")
	h.insertNote(t, "note two")
	h.insertNote(t, "note three")

	// First creation attempt fails; the sweep must keep going.
	h.fake.failCreates = 1

	result, err := h.syncer.Sweep(context.Background(), nil)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if result.Failed != 1 {
		t.Errorf("failed = %d, want 1", result.Failed)
	}
	if result.Created != 2 {
		t.Errorf("created = %d, want 2", result.Created)
	}
	if len(result.Errors) != 1 {
		t.Errorf("errors = %v, want one entry", result.Errors)
	}

	// The failed note has no ledger row; the next sweep retries only it.
	result, err = h.syncer.Sweep(context.Background(), nil)
	if err != nil {
		t.Fatalf("second Sweep failed: %v", err)
	}
	if result.Created != 1 || result.Unchanged != 2 || result.Failed != 0 {
		t.Errorf("recovery sweep: %+v", result)
	}
}

func TestArchivedNotesExcludedByDefault(t *testing.T) {
	h := newSyncHarness(t)
	h.insertNote(t, "active note")

	archived := h.insertNote(t, "archived note")
	archived.Archived = true
	if err := h.db.Write(func(q *storage.Queries) error {
		return q.UpdateNote(archived)
	}); err != nil {
		t.Fatal(err)
	}

	result, err := h.syncer.Sweep(context.Background(), nil)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if result.Created != 1 {
		t.Errorf("created = %d, want 1 (archived excluded)", result.Created)
	}

	h.cfg.Sync.IncludeArchived = true
	result, err = h.syncer.Sweep(context.Background(), nil)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if result.Created != 1 {
		t.Errorf("created = %d, want 1 (archived note now included)", result.Created)
	}
}

func TestSyncNoteOnDemand(t *testing.T) {
	h := newSyncHarness(t)
	note := h.insertNote(t, "# On demand\n\ncontent")
	other := h.insertNote(t, "untouched")

	result, err := h.syncer.SyncNote(context.Background(), note.ID)
	if err != nil {
		t.Fatalf("SyncNote failed: %v", err)
	}
	if result.Created != 1 {
		t.Errorf("created = %d, want 1", result.Created)
	}
	if h.fake.pageCount() != 1 {
		t.Errorf("pageCount = %d, want 1", h.fake.pageCount())
	}
	if h.syncState(t, other.ID) != nil {
		t.Error("untargeted note gained a ledger row")
	}

	if _, err := h.syncer.SyncNote(context.Background(), uuid.NewString()); err == nil {
		t.Error("expected error for unknown note id")
	}
}

func TestMeetingAssociationChangesHash(t *testing.T) {
	h := newSyncHarness(t)
	note := h.insertNote(t, "meeting note")

	if _, err := h.syncer.Sweep(context.Background(), nil); err != nil {
		t.Fatal(err)
	}

	meetingID := uuid.NewString()
	if err := h.db.Write(func(q *storage.Queries) error {
		if _, err := q.InsertMeeting(&types.Meeting{ID: meetingID, StartedAt: time.Now().UTC()}); err != nil {
			return err
		}
		_, err := q.InsertNoteMeeting(&types.NoteMeeting{NoteID: note.ID, MeetingID: meetingID})
		return err
	}); err != nil {
		t.Fatal(err)
	}

	result, err := h.syncer.Sweep(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Updated != 1 {
		t.Errorf("linking a meeting should re-push: %+v", result)
	}
}

func TestPagePropertiesUseContainerCasing(t *testing.T) {
	// The user renamed columns with different casing; the syncer must find
	// and reuse them instead of writing canonical names.
	h := newSyncHarness(t,
		PropertySchema{ID: "p1", Name: "title", Type: "title"},
		PropertySchema{ID: "p2", Name: "UPDATED", Type: "date"},
		PropertySchema{ID: "p3", Name: "Note ID", Type: "text"},
		PropertySchema{ID: "p4", Name: "Archived", Type: "checkbox"},
		PropertySchema{ID: "p5", Name: "Meeting", Type: "text"},
	)
	note := h.insertNote(t, "# Casing test")

	if _, err := h.syncer.Sweep(context.Background(), nil); err != nil {
		t.Fatal(err)
	}

	state := h.syncState(t, note.ID)
	page, ok := h.fake.page(state.RemotePageID)
	if !ok {
		t.Fatal("remote page missing")
	}
	if _, ok := page.Properties["title"]; !ok {
		t.Errorf("container's lowercase title property not reused: %v", page.Properties)
	}
	if _, ok := page.Properties["UPDATED"]; !ok {
		t.Errorf("container's uppercase date property not reused: %v", page.Properties)
	}
	if _, ok := page.Properties["Title"]; ok {
		t.Error("canonical name written despite differently-cased container property")
	}
}

func TestSweepProgressCarriesNoteLabel(t *testing.T) {
	h := newSyncHarness(t)
	h.insertNote(t, "# A meaningful title\n\nbody")

	var labels []string
	if _, err := h.syncer.Sweep(context.Background(), func(p SyncProgress) {
		labels = append(labels, p.NoteLabel)
	}); err != nil {
		t.Fatal(err)
	}
	if len(labels) != 1 || labels[0] != "A meaningful title" {
		t.Errorf("labels = %v", labels)
	}
}

func TestClearLedgerForcesRecreate(t *testing.T) {
	h := newSyncHarness(t)
	h.insertNote(t, "to resync")

	if _, err := h.syncer.Sweep(context.Background(), nil); err != nil {
		t.Fatal(err)
	}

	deleted, err := h.syncer.ClearLedger()
	if err != nil {
		t.Fatalf("ClearLedger failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	result, err := h.syncer.Sweep(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Created != 1 {
		t.Errorf("post-resync sweep: %+v", result)
	}
}

func TestEnsurePropertiesCreatesOnlyMissing(t *testing.T) {
	h := newSyncHarness(t,
		PropertySchema{ID: "p1", Name: "title", Type: "title"},
		PropertySchema{ID: "p2", Name: "archived", Type: "checkbox"},
	)
	logger := logging.NewLogger(logging.Config{Level: logging.ErrorLevel, Format: logging.JSONFormat})
	client := NewClient(h.fake.URL(), "t", logger)

	container, err := EnsureProperties(context.Background(), client, "cont-1")
	if err != nil {
		t.Fatalf("EnsureProperties failed: %v", err)
	}

	if len(h.fake.schemaUpdates) != 1 {
		t.Fatalf("expected one schema update, got %d", len(h.fake.schemaUpdates))
	}
	created := h.fake.schemaUpdates[0]
	if len(created) != 3 {
		t.Errorf("expected 3 created properties, got %v", created)
	}
	for _, name := range []string{"Note ID", "Updated", "Meeting"} {
		if _, ok := created[name]; !ok {
			t.Errorf("property %q not created", name)
		}
	}
	// Existing differently-cased properties were reused, not duplicated.
	for _, name := range []string{"Title", "Archived"} {
		if _, ok := created[name]; ok {
			t.Errorf("property %q duplicated despite case-insensitive match", name)
		}
	}
	if len(container.Properties) != 5 {
		t.Errorf("container ended with %d properties, want 5", len(container.Properties))
	}

	// A second call is a no-op.
	if _, err := EnsureProperties(context.Background(), client, "cont-1"); err != nil {
		t.Fatal(err)
	}
	if len(h.fake.schemaUpdates) != 1 {
		t.Errorf("second EnsureProperties issued another update")
	}
}

func TestConnectionConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()

	missing, err := LoadConnection(dir)
	if err != nil {
		t.Fatalf("LoadConnection on empty dir: %v", err)
	}
	if missing != nil {
		t.Fatal("expected nil connection before connect")
	}

	conn := &ConnectionConfig{
		ID:             "conn-abc",
		BaseURL:        "https://workspace.example.com",
		Token:          "secret",
		ContainerID:    "cont-9",
		ContainerTitle: "My Notes",
	}
	if err := conn.Save(dir); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := LoadConnection(dir)
	if err != nil {
		t.Fatalf("LoadConnection failed: %v", err)
	}
	if *loaded != *conn {
		t.Errorf("round trip mismatch: %+v vs %+v", loaded, conn)
	}

	if err := Remove(dir); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	gone, err := LoadConnection(dir)
	if err != nil || gone != nil {
		t.Errorf("connection not removed: %v %v", gone, err)
	}
	// Removing twice is fine.
	if err := Remove(dir); err != nil {
		t.Errorf("second Remove errored: %v", err)
	}
}
