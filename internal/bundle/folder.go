package bundle

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"noot/internal/storage"
	"noot/internal/types"
)

// inlineImagePattern matches markdown image references whose target is a
// local path (remote URLs are left alone).
var inlineImagePattern = regexp.MustCompile(`!\[[^\]]*\]\(([^)]+)\)`)

// ImportFolder imports a loose directory of markdown files that was never a
// noot bundle. Top-level subfolder names become contexts, deduplicated by
// exact case-sensitive name; files gain fresh ids and take their timestamps
// from the filesystem. Inline image references are imported as attachments
// best-effort.
func (i *Importer) ImportFolder(dir string, progress ProgressFunc) (*Report, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read folder: %w", err)
	}

	type looseNote struct {
		path    string
		context string // subfolder name, empty for top-level files
	}
	var files []looseNote
	for _, e := range entries {
		if e.IsDir() {
			sub := filepath.Join(dir, e.Name())
			subEntries, err := os.ReadDir(sub)
			if err != nil {
				return nil, fmt.Errorf("failed to read folder %s: %w", e.Name(), err)
			}
			for _, se := range subEntries {
				if !se.IsDir() && strings.HasSuffix(se.Name(), ".md") {
					files = append(files, looseNote{path: filepath.Join(sub, se.Name()), context: e.Name()})
				}
			}
		} else if strings.HasSuffix(e.Name(), ".md") {
			files = append(files, looseNote{path: filepath.Join(dir, e.Name())})
		}
	}

	report := &Report{Mode: ModeMerge}
	contextIDs := make(map[string]string)

	err = i.db.Write(func(q *storage.Queries) error {
		for n, f := range files {
			data, err := os.ReadFile(f.path)
			if err != nil {
				report.skip("note", filepath.Base(f.path), "unreadable")
				emit(progress, "notes", n+1, len(files))
				continue
			}
			info, err := os.Stat(f.path)
			if err != nil {
				report.skip("note", filepath.Base(f.path), "unreadable")
				emit(progress, "notes", n+1, len(files))
				continue
			}

			note := &types.Note{
				ID:        uuid.NewString(),
				Body:      string(data),
				CreatedAt: info.ModTime().UTC(),
				UpdatedAt: info.ModTime().UTC(),
			}
			if _, err := q.InsertNote(note); err != nil {
				report.warn("note %s: %v", filepath.Base(f.path), err)
				emit(progress, "notes", n+1, len(files))
				continue
			}
			report.NotesImported++

			if f.context != "" {
				ctxID, err := i.resolveFolderContext(q, f.context, contextIDs, report)
				if err != nil {
					report.warn("context %s: %v", f.context, err)
				} else if ctxID != "" {
					if _, err := q.InsertNoteContext(&types.NoteContext{
						NoteID: note.ID, ContextID: ctxID, AssignedAt: time.Now().UTC(),
					}); err != nil {
						report.warn("note %s context %s: %v", note.ID, f.context, err)
					}
				}
			}

			i.importInlineImages(q, note.ID, filepath.Dir(f.path), string(data), report)
			emit(progress, "notes", n+1, len(files))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	i.logger.Info("Folder import complete", map[string]interface{}{
		"dir":      dir,
		"notes":    report.NotesImported,
		"contexts": report.ContextsImported,
	})
	return report, nil
}

// resolveFolderContext finds or creates the context for a subfolder name.
// The name match is exact and case-sensitive: "Work" and "work" are two
// different contexts.
func (i *Importer) resolveFolderContext(q *storage.Queries, name string, cache map[string]string, report *Report) (string, error) {
	if id, ok := cache[name]; ok {
		return id, nil
	}

	existing, err := q.FindContextByName(name)
	if err != nil {
		return "", err
	}
	if existing != nil {
		cache[name] = existing.ID
		return existing.ID, nil
	}

	ctx := &types.Context{
		ID:        uuid.NewString(),
		Name:      name,
		Type:      types.ContextDomain,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := q.InsertContext(ctx); err != nil {
		return "", err
	}
	report.ContextsImported++
	cache[name] = ctx.ID
	return ctx.ID, nil
}

// importInlineImages copies local image references of a loose note into the
// live attachment tree. Unresolvable references are skipped quietly; the
// note itself has already imported.
func (i *Importer) importInlineImages(q *storage.Queries, noteID, baseDir, body string, report *Report) {
	for _, match := range inlineImagePattern.FindAllStringSubmatch(body, -1) {
		target := strings.TrimSpace(match[1])
		if target == "" || strings.Contains(target, "://") {
			continue
		}

		src := target
		if !filepath.IsAbs(src) {
			src = filepath.Join(baseDir, src)
		}
		info, err := os.Stat(src)
		if err != nil {
			continue
		}

		id := uuid.NewString()
		dst := filepath.Join(i.cfg.Attachments.Dir, string(types.AttachmentImage), id+filepath.Ext(src))
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			report.warn("attachment %s: %v", target, err)
			continue
		}
		if err := copyFile(src, dst); err != nil {
			report.warn("attachment %s: %v", target, err)
			continue
		}

		if _, err := q.InsertAttachment(&types.Attachment{
			ID:        id,
			NoteID:    noteID,
			Type:      types.AttachmentImage,
			FileName:  filepath.Base(src),
			FilePath:  dst,
			FileSize:  info.Size(),
			CreatedAt: time.Now().UTC(),
		}); err != nil {
			report.warn("attachment %s: %v", target, err)
			continue
		}
		report.AttachmentsImported++
	}
}
