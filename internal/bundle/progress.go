// Package bundle implements the portable export/import format: a directory
// tree of JSON collections, frontmatter-annotated markdown notes, and copied
// attachment files, plus the schema migration and integrity validation that
// gate import.
package bundle

// Progress is one discrete progress tick. Phases are not uniform in size;
// callers should display phase and current/total independently.
type Progress struct {
	Phase   string
	Current int
	Total   int
}

// ProgressFunc receives progress ticks during export and import. A nil
// function is allowed and treated as a no-op.
type ProgressFunc func(Progress)

func emit(fn ProgressFunc, phase string, current, total int) {
	if fn != nil {
		fn(Progress{Phase: phase, Current: current, Total: total})
	}
}
