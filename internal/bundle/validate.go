package bundle

import "fmt"

// Violation is one referential-integrity failure found in a bundle.
type Violation struct {
	Kind    string
	Message string
}

func (v Violation) String() string { return v.Message }

// Validate scans the fully deserialized bundle for dangling foreign-id
// references and returns the complete list of violations, never just the
// first. An empty result means the graph is closed.
//
// Violations are advisory for merge-mode import (merge is purely additive so
// a dangling reference strands nothing) and a hard precondition for
// replace-mode import, which destroys the prior graph.
func (b *Bundle) Validate() []Violation {
	noteIDs := make(map[string]bool, len(b.Notes))
	for _, n := range b.Notes {
		noteIDs[n.Frontmatter.ID] = true
	}
	contextIDs := make(map[string]bool, len(b.Contexts))
	for _, c := range b.Contexts {
		contextIDs[c.ID] = true
	}
	meetingIDs := make(map[string]bool, len(b.Meetings))
	for _, m := range b.Meetings {
		meetingIDs[m.ID] = true
	}

	var violations []Violation
	add := func(kind, format string, args ...interface{}) {
		violations = append(violations, Violation{Kind: kind, Message: fmt.Sprintf(format, args...)})
	}

	for _, l := range b.ContextLinks {
		if !contextIDs[l.ParentID] {
			add("context_link", "context link %s -> %s: parent context not in bundle", l.ParentID, l.ChildID)
		}
		if !contextIDs[l.ChildID] {
			add("context_link", "context link %s -> %s: child context not in bundle", l.ParentID, l.ChildID)
		}
	}

	for _, n := range b.Notes {
		fm := n.Frontmatter
		for _, ref := range fm.Contexts {
			if !contextIDs[ref.ID] {
				add("note_context", "note %s: context %s not in bundle", fm.ID, ref.ID)
			}
		}
		for _, link := range fm.Links {
			if !noteIDs[link.TargetID] {
				add("note_link", "note %s: link target %s not in bundle", fm.ID, link.TargetID)
			}
		}
		if fm.MeetingID != "" && !meetingIDs[fm.MeetingID] {
			add("note_meeting", "note %s: meeting %s not in bundle", fm.ID, fm.MeetingID)
		}
	}

	return violations
}
