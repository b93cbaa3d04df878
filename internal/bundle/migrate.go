package bundle

import "fmt"

// payloadStep upgrades the bulk JSON payload exactly one schema version.
// Steps are additive-only: a field is filled only when absent, so applying a
// step to already-upgraded data is a no-op.
type payloadStep struct {
	from  int
	to    int
	apply func(payload map[string]interface{})
}

// The ordered migration chain. Each step's `to` must equal the next step's
// `from`; the final `to` is SchemaVersion.
var payloadSteps = []payloadStep{
	{
		// v1 added contextLinkCount to the manifest.
		from: 0,
		to:   1,
		apply: func(p map[string]interface{}) {
			if _, ok := p["contextLinkCount"]; !ok {
				p["contextLinkCount"] = 0
			}
		},
	},
}

// MigratePayload upgrades a raw decoded manifest payload from its declared
// version to the current schema version.
//
// A payload already at the current version is returned unchanged. A payload
// declaring a NEWER version than this build supports is not migrated; a
// compatibility warning is returned and the caller proceeds best-effort. An
// unrecognized version for which no step exists passes through unchanged;
// migrations are never invented for unspecified paths.
func MigratePayload(payload map[string]interface{}, declared int) (map[string]interface{}, []string) {
	if declared == SchemaVersion {
		return payload, nil
	}
	if declared > SchemaVersion {
		return payload, []string{fmt.Sprintf(
			"bundle schema version %d is newer than supported version %d; importing best-effort",
			declared, SchemaVersion)}
	}

	version := declared
	for version < SchemaVersion {
		step, ok := stepFrom(version)
		if !ok {
			// No declared path from this version; pass through unchanged.
			return payload, []string{fmt.Sprintf(
				"no migration from bundle schema version %d; importing as-is", version)}
		}
		step.apply(payload)
		version = step.to
	}
	payload["schemaVersion"] = SchemaVersion
	return payload, nil
}

func stepFrom(version int) (payloadStep, bool) {
	for _, s := range payloadSteps {
		if s.from == version {
			return s, true
		}
	}
	return payloadStep{}, false
}

// MigrateFrontmatter applies additive defaults to a per-note header. Notes
// are migrated file-by-file at parse time, independent of the bulk payload
// migration. Running it twice yields the same result as once.
func MigrateFrontmatter(fm *NoteFrontmatter) {
	// Early exports wrote notes before the updated timestamp existed.
	if fm.UpdatedAt.IsZero() {
		fm.UpdatedAt = fm.CreatedAt
	}
	// Attachment refs briefly shipped without a type tag; plain files are
	// the only kind that predates it.
	for i := range fm.Attachments {
		if fm.Attachments[i].Type == "" {
			fm.Attachments[i].Type = "file"
		}
	}
}
