package workspace

import (
	"context"
	"fmt"
	"strings"
)

// The properties a noot page carries. These are the canonical names used
// when a property must be created; resolution against an existing container
// is case-insensitive, so a user's "updated" or "ARCHIVED" column is reused
// rather than duplicated.
var requiredProperties = []PropertySchema{
	{Name: "Title", Type: "title"},
	{Name: "Note ID", Type: "text"},
	{Name: "Updated", Type: "date"},
	{Name: "Archived", Type: "checkbox"},
	{Name: "Meeting", Type: "text"},
}

// propertyIndex maps (lowercased name, type) to the container's actual
// property. It is built once per sync session from the container schema
// instead of re-scanning the schema for every page write.
type propertyIndex struct {
	byKey map[string]PropertySchema
}

func propertyKey(name, typ string) string {
	return strings.ToLower(name) + "\x00" + typ
}

func newPropertyIndex(c *Container) *propertyIndex {
	ix := &propertyIndex{byKey: make(map[string]PropertySchema, len(c.Properties))}
	for _, p := range c.Properties {
		ix.byKey[propertyKey(p.Name, p.Type)] = p
	}
	return ix
}

// resolve finds the container property matching the given name and type,
// ignoring case on the name.
func (ix *propertyIndex) resolve(name, typ string) (PropertySchema, bool) {
	p, ok := ix.byKey[propertyKey(name, typ)]
	return p, ok
}

// EnsureProperties makes sure the container declares every property noot
// writes, creating the missing ones in a single schema update. It runs once
// at connection setup, before any page push.
func EnsureProperties(ctx context.Context, client *Client, containerID string) (*Container, error) {
	container, err := client.GetContainer(ctx, containerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load container schema: %w", err)
	}

	ix := newPropertyIndex(container)
	missing := make(map[string]PropertySchema)
	for _, want := range requiredProperties {
		if _, ok := ix.resolve(want.Name, want.Type); !ok {
			missing[want.Name] = want
		}
	}
	if len(missing) == 0 {
		return container, nil
	}

	updated, err := client.UpdateContainerSchema(ctx, containerID, missing)
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace properties: %w", err)
	}
	return updated, nil
}
