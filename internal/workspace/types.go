// Package workspace implements the push-only synchronization of notes into a
// remote structured-document workspace: one container (a page database) per
// connection, one remote page per note, gated by a per-note content hash so
// unchanged notes cost nothing.
package workspace

import "fmt"

// Container is a remote page database a connection can sync into. Its
// schema is a set of named, typed properties.
type Container struct {
	ID         string                    `json:"id"`
	Title      string                    `json:"title"`
	Properties map[string]PropertySchema `json:"properties"`
}

// PropertySchema describes one property of a container's schema.
type PropertySchema struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// Page is a remote document created from a note.
type Page struct {
	ID         string                 `json:"id"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// Block is one element of a page body. Notes translate to a flat block list;
// the remote model's nesting is not used.
type Block struct {
	ID       string `json:"id,omitempty"`
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Language string `json:"language,omitempty"`
	Checked  bool   `json:"checked,omitempty"`
}

// Block types understood by the remote workspace.
const (
	BlockParagraph    = "paragraph"
	BlockHeading1     = "heading_1"
	BlockHeading2     = "heading_2"
	BlockHeading3     = "heading_3"
	BlockBulletedItem = "bulleted_list_item"
	BlockNumberedItem = "numbered_list_item"
	BlockToDo         = "to_do"
	BlockCode         = "code"
	BlockQuote        = "quote"
	BlockDivider      = "divider"
)

// RemoteError is an error response from the workspace API.
type RemoteError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("workspace error %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

// IsNotFound reports whether the remote object no longer exists.
func (e *RemoteError) IsNotFound() bool {
	return e.StatusCode == 404
}

// IsUnauthorized reports whether the connection's token was rejected.
func (e *RemoteError) IsUnauthorized() bool {
	return e.StatusCode == 401
}
