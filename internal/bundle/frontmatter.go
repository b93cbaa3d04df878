package bundle

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrNoFrontmatter marks a markdown file without a leading frontmatter block.
var ErrNoFrontmatter = errors.New("no frontmatter")

const frontmatterDelimiter = "---"

// ContextRef names a context a note is assigned to. The name is carried so a
// human reading the exported file can tell what the id means.
type ContextRef struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}

// LinkRef is an outgoing note link.
type LinkRef struct {
	TargetID     string `yaml:"targetId" json:"targetId"`
	Relationship string `yaml:"relationship" json:"relationship"`
}

// AttachmentRef describes one attachment of the note. The file itself lives
// under the bundle's attachments/ directory keyed by id and type.
type AttachmentRef struct {
	ID              string  `yaml:"id" json:"id"`
	Type            string  `yaml:"type" json:"type"`
	Filename        string  `yaml:"filename" json:"filename"`
	FileSize        int64   `yaml:"fileSize,omitempty" json:"fileSize,omitempty"`
	DurationSeconds float64 `yaml:"durationSeconds,omitempty" json:"durationSeconds,omitempty"`
}

// ScreenContextRef is the capture snapshot recorded when the note was taken.
type ScreenContextRef struct {
	AppName    string    `yaml:"appName,omitempty" json:"appName,omitempty"`
	WindowName string    `yaml:"windowName,omitempty" json:"windowName,omitempty"`
	URL        string    `yaml:"url,omitempty" json:"url,omitempty"`
	CapturedAt time.Time `yaml:"capturedAt" json:"capturedAt"`
}

// NoteFrontmatter is the structured header prefixed to a note's markdown
// body. It carries everything needed to reconstruct the note's join-table
// rows on import.
type NoteFrontmatter struct {
	ID            string            `yaml:"id"`
	CreatedAt     time.Time         `yaml:"createdAt"`
	UpdatedAt     time.Time         `yaml:"updatedAt"`
	ClosedAt      *time.Time        `yaml:"closedAt,omitempty"`
	Archived      bool              `yaml:"archived"`
	Contexts      []ContextRef      `yaml:"contexts,omitempty"`
	Links         []LinkRef         `yaml:"links,omitempty"`
	MeetingID     string            `yaml:"meetingId,omitempty"`
	ScreenContext *ScreenContextRef `yaml:"screenContext,omitempty"`
	Attachments   []AttachmentRef   `yaml:"attachments,omitempty"`
}

// EncodeNote renders a note file: frontmatter block between `---` delimiter
// lines, a blank line, then the raw body.
func EncodeNote(fm *NoteFrontmatter, body string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(frontmatterDelimiter + "\n")

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(fm); err != nil {
		return nil, fmt.Errorf("failed to encode frontmatter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode frontmatter: %w", err)
	}

	buf.WriteString(frontmatterDelimiter + "\n\n")
	buf.WriteString(body)
	return buf.Bytes(), nil
}

// DecodeNote splits a note file into its frontmatter and body. Files without
// a leading frontmatter block return ErrNoFrontmatter.
func DecodeNote(data []byte) (*NoteFrontmatter, string, error) {
	text := string(data)
	if !strings.HasPrefix(text, frontmatterDelimiter+"\n") &&
		text != frontmatterDelimiter {
		return nil, "", ErrNoFrontmatter
	}

	rest := strings.TrimPrefix(text, frontmatterDelimiter+"\n")
	idx := strings.Index(rest, "\n"+frontmatterDelimiter)
	if idx < 0 {
		return nil, "", ErrNoFrontmatter
	}
	header := rest[:idx+1]
	body := rest[idx+1+len(frontmatterDelimiter):]

	// The delimiter line must be exactly `---`.
	if nl := strings.Index(body, "\n"); nl >= 0 {
		if strings.TrimSpace(body[:nl]) != "" {
			return nil, "", ErrNoFrontmatter
		}
		body = body[nl+1:]
	} else if strings.TrimSpace(body) != "" {
		return nil, "", ErrNoFrontmatter
	} else {
		body = ""
	}
	body = strings.TrimPrefix(body, "\n")

	var fm NoteFrontmatter
	if err := yaml.Unmarshal([]byte(header), &fm); err != nil {
		return nil, "", fmt.Errorf("invalid frontmatter: %w", err)
	}

	MigrateFrontmatter(&fm)
	return &fm, body, nil
}
