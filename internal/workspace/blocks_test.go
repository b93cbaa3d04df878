package workspace

import (
	"reflect"
	"testing"
)

func TestMarkdownToBlocks(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []Block
	}{
		{
			name: "headings",
			body: "# One\n## Two\n### Three",
			want: []Block{
				{Type: BlockHeading1, Text: "One"},
				{Type: BlockHeading2, Text: "Two"},
				{Type: BlockHeading3, Text: "Three"},
			},
		},
		{
			name: "paragraph collapses adjacent lines",
			body: "first line\nsecond line\n\nnew paragraph",
			want: []Block{
				{Type: BlockParagraph, Text: "first line\nsecond line"},
				{Type: BlockParagraph, Text: "new paragraph"},
			},
		},
		{
			name: "bulleted and numbered lists",
			body: "- apples\n* pears\n1. first\n2) second",
			want: []Block{
				{Type: BlockBulletedItem, Text: "apples"},
				{Type: BlockBulletedItem, Text: "pears"},
				{Type: BlockNumberedItem, Text: "first"},
				{Type: BlockNumberedItem, Text: "second"},
			},
		},
		{
			name: "checkboxes",
			body: "- [ ] open\n- [x] done\n- [X] also done",
			want: []Block{
				{Type: BlockToDo, Text: "open"},
				{Type: BlockToDo, Text: "done", Checked: true},
				{Type: BlockToDo, Text: "also done", Checked: true},
			},
		},
		{
			name: "fenced code keeps language and content",
			body: "```go\nfunc main() {}\n\n\tindented\n```\nafter",
			want: []Block{
				{Type: BlockCode, Text: "func main() {}\n\n\tindented", Language: "go"},
				{Type: BlockParagraph, Text: "after"},
			},
		},
		{
			name: "quotes and rules",
			body: "> quoted text\n---\nplain",
			want: []Block{
				{Type: BlockQuote, Text: "quoted text"},
				{Type: BlockDivider},
				{Type: BlockParagraph, Text: "plain"},
			},
		},
		{
			name: "empty body",
			body: "",
			want: nil,
		},
		{
			name: "hash without space is a paragraph",
			body: "#tag not a heading",
			want: []Block{
				{Type: BlockParagraph, Text: "#tag not a heading"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MarkdownToBlocks(tt.body)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("MarkdownToBlocks()\n got: %+v\nwant: %+v", got, tt.want)
			}
		})
	}
}

func TestMarkdownToBlocksUnterminatedFence(t *testing.T) {
	got := MarkdownToBlocks("```sh\necho hi")
	if len(got) != 1 || got[0].Type != BlockCode || got[0].Text != "echo hi" {
		t.Errorf("unterminated fence mishandled: %+v", got)
	}
}
