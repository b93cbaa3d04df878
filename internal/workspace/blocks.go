package workspace

import "strings"

// MarkdownToBlocks translates a note body into the remote block model. The
// translation is line-oriented: headings, list items, checkboxes, fenced
// code, block quotes, and rules become dedicated blocks; consecutive plain
// lines collapse into one paragraph.
func MarkdownToBlocks(body string) []Block {
	var blocks []Block
	var paragraph []string

	flush := func() {
		if len(paragraph) > 0 {
			blocks = append(blocks, Block{Type: BlockParagraph, Text: strings.Join(paragraph, "\n")})
			paragraph = nil
		}
	}

	lines := strings.Split(body, "\n")
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimRight(line, " \t")

		switch {
		case strings.HasPrefix(trimmed, "```"):
			flush()
			language := strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))
			var code []string
			for i++; i < len(lines); i++ {
				if strings.HasPrefix(strings.TrimRight(lines[i], " \t"), "```") {
					break
				}
				code = append(code, lines[i])
			}
			blocks = append(blocks, Block{
				Type:     BlockCode,
				Text:     strings.Join(code, "\n"),
				Language: language,
			})

		case strings.HasPrefix(trimmed, "### "):
			flush()
			blocks = append(blocks, Block{Type: BlockHeading3, Text: strings.TrimPrefix(trimmed, "### ")})
		case strings.HasPrefix(trimmed, "## "):
			flush()
			blocks = append(blocks, Block{Type: BlockHeading2, Text: strings.TrimPrefix(trimmed, "## ")})
		case strings.HasPrefix(trimmed, "# "):
			flush()
			blocks = append(blocks, Block{Type: BlockHeading1, Text: strings.TrimPrefix(trimmed, "# ")})

		case strings.HasPrefix(trimmed, "- [ ] "):
			flush()
			blocks = append(blocks, Block{Type: BlockToDo, Text: strings.TrimPrefix(trimmed, "- [ ] ")})
		case strings.HasPrefix(trimmed, "- [x] "), strings.HasPrefix(trimmed, "- [X] "):
			flush()
			blocks = append(blocks, Block{Type: BlockToDo, Text: trimmed[6:], Checked: true})

		case strings.HasPrefix(trimmed, "- "):
			flush()
			blocks = append(blocks, Block{Type: BlockBulletedItem, Text: strings.TrimPrefix(trimmed, "- ")})
		case strings.HasPrefix(trimmed, "* "):
			flush()
			blocks = append(blocks, Block{Type: BlockBulletedItem, Text: strings.TrimPrefix(trimmed, "* ")})

		case isNumberedItem(trimmed):
			flush()
			_, text := splitNumberedItem(trimmed)
			blocks = append(blocks, Block{Type: BlockNumberedItem, Text: text})

		case strings.HasPrefix(trimmed, "> "):
			flush()
			blocks = append(blocks, Block{Type: BlockQuote, Text: strings.TrimPrefix(trimmed, "> ")})
		case trimmed == ">":
			flush()
			blocks = append(blocks, Block{Type: BlockQuote})

		case trimmed == "---" || trimmed == "***" || trimmed == "___":
			flush()
			blocks = append(blocks, Block{Type: BlockDivider})

		case trimmed == "":
			flush()

		default:
			paragraph = append(paragraph, trimmed)
		}
	}
	flush()
	return blocks
}

// isNumberedItem reports whether a line looks like "1. item" or "12) item".
func isNumberedItem(line string) bool {
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i == 0 || i >= len(line) {
		return false
	}
	if line[i] != '.' && line[i] != ')' {
		return false
	}
	return i+1 < len(line) && line[i+1] == ' '
}

func splitNumberedItem(line string) (marker, text string) {
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	// Past the digits sits "." or ")" then a space.
	return line[:i+1], strings.TrimLeft(line[i+1:], " ")
}
