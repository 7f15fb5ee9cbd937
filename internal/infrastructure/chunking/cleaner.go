package chunking

import (
	"regexp"
	"strings"
)

var (
	hyphenBreak   = regexp.MustCompile(`([A-Za-z])-\n([A-Za-z])`)
	excessNewline = regexp.MustCompile(`\n{3,}`)
	spaceRun      = regexp.MustCompile(`[ \t]+`)
	paddedNewline = regexp.MustCompile(` *\n *`)
)

// Cleaner normalizes text pulled out of PDFs: words hyphenated across a
// line break are rejoined, single line breaks become spaces, paragraph breaks
// are kept and runs of spaces collapse.
type Cleaner struct{}

func NewCleaner() *Cleaner {
	return &Cleaner{}
}

func (c *Cleaner) Clean(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = hyphenBreak.ReplaceAllString(text, "$1$2")
	text = mergeSingleNewlines(text)
	text = excessNewline.ReplaceAllString(text, "\n\n")
	text = spaceRun.ReplaceAllString(text, " ")
	text = paddedNewline.ReplaceAllString(text, "\n")
	return strings.TrimSpace(text)
}

// mergeSingleNewlines replaces a newline with a space unless it touches
// another newline. RE2 has no lookaround, so this is a manual scan.
func mergeSingleNewlines(text string) string {
	b := []byte(text)
	out := make([]byte, len(b))
	for i, ch := range b {
		if ch == '\n' {
			prevNL := i > 0 && b[i-1] == '\n'
			nextNL := i+1 < len(b) && b[i+1] == '\n'
			if !prevNL && !nextNL {
				out[i] = ' '
				continue
			}
		}
		out[i] = ch
	}
	return string(out)
}
