package markdown

import (
	"strconv"
	"strings"
)

const (
	ansiBold  = "\x1b[1m"
	ansiReset = "\x1b[0m"
)

// Terminal renders doc for a terminal. Bold spans use ANSI escapes when color
// is set and are printed plainly otherwise.
func Terminal(doc Document, color bool) string {
	return render(doc, func(s Span) string {
		if s.Bold && color {
			return ansiBold + s.Text + ansiReset
		}
		return s.Text
	})
}

// Text renders doc back to markdown with normalized list markers.
func Text(doc Document) string {
	return render(doc, func(s Span) string {
		if s.Bold {
			return "**" + s.Text + "**"
		}
		return s.Text
	})
}

func render(doc Document, span func(Span) string) string {
	blocks := make([]string, 0, len(doc))
	for _, block := range doc {
		lines := make([]string, 0, len(block.Items))
		for i, item := range block.Items {
			var b strings.Builder
			switch block.Kind {
			case OrderedList:
				b.WriteString(strconv.Itoa(i + 1))
				b.WriteString(". ")
			case UnorderedList:
				b.WriteString("- ")
			}
			for _, s := range item {
				b.WriteString(span(s))
			}
			lines = append(lines, b.String())
		}
		blocks = append(blocks, strings.Join(lines, "\n"))
	}
	return strings.Join(blocks, "\n\n")
}
