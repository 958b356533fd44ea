// Package markdown understands the small subset of markdown assistants use in
// chat replies: paragraphs, ordered and unordered lists, and bold spans.
package markdown

import (
	"regexp"
	"strings"
)

type BlockKind int

const (
	Paragraph BlockKind = iota
	OrderedList
	UnorderedList
)

func (k BlockKind) String() string {
	switch k {
	case OrderedList:
		return "ordered-list"
	case UnorderedList:
		return "unordered-list"
	default:
		return "paragraph"
	}
}

// Span is a run of text with uniform emphasis.
type Span struct {
	Text string
	Bold bool
}

// Inline is one line of formatted text.
type Inline []Span

// Plain returns the text of the line without emphasis markers.
func (in Inline) Plain() string {
	var b strings.Builder
	for _, s := range in {
		b.WriteString(s.Text)
	}
	return b.String()
}

// Block is a paragraph or a list. A paragraph has exactly one item.
type Block struct {
	Kind  BlockKind
	Items []Inline
}

type Document []Block

var (
	blockSeparator = regexp.MustCompile(`\n[ \t]*\n\s*`)
	orderedMarker  = regexp.MustCompile(`^\d+\.\s`)
	orderedPrefix  = regexp.MustCompile(`^\d+\.\s*`)
	bulletMarker   = regexp.MustCompile(`^[-*]\s`)
	bulletPrefix   = regexp.MustCompile(`^[-*]\s*`)
	boldSpan       = regexp.MustCompile(`\*\*(.+?)\*\*`)
)

// Parse never fails: unrecognized input becomes paragraphs.
func Parse(text string) Document {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var doc Document
	for _, raw := range blockSeparator.Split(text, -1) {
		raw = strings.Trim(raw, "\n")
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}

		switch {
		case orderedMarker.MatchString(trimmed):
			doc = append(doc, listBlock(OrderedList, raw, orderedPrefix))
		case bulletMarker.MatchString(trimmed):
			doc = append(doc, listBlock(UnorderedList, raw, bulletPrefix))
		default:
			doc = append(doc, Block{Kind: Paragraph, Items: []Inline{ParseInline(raw)}})
		}
	}

	return doc
}

func listBlock(kind BlockKind, raw string, marker *regexp.Regexp) Block {
	block := Block{Kind: kind}
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		item := marker.ReplaceAllString(line, "")
		if item == "" {
			continue
		}
		block.Items = append(block.Items, ParseInline(item))
	}
	return block
}

// ParseInline splits text into plain and bold spans. Matches are taken left
// to right and never overlap; unmatched markers stay in the text.
func ParseInline(text string) Inline {
	var out Inline
	for text != "" {
		loc := boldSpan.FindStringSubmatchIndex(text)
		if loc == nil {
			out = append(out, Span{Text: text})
			break
		}
		if loc[0] > 0 {
			out = append(out, Span{Text: text[:loc[0]]})
		}
		out = append(out, Span{Text: text[loc[2]:loc[3]], Bold: true})
		text = text[loc[1]:]
	}
	return out
}
