package corpus

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// markdownLines returns one line per source line of every prose block.
// Code blocks and raw HTML are skipped.
func markdownLines(src []byte) []string {
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var lines []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindFencedCodeBlock, ast.KindCodeBlock, ast.KindHTMLBlock:
			return ast.WalkSkipChildren, nil
		case ast.KindParagraph, ast.KindHeading, ast.KindTextBlock:
			var buf bytes.Buffer
			inlineText(&buf, n, src)
			lines = append(lines, strings.Split(buf.String(), "\n")...)
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return lines
}

// inlineText writes the text of n's inline children, with soft and hard
// breaks turned into newlines.
func inlineText(buf *bytes.Buffer, n ast.Node, src []byte) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte('\n')
			}
		case *ast.String:
			buf.Write(t.Value)
		case *ast.RawHTML:
		case *ast.AutoLink:
			buf.Write(t.Label(src))
		default:
			inlineText(buf, c, src)
		}
	}
}
