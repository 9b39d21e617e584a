// Package markdown strips markdown formatting down to plain text.
//
// The OCR API returns page content as markdown; when the caller asks for a
// .txt output the document is flattened: image references are dropped, link
// text is kept without its URL, emphasis and code markers disappear, and runs
// of blank lines collapse to a single blank line.
package markdown

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var blankRuns = regexp.MustCompile(`\n{3,}`)

// ToText renders markdown source as plain text.
func ToText(source string) string {
	src := []byte(source)
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var buf bytes.Buffer
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Image:
			// Drop the whole image reference, alt text included.
			if entering {
				return ast.WalkSkipChildren, nil
			}
		case *ast.Text:
			if entering {
				buf.Write(node.Segment.Value(src))
				if node.SoftLineBreak() || node.HardLineBreak() {
					buf.WriteByte('\n')
				}
			}
		case *ast.AutoLink:
			if entering {
				buf.Write(node.URL(src))
			}
		case *ast.FencedCodeBlock:
			if entering {
				writeLines(&buf, node.Lines(), src)
			}
		case *ast.CodeBlock:
			if entering {
				writeLines(&buf, node.Lines(), src)
			}
		case *ast.HTMLBlock, *ast.RawHTML:
			if entering {
				return ast.WalkSkipChildren, nil
			}
		}

		if !entering && n.Type() == ast.TypeBlock {
			buf.WriteString("\n\n")
		}
		return ast.WalkContinue, nil
	})

	out := blankRuns.ReplaceAllString(buf.String(), "\n\n")
	return strings.TrimSpace(out)
}

func writeLines(buf *bytes.Buffer, lines *text.Segments, src []byte) {
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(src))
	}
}
