package retrieval

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownText extracts readable text from markdown. Block elements are
// separated by blank lines so the splitter can cut between them; inline
// markup is dropped and link destinations are omitted.
func MarkdownText(source []byte) string {
	doc := goldmark.DefaultParser().Parse(text.NewReader(source))
	var buf bytes.Buffer
	walkBlocks(doc, source, &buf)
	return strings.TrimSpace(buf.String())
}

func walkBlocks(node ast.Node, source []byte, buf *bytes.Buffer) {
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		writeBlock(c, source, buf)
	}
}

func writeBlock(node ast.Node, source []byte, buf *bytes.Buffer) {
	switch n := node.(type) {
	case *ast.Paragraph, *ast.Heading, *ast.TextBlock:
		writeInline(n, source, buf)
		buf.WriteString("\n\n")
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(source))
		}
		buf.WriteString("\n")
	case *ast.ListItem:
		buf.WriteString("- ")
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			if _, ok := c.(*ast.List); ok {
				buf.WriteString("\n")
				writeBlock(c, source, buf)
				continue
			}
			writeInline(c, source, buf)
		}
		buf.WriteString("\n")
	case *ast.List:
		walkBlocks(n, source, buf)
		buf.WriteString("\n")
	case *ast.ThematicBreak, *ast.HTMLBlock:
	default:
		walkBlocks(node, source, buf)
	}
}

func writeInline(node ast.Node, source []byte, buf *bytes.Buffer) {
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		switch n := c.(type) {
		case *ast.Text:
			buf.Write(n.Segment.Value(source))
			if n.SoftLineBreak() {
				buf.WriteByte(' ')
			}
			if n.HardLineBreak() {
				buf.WriteByte('\n')
			}
		case *ast.String:
			buf.Write(n.Value)
		case *ast.AutoLink:
			buf.Write(n.URL(source))
		case *ast.RawHTML:
		default:
			writeInline(c, source, buf)
		}
	}
}
