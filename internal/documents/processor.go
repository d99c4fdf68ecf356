// Package documents flattens Markdown task descriptions into plain text for
// embedding.
package documents

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Processor turns Markdown into whitespace-normalized plain text
type Processor struct {
	mdParser goldmark.Markdown
}

// NewProcessor creates a new document processor
func NewProcessor() *Processor {
	return &Processor{mdParser: goldmark.New()}
}

var defaultProcessor = NewProcessor()

// PlainText flattens Markdown using a shared processor
func PlainText(markdown string) string {
	return defaultProcessor.PlainText(markdown)
}

// PlainText drops Markdown syntax and keeps the readable text. Block
// boundaries become single spaces; link targets and HTML are dropped.
func (p *Processor) PlainText(markdown string) string {
	if strings.TrimSpace(markdown) == "" {
		return ""
	}

	source := []byte(markdown)
	reader := text.NewReader(source)
	doc := p.mdParser.Parser().Parse(reader)

	var buf bytes.Buffer
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock {
				buf.WriteByte(' ')
			}
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Text:
			buf.Write(node.Segment.Value(source))
			if node.SoftLineBreak() || node.HardLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.AutoLink:
			buf.Write(node.Label(source))
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				line := lines.At(i)
				buf.Write(line.Value(source))
				buf.WriteByte(' ')
			}
			return ast.WalkSkipChildren, nil
		case *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	return strings.Join(strings.Fields(buf.String()), " ")
}
