package tool

import (
	"strings"

	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
)

// MarkdownToText strips markdown formatting and returns the plain text,
// suitable for feeding document bodies into prompts.
func MarkdownToText(source string) string {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	root := p.Parse([]byte(source))

	var sb strings.Builder
	ast.WalkFunc(root, func(node ast.Node, entering bool) ast.WalkStatus {
		if !entering {
			return ast.GoToNext
		}
		switch n := node.(type) {
		case *ast.Text:
			sb.Write(n.Literal)
		case *ast.Code:
			sb.Write(n.Literal)
		case *ast.CodeBlock:
			sb.Write(n.Literal)
			sb.WriteString("\n")
		case *ast.Heading, *ast.Paragraph, *ast.ListItem:
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
		}
		return ast.GoToNext
	})

	return strings.TrimSpace(sb.String())
}
