package render

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// ErrRenderFailure indicates Markdown could not be converted to platform markup.
var ErrRenderFailure = errors.New("render failure")

var markdown = goldmark.New(goldmark.WithExtensions(extension.Strikethrough))

// ToTelegramHTML converts Markdown into the HTML subset Telegram accepts
// (b, i, s, code, pre, a, blockquote). Everything else is flattened to text.
func ToTelegramHTML(src string) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = "", fmt.Errorf("%w: %v", ErrRenderFailure, r)
		}
	}()
	source := []byte(src)
	doc := markdown.Parser().Parse(text.NewReader(source))
	w := &htmlWriter{source: source}
	if err := ast.Walk(doc, w.walk); err != nil {
		return "", fmt.Errorf("%w: %w", ErrRenderFailure, err)
	}
	result := strings.TrimSpace(w.buf.String())
	if result == "" && strings.TrimSpace(src) != "" {
		return "", fmt.Errorf("%w: empty output", ErrRenderFailure)
	}
	return result, nil
}

type listState struct {
	ordered bool
	next    int
}

type htmlWriter struct {
	source     []byte
	buf        bytes.Buffer
	pendingSep bool
	lists      []listState
}

func (w *htmlWriter) escape(b []byte) {
	w.buf.WriteString(html.EscapeString(string(b)))
}

// openBlock writes the separator owed by the previous block.
func (w *htmlWriter) openBlock() {
	if w.pendingSep && w.buf.Len() > 0 {
		w.buf.WriteString("\n\n")
	}
	w.pendingSep = false
}

func (w *htmlWriter) closeBlock() {
	w.pendingSep = true
}

func (w *htmlWriter) writeLines(n ast.Node) {
	lines := n.Lines()
	var raw bytes.Buffer
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		raw.Write(seg.Value(w.source))
	}
	w.escape(bytes.TrimRight(raw.Bytes(), "\n"))
}

func (w *htmlWriter) plainText(n ast.Node) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(w.source))
		case *ast.String:
			b.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}

func (w *htmlWriter) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := n.(type) {
	case *ast.Document:
	case *ast.Paragraph:
		if entering {
			w.openBlock()
		} else {
			w.closeBlock()
		}
	case *ast.TextBlock:
		if !entering && node.NextSibling() != nil {
			w.buf.WriteString("\n")
		}
	case *ast.Heading:
		if entering {
			w.openBlock()
			w.buf.WriteString("<b>")
		} else {
			w.buf.WriteString("</b>")
			w.closeBlock()
		}
	case *ast.FencedCodeBlock:
		if entering {
			w.openBlock()
			if lang := strings.TrimSpace(string(node.Language(w.source))); lang != "" {
				w.buf.WriteString(`<pre><code class="language-` + html.EscapeString(lang) + `">`)
			} else {
				w.buf.WriteString("<pre><code>")
			}
			w.writeLines(node)
			w.buf.WriteString("</code></pre>")
			w.closeBlock()
		}
		return ast.WalkSkipChildren, nil
	case *ast.CodeBlock:
		if entering {
			w.openBlock()
			w.buf.WriteString("<pre>")
			w.writeLines(node)
			w.buf.WriteString("</pre>")
			w.closeBlock()
		}
		return ast.WalkSkipChildren, nil
	case *ast.HTMLBlock:
		if entering {
			w.openBlock()
			w.writeLines(node)
			if node.HasClosure() {
				w.escape(node.ClosureLine.Value(w.source))
			}
			w.closeBlock()
		}
		return ast.WalkSkipChildren, nil
	case *ast.Blockquote:
		if entering {
			w.openBlock()
			w.buf.WriteString("<blockquote>")
		} else {
			w.pendingSep = false
			w.buf.WriteString("</blockquote>")
			w.closeBlock()
		}
	case *ast.List:
		if entering {
			w.openBlock()
			w.lists = append(w.lists, listState{ordered: node.IsOrdered(), next: node.Start})
		} else {
			w.lists = w.lists[:len(w.lists)-1]
			w.closeBlock()
		}
	case *ast.ListItem:
		if entering {
			w.pendingSep = false
			if node.PreviousSibling() != nil {
				w.buf.WriteString("\n")
			}
			depth := len(w.lists)
			if depth > 1 {
				w.buf.WriteString(strings.Repeat("  ", depth-1))
			}
			if depth == 0 {
				w.buf.WriteString("• ")
				break
			}
			state := &w.lists[depth-1]
			if state.ordered {
				w.buf.WriteString(strconv.Itoa(state.next) + ". ")
				state.next++
			} else {
				w.buf.WriteString("• ")
			}
		} else {
			w.pendingSep = false
		}
	case *ast.ThematicBreak:
		if entering {
			w.openBlock()
			w.buf.WriteString("──────────")
			w.closeBlock()
		}
	case *ast.Text:
		if entering {
			w.escape(node.Segment.Value(w.source))
			if node.HardLineBreak() || node.SoftLineBreak() {
				w.buf.WriteString("\n")
			}
		}
	case *ast.String:
		if entering {
			w.escape(node.Value)
		}
	case *ast.CodeSpan:
		if entering {
			w.buf.WriteString("<code>")
			w.buf.WriteString(html.EscapeString(w.plainText(node)))
			w.buf.WriteString("</code>")
		}
		return ast.WalkSkipChildren, nil
	case *ast.Emphasis:
		tag := "i"
		if node.Level >= 2 {
			tag = "b"
		}
		if entering {
			w.buf.WriteString("<" + tag + ">")
		} else {
			w.buf.WriteString("</" + tag + ">")
		}
	case *extast.Strikethrough:
		if entering {
			w.buf.WriteString("<s>")
		} else {
			w.buf.WriteString("</s>")
		}
	case *ast.Link:
		if entering {
			w.buf.WriteString(`<a href="` + html.EscapeString(string(node.Destination)) + `">`)
		} else {
			w.buf.WriteString("</a>")
		}
	case *ast.Image:
		if entering {
			label := w.plainText(node)
			if label == "" {
				label = string(node.Destination)
			}
			w.buf.WriteString(`<a href="` + html.EscapeString(string(node.Destination)) + `">`)
			w.buf.WriteString(html.EscapeString(label))
			w.buf.WriteString("</a>")
		}
		return ast.WalkSkipChildren, nil
	case *ast.AutoLink:
		if entering {
			url := string(node.URL(w.source))
			w.buf.WriteString(`<a href="` + html.EscapeString(url) + `">`)
			w.escape(node.Label(w.source))
			w.buf.WriteString("</a>")
		}
		return ast.WalkSkipChildren, nil
	case *ast.RawHTML:
		if entering {
			segs := node.Segments
			for i := 0; i < segs.Len(); i++ {
				seg := segs.At(i)
				w.escape(seg.Value(w.source))
			}
		}
		return ast.WalkSkipChildren, nil
	}
	return ast.WalkContinue, nil
}
