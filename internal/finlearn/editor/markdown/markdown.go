// Пакет переводит материалы между Markdown и разметкой редактора.
// Импорт используется при переносе статей из старой базы знаний, экспорт - для рассылок.
package markdown

import (
	"bytes"
	"strings"

	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/editor"
	policy "github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/redactor-policy"
	md "github.com/nao1215/markdown"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

var converter = goldmark.New(goldmark.WithExtensions(extension.Strikethrough))

type Imported struct {
	Title   string
	Content string
}

// Import конвертирует Markdown в разметку редактора. Заголовком считается первый заголовок документа.
// HTML внутри Markdown не переносится.
func Import(src []byte) (Imported, error) {
	doc := converter.Parser().Parse(text.NewReader(src))

	var res Imported
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if h, ok := n.(*ast.Heading); ok && entering {
			res.Title = strings.TrimSpace(string(h.Text(src)))
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})

	var buf bytes.Buffer
	if err := converter.Renderer().Render(&buf, src, doc); err != nil {
		return Imported{}, err
	}
	res.Content = strings.TrimSpace(policy.UgcPolicy.Sanitize(buf.String()))
	return res, nil
}

// Export конвертирует документ редактора в Markdown. Выравнивание не переносится,
// видео становится ссылкой на плеер.
func Export(doc *editor.Document) string {
	var b strings.Builder
	m := md.NewMarkdown(&b)
	for _, el := range doc.Elements {
		switch e := el.(type) {
		case *editor.Heading:
			title := inline(e.Content)
			switch e.Level {
			case 1:
				m.H1(title)
			case 2:
				m.H2(title)
			default:
				m.H3(title)
			}
		case *editor.Paragraph:
			if s := inline(e.Content); s != "" {
				m.PlainText(s)
			}
		case *editor.List:
			items := make([]string, 0, len(e.Elements))
			for _, li := range e.Elements {
				items = append(items, inline(li.Content))
			}
			if e.Numbered {
				m.OrderedList(items...)
			} else {
				m.BulletList(items...)
			}
		case *editor.Quote:
			lines := make([]string, 0, len(e.Content))
			for _, p := range e.Content {
				lines = append(lines, inline(p.Content))
			}
			m.Blockquote(strings.Join(lines, "\n"))
		case *editor.Code:
			m.CodeBlocks(md.SyntaxHighlight(""), strings.TrimRight(e.Content, "\n"))
		case *editor.Video:
			m.PlainText(md.Link("Видео", e.Src.String()))
		default:
			continue
		}
		m.PlainText("")
	}
	return strings.TrimSpace(m.String()) + "\n"
}

func inline(content []any) string {
	var b strings.Builder
	for _, c := range content {
		switch v := c.(type) {
		case editor.Text:
			s := v.Content
			if strings.TrimSpace(s) == "" {
				b.WriteString(s)
				continue
			}
			// пробелы по краям выносятся за пределы разметки, иначе Markdown не распознает выделение
			lead := s[:len(s)-len(strings.TrimLeft(s, " "))]
			trail := s[len(strings.TrimRight(s, " ")):]
			s = strings.TrimSpace(s)
			switch {
			case v.Code:
				s = md.Code(s)
			default:
				if v.Strikethrough {
					s = md.Strikethrough(s)
				}
				if v.Italic {
					s = md.Italic(s)
				}
				if v.Strong {
					s = md.Bold(s)
				}
			}
			if v.URL != nil {
				s = md.Link(s, v.URL.String())
			}
			b.WriteString(lead + s + trail)
		case *editor.Image:
			b.WriteString(md.Image(v.Alt, v.Src.String()))
		case *editor.HardBreak:
			b.WriteString("  \n")
		}
	}
	return strings.TrimSpace(b.String())
}
