// Пакет предоставляет разбор HTML-документа редактора в типизированную структуру.
// Поддерживается только словарь редактора: заголовки h1-h3, параграфы, списки, цитаты,
// блоки кода, ссылки, изображения и встроенное видео. Остальная разметка пропускается.
//
// Основные возможности:
//   - Парсинг HTML-фрагмента из io.Reader.
//   - Извлечение инлайн-форматирования (жирный, курсив, подчёркивание, зачёркивание, код, ссылки).
//   - Подсчёт статистики документа для карточек материалов.
package editor

import (
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/editor/edtypes"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

func ParseDocument(r io.Reader) (*Document, error) {
	context := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(r, context)
	if err != nil {
		return nil, err
	}

	document := Document{Elements: make([]any, 0, len(nodes))}
	var loose *Paragraph
	flushLoose := func() {
		if loose != nil && len(loose.Content) > 0 {
			document.Elements = append(document.Elements, loose)
		}
		loose = nil
	}

	for _, el := range nodes {
		if el.Type == html.TextNode || (el.Type == html.ElementNode && isInline(el.Data)) {
			// Текст вне блока собираем в неявный параграф
			if el.Type == html.TextNode && strings.TrimSpace(el.Data) == "" {
				continue
			}
			if loose == nil {
				loose = &Paragraph{}
			}
			loose.Content = append(loose.Content, parseInline(el, edtypes.Text{})...)
			continue
		}
		if el.Type != html.ElementNode {
			continue
		}
		flushLoose()

		switch el.Data {
		case "h1", "h2", "h3":
			level, _ := strconv.Atoi(el.Data[1:])
			document.Elements = append(document.Elements, &Heading{
				Level:   level,
				Content: parseChildren(el),
				Align:   getAlign(el),
			})
		case "p":
			document.Elements = append(document.Elements, parseParagraph(el))
		case "ul", "ol":
			document.Elements = append(document.Elements, parseList(el))
		case "blockquote":
			document.Elements = append(document.Elements, parseQuote(el))
		case "pre":
			document.Elements = append(document.Elements, &Code{Content: textContent(el)})
		case "div":
			if v := parseVideo(el); v != nil {
				document.Elements = append(document.Elements, v)
			} else if p := parseParagraph(el); len(p.Content) > 0 {
				document.Elements = append(document.Elements, p)
			}
		case "iframe":
			if v := parseVideo(el); v != nil {
				document.Elements = append(document.Elements, v)
			}
		}
	}
	flushLoose()

	return &document, nil
}

func parseParagraph(root *html.Node) *Paragraph {
	return &Paragraph{
		Content: parseChildren(root),
		Align:   getAlign(root),
	}
}

func parseList(root *html.Node) *List {
	list := &List{Numbered: root.Data == "ol"}
	for li := root.FirstChild; li != nil; li = li.NextSibling {
		if li.Type != html.ElementNode || li.Data != "li" {
			continue
		}
		list.Elements = append(list.Elements, ListElement{
			Content: parseChildren(li),
			Align:   getAlign(li),
		})
	}
	return list
}

func parseQuote(root *html.Node) *Quote {
	var quote Quote
	var inline []any
	for el := root.FirstChild; el != nil; el = el.NextSibling {
		if el.Type == html.ElementNode && el.Data == "p" {
			quote.Content = append(quote.Content, *parseParagraph(el))
			continue
		}
		inline = append(inline, parseInline(el, edtypes.Text{})...)
	}
	if len(inline) > 0 {
		quote.Content = append([]Paragraph{{Content: inline}}, quote.Content...)
	}
	return &quote
}

func parseVideo(root *html.Node) *Video {
	frame := root
	if root.Data != "iframe" {
		frame = findElementByTagName(root, "iframe")
	}
	if frame == nil {
		return nil
	}
	src, err := url.Parse(getAttrValue("src", frame.Attr))
	if err != nil || src.Host == "" {
		return nil
	}
	return &Video{Src: src}
}

func parseChildren(root *html.Node) []any {
	content := make([]any, 0)
	for el := root.FirstChild; el != nil; el = el.NextSibling {
		content = append(content, parseInline(el, edtypes.Text{})...)
	}
	return content
}

// parseInline спускается по инлайн-разметке, накапливая форматирование в style.
func parseInline(el *html.Node, style edtypes.Text) []any {
	switch el.Type {
	case html.TextNode:
		if el.Data == "" {
			return nil
		}
		style.Content = el.Data
		return []any{style}
	case html.ElementNode:
	default:
		return nil
	}

	switch el.Data {
	case "br":
		return []any{&HardBreak{}}
	case "img":
		if img := getImage(el); img != nil {
			return []any{img}
		}
		return nil
	case "strong", "b":
		style.Strong = true
	case "em", "i":
		style.Italic = true
	case "u":
		style.Underlined = true
	case "s", "strike", "del":
		style.Strikethrough = true
	case "code":
		style.Code = true
	case "a":
		if u, err := url.Parse(getAttrValue("href", el.Attr)); err == nil {
			style.URL = u
		}
	case "script", "style":
		return nil
	}

	var res []any
	for c := el.FirstChild; c != nil; c = c.NextSibling {
		res = append(res, parseInline(c, style)...)
	}
	return res
}

func getImage(el *html.Node) *Image {
	imgUrl, err := url.Parse(getAttrValue("src", el.Attr))
	if err != nil || imgUrl.String() == "" {
		return nil
	}
	return &Image{Src: imgUrl, Alt: getAttrValue("alt", el.Attr)}
}

func getAlign(el *html.Node) TextAlign {
	for _, style := range parseStyles(strings.Split(getAttrValue("style", el.Attr), ";")) {
		if style.Key == "text-align" {
			return edtypes.ParseTextAlign(style.Val)
		}
	}
	return LeftAlign
}

func isInline(tag string) bool {
	switch tag {
	case "a", "strong", "b", "em", "i", "u", "s", "strike", "del", "code", "span", "br", "img":
		return true
	}
	return false
}

func textContent(root *html.Node) string {
	var b strings.Builder
	iterNodes(root, func(child *html.Node) bool {
		if child.Type == html.TextNode {
			b.WriteString(child.Data)
		}
		return false
	})
	return b.String()
}

func findElementByTagName(rootNode *html.Node, tagName string) *html.Node {
	var el *html.Node
	iterNodes(rootNode, func(child *html.Node) bool {
		if el != nil {
			return true
		}
		if child.Type == html.ElementNode && child.Data == tagName {
			el = child
			return true
		}
		return false
	})
	return el
}

func iterNodes(node *html.Node, f func(child *html.Node) bool) {
	if f(node) {
		return
	}
	for p := node.FirstChild; p != nil; p = p.NextSibling {
		iterNodes(p, f)
	}
}

func getAttrValue(key string, attrs []html.Attribute) string {
	for _, attr := range attrs {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func parseStyles(rawStyles []string) []html.Attribute {
	res := make([]html.Attribute, 0, len(rawStyles))
	for _, styleRaw := range rawStyles {
		arr := strings.SplitN(styleRaw, ":", 2)
		if len(arr) < 2 {
			continue
		}
		res = append(res, html.Attribute{
			Key: strings.TrimSpace(arr[0]),
			Val: strings.TrimSpace(arr[1]),
		})
	}
	return res
}
