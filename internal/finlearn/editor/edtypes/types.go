// Пакет edtypes описывает типизированное представление документа редактора.
// Документ хранится строкой HTML, а эти типы используются там, где нужна структура:
// статистика статей, экспорт в Markdown, проверки в тестах.
package edtypes

import (
	"net/url"
	"strings"
)

type TextAlign int

const (
	LeftAlign TextAlign = iota
	CenterAlign
	RightAlign
)

func (a TextAlign) String() string {
	switch a {
	case CenterAlign:
		return "center"
	case RightAlign:
		return "right"
	}
	return "left"
}

// ParseTextAlign конвертирует значение CSS text-align в TextAlign. Неизвестные значения дают LeftAlign.
func ParseTextAlign(raw string) TextAlign {
	switch strings.TrimSpace(strings.ToLower(raw)) {
	case "center":
		return CenterAlign
	case "right":
		return RightAlign
	}
	return LeftAlign
}

type Document struct {
	Elements []any
}

type Heading struct {
	Level   int
	Content []any
	Align   TextAlign
}

type Paragraph struct {
	Content []any
	Align   TextAlign
}

type Text struct {
	Content string

	Strong        bool
	Italic        bool
	Underlined    bool
	Strikethrough bool
	Code          bool

	URL *url.URL
}

type ListElement struct {
	Content []any
	Align   TextAlign
}

type List struct {
	Elements []ListElement
	Numbered bool
}

type Quote struct {
	Content []Paragraph
}

type Code struct {
	Content string
}

type Image struct {
	Src *url.URL
	Alt string
}

type Video struct {
	Src *url.URL
}

type HardBreak struct {
	// Пустая структура для представления переноса строки <br>
}

// PlainText склеивает текстовое содержимое инлайн-элементов.
func PlainText(content []any) string {
	var b strings.Builder
	for _, c := range content {
		switch v := c.(type) {
		case Text:
			b.WriteString(v.Content)
		case *HardBreak:
			b.WriteByte('\n')
		}
	}
	return b.String()
}
