// Пакет отображает сохранённый документ для предпросмотра и публикации.
// Вход проходит через политику редактора, поэтому скрипты и обработчики событий
// не попадают в результат. Ошибок рендер не возвращает: непонятная разметка
// отображается как есть после очистки.
package render

import (
	"bytes"
	"log/slog"
	"strings"

	_ "embed"

	policy "github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/redactor-policy"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	minhtml "github.com/tdewolff/minify/v2/html"
	"golang.org/x/net/html"
)

// ContainerClass - класс обёртки, к которой привязана таблица стилей.
const ContainerClass = "finlearn-content"

//go:embed content.css
var Stylesheet string

var minifier = minify.New()

func init() {
	minifier.AddFunc("text/css", css.Minify)
	minifier.Add("text/html", &minhtml.Minifier{KeepDocumentTags: true, KeepEndTags: true, KeepQuotes: true})
}

// Render возвращает очищенный фрагмент документа. Пустой документ даёт пустую строку.
// Повторный Render результата возвращает его без изменений.
func Render(content string) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}
	clean := policy.UgcPolicy.Sanitize(content)
	if IsEmpty(clean) {
		return ""
	}
	return clean
}

// View оборачивает документ в контейнер со стилями. Используется в панели предпросмотра.
func View(content string) string {
	body := Render(content)
	if body == "" {
		return ""
	}
	return `<div class="` + ContainerClass + `">` + body + `</div>`
}

// Page собирает опубликованную страницу со встроенной таблицей стилей и минифицирует её.
func Page(title, content string) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html><html lang=\"ru\"><head><meta charset=\"utf-8\">")
	b.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
	b.WriteString("<title>")
	b.WriteString(html.EscapeString(title))
	b.WriteString("</title><style>")
	b.WriteString(Stylesheet)
	b.WriteString("</style></head><body>")
	b.WriteString(View(content))
	b.WriteString("</body></html>")

	page := b.String()
	out, err := minifier.String("text/html", page)
	if err != nil {
		slog.Warn("Minify published page", "err", err)
		return page
	}
	return out
}

// IsEmpty сообщает, что в разметке нет ни текста, ни изображений, ни плееров.
// Так выглядит пустой документ редактора: "", "<p></p>", "<p><br></p>".
func IsEmpty(content string) bool {
	if strings.TrimSpace(content) == "" {
		return true
	}
	z := html.NewTokenizer(bytes.NewReader([]byte(content)))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return true
		case html.TextToken:
			if strings.TrimSpace(string(z.Text())) != "" {
				return false
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "img", "iframe", "hr":
				return false
			}
		}
	}
}
