// Определяет политики безопасности для разметки учебных материалов. Политика UgcPolicy
// пропускает только словарь редактора: заголовки, параграфы, списки, цитаты, код,
// инлайн-стили, выравнивание, ссылки, изображения и встроенные плееры YouTube и Vimeo.
// Всё остальное, включая скрипты и обработчики событий, вырезается.
//
// Основные возможности:
//   - Белый список элементов и атрибутов редактора.
//   - Ограничение адресов iframe плеерами YouTube и Vimeo.
//   - Ограничение стилей выравниванием текста.
//   - StripTagsPolicy для получения чистого текста (поиск, карточки статей).
package policy

import (
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

var StripTagsPolicy *bluemonday.Policy = bluemonday.StrictPolicy()
var UgcPolicy *bluemonday.Policy = bluemonday.NewPolicy()

// EmbedRegexp - адреса плееров, которые разрешено встраивать.
var EmbedRegexp = regexp.MustCompile(`^https://(www\.youtube\.com/embed|player\.vimeo\.com/video)/[a-zA-Z0-9_-]+(\?[a-zA-Z0-9=&_-]*)?$`)

func init() {
	classRegexp := regexp.MustCompile(`^[a-zA-Z0-9 _:/.-]+$`)
	alignRegexp := regexp.MustCompile(`^(left|center|right)$`)
	allowRegexp := regexp.MustCompile(`^[a-z; -]+$`)

	UgcPolicy.AllowURLSchemes("http", "https", "mailto")
	UgcPolicy.AllowRelativeURLs(true)
	UgcPolicy.RequireParseableURLs(true)

	UgcPolicy.AllowElements(
		"p", "h1", "h2", "h3", "h4", "h5", "h6",
		"ul", "ol", "li", "blockquote", "pre", "code",
		"strong", "b", "em", "i", "u", "s", "strike", "del",
		"br", "hr", "span", "div", "sub", "sup", "mark",
		"table", "thead", "tbody", "tr", "th", "td", "figure", "figcaption",
	)

	UgcPolicy.AllowAttrs("href").OnElements("a")
	UgcPolicy.AllowAttrs("target").Matching(regexp.MustCompile(`^_blank$`)).OnElements("a")
	UgcPolicy.AllowAttrs("rel").Matching(regexp.MustCompile(`^(noopener|noreferrer|nofollow)( (noopener|noreferrer|nofollow))*$`)).OnElements("a")
	UgcPolicy.AllowAttrs("class").Matching(classRegexp).OnElements("a", "img")

	UgcPolicy.AllowAttrs("src", "alt", "title").OnElements("img")
	UgcPolicy.AllowAttrs("width", "height").Matching(bluemonday.Integer).OnElements("img")

	UgcPolicy.AllowAttrs("src").Matching(EmbedRegexp).OnElements("iframe")
	UgcPolicy.AllowAttrs("class").Matching(regexp.MustCompile(`^video-embed-frame$`)).OnElements("iframe")
	UgcPolicy.AllowAttrs("allow").Matching(allowRegexp).OnElements("iframe")
	UgcPolicy.AllowAttrs("frameborder").Matching(bluemonday.Integer).OnElements("iframe")
	UgcPolicy.AllowAttrs("allowfullscreen").OnElements("iframe")
	UgcPolicy.AllowAttrs("class").Matching(regexp.MustCompile(`^video-embed$`)).OnElements("div")

	UgcPolicy.AllowAttrs("start").Matching(regexp.MustCompile(`^\d+$`)).OnElements("ol")
	UgcPolicy.AllowAttrs("class").Matching(regexp.MustCompile(`^language-[a-zA-Z0-9_+-]+$`)).OnElements("code")
	UgcPolicy.AllowAttrs("colspan", "rowspan").Matching(bluemonday.Integer).OnElements("td", "th")

	UgcPolicy.AllowStyles("text-align").Matching(alignRegexp).OnElements("p", "h1", "h2", "h3", "li", "blockquote", "pre")
}
