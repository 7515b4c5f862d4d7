package editor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lesson = `<h1>Облигации</h1>
<p style="text-align: center">Купон <strong>выплачивается</strong> дважды в год. <a href="https://finlearn.ru/bonds">Подробнее</a></p>
<ul><li>ОФЗ</li><li><em>Корпоративные</em></li></ul>
<blockquote><p>Не кладите все яйца в одну корзину</p></blockquote>
<pre>yield := coupon / price</pre>
<p><img src="https://cdn.finlearn.ru/chart.png" alt="График"></p>
<div class="video-embed"><iframe src="https://www.youtube.com/embed/dQw4w9WgXcQ"></iframe></div>
свободный текст<script>alert(1)</script>`

func TestParseDocument(t *testing.T) {
	doc, err := ParseDocument(strings.NewReader(lesson))
	require.NoError(t, err)
	require.Len(t, doc.Elements, 8)

	h, ok := doc.Elements[0].(*Heading)
	require.True(t, ok)
	assert.Equal(t, 1, h.Level)
	assert.Equal(t, "Облигации", PlainText(h.Content))

	p, ok := doc.Elements[1].(*Paragraph)
	require.True(t, ok)
	assert.Equal(t, CenterAlign, p.Align)
	require.Len(t, p.Content, 4)
	assert.True(t, p.Content[1].(Text).Strong)
	link := p.Content[3].(Text)
	require.NotNil(t, link.URL)
	assert.Equal(t, "https://finlearn.ru/bonds", link.URL.String())

	list, ok := doc.Elements[2].(*List)
	require.True(t, ok)
	assert.False(t, list.Numbered)
	require.Len(t, list.Elements, 2)
	assert.True(t, list.Elements[1].Content[0].(Text).Italic)

	quote, ok := doc.Elements[3].(*Quote)
	require.True(t, ok)
	assert.Equal(t, "Не кладите все яйца в одну корзину", PlainText(quote.Content[0].Content))

	code, ok := doc.Elements[4].(*Code)
	require.True(t, ok)
	assert.Equal(t, "yield := coupon / price", code.Content)

	img, ok := doc.Elements[5].(*Paragraph).Content[0].(*Image)
	require.True(t, ok)
	assert.Equal(t, "График", img.Alt)

	video, ok := doc.Elements[6].(*Video)
	require.True(t, ok)
	assert.Equal(t, "www.youtube.com", video.Src.Host)

	loose, ok := doc.Elements[7].(*Paragraph)
	require.True(t, ok)
	assert.Equal(t, "свободный текст", strings.TrimSpace(PlainText(loose.Content)))
}

func TestGetStats(t *testing.T) {
	doc, err := ParseDocument(strings.NewReader(lesson))
	require.NoError(t, err)

	stats := GetStats(doc)
	assert.Equal(t, 1, stats.Images)
	assert.Equal(t, 1, stats.Videos)
	assert.Equal(t, 1, stats.Links)
	assert.Equal(t, []string{"Облигации"}, stats.Headings)
	assert.Equal(t, 1, stats.ReadingMinutes)
	// 1 + 6 + 2 + 7 + 5 + 2
	assert.Equal(t, 23, stats.Words)

	long := "<p>" + strings.Repeat("слово ", 401) + "</p>"
	doc, err = ParseDocument(strings.NewReader(long))
	require.NoError(t, err)
	assert.Equal(t, 3, GetStats(doc).ReadingMinutes)

	doc, err = ParseDocument(strings.NewReader(""))
	require.NoError(t, err)
	assert.Zero(t, GetStats(doc).ReadingMinutes)
}
