package editor

import (
	"strings"
)

// wordsPerMinute - средняя скорость чтения для оценки времени чтения статьи.
const wordsPerMinute = 200

type Stats struct {
	Words          int      `json:"words"`
	ReadingMinutes int      `json:"reading_minutes"`
	Images         int      `json:"images"`
	Videos         int      `json:"videos"`
	Links          int      `json:"links"`
	Headings       []string `json:"headings"`
}

// GetStats считает статистику документа для карточек статей и курсов.
func GetStats(doc *Document) Stats {
	stats := Stats{Headings: make([]string, 0)}
	links := make(map[string]struct{})

	countInline := func(content []any) {
		for _, c := range content {
			switch v := c.(type) {
			case Text:
				stats.Words += len(strings.Fields(v.Content))
				if v.URL != nil {
					links[v.URL.String()] = struct{}{}
				}
			case *Image:
				stats.Images++
			}
		}
	}

	for _, el := range doc.Elements {
		switch e := el.(type) {
		case *Heading:
			countInline(e.Content)
			stats.Headings = append(stats.Headings, strings.TrimSpace(PlainText(e.Content)))
		case *Paragraph:
			countInline(e.Content)
		case *List:
			for _, li := range e.Elements {
				countInline(li.Content)
			}
		case *Quote:
			for _, p := range e.Content {
				countInline(p.Content)
			}
		case *Code:
			stats.Words += len(strings.Fields(e.Content))
		case *Video:
			stats.Videos++
		}
	}

	stats.Links = len(links)
	if stats.Words > 0 {
		stats.ReadingMinutes = (stats.Words + wordsPerMinute - 1) / wordsPerMinute
	}
	return stats
}
