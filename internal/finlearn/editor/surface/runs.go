package surface

import (
	"strings"

	"golang.org/x/net/html"
)

type Mark string

const (
	Bold          Mark = "bold"
	Italic        Mark = "italic"
	Underline     Mark = "underline"
	Strikethrough Mark = "strikethrough"
)

// Marks - порядок вложенности тегов при применении нескольких стилей сразу.
var Marks = []Mark{Bold, Italic, Underline, Strikethrough}

var markTags = map[Mark][]string{
	Bold:          {"strong", "b"},
	Italic:        {"em", "i"},
	Underline:     {"u"},
	Strikethrough: {"s", "strike", "del"},
}

func (m Mark) Valid() bool {
	_, ok := markTags[m]
	return ok
}

type MarkSet map[Mark]bool

// atomTags - инлайн-элементы, которые редактор не разбирает и переносит целиком.
var atomTags = map[string]bool{
	"img": true, "br": true, "hr": true, "wbr": true, "input": true,
	"iframe": true, "video": true, "audio": true, "svg": true, "object": true, "embed": true, "picture": true,
}

type wrapper struct {
	tag   string
	attrs []html.Attribute
}

func (w wrapper) equal(o wrapper) bool {
	if w.tag != o.tag || len(w.attrs) != len(o.attrs) {
		return false
	}
	for i := range w.attrs {
		if w.attrs[i] != o.attrs[i] {
			return false
		}
	}
	return true
}

// run - отрезок инлайн-содержимого блока с единым набором обёрток.
// Атом (изображение, перенос строки) занимает одну позицию.
type run struct {
	text  []rune
	atom  *html.Node
	chain []wrapper
}

func (r run) length() int {
	if r.atom != nil {
		return 1
	}
	return len(r.text)
}

func (r run) has(tags ...string) bool {
	for _, w := range r.chain {
		for _, t := range tags {
			if w.tag == t {
				return true
			}
		}
	}
	return false
}

func (r run) hasMark(m Mark) bool {
	return r.has(markTags[m]...)
}

func (r run) without(tags ...string) run {
	chain := make([]wrapper, 0, len(r.chain))
	for _, w := range r.chain {
		drop := false
		for _, t := range tags {
			if w.tag == t {
				drop = true
				break
			}
		}
		if !drop {
			chain = append(chain, w)
		}
	}
	r.chain = chain
	return r
}

func (r run) withMark(m Mark, on bool) run {
	if !on {
		return r.without(markTags[m]...)
	}
	if r.hasMark(m) {
		return r
	}
	r.chain = appendChain(r.chain, wrapper{tag: markTags[m][0]})
	return r
}

func appendChain(chain []wrapper, w wrapper) []wrapper {
	res := make([]wrapper, len(chain), len(chain)+1)
	copy(res, chain)
	return append(res, w)
}

func sameChain(a, b []wrapper) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].equal(b[i]) {
			return false
		}
	}
	return true
}

func collectRuns(block *html.Node) []run {
	var runs []run
	var walk func(n *html.Node, chain []wrapper)
	walk = func(n *html.Node, chain []wrapper) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case html.TextNode:
				if c.Data != "" {
					runs = append(runs, run{text: []rune(c.Data), chain: chain})
				}
			case html.ElementNode:
				if atomTags[c.Data] {
					runs = append(runs, run{atom: cloneTree(c), chain: chain})
					continue
				}
				walk(c, appendChain(chain, wrapper{tag: c.Data, attrs: cloneAttrs(c.Attr)}))
			}
		}
	}
	walk(block, nil)
	return runs
}

// buildRuns заменяет содержимое блока разметкой, собранной из runs.
func buildRuns(block *html.Node, runs []run) {
	for c := block.FirstChild; c != nil; {
		next := c.NextSibling
		block.RemoveChild(c)
		c = next
	}
	buildLevel(block, compact(runs), 0)
}

func buildLevel(parent *html.Node, runs []run, depth int) {
	for i := 0; i < len(runs); {
		r := runs[i]
		if len(r.chain) == depth {
			if r.atom != nil {
				parent.AppendChild(cloneTree(r.atom))
			} else {
				parent.AppendChild(&html.Node{Type: html.TextNode, Data: string(r.text)})
			}
			i++
			continue
		}
		w := r.chain[depth]
		j := i + 1
		for j < len(runs) && len(runs[j].chain) > depth && runs[j].chain[depth].equal(w) {
			j++
		}
		el := newElement(w.tag, cloneAttrs(w.attrs))
		parent.AppendChild(el)
		buildLevel(el, runs[i:j], depth+1)
		i = j
	}
}

// compact склеивает соседние текстовые отрезки с одинаковыми обёртками и выбрасывает пустые.
func compact(runs []run) []run {
	res := make([]run, 0, len(runs))
	for _, r := range runs {
		if r.atom == nil && len(r.text) == 0 {
			continue
		}
		if n := len(res); n > 0 && r.atom == nil && res[n-1].atom == nil && sameChain(res[n-1].chain, r.chain) {
			text := make([]rune, 0, len(res[n-1].text)+len(r.text))
			text = append(text, res[n-1].text...)
			res[n-1].text = append(text, r.text...)
			continue
		}
		res = append(res, r)
	}
	return res
}

func runsLength(runs []run) int {
	l := 0
	for _, r := range runs {
		l += r.length()
	}
	return l
}

// splitAt гарантирует границу отрезков в позиции off и возвращает индекс первого отрезка после неё.
func splitAt(runs []run, off int) ([]run, int) {
	pos := 0
	for i := 0; i < len(runs); i++ {
		if off <= pos {
			return runs, i
		}
		l := runs[i].length()
		if off < pos+l {
			r := runs[i]
			k := off - pos
			left := run{text: append([]rune(nil), r.text[:k]...), chain: r.chain}
			right := run{text: append([]rune(nil), r.text[k:]...), chain: r.chain}
			res := make([]run, 0, len(runs)+1)
			res = append(res, runs[:i]...)
			res = append(res, left, right)
			res = append(res, runs[i+1:]...)
			return res, i + 1
		}
		pos += l
	}
	return runs, len(runs)
}

// cutRuns удаляет содержимое в диапазоне [from, to).
func cutRuns(runs []run, from, to int) []run {
	runs, i := splitAt(runs, from)
	runs, j := splitAt(runs, to)
	res := make([]run, 0, len(runs)-(j-i))
	res = append(res, runs[:i]...)
	return append(res, runs[j:]...)
}

func insertRuns(runs []run, off int, ins []run) []run {
	runs, i := splitAt(runs, off)
	res := make([]run, 0, len(runs)+len(ins))
	res = append(res, runs[:i]...)
	res = append(res, ins...)
	return append(res, runs[i:]...)
}

// chainAt возвращает обёртки, которые унаследует текст, вставленный в позицию off.
// На границе ссылки текст ссылкой не становится.
func chainAt(runs []run, off int) []wrapper {
	pos := 0
	for i, r := range runs {
		l := r.length()
		if off > pos && off < pos+l {
			return r.chain
		}
		if off == pos+l {
			return r.without("a").chain
		}
		if off == pos && i == 0 {
			return r.without("a").chain
		}
		pos += l
	}
	return nil
}

func marksAt(runs []run, off int) MarkSet {
	res := MarkSet{}
	probe := run{chain: chainAt(runs, off)}
	for _, m := range Marks {
		if probe.hasMark(m) {
			res[m] = true
		}
	}
	return res
}

func runsText(runs []run) string {
	var b strings.Builder
	for _, r := range runs {
		if r.atom == nil {
			b.WriteString(string(r.text))
		}
	}
	return b.String()
}

func sliceRuns(runs []run, from, to int) []run {
	runs, i := splitAt(runs, from)
	runs, j := splitAt(runs, to)
	return runs[i:j]
}
