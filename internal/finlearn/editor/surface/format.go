package surface

import (
	"golang.org/x/net/html"
)

type BlockType string

const (
	Paragraph BlockType = "paragraph"
	Heading1  BlockType = "heading-1"
	Heading2  BlockType = "heading-2"
	Heading3  BlockType = "heading-3"
	Quote     BlockType = "quote"
	CodeBlock BlockType = "code-block"
)

var blockTypeTags = map[BlockType]string{
	Paragraph: "p",
	Heading1:  "h1",
	Heading2:  "h2",
	Heading3:  "h3",
	Quote:     "blockquote",
	CodeBlock: "pre",
}

func (t BlockType) Valid() bool {
	_, ok := blockTypeTags[t]
	return ok
}

type ListKind string

const (
	Ordered   ListKind = "ordered"
	Unordered ListKind = "unordered"
)

func (k ListKind) Valid() bool {
	return k == Ordered || k == Unordered
}

func (k ListKind) tag() string {
	if k == Ordered {
		return "ol"
	}
	return "ul"
}

type Align string

const (
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

func (a Align) Valid() bool {
	return a == AlignLeft || a == AlignCenter || a == AlignRight
}

// SetBlockType меняет тип всех блоков выделения. Элементы списка сначала выносятся из списка.
func (s *Surface) SetBlockType(t BlockType) error {
	return s.mutate(func(root *html.Node) error {
		p := s.pin(root)
		for _, b := range s.selectedBlocks(root) {
			liftFromList(root, b)
			if t == Quote {
				toQuote(b)
				continue
			}
			if b.Data == "blockquote" {
				rename(b, blockTypeTags[t])
			} else {
				for b.Parent != nil && b.Parent.Data == "blockquote" {
					q := b.Parent
					liftOut(b)
					pruneEmpty(root, q)
				}
				rename(b, blockTypeTags[t])
			}
			if t == CodeBlock {
				runs := collectRuns(b)
				for i := range runs {
					runs[i].chain = nil
				}
				buildRuns(b, runs)
			}
		}
		s.unpin(root, p)
		return nil
	})
}

func toQuote(b *html.Node) {
	if b.Data == "blockquote" || ancestor(b, "blockquote") != nil {
		return
	}
	if b.Data != "p" {
		rename(b, "p")
	}
	parent := b.Parent
	wrap(b, newElement("blockquote", nil))
	mergeSiblingContainers(parent)
}

// liftFromList выносит блок из списка. Элемент списка становится параграфом.
func liftFromList(root, b *html.Node) {
	li := b
	if b.Data != "li" {
		li = ancestor(b, "li")
	}
	if li == nil {
		return
	}
	list := li.Parent
	if list != nil && (list.Data == "ul" || list.Data == "ol") {
		liftOut(li)
		pruneEmpty(root, list)
	}
	if li == b {
		rename(b, "p")
		return
	}
	unwrap(li)
}

func listOf(b *html.Node) *html.Node {
	li := b
	if b.Data != "li" {
		li = ancestor(b, "li")
	}
	if li == nil || li.Parent == nil {
		return nil
	}
	if l := li.Parent; l.Data == "ul" || l.Data == "ol" {
		return l
	}
	return nil
}

// ToggleList превращает блоки выделения в список. Если все блоки уже в списке этого вида,
// они выносятся из списка, а список другого вида меняет вид.
func (s *Surface) ToggleList(kind ListKind) error {
	tag := kind.tag()
	return s.mutate(func(root *html.Node) error {
		p := s.pin(root)
		blocks := s.selectedBlocks(root)

		all := true
		for _, b := range blocks {
			if l := listOf(b); l == nil || l.Data != tag {
				all = false
				break
			}
		}

		for _, b := range blocks {
			if all {
				liftFromList(root, b)
				continue
			}
			if l := listOf(b); l != nil {
				if l.Data != tag {
					rename(l, tag)
					if l.Parent != nil {
						mergeSiblingContainers(l.Parent)
					}
				}
				continue
			}
			if b.Data == "blockquote" {
				// цитата из одного блока оборачивается целиком
				inner := newElement("li", nil)
				for c := b.FirstChild; c != nil; {
					next := c.NextSibling
					b.RemoveChild(c)
					inner.AppendChild(c)
					c = next
				}
				list := newElement(tag, nil)
				list.AppendChild(inner)
				b.AppendChild(list)
				continue
			}
			rename(b, "li")
			parent := b.Parent
			wrap(b, newElement(tag, nil))
			mergeSiblingContainers(parent)
		}
		s.unpin(root, p)
		return nil
	})
}

// SetAlignment выставляет выравнивание блоков выделения. Выравнивание влево убирает стиль.
func (s *Surface) SetAlignment(a Align) error {
	return s.mutate(func(root *html.Node) error {
		for _, b := range s.selectedBlocks(root) {
			if a == AlignLeft {
				setStyle(b, "text-align", "")
			} else {
				setStyle(b, "text-align", string(a))
			}
		}
		return nil
	})
}

// ToggleMark переключает инлайн-стиль. Без выделения стиль откладывается до следующего ввода текста.
// Стиль снимается, если им уже отмечен весь текст выделения, иначе добавляется.
func (s *Surface) ToggleMark(m Mark) error {
	root := s.tree()
	if s.sel.Collapsed() {
		if s.stored == nil {
			s.stored = s.ActiveMarks()
		}
		s.stored[m] = !s.stored[m]
		return nil
	}

	start, end := s.sel.Range()
	blocks := textBlocks(root)
	type span struct {
		block    *html.Node
		from, to int
	}
	var spans []span
	for i := start.Block; i <= end.Block; i++ {
		runs := collectRuns(blocks[i])
		sp := span{block: blocks[i], to: runsLength(runs)}
		if i == start.Block {
			sp.from = start.Offset
		}
		if i == end.Block {
			sp.to = end.Offset
		}
		spans = append(spans, sp)
	}

	all := true
	for _, sp := range spans {
		for _, r := range sliceRuns(collectRuns(sp.block), sp.from, sp.to) {
			if r.atom == nil && !r.hasMark(m) {
				all = false
			}
		}
	}

	return s.mutate(func(root *html.Node) error {
		for _, sp := range spans {
			runs, i := splitAt(collectRuns(sp.block), sp.from)
			runs, j := splitAt(runs, sp.to)
			for k := i; k < j; k++ {
				if runs[k].atom == nil {
					runs[k] = runs[k].withMark(m, !all)
				}
			}
			buildRuns(sp.block, runs)
		}
		return nil
	})
}
