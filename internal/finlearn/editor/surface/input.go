package surface

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// InsertText вставляет текст в позицию курсора, заменяя выделение.
// Перевод строки вне блока кода разбивает блок.
func (s *Surface) InsertText(text string) error {
	if text == "" {
		return nil
	}
	return s.mutate(func(root *html.Node) error {
		s.deleteSelection(root)
		lines := strings.Split(text, "\n")
		for i, line := range lines {
			if i > 0 {
				if b := s.caretBlock(root); b.Data == "pre" {
					s.insertPlain(root, "\n")
				} else {
					s.splitBlock(root)
				}
			}
			s.insertPlain(root, line)
		}
		return nil
	})
}

func (s *Surface) caretBlock(root *html.Node) *html.Node {
	return textBlocks(root)[s.sel.Focus.Block]
}

func (s *Surface) insertPlain(root *html.Node, text string) {
	if text == "" {
		return
	}
	b := s.caretBlock(root)
	off := s.sel.Focus.Offset
	runs := collectRuns(b)

	r := run{text: []rune(text), chain: chainAt(runs, off)}
	if s.stored != nil {
		for _, m := range Marks {
			r = r.withMark(m, s.stored[m])
		}
		s.stored = nil
	}
	buildRuns(b, insertRuns(runs, off, []run{r}))
	s.caretAt(root, b, off+len(r.text))
}

// DeleteBackward удаляет выделение или символ перед курсором. В начале блока
// элемент списка и цитата становятся параграфом, иначе блок склеивается с предыдущим.
func (s *Surface) DeleteBackward() error {
	return s.mutate(func(root *html.Node) error {
		if !s.sel.Collapsed() {
			s.deleteSelection(root)
			return nil
		}
		b := s.caretBlock(root)
		off := s.sel.Focus.Offset
		if off > 0 {
			buildRuns(b, cutRuns(collectRuns(b), off-1, off))
			s.caretAt(root, b, off-1)
			return nil
		}

		if listOf(b) != nil {
			liftFromList(root, b)
			s.caretAt(root, b, 0)
			return nil
		}
		if b.Data == "blockquote" {
			rename(b, "p")
			s.caretAt(root, b, 0)
			return nil
		}
		if b.Parent != nil && b.Parent.Data == "blockquote" {
			for b.Parent != nil && b.Parent.Data == "blockquote" {
				q := b.Parent
				liftOut(b)
				pruneEmpty(root, q)
			}
			s.caretAt(root, b, 0)
			return nil
		}

		if prev := prevElement(topLevel(root, b)); prev != nil && isAtomicBlock(prev) {
			prev.Parent.RemoveChild(prev)
			s.caretAt(root, b, 0)
			return nil
		}

		blocks := textBlocks(root)
		idx := s.sel.Focus.Block
		if idx == 0 {
			return nil
		}
		prev := blocks[idx-1]
		prevRuns := collectRuns(prev)
		l := runsLength(prevRuns)
		buildRuns(prev, append(prevRuns, collectRuns(b)...))
		parent := b.Parent
		parent.RemoveChild(b)
		pruneEmpty(root, parent)
		s.caretAt(root, prev, l)
		return nil
	})
}

// isAtomicBlock - блочный элемент без редактируемого текста (видео, разделитель).
func isAtomicBlock(n *html.Node) bool {
	if n.Type != html.ElementNode || textBlockTags[n.Data] {
		return false
	}
	return len(textBlocks(n)) == 0
}

// SplitBlock разбивает блок в позиции курсора. Заголовок, разбитый в конце, продолжается параграфом.
// Enter в пустом элементе списка выводит его из списка, в блоке кода вставляется перевод строки.
func (s *Surface) SplitBlock() error {
	return s.mutate(func(root *html.Node) error {
		s.deleteSelection(root)
		if s.caretBlock(root).Data == "pre" {
			s.insertPlain(root, "\n")
			return nil
		}
		s.splitBlock(root)
		return nil
	})
}

func (s *Surface) splitBlock(root *html.Node) {
	b := s.caretBlock(root)
	off := s.sel.Focus.Offset
	runs := collectRuns(b)

	if runsLength(runs) == 0 && listOf(b) != nil {
		liftFromList(root, b)
		s.caretAt(root, b, 0)
		return
	}

	runs, i := splitAt(runs, off)
	left, right := runs[:i], runs[i:]
	tag := b.Data
	switch {
	case len(right) == 0 && (tag == "h1" || tag == "h2" || tag == "h3"):
		tag = "p"
	case tag == "blockquote" && len(right) == 0:
		tag = "p"
	}

	attrs := cloneAttrs(b.Attr)
	if tag != b.Data {
		attrs = nil
	}
	next := newElement(tag, attrs)
	buildRuns(b, left)
	buildRuns(next, right)
	b.Parent.InsertBefore(next, b.NextSibling)
	s.caretAt(root, next, 0)
}

// deleteSelection удаляет содержимое выделения и ставит курсор в его начало.
func (s *Surface) deleteSelection(root *html.Node) {
	if s.sel.Collapsed() {
		return
	}
	start, end := s.sel.Range()
	blocks := textBlocks(root)
	first, last := blocks[start.Block], blocks[end.Block]

	if first == last {
		buildRuns(first, cutRuns(collectRuns(first), start.Offset, end.Offset))
		s.caretAt(root, first, start.Offset)
		return
	}

	head := sliceRuns(collectRuns(first), 0, start.Offset)
	lastRuns := collectRuns(last)
	tail := sliceRuns(lastRuns, end.Offset, runsLength(lastRuns))

	for _, n := range nodesBetween(root, first, last) {
		parent := n.Parent
		parent.RemoveChild(n)
		pruneEmpty(root, parent)
	}

	buildRuns(first, append(append([]run(nil), head...), tail...))
	lastParent := last.Parent
	lastParent.RemoveChild(last)
	pruneEmpty(root, lastParent)
	s.caretAt(root, first, start.Offset)
}

// nodesBetween возвращает максимальные поддеревья, лежащие строго между first и last
// в порядке документа и не содержащие ни одного из них.
func nodesBetween(root, first, last *html.Node) []*html.Node {
	pre := map[*html.Node]int{}
	end := map[*html.Node]int{}
	counter := 0
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		pre[n] = counter
		counter++
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		end[n] = counter - 1
	}
	walk(root)

	between := func(n *html.Node) bool {
		return pre[n] > end[first] && end[n] < pre[last]
	}
	var res []*html.Node
	var collect func(n *html.Node)
	collect = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if between(c) {
				res = append(res, c)
				continue
			}
			collect(c)
		}
	}
	collect(root)
	return res
}

// InsertInline вставляет инлайн-фрагмент (ссылку, изображение) в позицию курсора, заменяя выделение.
// Фрагмент наследует стили окружения, кроме ссылки.
func (s *Surface) InsertInline(fragment string) error {
	ctx := &html.Node{Type: html.ElementNode, Data: "p", DataAtom: atom.P}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), ctx)
	if err != nil {
		return err
	}
	holder := newElement("span", nil)
	for _, n := range nodes {
		holder.AppendChild(n)
	}
	ins := collectRuns(holder)

	return s.mutate(func(root *html.Node) error {
		s.deleteSelection(root)
		b := s.caretBlock(root)
		off := s.sel.Focus.Offset
		runs := collectRuns(b)
		base := run{chain: chainAt(runs, off)}.without("a").chain
		for i := range ins {
			chain := make([]wrapper, 0, len(base)+len(ins[i].chain))
			chain = append(chain, base...)
			ins[i].chain = append(chain, ins[i].chain...)
		}
		buildRuns(b, insertRuns(runs, off, ins))
		s.caretAt(root, b, off+runsLength(ins))
		return nil
	})
}

// InsertBlock вставляет блочный фрагмент (видео) в позицию курсора. Блок верхнего уровня
// разрезается, вложенный блок (список, цитата) оставляется целым и фрагмент идёт после него.
// После фрагмента всегда есть текстовый блок, куда переходит курсор.
func (s *Surface) InsertBlock(fragment string) error {
	ctx := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), ctx)
	if err != nil {
		return err
	}

	return s.mutate(func(root *html.Node) error {
		s.deleteSelection(root)
		b := s.caretBlock(root)
		off := s.sel.Focus.Offset
		top := topLevel(root, b)

		var anchor, after *html.Node
		if top == b {
			runs, i := splitAt(collectRuns(b), off)
			left, right := runs[:i], runs[i:]
			switch {
			case len(left) == 0:
				// пустая левая часть: фрагмент встаёт перед блоком, блок остаётся после
				anchor = b
				after = b
			default:
				buildRuns(b, left)
				tag := b.Data
				if len(right) == 0 {
					tag = "p"
				}
				after = newElement(tag, nil)
				buildRuns(after, right)
				root.InsertBefore(after, b.NextSibling)
				anchor = after
			}
		} else {
			after = newElement("p", nil)
			root.InsertBefore(after, top.NextSibling)
			anchor = after
		}

		for _, n := range nodes {
			if n.Type == html.TextNode && strings.TrimSpace(n.Data) == "" {
				continue
			}
			root.InsertBefore(n, anchor)
		}
		s.caretAt(root, after, 0)
		return nil
	})
}
