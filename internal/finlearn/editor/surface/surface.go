// Пакет реализует редактируемую поверхность документа на стороне сервера.
//
// Документ хранится как строка HTML и разбирается в дерево golang.org/x/net/html
// только при первой операции, поэтому HTML() до первой правки возвращает
// исходное значение без изменений.
//
// Основные возможности:
//   - Модель выделения: номер текстового блока и смещение в символах.
//   - Ввод текста, удаление, разбиение блока.
//   - Блочное и инлайн-форматирование, списки, выравнивание.
//   - Вставка готовых фрагментов разметки (ссылка, изображение, видео).
//   - История изменений на снимках с ограничением глубины.
package surface

import (
	"log/slog"
	"strings"

	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/apierrors"
	"golang.org/x/net/html"
)

// HistoryLimit - максимальная глубина истории отмены.
const HistoryLimit = 100

// Position - точка в документе. Block - номер текстового блока в порядке документа,
// Offset - смещение в символах внутри блока, изображение и перенос строки считаются одним символом.
type Position struct {
	Block  int `json:"block"`
	Offset int `json:"offset"`
}

func (p Position) before(o Position) bool {
	return p.Block < o.Block || (p.Block == o.Block && p.Offset < o.Offset)
}

type Selection struct {
	Anchor Position `json:"anchor"`
	Focus  Position `json:"focus"`
}

func (s Selection) Collapsed() bool {
	return s.Anchor == s.Focus
}

// Range возвращает начало и конец выделения по порядку документа.
func (s Selection) Range() (Position, Position) {
	if s.Focus.before(s.Anchor) {
		return s.Focus, s.Anchor
	}
	return s.Anchor, s.Focus
}

// Block - описание текстового блока для клиента.
type Block struct {
	Tag    string `json:"tag"`
	Text   string `json:"text"`
	Length int    `json:"length"`
}

type snapshot struct {
	content string
	sel     Selection
}

type Surface struct {
	source string
	root   *html.Node

	sel    Selection
	stored MarkSet

	undo []snapshot
	redo []snapshot
}

func New(content string) *Surface {
	return &Surface{source: content}
}

// Load заменяет документ целиком. История и отложенные стили сбрасываются.
func (s *Surface) Load(content string) {
	s.source = content
	s.root = nil
	s.sel = Selection{}
	s.stored = nil
	s.undo = nil
	s.redo = nil
}

// HTML возвращает текущее сериализованное содержимое.
func (s *Surface) HTML() string {
	return s.source
}

func (s *Surface) tree() *html.Node {
	if s.root != nil {
		return s.root
	}
	root, err := parseFragment(s.source)
	if err != nil {
		slog.Warn("Parse document fragment", "err", err)
		root = newElement("div", nil)
		p := newElement("p", nil)
		p.AppendChild(&html.Node{Type: html.TextNode, Data: s.source})
		root.AppendChild(p)
	}
	s.root = root
	s.clamp()
	return root
}

func (s *Surface) clamp() {
	blocks := textBlocks(s.root)
	fix := func(p Position) Position {
		if p.Block >= len(blocks) {
			p.Block = len(blocks) - 1
			p.Offset = runsLength(collectRuns(blocks[p.Block]))
		}
		if p.Block < 0 {
			p.Block = 0
		}
		if l := runsLength(collectRuns(blocks[p.Block])); p.Offset > l {
			p.Offset = l
		}
		if p.Offset < 0 {
			p.Offset = 0
		}
		return p
	}
	s.sel.Anchor = fix(s.sel.Anchor)
	s.sel.Focus = fix(s.sel.Focus)
}

func (s *Surface) Selection() Selection {
	s.tree()
	return s.sel
}

// Select перемещает выделение. Отложенные стили сбрасываются.
func (s *Surface) Select(anchor, focus Position) error {
	blocks := textBlocks(s.tree())
	for _, p := range []Position{anchor, focus} {
		if p.Block < 0 || p.Block >= len(blocks) || p.Offset < 0 {
			return apierrors.ErrInvalidSelection
		}
		if p.Offset > runsLength(collectRuns(blocks[p.Block])) {
			return apierrors.ErrInvalidSelection
		}
	}
	s.sel = Selection{Anchor: anchor, Focus: focus}
	s.stored = nil
	return nil
}

func (s *Surface) Blocks() []Block {
	blocks := textBlocks(s.tree())
	res := make([]Block, 0, len(blocks))
	for _, b := range blocks {
		runs := collectRuns(b)
		res = append(res, Block{Tag: b.Data, Text: runsText(runs), Length: runsLength(runs)})
	}
	return res
}

// SelectedText возвращает текст выделения, блоки разделяются переводом строки.
func (s *Surface) SelectedText() string {
	if s.Selection().Collapsed() {
		return ""
	}
	blocks := textBlocks(s.tree())
	start, end := s.sel.Range()
	var parts []string
	for i := start.Block; i <= end.Block; i++ {
		runs := collectRuns(blocks[i])
		from, to := 0, runsLength(runs)
		if i == start.Block {
			from = start.Offset
		}
		if i == end.Block {
			to = end.Offset
		}
		parts = append(parts, runsText(sliceRuns(runs, from, to)))
	}
	return strings.Join(parts, "\n")
}

// ActiveMarks возвращает стили, которые получит следующий введённый текст.
func (s *Surface) ActiveMarks() MarkSet {
	if s.stored != nil {
		res := MarkSet{}
		for m, on := range s.stored {
			if on {
				res[m] = true
			}
		}
		return res
	}
	blocks := textBlocks(s.tree())
	start, _ := s.sel.Range()
	return marksAt(collectRuns(blocks[start.Block]), start.Offset)
}

func (s *Surface) CanUndo() bool { return len(s.undo) > 0 }
func (s *Surface) CanRedo() bool { return len(s.redo) > 0 }

func (s *Surface) Undo() bool {
	if len(s.undo) == 0 {
		return false
	}
	s.redo = append(s.redo, snapshot{content: s.source, sel: s.sel})
	s.restore(s.undo[len(s.undo)-1])
	s.undo = s.undo[:len(s.undo)-1]
	return true
}

func (s *Surface) Redo() bool {
	if len(s.redo) == 0 {
		return false
	}
	s.push(snapshot{content: s.source, sel: s.sel})
	s.restore(s.redo[len(s.redo)-1])
	s.redo = s.redo[:len(s.redo)-1]
	return true
}

func (s *Surface) restore(snap snapshot) {
	s.source = snap.content
	s.root = nil
	s.sel = snap.sel
	s.stored = nil
}

func (s *Surface) push(snap snapshot) {
	s.undo = append(s.undo, snap)
	if len(s.undo) > HistoryLimit {
		s.undo = append([]snapshot(nil), s.undo[len(s.undo)-HistoryLimit:]...)
	}
}

// mutate выполняет правку дерева. При ошибке документ и выделение откатываются,
// при успешной правке с изменением содержимого в историю пишется один снимок.
func (s *Surface) mutate(fn func(root *html.Node) error) error {
	root := s.tree()
	before := snapshot{content: s.source, sel: s.sel}
	if err := fn(root); err != nil {
		s.restore(before)
		return err
	}
	s.source = renderChildren(root)
	s.clamp()
	if s.source != before.content {
		s.push(before)
		s.redo = nil
	}
	return nil
}

// pin запоминает узлы блоков выделения, unpin восстанавливает номера блоков после перестройки дерева.
type pinned struct {
	anchor, focus *html.Node
	aOff, fOff    int
}

func (s *Surface) pin(root *html.Node) pinned {
	blocks := textBlocks(root)
	return pinned{
		anchor: blocks[s.sel.Anchor.Block], aOff: s.sel.Anchor.Offset,
		focus: blocks[s.sel.Focus.Block], fOff: s.sel.Focus.Offset,
	}
}

func (s *Surface) unpin(root *html.Node, p pinned) {
	blocks := textBlocks(root)
	idx := func(n *html.Node, fallback int) int {
		for i, b := range blocks {
			if b == n {
				return i
			}
		}
		if fallback >= len(blocks) {
			return len(blocks) - 1
		}
		return fallback
	}
	s.sel.Anchor = Position{Block: idx(p.anchor, s.sel.Anchor.Block), Offset: p.aOff}
	s.sel.Focus = Position{Block: idx(p.focus, s.sel.Focus.Block), Offset: p.fOff}
	s.clamp()
}

func (s *Surface) caretAt(root, block *html.Node, off int) {
	for i, b := range textBlocks(root) {
		if b == block {
			s.sel = Selection{Anchor: Position{Block: i, Offset: off}, Focus: Position{Block: i, Offset: off}}
			return
		}
	}
	s.clamp()
}

// selectedBlocks возвращает текстовые блоки, задетые выделением.
func (s *Surface) selectedBlocks(root *html.Node) []*html.Node {
	blocks := textBlocks(root)
	start, end := s.sel.Range()
	return blocks[start.Block : end.Block+1]
}
