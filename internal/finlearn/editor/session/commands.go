package session

import (
	"strings"

	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/apierrors"
	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/editor/surface"
)

type CommandKind string

const (
	KindDirect CommandKind = "direct"
	KindDialog CommandKind = "dialog"
)

type Op string

const (
	OpUndo              Op = "undo"
	OpRedo              Op = "redo"
	OpSetBlockType      Op = "set-block-type"
	OpToggleInlineStyle Op = "toggle-inline-style"
	OpToggleList        Op = "toggle-list"
	OpSetAlignment      Op = "set-alignment"
)

// Command - команда панели инструментов: прямая операция над выделением
// или открытие окна вставки.
type Command struct {
	Kind   CommandKind `json:"kind" validate:"required,oneof=direct dialog"`
	Op     Op          `json:"op,omitempty" validate:"omitempty,commandOp"`
	Arg    string      `json:"arg,omitempty"`
	Dialog DialogKind  `json:"dialog,omitempty" validate:"omitempty,dialogKind"`
}

func Direct(op Op, arg string) Command {
	return Command{Kind: KindDirect, Op: op, Arg: arg}
}

func OpenDialog(kind DialogKind) Command {
	return Command{Kind: KindDialog, Dialog: kind}
}

// Catalog возвращает все команды панели инструментов.
func Catalog() []Command {
	return []Command{
		Direct(OpUndo, ""),
		Direct(OpRedo, ""),
		Direct(OpSetBlockType, string(surface.Paragraph)),
		Direct(OpSetBlockType, string(surface.Heading1)),
		Direct(OpSetBlockType, string(surface.Heading2)),
		Direct(OpSetBlockType, string(surface.Heading3)),
		Direct(OpSetBlockType, string(surface.Quote)),
		Direct(OpSetBlockType, string(surface.CodeBlock)),
		Direct(OpToggleInlineStyle, string(surface.Bold)),
		Direct(OpToggleInlineStyle, string(surface.Italic)),
		Direct(OpToggleInlineStyle, string(surface.Underline)),
		Direct(OpToggleInlineStyle, string(surface.Strikethrough)),
		Direct(OpToggleList, string(surface.Ordered)),
		Direct(OpToggleList, string(surface.Unordered)),
		Direct(OpSetAlignment, string(surface.AlignLeft)),
		Direct(OpSetAlignment, string(surface.AlignCenter)),
		Direct(OpSetAlignment, string(surface.AlignRight)),
		OpenDialog(DialogLink),
		OpenDialog(DialogImage),
		OpenDialog(DialogVideo),
	}
}

func (op Op) Valid() bool {
	switch op {
	case OpUndo, OpRedo, OpSetBlockType, OpToggleInlineStyle, OpToggleList, OpSetAlignment:
		return true
	}
	return false
}

// Execute выполняет команду. Прямые команды всегда уведомляют владельца,
// даже если документ не изменился.
func (s *Session) Execute(cmd Command) error {
	switch cmd.Kind {
	case KindDirect:
		apply, err := directOp(cmd.Op, cmd.Arg)
		if err != nil {
			return err
		}
		return s.mutate(apply)
	case KindDialog:
		_, err := s.OpenDialog(cmd.Dialog)
		return err
	}
	return apierrors.ErrUnknownCommand.WithFormattedMessage(cmd.Kind)
}

// directOp проверяет аргумент до выполнения, чтобы ошибка не задевала документ.
func directOp(op Op, arg string) (func(sf *surface.Surface) error, error) {
	unknown := apierrors.ErrUnknownCommand.WithFormattedMessage(strings.TrimSpace(string(op) + " " + arg))
	switch op {
	case OpUndo:
		return func(sf *surface.Surface) error { sf.Undo(); return nil }, nil
	case OpRedo:
		return func(sf *surface.Surface) error { sf.Redo(); return nil }, nil
	case OpSetBlockType:
		t := surface.BlockType(arg)
		if !t.Valid() {
			return nil, unknown
		}
		return func(sf *surface.Surface) error { return sf.SetBlockType(t) }, nil
	case OpToggleInlineStyle:
		m := surface.Mark(arg)
		if !m.Valid() {
			return nil, unknown
		}
		return func(sf *surface.Surface) error { return sf.ToggleMark(m) }, nil
	case OpToggleList:
		k := surface.ListKind(arg)
		if !k.Valid() {
			return nil, unknown
		}
		return func(sf *surface.Surface) error { return sf.ToggleList(k) }, nil
	case OpSetAlignment:
		a := surface.Align(arg)
		if !a.Valid() {
			return nil, unknown
		}
		return func(sf *surface.Surface) error { return sf.SetAlignment(a) }, nil
	}
	return nil, unknown
}

// KeyEvent - нажатие клавиши в редакторе. Mod - Ctrl или Cmd.
type KeyEvent struct {
	Key   string `json:"key" validate:"required"`
	Mod   bool   `json:"mod"`
	Shift bool   `json:"shift"`
}

// shortcut возвращает команду для сочетания клавиш.
func shortcut(k KeyEvent) (Command, bool) {
	if !k.Mod {
		return Command{}, false
	}
	switch strings.ToLower(k.Key) {
	case "b":
		return Direct(OpToggleInlineStyle, string(surface.Bold)), !k.Shift
	case "i":
		return Direct(OpToggleInlineStyle, string(surface.Italic)), !k.Shift
	case "u":
		return Direct(OpToggleInlineStyle, string(surface.Underline)), !k.Shift
	case "z":
		if k.Shift {
			return Direct(OpRedo, ""), true
		}
		return Direct(OpUndo, ""), true
	case "y":
		return Direct(OpRedo, ""), !k.Shift
	}
	return Command{}, false
}

// HandleKey выполняет команду горячей клавиши. handled=true означает, что клиент
// должен отменить действие браузера по умолчанию.
func (s *Session) HandleKey(k KeyEvent) (handled bool, err error) {
	cmd, ok := shortcut(k)
	if !ok {
		return false, nil
	}
	return true, s.Execute(cmd)
}

// Select перемещает выделение и возвращает фокус редактору.
func (s *Session) Select(anchor, focus surface.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.surface.Select(anchor, focus); err != nil {
		return err
	}
	s.focused = true
	s.touch()
	return nil
}

func (s *Session) InsertText(text string) error {
	return s.mutate(func(sf *surface.Surface) error { return sf.InsertText(text) })
}

func (s *Session) DeleteBackward() error {
	return s.mutate(func(sf *surface.Surface) error { return sf.DeleteBackward() })
}

func (s *Session) SplitBlock() error {
	return s.mutate(func(sf *surface.Surface) error { return sf.SplitBlock() })
}

// Undo возвращает false, если отменять нечего. Владелец уведомляется в любом случае.
func (s *Session) Undo() bool {
	var done bool
	_ = s.mutate(func(sf *surface.Surface) error { done = sf.Undo(); return nil })
	return done
}

func (s *Session) Redo() bool {
	var done bool
	_ = s.mutate(func(sf *surface.Surface) error { done = sf.Redo(); return nil })
	return done
}
