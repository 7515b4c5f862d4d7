package finlearn

import (
	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/editor/session"
	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/editor/surface"
	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/types"
)

type DocumentRequest struct {
	Title   string             `json:"title" validate:"required,max=150"`
	Kind    string             `json:"kind" validate:"omitempty,documentKind"`
	Content types.RedactorHTML `json:"content"`
	Draft   bool               `json:"draft"`
}

type ContentRequest struct {
	Content types.RedactorHTML `json:"content"`
}

type MarkdownRequest struct {
	Markdown string `json:"markdown" validate:"required"`
	// UseTitle заменяет заголовок материала первым заголовком Markdown.
	UseTitle bool `json:"use_title"`
}

type ValueRequest struct {
	Value types.RedactorHTML `json:"value"`
}

type SelectRequest struct {
	Anchor surface.Position  `json:"anchor"`
	Focus  *surface.Position `json:"focus,omitempty" extensions:"x-nullable"`
}

type InputRequest struct {
	Text string `json:"text" validate:"required"`
}

type DialogRequest struct {
	Kind session.DialogKind `json:"kind" validate:"required,dialogKind"`
}

type DialogUpdateRequest struct {
	URL   *string `json:"url,omitempty" extensions:"x-nullable"`
	Label *string `json:"label,omitempty" extensions:"x-nullable"`
}

type ModeRequest struct {
	Mode session.ViewMode `json:"mode" validate:"required,viewMode"`
}

type ValueResponse struct {
	Applied bool          `json:"applied"`
	State   session.State `json:"state"`
}

type KeyResponse struct {
	Handled bool          `json:"handled"`
	State   session.State `json:"state"`
}

type PreviewResponse struct {
	Empty bool   `json:"empty"`
	HTML  string `json:"html"`
}
