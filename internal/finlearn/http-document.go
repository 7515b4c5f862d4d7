// Обработчики учебных материалов: создание, чтение, сохранение содержимого владельцем,
// статистика для карточек, импорт и экспорт Markdown, опубликованная страница.
package finlearn

import (
	"net/http"
	"strings"

	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/apierrors"
	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/dao"
	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/editor"
	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/editor/markdown"
	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/editor/render"
	errStack "github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/stack-error"
	"github.com/gofrs/uuid"
	"github.com/labstack/echo/v4"
)

type DocumentContext struct {
	echo.Context
	Document *dao.Document
}

func (s *Services) DocumentMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := uuid.FromString(c.Param("docId"))
		if err != nil {
			return EErrorDefined(c, apierrors.ErrDocumentNotFound)
		}
		doc, err := s.store.Get(c.Request().Context(), id)
		if err != nil {
			return EError(c, err)
		}
		return next(DocumentContext{c, doc})
	}
}

func (s *Services) AddDocumentServices(g *echo.Group) {
	g.POST("documents/", s.createDocument)

	docGroup := g.Group("documents/:docId/", s.DocumentMiddleware)
	docGroup.GET("", s.getDocument)
	docGroup.PUT("", s.saveDocumentContent)
	docGroup.GET("stats/", s.getDocumentStats)
	docGroup.GET("markdown/", s.exportMarkdown)
	docGroup.POST("markdown/", s.importMarkdown)
}

func (s *Services) createDocument(c echo.Context) error {
	var req DocumentRequest
	if err := c.Bind(&req); err != nil {
		return EErrorDefined(c, apierrors.ErrBadRequest)
	}
	if strings.TrimSpace(req.Title) == "" {
		return EErrorDefined(c, apierrors.ErrDocumentTitle)
	}
	if err := c.Validate(&req); err != nil {
		if req.Kind != "" && !dao.ValidKind(req.Kind) {
			return EErrorDefined(c, apierrors.ErrDocumentKind.WithFormattedMessage(req.Kind))
		}
		return EErrorDefined(c, apierrors.ErrBadRequest)
	}

	doc := dao.Document{
		Title:   req.Title,
		Kind:    req.Kind,
		Content: req.Content,
		Draft:   req.Draft,
	}
	if err := s.store.Create(c.Request().Context(), &doc); err != nil {
		return EError(c, err)
	}
	return c.JSON(http.StatusCreated, doc)
}

func (s *Services) getDocument(c echo.Context) error {
	return c.JSON(http.StatusOK, c.(DocumentContext).Document)
}

// saveDocumentContent сохраняет содержимое от владельца и передаёт его открытым сессиям как внешнее значение.
func (s *Services) saveDocumentContent(c echo.Context) error {
	doc := c.(DocumentContext).Document
	var req ContentRequest
	if err := c.Bind(&req); err != nil {
		return EErrorDefined(c, apierrors.ErrBadRequest)
	}

	if err := s.store.Save(c.Request().Context(), doc.ID, req.Content.Body); err != nil {
		return EError(c, errStack.TrackErrorStack(err).WithDocument(doc.ID))
	}
	s.pushValue(doc.ID, req.Content.Body)

	doc.Content = req.Content
	return c.JSON(http.StatusOK, doc)
}

// pushValue передаёт новое значение всем сессиям документа. Сессии в фокусе его отбрасывают.
func (s *Services) pushValue(docId uuid.UUID, content string) {
	for _, sess := range s.registry.ByDocument(docId) {
		sess.SetValue(content)
	}
}

func (s *Services) getDocumentStats(c echo.Context) error {
	doc := c.(DocumentContext).Document
	parsed, err := editor.ParseDocument(strings.NewReader(doc.Content.Body))
	if err != nil {
		return EError(c, err)
	}
	return c.JSON(http.StatusOK, editor.GetStats(parsed))
}

func (s *Services) exportMarkdown(c echo.Context) error {
	doc := c.(DocumentContext).Document
	parsed, err := editor.ParseDocument(strings.NewReader(doc.Content.Body))
	if err != nil {
		return EError(c, err)
	}
	return c.Blob(http.StatusOK, "text/markdown; charset=utf-8", []byte(markdown.Export(parsed)))
}

// importMarkdown заменяет содержимое материала разметкой, полученной из Markdown.
func (s *Services) importMarkdown(c echo.Context) error {
	doc := c.(DocumentContext).Document
	var req MarkdownRequest
	if err := c.Bind(&req); err != nil {
		return EErrorDefined(c, apierrors.ErrBadRequest)
	}
	if err := c.Validate(&req); err != nil {
		return EErrorDefined(c, apierrors.ErrBadRequest)
	}

	imported, err := markdown.Import([]byte(req.Markdown))
	if err != nil {
		return EError(c, err)
	}

	ctx := c.Request().Context()
	if req.UseTitle && imported.Title != "" {
		doc.Title = imported.Title
		if err := s.db.WithContext(ctx).Model(doc).Update("title", doc.Title).Error; err != nil {
			return EError(c, err)
		}
	}
	if err := s.store.Save(ctx, doc.ID, imported.Content); err != nil {
		return EError(c, err)
	}
	s.pushValue(doc.ID, imported.Content)

	doc.Content.Body = imported.Content
	return c.JSON(http.StatusOK, doc)
}

// publishedPage отдаёт материал читателю отдельной страницей со стилями. Черновики не публикуются.
func (s *Services) publishedPage(c echo.Context) error {
	id, err := uuid.FromString(c.Param("docId"))
	if err != nil {
		return c.NoContent(http.StatusNotFound)
	}
	doc, err := s.store.Get(c.Request().Context(), id)
	if err != nil || doc.Draft {
		return c.NoContent(http.StatusNotFound)
	}
	return c.HTML(http.StatusOK, render.Page(doc.Title, doc.Content.Body))
}
