// Обработчики сессий редактора: синхронизация значения, фокус, ввод, команды панели инструментов,
// окна вставки с загрузкой файлов, режимы просмотра и события по вебсокету.
package finlearn

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/apierrors"
	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/editor/media"
	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/editor/render"
	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/editor/session"
	errStack "github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/stack-error"
	"github.com/gofrs/uuid"
	"github.com/labstack/echo/v4"
)

type SessionContext struct {
	echo.Context
	Session *session.Session
}

func (s *Services) SessionMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := uuid.FromString(c.Param("sessionId"))
		if err != nil {
			return EErrorDefined(c, apierrors.ErrSessionNotFound)
		}
		sess, err := s.registry.Get(id)
		if err != nil {
			return EError(c, err)
		}
		return next(SessionContext{c, sess})
	}
}

func (s *Services) AddSessionServices(g *echo.Group) {
	g.POST("documents/:docId/sessions/", s.mountSession)

	sessionGroup := g.Group("sessions/:sessionId/", s.SessionMiddleware)
	sessionGroup.GET("", s.getSession)
	sessionGroup.DELETE("", s.unmountSession)

	sessionGroup.PUT("value/", s.setSessionValue)
	sessionGroup.POST("focus/", s.focusSession)
	sessionGroup.POST("blur/", s.blurSession)

	sessionGroup.POST("select/", s.selectRange)
	sessionGroup.POST("input/", s.insertText)
	sessionGroup.POST("delete/", s.deleteBackward)
	sessionGroup.POST("enter/", s.splitBlock)

	sessionGroup.GET("commands/", s.getCommandCatalog)
	sessionGroup.POST("commands/", s.executeCommand)
	sessionGroup.POST("keys/", s.handleKey)

	sessionGroup.POST("dialog/", s.openDialog)
	sessionGroup.PATCH("dialog/", s.updateDialog)
	sessionGroup.POST("dialog/confirm/", s.confirmDialog)
	sessionGroup.DELETE("dialog/", s.cancelDialog)
	sessionGroup.POST("dialog/upload/", s.uploadDialogFile)
	sessionGroup.POST("paste/", s.pasteFile)

	sessionGroup.PUT("mode/", s.setViewMode)
	sessionGroup.GET("preview/", s.getPreview)
	sessionGroup.POST("save/", s.saveSession)
	sessionGroup.GET("ws/", s.sessionEvents)
}

// mountSession загружает материал и открывает сессию редактирования.
func (s *Services) mountSession(c echo.Context) error {
	docId, err := uuid.FromString(c.Param("docId"))
	if err != nil {
		return EErrorDefined(c, apierrors.ErrDocumentNotFound)
	}
	sess, err := s.registry.Open(c.Request().Context(), docId)
	if err != nil {
		return EError(c, err)
	}
	return c.JSON(http.StatusCreated, sess.State())
}

func (s *Services) getSession(c echo.Context) error {
	return c.JSON(http.StatusOK, c.(SessionContext).Session.State())
}

// unmountSession сохраняет несохранённые изменения и закрывает сессию.
func (s *Services) unmountSession(c echo.Context) error {
	sess := c.(SessionContext).Session
	if err := s.registry.Close(c.Request().Context(), sess.Id()); err != nil {
		return EError(c, errStack.TrackErrorStack(err).WithSession(sess.Id()))
	}
	return c.NoContent(http.StatusOK)
}

// setSessionValue принимает внешнее значение документа. Пока редактор в фокусе, значение отбрасывается.
func (s *Services) setSessionValue(c echo.Context) error {
	sess := c.(SessionContext).Session
	var req ValueRequest
	if err := c.Bind(&req); err != nil {
		return EErrorDefined(c, apierrors.ErrBadRequest)
	}
	applied := sess.SetValue(req.Value.Body)
	return c.JSON(http.StatusOK, ValueResponse{Applied: applied, State: sess.State()})
}

func (s *Services) focusSession(c echo.Context) error {
	sess := c.(SessionContext).Session
	sess.Focus()
	return c.JSON(http.StatusOK, sess.State())
}

func (s *Services) blurSession(c echo.Context) error {
	sess := c.(SessionContext).Session
	sess.Blur()
	return c.JSON(http.StatusOK, sess.State())
}

func (s *Services) selectRange(c echo.Context) error {
	sess := c.(SessionContext).Session
	var req SelectRequest
	if err := c.Bind(&req); err != nil {
		return EErrorDefined(c, apierrors.ErrBadRequest)
	}
	focus := req.Anchor
	if req.Focus != nil {
		focus = *req.Focus
	}
	if err := sess.Select(req.Anchor, focus); err != nil {
		return EError(c, err)
	}
	return c.JSON(http.StatusOK, sess.State())
}

func (s *Services) insertText(c echo.Context) error {
	sess := c.(SessionContext).Session
	var req InputRequest
	if err := c.Bind(&req); err != nil {
		return EErrorDefined(c, apierrors.ErrBadRequest)
	}
	if err := c.Validate(&req); err != nil {
		return EErrorDefined(c, apierrors.ErrBadRequest)
	}
	if err := sess.InsertText(req.Text); err != nil {
		return EError(c, err)
	}
	return c.JSON(http.StatusOK, sess.State())
}

func (s *Services) deleteBackward(c echo.Context) error {
	sess := c.(SessionContext).Session
	if err := sess.DeleteBackward(); err != nil {
		return EError(c, err)
	}
	return c.JSON(http.StatusOK, sess.State())
}

func (s *Services) splitBlock(c echo.Context) error {
	sess := c.(SessionContext).Session
	if err := sess.SplitBlock(); err != nil {
		return EError(c, err)
	}
	return c.JSON(http.StatusOK, sess.State())
}

func (s *Services) getCommandCatalog(c echo.Context) error {
	return c.JSON(http.StatusOK, session.Catalog())
}

func (s *Services) executeCommand(c echo.Context) error {
	sess := c.(SessionContext).Session
	var cmd session.Command
	if err := c.Bind(&cmd); err != nil {
		return EErrorDefined(c, apierrors.ErrBadRequest)
	}
	if err := c.Validate(&cmd); err != nil {
		return EErrorDefined(c, apierrors.ErrUnknownCommand.WithFormattedMessage(cmd.Op))
	}
	if err := sess.Execute(cmd); err != nil {
		return EError(c, err)
	}
	return c.JSON(http.StatusOK, sess.State())
}

func (s *Services) handleKey(c echo.Context) error {
	sess := c.(SessionContext).Session
	var key session.KeyEvent
	if err := c.Bind(&key); err != nil {
		return EErrorDefined(c, apierrors.ErrBadRequest)
	}
	if err := c.Validate(&key); err != nil {
		return EErrorDefined(c, apierrors.ErrBadRequest)
	}
	handled, err := sess.HandleKey(key)
	if err != nil {
		return EError(c, err)
	}
	return c.JSON(http.StatusOK, KeyResponse{Handled: handled, State: sess.State()})
}

func (s *Services) openDialog(c echo.Context) error {
	sess := c.(SessionContext).Session
	var req DialogRequest
	if err := c.Bind(&req); err != nil {
		return EErrorDefined(c, apierrors.ErrBadRequest)
	}
	if err := c.Validate(&req); err != nil {
		return EErrorDefined(c, apierrors.ErrInvalidDialogKind.WithFormattedMessage(req.Kind))
	}
	d, err := sess.OpenDialog(req.Kind)
	if err != nil {
		return EError(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

func (s *Services) updateDialog(c echo.Context) error {
	sess := c.(SessionContext).Session
	var req DialogUpdateRequest
	if err := c.Bind(&req); err != nil {
		return EErrorDefined(c, apierrors.ErrBadRequest)
	}
	d, err := sess.UpdateDialog(req.URL, req.Label)
	if err != nil {
		return EError(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

// confirmDialog вставляет фрагмент из окна вставки в сохранённое выделение.
// При ошибке проверки окно остаётся открытым, а ошибка возвращается автору.
func (s *Services) confirmDialog(c echo.Context) error {
	sess := c.(SessionContext).Session
	if err := sess.ConfirmDialog(); err != nil {
		return EError(c, err)
	}
	return c.JSON(http.StatusOK, sess.State())
}

func (s *Services) cancelDialog(c echo.Context) error {
	sess := c.(SessionContext).Session
	sess.CancelDialog()
	return c.JSON(http.StatusOK, sess.State())
}

// uploadDialogFile запускает загрузку изображения для открытого окна. Ответ приходит сразу,
// прогресс и результат передаются событиями сессии.
func (s *Services) uploadDialogFile(c echo.Context) error {
	sess := c.(SessionContext).Session
	file, err := s.readUpload(c)
	if err != nil {
		return EError(c, err)
	}
	if err := sess.UploadDialogFile(file); err != nil {
		return EError(c, err)
	}
	return c.JSON(http.StatusAccepted, sess.Dialog())
}

// pasteFile загружает вставленное из буфера или перетащенное изображение и вставляет его без окна.
func (s *Services) pasteFile(c echo.Context) error {
	sess := c.(SessionContext).Session
	file, err := s.readUpload(c)
	if err != nil {
		return EError(c, err)
	}
	if err := sess.PasteFile(file); err != nil {
		return EError(c, err)
	}
	return c.NoContent(http.StatusAccepted)
}

// readUpload читает файл формы в память: загрузка продолжается после ответа,
// а временные файлы формы удаляются по окончании запроса.
func (s *Services) readUpload(c echo.Context) (media.File, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return media.File{}, apierrors.ErrFileRequired
	}
	if fh.Size > s.cfg.UploadMaxSize() {
		return media.File{}, apierrors.ErrUploadTooLarge
	}
	data, err := readFormFile(fh, s.cfg.UploadMaxSize())
	if err != nil {
		return media.File{}, err
	}
	return media.File{
		Name:        fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Size:        int64(len(data)),
		Reader:      bytes.NewReader(data),
	}, nil
}

func readFormFile(fh *multipart.FileHeader, limit int64) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, apierrors.ErrUploadTooLarge
	}
	return data, nil
}

func (s *Services) setViewMode(c echo.Context) error {
	sess := c.(SessionContext).Session
	var req ModeRequest
	if err := c.Bind(&req); err != nil {
		return EErrorDefined(c, apierrors.ErrBadRequest)
	}
	if err := c.Validate(&req); err != nil {
		return EErrorDefined(c, apierrors.ErrInvalidViewMode.WithFormattedMessage(req.Mode))
	}
	if err := sess.SetMode(req.Mode); err != nil {
		return EError(c, err)
	}
	return c.JSON(http.StatusOK, sess.State())
}

// getPreview возвращает документ так, как его увидит читатель.
func (s *Services) getPreview(c echo.Context) error {
	content := c.(SessionContext).Session.Content()
	return c.JSON(http.StatusOK, PreviewResponse{
		Empty: render.IsEmpty(content),
		HTML:  render.View(content),
	})
}

func (s *Services) saveSession(c echo.Context) error {
	sess := c.(SessionContext).Session
	if err := sess.Save(c.Request().Context(), s.store); err != nil {
		return EError(c, errStack.TrackErrorStack(err).
			WithSession(sess.Id()).
			WithDocument(sess.DocumentId()))
	}
	return c.JSON(http.StatusOK, sess.State())
}

func (s *Services) sessionEvents(c echo.Context) error {
	s.hub.Handle(c.(SessionContext).Session.Id(), c.Response(), c.Request())
	return nil
}
