package finlearn

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/apierrors"
	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/config"
	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/dao"
	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/editor"
	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/editor/session"
	filestorage "github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/file-storage"
	"github.com/gofrs/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngImage = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")

func newTestServices(t *testing.T) (*Services, *echo.Echo) {
	t.Helper()
	dir := t.TempDir()

	db, err := dao.Open(filepath.Join(dir, "finlearn.db"), nil)
	require.NoError(t, err)
	require.NoError(t, dao.Migrate(db))

	storage, err := filestorage.NewLocalStorage(filepath.Join(dir, "uploads"))
	require.NoError(t, err)

	webURL, _ := url.Parse("https://learn.example.com")
	cfg := &config.Config{
		WebURL:             webURL,
		UploadMaxSizeMB:    config.DefaultUploadMaxSizeMB,
		SessionIdleMinutes: config.DefaultSessionIdleMinutes,
		AutosaveSchedule:   config.DefaultAutosaveSchedule,
	}
	s := NewServices(db, storage, cfg, "TEST")
	t.Cleanup(func() { s.registry.CloseAll(context.Background()) })
	return s, s.Echo()
}

func doJSON(t *testing.T, e *echo.Echo, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func doUpload(t *testing.T, e *echo.Echo, path, name string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func createDocument(t *testing.T, e *echo.Echo, title, content string) uuid.UUID {
	t.Helper()
	rec := doJSON(t, e, http.MethodPost, "/api/documents/", map[string]any{"title": title, "content": content})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[dao.Document](t, rec).ID
}

func mountSession(t *testing.T, e *echo.Echo, docId uuid.UUID) session.State {
	t.Helper()
	rec := doJSON(t, e, http.MethodPost, "/api/documents/"+docId.String()+"/sessions/", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[session.State](t, rec)
}

func TestDocumentEndpoints(t *testing.T) {
	_, e := newTestServices(t)

	t.Run("validation", func(t *testing.T) {
		rec := doJSON(t, e, http.MethodPost, "/api/documents/", map[string]any{"title": " "})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, apierrors.ErrDocumentTitle.Code, decode[apierrors.DefinedError](t, rec).Code)

		rec = doJSON(t, e, http.MethodPost, "/api/documents/", map[string]any{"title": "Подкаст", "kind": "podcast"})
		assert.Equal(t, apierrors.ErrDocumentKind.Code, decode[apierrors.DefinedError](t, rec).Code)

		rec = doJSON(t, e, http.MethodGet, "/api/documents/"+uuid.Must(uuid.NewV4()).String()+"/", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	id := createDocument(t, e, "Облигации", `<h1>Облигации</h1><p>Купон <strong>5%</strong> <a href="https://example.com">подробнее</a><script>x()</script></p>`)
	base := "/api/documents/" + id.String() + "/"

	rec := doJSON(t, e, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	doc := decode[dao.Document](t, rec)
	assert.Equal(t, `<h1>Облигации</h1><p>Купон <strong>5%</strong> <a href="https://example.com">подробнее</a></p>`, doc.Content.Body)

	rec = doJSON(t, e, http.MethodGet, base+"stats/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[editor.Stats](t, rec)
	assert.Positive(t, stats.Words)
	assert.Equal(t, 1, stats.Links)
	assert.Equal(t, []string{"Облигации"}, stats.Headings)

	rec = doJSON(t, e, http.MethodGet, base+"markdown/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# Облигации")
	assert.Contains(t, rec.Body.String(), "**5%**")

	rec = doJSON(t, e, http.MethodPost, base+"markdown/", map[string]any{"markdown": "# Акции\n\nДивиденды *раз* в год", "use_title": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	doc = decode[dao.Document](t, rec)
	assert.Equal(t, "Акции", doc.Title)
	assert.Contains(t, doc.Content.Body, "<h1>Акции</h1>")
	assert.Contains(t, doc.Content.Body, "<em>раз</em>")

	rec = doJSON(t, e, http.MethodPut, base, map[string]any{"content": "<p>Итог</p>"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, e, http.MethodGet, "/d/"+id.String()+"/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "finlearn-content")
	assert.Contains(t, rec.Body.String(), "Итог")
	assert.Contains(t, rec.Body.String(), "<title>Акции</title>")
}

func TestSessionEditing(t *testing.T) {
	s, e := newTestServices(t)
	docId := createDocument(t, e, "Облигации", "<p>Купон</p>")

	st := mountSession(t, e, docId)
	assert.Equal(t, "<p>Купон</p>", st.Content)
	assert.Equal(t, session.ModeEdit, st.Mode)
	base := "/api/sessions/" + st.Id.String() + "/"

	rec := doJSON(t, e, http.MethodPost, base+"select/", map[string]any{"anchor": map[string]int{"block": 0, "offset": 0}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[session.State](t, rec).Focused)

	rec = doJSON(t, e, http.MethodPost, base+"select/", map[string]any{"anchor": map[string]int{"block": 3, "offset": 0}})
	assert.Equal(t, apierrors.ErrInvalidSelection.Code, decode[apierrors.DefinedError](t, rec).Code)

	rec = doJSON(t, e, http.MethodPost, base+"input/", map[string]any{"text": "Высокий "})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<p>Высокий Купон</p>", decode[session.State](t, rec).Content)

	t.Run("external value dropped while focused", func(t *testing.T) {
		rec := doJSON(t, e, http.MethodPut, base+"value/", map[string]any{"value": "<p>Чужое</p>"})
		require.Equal(t, http.StatusOK, rec.Code)
		res := decode[ValueResponse](t, rec)
		assert.False(t, res.Applied)
		assert.Equal(t, "<p>Высокий Купон</p>", res.State.Content)
	})

	t.Run("commands", func(t *testing.T) {
		rec := doJSON(t, e, http.MethodPost, base+"commands/", session.Direct(session.OpSetBlockType, "heading-1"))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "<h1>Высокий Купон</h1>", decode[session.State](t, rec).Content)

		rec = doJSON(t, e, http.MethodPost, base+"commands/", map[string]any{"kind": "direct", "op": "explode"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, apierrors.ErrUnknownCommand.Code, decode[apierrors.DefinedError](t, rec).Code)

		rec = doJSON(t, e, http.MethodPost, base+"keys/", session.KeyEvent{Key: "z", Mod: true})
		require.Equal(t, http.StatusOK, rec.Code)
		res := decode[KeyResponse](t, rec)
		assert.True(t, res.Handled)
		assert.Equal(t, "<p>Высокий Купон</p>", res.State.Content)

		rec = doJSON(t, e, http.MethodPost, base+"keys/", session.KeyEvent{Key: "q", Mod: true})
		assert.False(t, decode[KeyResponse](t, rec).Handled)

		rec = doJSON(t, e, http.MethodGet, base+"commands/", nil)
		assert.Len(t, decode[[]session.Command](t, rec), len(session.Catalog()))
	})

	t.Run("view mode", func(t *testing.T) {
		rec := doJSON(t, e, http.MethodPut, base+"mode/", map[string]any{"mode": "fullscreen"})
		assert.Equal(t, apierrors.ErrInvalidViewMode.Code, decode[apierrors.DefinedError](t, rec).Code)

		rec = doJSON(t, e, http.MethodPut, base+"mode/", map[string]any{"mode": "preview"})
		require.Equal(t, http.StatusOK, rec.Code)
		st := decode[session.State](t, rec)
		assert.False(t, st.ShowEditor)
		assert.False(t, st.Focused)
		assert.Contains(t, st.Preview, "finlearn-content")

		rec = doJSON(t, e, http.MethodGet, base+"preview/", nil)
		assert.False(t, decode[PreviewResponse](t, rec).Empty)
	})

	t.Run("save and unmount", func(t *testing.T) {
		rec := doJSON(t, e, http.MethodPost, base+"save/", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, decode[session.State](t, rec).Dirty)

		content, err := s.store.Load(t.Context(), docId)
		require.NoError(t, err)
		assert.Equal(t, "<p>Высокий Купон</p>", content)

		rec = doJSON(t, e, http.MethodDelete, base, nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = doJSON(t, e, http.MethodGet, base, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, apierrors.ErrSessionNotFound.Code, decode[apierrors.DefinedError](t, rec).Code)
	})
}

func TestOwnerSaveUpdatesBlurredSession(t *testing.T) {
	s, e := newTestServices(t)
	docId := createDocument(t, e, "Облигации", "<p>Купон</p>")
	st := mountSession(t, e, docId)

	rec := doJSON(t, e, http.MethodPut, "/api/documents/"+docId.String()+"/", map[string]any{"content": "<p>Новая версия</p>"})
	require.Equal(t, http.StatusOK, rec.Code)

	sess, err := s.registry.Get(st.Id)
	require.NoError(t, err)
	assert.Equal(t, "<p>Новая версия</p>", sess.Content())
}

func TestImageDialogUpload(t *testing.T) {
	s, e := newTestServices(t)
	docId := createDocument(t, e, "Графики", "<p>ab</p>")
	st := mountSession(t, e, docId)
	base := "/api/sessions/" + st.Id.String() + "/"

	rec := doUpload(t, e, base+"dialog/upload/", "chart.png", pngImage)
	assert.Equal(t, apierrors.ErrNoDialog.Code, decode[apierrors.DefinedError](t, rec).Code)

	rec = doJSON(t, e, http.MethodPost, base+"dialog/", map[string]any{"kind": "audio"})
	assert.Equal(t, apierrors.ErrInvalidDialogKind.Code, decode[apierrors.DefinedError](t, rec).Code)

	rec = doJSON(t, e, http.MethodPost, base+"dialog/", map[string]any{"kind": "image"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doUpload(t, e, base+"dialog/upload/", "notes.txt", []byte("just some notes"))
	assert.Equal(t, apierrors.ErrInvalidFileType.Code, decode[apierrors.DefinedError](t, rec).Code)

	rec = doUpload(t, e, base+"dialog/upload/", "chart.png", pngImage)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	sess, err := s.registry.Get(st.Id)
	require.NoError(t, err)
	sess.WaitUploads()

	d := sess.Dialog()
	require.NotNil(t, d)
	require.Nil(t, d.Error)
	assert.Equal(t, 100, d.Progress)
	assert.True(t, strings.HasPrefix(d.URL, "https://learn.example.com/api/file/"))
	assert.True(t, d.CanSubmit)

	fileRec := doJSON(t, e, http.MethodGet, strings.TrimPrefix(d.URL, "https://learn.example.com"), nil)
	require.Equal(t, http.StatusOK, fileRec.Code)
	assert.Equal(t, "image/png", fileRec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, pngImage, fileRec.Body.Bytes())

	rec = doJSON(t, e, http.MethodPost, base+"dialog/confirm/", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, decode[session.State](t, rec).Content, `<img src="https://learn.example.com/api/file/`)

	doc, err := s.store.Get(t.Context(), docId)
	require.NoError(t, err)
	require.Len(t, doc.InlineAttachments, 1)
	assert.Equal(t, "chart.png", doc.InlineAttachments[0].Name)
}

func TestPasteUpload(t *testing.T) {
	s, e := newTestServices(t)
	docId := createDocument(t, e, "Графики", "<p>ab</p>")
	st := mountSession(t, e, docId)
	base := "/api/sessions/" + st.Id.String() + "/"

	big := append(append([]byte{}, pngImage...), make([]byte, 6<<20)...)
	rec := doUpload(t, e, base+"paste/", "big.png", big)
	assert.Equal(t, apierrors.ErrUploadTooLarge.Code, decode[apierrors.DefinedError](t, rec).Code)

	rec = doUpload(t, e, base+"paste/", "chart.png", pngImage)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	sess, err := s.registry.Get(st.Id)
	require.NoError(t, err)
	sess.WaitUploads()
	assert.Contains(t, sess.Content(), `<img src="https://learn.example.com/api/file/`)
}

func TestOwnerSaveOfSessionContentKeepsHistory(t *testing.T) {
	s, e := newTestServices(t)
	docId := createDocument(t, e, "Облигации", "<p>Купон</p>")
	st := mountSession(t, e, docId)
	base := "/api/sessions/" + st.Id.String() + "/"

	rec := doJSON(t, e, http.MethodPost, base+"select/", map[string]any{"anchor": map[string]int{"block": 0, "offset": 2}})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, e, http.MethodPost, base+"commands/", session.Direct(session.OpSetAlignment, "center"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = doJSON(t, e, http.MethodPost, base+"blur/", nil)
	before := decode[session.State](t, rec)
	require.True(t, before.CanUndo)

	rec = doJSON(t, e, http.MethodPut, "/api/documents/"+docId.String()+"/", map[string]any{"content": before.Content})
	require.Equal(t, http.StatusOK, rec.Code)

	sess, err := s.registry.Get(st.Id)
	require.NoError(t, err)
	after := sess.State()
	assert.True(t, after.CanUndo)
	assert.Equal(t, before.Selection, after.Selection)
	assert.Equal(t, before.Content, after.Content)
}
