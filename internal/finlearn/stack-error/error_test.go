package stack_error

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errStorage = errors.New("storage unavailable")

func saveDocument() error {
	return TrackErrorStack(errStorage).AddContext("document", "d1")
}

func TestTrackErrorStack(t *testing.T) {
	te := TrackErrorStack(saveDocument()).AddContext("document", "d2")

	assert.ErrorIs(t, te, errStorage)
	assert.Equal(t, "storage unavailable", te.Error())
	assert.Equal(t, "d1", te.Context["document"])
	require.Len(t, te.Frames, 2)
	assert.Equal(t, "error_test.go", te.Frames[0].File)
	assert.Contains(t, te.Frames[0].Func, "saveDocument")
	assert.Contains(t, te.Frames[1].Func, "TestTrackErrorStack")
}

func TestAddErr(t *testing.T) {
	errRollback := errors.New("rollback failed")
	te := TrackErrorStack(errStorage).AddErr(errRollback)

	assert.ErrorIs(t, te, errStorage)
	assert.ErrorIs(t, te, errRollback)
	assert.Len(t, te.Frames, 2)
}

func TestGetError(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	sessionId := uuid.Must(uuid.NewV4())
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/api/sessions/x/save/", nil), httptest.NewRecorder())

	GetError(c, TrackErrorStack(errStorage).WithSession(sessionId))

	out := buf.String()
	assert.Contains(t, out, "error.msg=\"storage unavailable\"")
	assert.Contains(t, out, "error.session="+sessionId.String())
	assert.Contains(t, out, "error.trace=")
	assert.Contains(t, out, "method=POST")

	buf.Reset()
	GetError(nil, errStorage)
	assert.Contains(t, buf.String(), "raw_error=\"storage unavailable\"")
}
