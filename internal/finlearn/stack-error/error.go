// Ошибка с местами вызова и контекстом сессии редактора. Обработчики оборачивают ею ошибки
// хранилища, а EError пишет в лог одной записью вместе с методом и адресом запроса.
package stack_error

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/labstack/echo/v4"
)

// Frame - место, где ошибка прошла через TrackErrorStack или AddErr.
type Frame struct {
	File string
	Line int
	Func string
}

func (f Frame) String() string {
	return fmt.Sprintf("%s:%d %s", f.File, f.Line, f.Func)
}

type TrackerError struct {
	Context map[string]any
	Frames  []Frame
	cause   error
}

// TrackErrorStack запоминает место вызова. Если err уже TrackerError, место добавляется к нему.
func TrackErrorStack(err error) *TrackerError {
	var te *TrackerError
	if !errors.As(err, &te) {
		te = &TrackerError{Context: make(map[string]any), cause: err}
	}
	te.Frames = append(te.Frames, caller())
	return te
}

// AddContext сохраняет значение, если ключ ещё не задан: ближайший к источнику контекст важнее.
func (te *TrackerError) AddContext(k string, v any) *TrackerError {
	if _, ok := te.Context[k]; !ok {
		te.Context[k] = v
	}
	return te
}

func (te *TrackerError) WithSession(id uuid.UUID) *TrackerError {
	return te.AddContext("session", id)
}

func (te *TrackerError) WithDocument(id uuid.UUID) *TrackerError {
	return te.AddContext("document", id)
}

// AddErr заменяет причину и отмечает место замены.
func (te *TrackerError) AddErr(err error) *TrackerError {
	te.cause = errors.Join(te.cause, err)
	te.Frames = append(te.Frames, caller())
	return te
}

func (te *TrackerError) Error() string {
	if te.cause == nil {
		return "TrackerError"
	}
	return te.cause.Error()
}

func (te *TrackerError) Unwrap() error {
	return te.cause
}

// LogValue раскрывает ошибку в группу: текст, контекст в порядке ключей и трасса.
func (te *TrackerError) LogValue() slog.Value {
	attrs := []slog.Attr{slog.String("msg", te.Error())}

	keys := make([]string, 0, len(te.Context))
	for k := range te.Context {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, te.Context[k]))
	}

	if len(te.Frames) > 0 {
		trace := make([]string, len(te.Frames))
		for i, f := range te.Frames {
			trace[i] = f.String()
		}
		attrs = append(attrs, slog.String("trace", strings.Join(trace, " <- ")))
	}
	return slog.GroupValue(attrs...)
}

// GetError логирует ошибку обработчика вместе с запросом.
func GetError(c echo.Context, err error) {
	attrs := []any{}
	var te *TrackerError
	if errors.As(err, &te) {
		attrs = append(attrs, slog.Any("error", te))
	} else {
		attrs = append(attrs, slog.String("raw_error", err.Error()))
	}
	if c != nil {
		attrs = append(attrs,
			slog.String("method", c.Request().Method),
			slog.String("url", c.Request().URL.String()))
	}
	slog.Error("Tracked API error", attrs...)
}

// caller возвращает место вызова функции пакета, из которой он вызван.
func caller() Frame {
	pc, path, line, ok := runtime.Caller(2)
	if !ok {
		return Frame{File: "unknown"}
	}
	f := Frame{File: filepath.Base(path), Line: line}
	if fn := runtime.FuncForPC(pc); fn != nil {
		name := fn.Name()
		f.Func = name[strings.LastIndex(name, "/")+1:]
	}
	return f
}
