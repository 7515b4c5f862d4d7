// Возврат ошибок API с HTTP-статусом и логированием.
//
// Основные возможности:
//   - Единый формат ответа с ошибкой {code, error, ru_error}.
//   - Логирование непредвиденных ошибок с методом, адресом и местом вызова.
//   - Ошибки из каталога apierrors возвращаются без логирования.
package finlearn

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"runtime"

	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/apierrors"
	errStack "github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/stack-error"
	"github.com/labstack/echo/v4"
)

// Возврат ошибки из каталога или 400 с универсальным сообщением
func EError(c echo.Context, err error) error {
	var defined apierrors.DefinedError
	if errors.As(err, &defined) {
		return EErrorDefined(c, defined)
	}

	var tracked *errStack.TrackerError
	switch {
	case err == nil:
		slog.Error("Unknown API error",
			"method", c.Request().Method,
			"url", c.Request().URL,
			getCallerFile(),
		)
	case errors.As(err, &tracked):
		errStack.GetError(c, err)
	default:
		slog.Error("API error",
			"err", err,
			"method", c.Request().Method,
			"url", c.Request().URL,
			getCallerFile(),
		)
	}
	return EErrorDefined(c, apierrors.ErrGeneric)
}

// Возврат ошибки <status> с универсальным сообщением
func EErrorMsgStatus(c echo.Context, err error, status int) error {
	if status == http.StatusRequestEntityTooLarge {
		return EErrorDefined(c, apierrors.ErrEntityTooLarge)
	}

	// Ignore log 404 error
	if status != http.StatusNotFound {
		slog.Error("API error",
			"err", err,
			"method", c.Request().Method,
			slog.Int("status", status),
			"url", c.Request().URL,
			getCallerFile(),
		)
	}
	er := apierrors.ErrGeneric
	er.StatusCode = status
	return EErrorDefined(c, er)
}

// EErrorDefined возвращает JSON-ответ с кодом статуса ошибки. Если код статуса не определен, используется 400 Bad Request.
func EErrorDefined(c echo.Context, err apierrors.DefinedError) error {
	// If unknown code use 400 Bad Request
	if http.StatusText(err.StatusCode) == "" {
		err.StatusCode = http.StatusBadRequest
	}
	return c.JSON(err.StatusCode, err)
}

func getCallerFile() slog.Attr {
	_, path, no, ok := runtime.Caller(2)
	if !ok {
		return slog.Attr{}
	}
	_, file := filepath.Split(path)
	return slog.String("caller", fmt.Sprintf("%s:%d", file, no))
}
