// Пакет содержит определения ошибок, которые сервис finlearn возвращает автору и клиентам API.
// Каждая ошибка имеет числовой код, HTTP-статус и сообщение на английском и русском языках.
//
// Основные возможности:
//   - Ошибки валидации редактора (пустая ссылка, неверный видео URL, тип и размер файла).
//   - Ошибки загрузки файлов в хранилище.
//   - Ошибки сессий редактирования и документов.
//   - Форматирование сообщений с аргументами.
package apierrors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type DefinedError struct {
	Code       int    `json:"code"`
	StatusCode int    `json:"-"`
	Err        string `json:"error"`
	RuErr      string `json:"ru_error,omitempty"`
}

func (e DefinedError) Error() string {
	return e.Err
}

// Is сравнивает ошибки по коду, чтобы errors.Is работал с копиями после WithFormattedMessage.
func (e DefinedError) Is(target error) bool {
	var t DefinedError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

const (
	UploadMaxSizeMB = 5
)

var (
	// 1*** - editor validation errors
	ErrLinkURLRequired    = DefinedError{Code: 1001, StatusCode: http.StatusBadRequest, Err: "link URL is required", RuErr: "Укажите адрес ссылки"}
	ErrImageURLRequired   = DefinedError{Code: 1002, StatusCode: http.StatusBadRequest, Err: "image URL is required", RuErr: "Укажите адрес изображения или загрузите файл"}
	ErrVideoURLRequired   = DefinedError{Code: 1003, StatusCode: http.StatusBadRequest, Err: "video URL is required", RuErr: "Укажите адрес видео"}
	ErrInvalidVideoURL    = DefinedError{Code: 1004, StatusCode: http.StatusBadRequest, Err: "invalid video URL", RuErr: "Неподдерживаемая ссылка на видео. Используйте YouTube или Vimeo"}
	ErrInvalidFileType    = DefinedError{Code: 1005, StatusCode: http.StatusUnsupportedMediaType, Err: "invalid file type", RuErr: "Можно загрузить только изображение"}
	ErrUploadTooLarge     = DefinedError{Code: 1006, StatusCode: http.StatusRequestEntityTooLarge, Err: "file too large", RuErr: "Размер файла не должен превышать " + fmt.Sprint(UploadMaxSizeMB) + " МБ"}
	ErrUnknownCommand     = DefinedError{Code: 1007, StatusCode: http.StatusBadRequest, Err: "unknown editor command %s", RuErr: "Неизвестная команда редактора"}
	ErrInvalidViewMode    = DefinedError{Code: 1008, StatusCode: http.StatusBadRequest, Err: "invalid view mode %s", RuErr: "Неизвестный режим просмотра"}
	ErrInvalidSelection   = DefinedError{Code: 1009, StatusCode: http.StatusBadRequest, Err: "selection is out of document bounds", RuErr: "Выделение выходит за границы документа"}
	ErrInvalidDialogKind  = DefinedError{Code: 1010, StatusCode: http.StatusBadRequest, Err: "invalid dialog kind %s", RuErr: "Неизвестный тип вставки"}
	ErrNoDialog           = DefinedError{Code: 1011, StatusCode: http.StatusConflict, Err: "no insertion dialog is open", RuErr: "Окно вставки не открыто"}
	ErrDialogKindMismatch = DefinedError{Code: 1012, StatusCode: http.StatusConflict, Err: "open dialog does not accept files", RuErr: "Загрузка файла доступна только для изображений"}

	// 2*** - upload errors
	ErrUploadFailed     = DefinedError{Code: 2001, StatusCode: http.StatusBadGateway, Err: "upload failed", RuErr: "Не удалось загрузить файл. Попробуйте ещё раз"}
	ErrUploadInProgress = DefinedError{Code: 2002, StatusCode: http.StatusConflict, Err: "upload is in progress", RuErr: "Дождитесь окончания загрузки"}
	ErrFileRequired     = DefinedError{Code: 2004, StatusCode: http.StatusBadRequest, Err: "file is required", RuErr: "Файл не передан"}
	ErrFileNotFound     = DefinedError{Code: 2005, StatusCode: http.StatusNotFound, Err: "file not found", RuErr: "Файл не найден"}

	// 3*** - session and document errors
	ErrSessionNotFound  = DefinedError{Code: 3001, StatusCode: http.StatusNotFound, Err: "editing session not found", RuErr: "Сессия редактирования не найдена или закрыта"}
	ErrDocumentNotFound = DefinedError{Code: 3002, StatusCode: http.StatusNotFound, Err: "document not found", RuErr: "Документ не найден"}
	ErrDocumentTitle    = DefinedError{Code: 3003, StatusCode: http.StatusBadRequest, Err: "document title is required", RuErr: "Поле Заголовок не может быть пустым"}
	ErrDocumentKind     = DefinedError{Code: 3004, StatusCode: http.StatusBadRequest, Err: "unsupported document kind %s", RuErr: "Неподдерживаемый тип материала"}

	// 5*** - common errors
	ErrGeneric        = DefinedError{Code: 5000, StatusCode: http.StatusBadRequest, Err: "Something went wrong. Please try again later or contact the support team.", RuErr: "Что-то пошло не так. Повторите попытку позже или обратитесь в службу поддержки"}
	ErrBadRequest     = DefinedError{Code: 5001, StatusCode: http.StatusBadRequest, Err: "bad request", RuErr: "Некорректный запрос"}
	ErrEntityTooLarge = DefinedError{Code: 5002, StatusCode: http.StatusRequestEntityTooLarge, Err: "size exceeds the allowed limit", RuErr: "Размер запроса превышает допустимый"}
)

func (e DefinedError) WithFormattedMessage(args ...interface{}) DefinedError {
	if len(args) > 0 {
		e.Err = fmt.Sprintf(e.Err, args...)
		if strings.Contains(e.RuErr, "%s") {
			e.RuErr = fmt.Sprintf(e.RuErr, args...)
		}
	} else {
		e.Err = strings.Replace(e.Err, "%s", "", -1)
		e.RuErr = strings.Replace(e.RuErr, "%s", "", -1)
	}
	return e
}
