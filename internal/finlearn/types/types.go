// Пакет содержит типы колонок базы данных для учебных материалов.
package types

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"

	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/editor/render"
	policy "github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/redactor-policy"
)

// RedactorHTML - разметка редактора. При записи в базу и при разборе JSON проходит через UgcPolicy.
type RedactorHTML struct {
	Body             string
	stripped         string
	AlreadySanitized bool
}

func NewRedactorHTML(body string) RedactorHTML {
	return RedactorHTML{Body: body}
}

func (r RedactorHTML) Value() (driver.Value, error) {
	if !r.AlreadySanitized {
		return policy.UgcPolicy.Sanitize(RemoveInvisibleChars(r.Body)), nil
	}
	return r.Body, nil
}

func (r *RedactorHTML) Scan(value interface{}) error {
	switch v := value.(type) {
	case string:
		r.Body = v
	case []byte:
		r.Body = string(v)
	case nil:
		r.Body = ""
	default:
		return errors.New("unsupported type")
	}
	r.stripped = ""
	r.AlreadySanitized = true
	return nil
}

func (r RedactorHTML) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(r.Body); err != nil {
		return nil, err
	}

	return bytes.TrimSpace(buf.Bytes()), nil
}

func (r *RedactorHTML) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &r.Body); err != nil {
		return err
	}
	r.Body = policy.UgcPolicy.Sanitize(RemoveInvisibleChars(r.Body))
	r.stripped = ""
	r.AlreadySanitized = true

	return nil
}

// StripTags возвращает текст без разметки для поиска и карточек материалов.
func (r *RedactorHTML) StripTags() string {
	if r.stripped == "" {
		r.stripped = strings.TrimSpace(policy.StripTagsPolicy.Sanitize(r.Body))
	}
	return r.stripped
}

// IsEmpty сообщает, что в документе нет видимого содержимого.
func (r RedactorHTML) IsEmpty() bool {
	return render.IsEmpty(r.Body)
}

func (r RedactorHTML) String() string {
	return r.Body
}

func (RedactorHTML) GormDataType() string {
	return "text"
}

func RemoveInvisibleChars(s string) string {
	invisible := []string{
		"\u200B",
		"\u200C",
		"\u200D",
		"\uFEFF",
	}

	for _, ch := range invisible {
		s = strings.ReplaceAll(s, ch, "")
	}
	return s
}
