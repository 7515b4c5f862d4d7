// Пакет реализует сессию редактирования одного документа.
//
// Сессия владеет живой копией документа, пока редактор смонтирован и в фокусе,
// и согласует её с внешним значением владельца: внешнее изменение во время
// фокуса отбрасывается, без фокуса перезаписывает документ. После каждой
// правки владелец получает полное содержимое документа событием change.
//
// Основные возможности:
//   - Контракт синхронизации (фокус, признак инициализации, предыдущее значение).
//   - Каталог команд редактора и горячие клавиши.
//   - Окна вставки ссылки, изображения и видео с асинхронной загрузкой файлов.
//   - Вставка изображений из буфера обмена и перетаскиванием.
//   - Режимы просмотра: редактор, предпросмотр, оба рядом.
//   - Реестр открытых сессий с автосохранением и закрытием неактивных.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/apierrors"
	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/editor/media"
	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/editor/render"
	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/editor/surface"
	policy "github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/redactor-policy"
	"github.com/gofrs/uuid"
)

type EventType string

const (
	EventChange         EventType = "change"
	EventValue          EventType = "value"
	EventMode           EventType = "mode"
	EventDialog         EventType = "dialog"
	EventUploadProgress EventType = "upload_progress"
	EventUploadDone     EventType = "upload_done"
	EventUploadFailed   EventType = "upload_failed"
)

type Event struct {
	Type      EventType               `json:"type"`
	SessionId uuid.UUID               `json:"session_id"`
	Content   string                  `json:"content,omitempty"`
	Mode      ViewMode                `json:"mode,omitempty"`
	Dialog    *Dialog                 `json:"dialog,omitempty"`
	Progress  int                     `json:"progress,omitempty"`
	URL       string                  `json:"url,omitempty"`
	Error     *apierrors.DefinedError `json:"error,omitempty"`
}

type Listener func(Event)

type Options struct {
	// Uploader - хранилище для загружаемых изображений.
	Uploader media.Uploader
	// MaxUploadSize - предельный размер файла в байтах, 0 - значение по умолчанию.
	MaxUploadSize int64
	OnEvent       Listener
}

type Session struct {
	mu sync.Mutex

	id         uuid.UUID
	documentId uuid.UUID

	surface     *surface.Surface
	initialized bool
	focused     bool
	prevValue   string
	saved       string
	loadGen     uint64

	mode       ViewMode
	dialog     *Dialog
	generation uint64

	uploader  media.Uploader
	maxUpload int64
	listener  Listener

	ctx     context.Context
	cancel  context.CancelFunc
	uploads sync.WaitGroup

	lastActivity time.Time
}

func New(documentId uuid.UUID, opts Options) *Session {
	ctx, cancel := context.WithCancel(media.WithDocument(context.Background(), documentId))
	return &Session{
		id:           uuid.Must(uuid.NewV4()),
		documentId:   documentId,
		surface:      surface.New(""),
		mode:         ModeEdit,
		uploader:     opts.Uploader,
		maxUpload:    opts.MaxUploadSize,
		listener:     opts.OnEvent,
		ctx:          ctx,
		cancel:       cancel,
		lastActivity: time.Now(),
	}
}

func (s *Session) Id() uuid.UUID         { return s.id }
func (s *Session) DocumentId() uuid.UUID { return s.documentId }

func (s *Session) emit(events ...Event) {
	if s.listener == nil {
		return
	}
	for _, e := range events {
		e.SessionId = s.id
		s.listener(e)
	}
}

func (s *Session) touch() {
	s.lastActivity = time.Now()
}

// Mount инициализирует документ внешним значением. Повторный вызов в течение
// жизни сессии ничего не меняет.
func (s *Session) Mount(value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mount(value)
}

func (s *Session) mount(value string) {
	if s.initialized {
		return
	}
	s.surface.Load(value)
	s.initialized = true
	s.prevValue = value
	s.saved = value
	s.loadGen++
}

// SetValue принимает новое внешнее значение. Пока редактор в фокусе, значение
// отбрасывается, без фокуса оно заменяет документ, если отличается от него.
// Возвращает true, если документ был заменён.
func (s *Session) SetValue(value string) bool {
	s.mu.Lock()
	if !s.initialized {
		s.mount(value)
		s.mu.Unlock()
		s.emit(Event{Type: EventValue, Content: value})
		return true
	}

	echo := value == s.prevValue
	s.prevValue = value
	same := sameContent(value, s.surface.HTML())
	if s.focused {
		if !echo && !same {
			slog.Debug("External value dropped while editor is focused", "session", s.id, "len", len(value))
		}
		s.mu.Unlock()
		return false
	}
	if same {
		s.mu.Unlock()
		return false
	}
	s.surface.Load(value)
	s.saved = value
	s.loadGen++
	s.mu.Unlock()

	s.emit(Event{Type: EventValue, Content: value})
	return true
}

// sameContent сравнивает значения после очистки: хранилище возвращает содержимое,
// прошедшее через UgcPolicy, и такое эхо не должно перезагружать документ.
func sameContent(value, current string) bool {
	if value == current {
		return true
	}
	return policy.UgcPolicy.Sanitize(value) == policy.UgcPolicy.Sanitize(current)
}

// Content возвращает текущее содержимое живого документа.
func (s *Session) Content() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.surface.HTML()
}

func (s *Session) Focus() {
	s.mu.Lock()
	s.focused = true
	s.touch()
	s.mu.Unlock()
}

func (s *Session) Blur() {
	s.mu.Lock()
	s.focused = false
	s.mu.Unlock()
}

func (s *Session) Focused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.focused
}

// mutate выполняет правку документа под блокировкой, возвращает фокус редактору
// и ровно один раз уведомляет владельца о новом содержимом.
func (s *Session) mutate(fn func(sf *surface.Surface) error) error {
	s.mu.Lock()
	if err := fn(s.surface); err != nil {
		s.mu.Unlock()
		return err
	}
	s.focused = true
	s.touch()
	content := s.surface.HTML()
	s.prevValue = content
	s.mu.Unlock()

	s.emit(Event{Type: EventChange, Content: content})
	return nil
}

// Dirty сообщает, что документ изменился с последнего сохранения или загрузки.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.surface.HTML() != s.saved
}

// Save передаёт текущее содержимое хранилищу.
func (s *Session) Save(ctx context.Context, store Store) error {
	content := s.Content()
	if err := store.Save(ctx, s.documentId, content); err != nil {
		return err
	}
	s.mu.Lock()
	s.saved = content
	s.mu.Unlock()
	return nil
}

// Close отменяет незавершённые загрузки и ждёт их окончания.
func (s *Session) Close() {
	s.mu.Lock()
	s.dialog = nil
	s.generation++
	s.initialized = false
	s.mu.Unlock()
	s.cancel()
	s.uploads.Wait()
}

// WaitUploads ждёт окончания всех запущенных загрузок.
func (s *Session) WaitUploads() {
	s.uploads.Wait()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

type State struct {
	Id          uuid.UUID         `json:"id"`
	DocumentId  uuid.UUID         `json:"document_id"`
	Content     string            `json:"content"`
	Focused     bool              `json:"focused"`
	Mode        ViewMode          `json:"mode"`
	ShowEditor  bool              `json:"show_editor"`
	ShowPreview bool              `json:"show_preview"`
	Preview     string            `json:"preview,omitempty"`
	Selection   surface.Selection `json:"selection"`
	Blocks      []surface.Block   `json:"blocks"`
	ActiveMarks []surface.Mark    `json:"active_marks"`
	CanUndo     bool              `json:"can_undo"`
	CanRedo     bool              `json:"can_redo"`
	Dialog      *Dialog           `json:"dialog,omitempty"`
	Dirty       bool              `json:"dirty"`
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	content := s.surface.HTML()
	st := State{
		Id:          s.id,
		DocumentId:  s.documentId,
		Content:     content,
		Focused:     s.focused,
		Mode:        s.mode,
		ShowEditor:  s.mode.ShowsEditor(),
		ShowPreview: s.mode.ShowsPreview(),
		Selection:   s.surface.Selection(),
		Blocks:      s.surface.Blocks(),
		CanUndo:     s.surface.CanUndo(),
		CanRedo:     s.surface.CanRedo(),
		Dirty:       content != s.saved,
	}
	if st.ShowPreview {
		st.Preview = render.View(content)
	}
	marks := s.surface.ActiveMarks()
	for _, m := range surface.Marks {
		if marks[m] {
			st.ActiveMarks = append(st.ActiveMarks, m)
		}
	}
	if s.dialog != nil {
		d := *s.dialog
		st.Dialog = &d
	}
	return st
}
