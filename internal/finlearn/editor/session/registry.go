package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/apierrors"
	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/editor/media"
	"github.com/gofrs/uuid"
)

// Store - хранилище документов: загрузка и сохранение содержимого по id.
type Store interface {
	Load(ctx context.Context, id uuid.UUID) (string, error)
	Save(ctx context.Context, id uuid.UUID, content string) error
}

type RegistryConfig struct {
	Uploader      media.Uploader
	MaxUploadSize int64
	// IdleTimeout - через сколько без активности сессия закрывается.
	IdleTimeout time.Duration
	OnEvent     Listener
	// OnClose вызывается после размонтирования сессии.
	OnClose func(id uuid.UUID)
}

// Registry хранит открытые сессии редактирования.
type Registry struct {
	store Store
	cfg   RegistryConfig

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

func NewRegistry(store Store, cfg RegistryConfig) *Registry {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 30 * time.Minute
	}
	return &Registry{
		store:    store,
		cfg:      cfg,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Open загружает документ и монтирует новую сессию.
func (r *Registry) Open(ctx context.Context, documentId uuid.UUID) (*Session, error) {
	content, err := r.store.Load(ctx, documentId)
	if err != nil {
		return nil, err
	}
	s := New(documentId, Options{
		Uploader:      r.cfg.Uploader,
		MaxUploadSize: r.cfg.MaxUploadSize,
		OnEvent:       r.cfg.OnEvent,
	})
	s.Mount(content)

	r.mu.Lock()
	r.sessions[s.id] = s
	r.mu.Unlock()

	slog.Info("Editing session opened", "session", s.id, "document", documentId)
	return s, nil
}

func (r *Registry) Get(id uuid.UUID) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, apierrors.ErrSessionNotFound
	}
	return s, nil
}

// ByDocument возвращает открытые сессии документа.
func (r *Registry) ByDocument(documentId uuid.UUID) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var res []*Session
	for _, s := range r.sessions {
		if s.documentId == documentId {
			res = append(res, s)
		}
	}
	return res
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Close сохраняет изменения сессии и размонтирует её. Если сохранить не удалось,
// сессия остаётся открытой, чтобы автосохранение или следующий Close повторили попытку.
func (r *Registry) Close(ctx context.Context, id uuid.UUID) error {
	s, err := r.Get(id)
	if err != nil {
		return err
	}
	if s.Dirty() {
		if err := s.Save(ctx, r.store); err != nil {
			return err
		}
	}

	r.mu.Lock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return apierrors.ErrSessionNotFound
	}

	s.Close()
	if r.cfg.OnClose != nil {
		r.cfg.OnClose(id)
	}
	slog.Info("Editing session closed", "session", id, "document", s.documentId)
	return nil
}

// SaveDirty сохраняет все сессии с несохранёнными изменениями. Возвращает число сохранённых.
func (r *Registry) SaveDirty(ctx context.Context) int {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	saved := 0
	for _, s := range sessions {
		if !s.Dirty() {
			continue
		}
		if err := s.Save(ctx, r.store); err != nil {
			slog.Error("Autosave document", "session", s.id, "document", s.documentId, "err", err)
			continue
		}
		saved++
	}
	return saved
}

// CloseIdle закрывает сессии без активности дольше IdleTimeout.
func (r *Registry) CloseIdle(ctx context.Context, now time.Time) int {
	r.mu.RLock()
	var idle []uuid.UUID
	for id, s := range r.sessions {
		if now.Sub(s.idleSince()) > r.cfg.IdleTimeout {
			idle = append(idle, id)
		}
	}
	r.mu.RUnlock()

	closed := 0
	for _, id := range idle {
		if err := r.Close(ctx, id); err != nil {
			slog.Error("Close idle session", "session", id, "err", err)
			continue
		}
		closed++
	}
	return closed
}

// CloseAll закрывает все сессии при остановке сервера.
func (r *Registry) CloseAll(ctx context.Context) {
	r.mu.RLock()
	ids := make([]uuid.UUID, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	for _, id := range ids {
		if err := r.Close(ctx, id); err != nil {
			slog.Error("Close session on shutdown", "session", id, "err", err)
		}
	}
}
