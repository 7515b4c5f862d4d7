package session

import (
	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/apierrors"
)

type ViewMode string

const (
	ModeEdit    ViewMode = "edit"
	ModePreview ViewMode = "preview"
	ModeSplit   ViewMode = "split"
)

func (m ViewMode) Valid() bool {
	return m == ModeEdit || m == ModePreview || m == ModeSplit
}

func (m ViewMode) ShowsEditor() bool {
	return m == ModeEdit || m == ModeSplit
}

func (m ViewMode) ShowsPreview() bool {
	return m == ModePreview || m == ModeSplit
}

func (s *Session) Mode() ViewMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetMode переключает режим просмотра. Документ не меняется, в режиме без редактора
// поверхность теряет фокус.
func (s *Session) SetMode(m ViewMode) error {
	if !m.Valid() {
		return apierrors.ErrInvalidViewMode.WithFormattedMessage(m)
	}
	s.mu.Lock()
	s.mode = m
	if !m.ShowsEditor() {
		s.focused = false
	}
	s.touch()
	s.mu.Unlock()

	s.emit(Event{Type: EventMode, Mode: m})
	return nil
}
