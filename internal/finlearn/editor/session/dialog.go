package session

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/apierrors"
	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/editor/media"
	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/editor/surface"
	"github.com/prometheus/client_golang/prometheus"
)

type DialogKind string

const (
	DialogLink  DialogKind = "link"
	DialogImage DialogKind = "image"
	DialogVideo DialogKind = "video"
)

func (k DialogKind) Valid() bool {
	return k == DialogLink || k == DialogImage || k == DialogVideo
}

var insertionsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "finlearn",
	Name:      "editor_insertions_total",
	Help:      "Confirmed insertions by kind",
}, []string{"kind"})

// Collectors возвращает метрики пакета для регистрации на сервере.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{insertionsCounter}
}

// Dialog - открытое окно вставки. Живёт от открытия до подтверждения или отмены
// и никуда не сохраняется.
type Dialog struct {
	Kind      DialogKind              `json:"kind"`
	URL       string                  `json:"url"`
	Label     string                  `json:"label,omitempty"`
	EmbedURL  string                  `json:"embed_url,omitempty"`
	Progress  int                     `json:"progress"`
	Uploading bool                    `json:"uploading"`
	Error     *apierrors.DefinedError `json:"error,omitempty"`
	CanSubmit bool                    `json:"can_submit"`

	generation uint64
	selection  surface.Selection
}

func (d *Dialog) refresh() {
	d.EmbedURL = ""
	switch d.Kind {
	case DialogVideo:
		d.EmbedURL, _ = media.VideoEmbedURL(d.URL)
	case DialogImage:
		if d.URL != "" {
			d.EmbedURL = media.NormalizeImageURL(d.URL)
		}
	}
	d.CanSubmit = strings.TrimSpace(d.URL) != "" && !d.Uploading
}

func (d *Dialog) fail(err error) {
	var defined apierrors.DefinedError
	if errors.As(err, &defined) {
		d.Error = &defined
		return
	}
	generic := apierrors.ErrGeneric
	d.Error = &generic
}

func (s *Session) snapshotDialog() *Dialog {
	if s.dialog == nil {
		return nil
	}
	d := *s.dialog
	return &d
}

// OpenDialog открывает окно вставки. Подпись ссылки заполняется выделенным текстом.
// Открытое ранее окно закрывается вместе с его загрузкой.
func (s *Session) OpenDialog(kind DialogKind) (*Dialog, error) {
	if !kind.Valid() {
		return nil, apierrors.ErrInvalidDialogKind.WithFormattedMessage(kind)
	}
	s.mu.Lock()
	s.generation++
	d := &Dialog{Kind: kind, generation: s.generation, selection: s.surface.Selection()}
	if kind == DialogLink {
		d.Label = s.surface.SelectedText()
	}
	d.refresh()
	s.dialog = d
	s.touch()
	snap := s.snapshotDialog()
	s.mu.Unlock()

	s.emit(Event{Type: EventDialog, Dialog: snap})
	return snap, nil
}

func (s *Session) Dialog() *Dialog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotDialog()
}

// UpdateDialog меняет поля окна по мере ввода. nil оставляет поле без изменений.
func (s *Session) UpdateDialog(url, label *string) (*Dialog, error) {
	s.mu.Lock()
	if s.dialog == nil {
		s.mu.Unlock()
		return nil, apierrors.ErrNoDialog
	}
	if url != nil {
		s.dialog.URL = *url
	}
	if label != nil {
		s.dialog.Label = *label
	}
	s.dialog.Error = nil
	s.dialog.refresh()
	s.touch()
	snap := s.snapshotDialog()
	s.mu.Unlock()

	s.emit(Event{Type: EventDialog, Dialog: snap})
	return snap, nil
}

// CanConfirm сообщает, можно ли подтвердить окно: адрес указан и загрузка не идёт.
func (s *Session) CanConfirm() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dialog != nil && s.dialog.CanSubmit
}

// ConfirmDialog строит фрагмент и вставляет его в позицию, где было выделение
// при открытии окна. При ошибке проверки документ не меняется, окно остаётся открытым.
func (s *Session) ConfirmDialog() error {
	s.mu.Lock()
	d := s.dialog
	if d == nil {
		s.mu.Unlock()
		return apierrors.ErrNoDialog
	}
	if d.Uploading {
		s.mu.Unlock()
		return apierrors.ErrUploadInProgress
	}

	var fragment string
	var err error
	switch d.Kind {
	case DialogLink:
		fragment, err = media.LinkFragment(d.URL, d.Label)
	case DialogImage:
		fragment, err = media.ImageFragment(d.URL)
	case DialogVideo:
		fragment, err = media.VideoFragment(d.URL)
	}
	if err != nil {
		d.fail(err)
		snap := s.snapshotDialog()
		s.mu.Unlock()
		s.emit(Event{Type: EventDialog, Dialog: snap})
		return err
	}

	sel := d.selection
	if err := s.surface.Select(sel.Anchor, sel.Focus); err != nil {
		slog.Debug("Dialog selection is stale, inserting at caret", "session", s.id, "err", err)
	}
	if d.Kind == DialogVideo {
		err = s.surface.InsertBlock(fragment)
	} else {
		err = s.surface.InsertInline(fragment)
	}
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.dialog = nil
	s.generation++
	s.focused = true
	s.touch()
	content := s.surface.HTML()
	s.prevValue = content
	s.mu.Unlock()

	insertionsCounter.WithLabelValues(string(d.Kind)).Inc()
	s.emit(Event{Type: EventChange, Content: content})
	return nil
}

// CancelDialog закрывает окно. Результат незавершённой загрузки будет проигнорирован.
func (s *Session) CancelDialog() {
	s.mu.Lock()
	if s.dialog == nil {
		s.mu.Unlock()
		return
	}
	s.dialog = nil
	s.generation++
	s.focused = true
	s.mu.Unlock()

	s.emit(Event{Type: EventDialog})
}

// UploadDialogFile проверяет файл и запускает загрузку для окна изображения.
// Ошибка проверки возвращается сразу, загрузка при этом не начинается.
// Результат загрузки приходит событиями upload_progress, upload_done или upload_failed.
func (s *Session) UploadDialogFile(file media.File) error {
	s.mu.Lock()
	d := s.dialog
	switch {
	case d == nil:
		s.mu.Unlock()
		return apierrors.ErrNoDialog
	case d.Kind != DialogImage:
		s.mu.Unlock()
		return apierrors.ErrDialogKindMismatch
	case d.Uploading:
		s.mu.Unlock()
		return apierrors.ErrUploadInProgress
	case s.uploader == nil:
		s.mu.Unlock()
		return apierrors.ErrUploadFailed
	}

	if err := media.ValidateUpload(&file, s.maxUpload); err != nil {
		d.fail(err)
		snap := s.snapshotDialog()
		s.mu.Unlock()
		s.emit(Event{Type: EventDialog, Dialog: snap})
		return err
	}

	d.Uploading = true
	d.Progress = 0
	d.Error = nil
	d.refresh()
	gen := d.generation
	s.touch()
	s.uploads.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.uploads.Done()
		url, err := media.Upload(s.ctx, s.uploader, file, s.maxUpload, func(percent int) {
			s.mu.Lock()
			live := s.dialog != nil && s.dialog.generation == gen
			if live {
				s.dialog.Progress = percent
			}
			s.mu.Unlock()
			if live {
				s.emit(Event{Type: EventUploadProgress, Progress: percent})
			}
		})

		s.mu.Lock()
		if s.dialog == nil || s.dialog.generation != gen {
			s.mu.Unlock()
			slog.Debug("Upload finished after dialog was closed", "session", s.id, "file", file.Name, "err", err)
			return
		}
		d := s.dialog
		d.Uploading = false
		if err != nil {
			d.fail(err)
			d.Progress = 0
		} else {
			d.URL = url
			d.Progress = 100
		}
		d.refresh()
		snap := s.snapshotDialog()
		s.mu.Unlock()

		if err != nil {
			s.emit(Event{Type: EventUploadFailed, Dialog: snap, Error: snap.Error})
			return
		}
		s.emit(Event{Type: EventUploadDone, Dialog: snap, URL: url})
	}()
	return nil
}

// PasteFile загружает вставленное или перетащенное изображение без окна вставки
// и после загрузки вставляет его в позицию курсора. Если документ за это время
// был заменён внешним значением, результат отбрасывается.
func (s *Session) PasteFile(file media.File) error {
	s.mu.Lock()
	if s.uploader == nil {
		s.mu.Unlock()
		return apierrors.ErrUploadFailed
	}
	if err := media.ValidateUpload(&file, s.maxUpload); err != nil {
		s.mu.Unlock()
		return err
	}
	gen := s.loadGen
	s.touch()
	s.uploads.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.uploads.Done()
		url, err := media.Upload(s.ctx, s.uploader, file, s.maxUpload, func(percent int) {
			s.emit(Event{Type: EventUploadProgress, Progress: percent})
		})
		if err != nil {
			var defined apierrors.DefinedError
			if !errors.As(err, &defined) {
				defined = apierrors.ErrUploadFailed
			}
			s.emit(Event{Type: EventUploadFailed, Error: &defined})
			return
		}
		fragment, err := media.ImageFragment(url)
		if err != nil {
			slog.Error("Build pasted image fragment", "session", s.id, "err", err)
			return
		}

		s.mu.Lock()
		if s.loadGen != gen || !s.initialized {
			s.mu.Unlock()
			slog.Debug("Pasted image dropped, document was replaced", "session", s.id, "file", file.Name)
			return
		}
		if err := s.surface.InsertInline(fragment); err != nil {
			s.mu.Unlock()
			slog.Error("Insert pasted image", "session", s.id, "err", err)
			return
		}
		content := s.surface.HTML()
		s.prevValue = content
		s.mu.Unlock()

		insertionsCounter.WithLabelValues("paste").Inc()
		s.emit(Event{Type: EventUploadDone, URL: url}, Event{Type: EventChange, Content: content})
	}()
	return nil
}
