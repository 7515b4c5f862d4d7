package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/apierrors"
	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/editor/media"
	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/editor/surface"
	policy "github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/redactor-policy"
	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) listen(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) count(t EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func (r *recorder) last(t EventType) *Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Type == t {
			e := r.events[i]
			return &e
		}
	}
	return nil
}

type fakeUploader struct {
	mu       sync.Mutex
	calls    int
	release  chan struct{}
	err      error
	document uuid.UUID
}

func (f *fakeUploader) Upload(ctx context.Context, file media.File, progress func(int)) (string, error) {
	f.mu.Lock()
	f.calls++
	f.document, _ = media.DocumentFromContext(ctx)
	f.mu.Unlock()

	progress(50)
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	if _, err := io.Copy(io.Discard, file.Reader); err != nil {
		return "", err
	}
	return "https://cdn.finlearn.ru/" + file.Name, nil
}

func (f *fakeUploader) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func jpegFile(name string, size int) media.File {
	data := make([]byte, size)
	copy(data, []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00})
	return media.File{Name: name, ContentType: "image/jpeg", Size: int64(size), Reader: bytes.NewReader(data)}
}

func newSession(t *testing.T, content string, up media.Uploader) (*Session, *recorder) {
	t.Helper()
	rec := &recorder{}
	s := New(uuid.Must(uuid.NewV4()), Options{Uploader: up, OnEvent: rec.listen})
	s.Mount(content)
	t.Cleanup(s.Close)
	return s, rec
}

func TestSynchronization(t *testing.T) {
	t.Run("mount happens once", func(t *testing.T) {
		s, _ := newSession(t, "<p>first</p>", nil)
		s.Mount("<p>second</p>")
		assert.Equal(t, "<p>first</p>", s.Content())
	})

	t.Run("focused editor keeps its content", func(t *testing.T) {
		s, rec := newSession(t, "<p>draft</p>", nil)
		s.Focus()
		require.NoError(t, s.InsertText("my "))
		before := s.Content()

		assert.False(t, s.SetValue("<p>stale</p>"))
		assert.Equal(t, before, s.Content())
		assert.Zero(t, rec.count(EventValue))
	})

	t.Run("blurred editor takes external value", func(t *testing.T) {
		s, rec := newSession(t, "<p>one</p>", nil)
		s.Focus()
		s.Blur()
		assert.True(t, s.SetValue("<p>two</p>\n"))
		assert.Equal(t, "<p>two</p>\n", s.Content())
		assert.Equal(t, 1, rec.count(EventValue))

		assert.False(t, s.SetValue("<p>two</p>\n"))
		assert.Equal(t, 1, rec.count(EventValue))
	})

	t.Run("dropped value applies when pushed again without focus", func(t *testing.T) {
		s, _ := newSession(t, "<p>a</p>", nil)
		s.Focus()
		assert.False(t, s.SetValue("<p>b</p>"))
		s.Blur()
		assert.True(t, s.SetValue("<p>b</p>"))
		assert.Equal(t, "<p>b</p>", s.Content())
	})

	t.Run("sanitized echo keeps history and caret", func(t *testing.T) {
		s, rec := newSession(t, "<p>abc</p>", nil)
		require.NoError(t, s.Select(surface.Position{Offset: 1}, surface.Position{Offset: 1}))
		require.NoError(t, s.InsertText("x"))
		require.NoError(t, s.Execute(Direct(OpSetAlignment, string(surface.AlignCenter))))
		s.Blur()
		before := s.State()
		require.True(t, before.CanUndo)

		assert.False(t, s.SetValue(policy.UgcPolicy.Sanitize(s.Content())))
		assert.False(t, s.SetValue(`<p style="text-align: center;">axbc</p>`))

		after := s.State()
		assert.True(t, after.CanUndo)
		assert.Equal(t, before.Selection, after.Selection)
		assert.Equal(t, before.Content, after.Content)
		assert.Zero(t, rec.count(EventValue))
	})

	t.Run("edit emits full content", func(t *testing.T) {
		s, rec := newSession(t, "<p>a</p>", nil)
		require.NoError(t, s.Select(surface.Position{Offset: 1}, surface.Position{Offset: 1}))
		assert.True(t, s.Focused())
		require.NoError(t, s.InsertText("b"))

		e := rec.last(EventChange)
		require.NotNil(t, e)
		assert.Equal(t, "<p>ab</p>", e.Content)
		assert.Equal(t, s.Id(), e.SessionId)
		assert.True(t, s.Dirty())
	})
}

func TestCommands(t *testing.T) {
	for _, cmd := range Catalog() {
		if cmd.Kind != KindDirect {
			continue
		}
		t.Run(string(cmd.Op)+" "+cmd.Arg, func(t *testing.T) {
			s, rec := newSession(t, "<p>Hello</p>", nil)
			require.NoError(t, s.Select(surface.Position{}, surface.Position{Offset: 5}))
			s.Blur()

			require.NoError(t, s.Execute(cmd))
			assert.Equal(t, 1, rec.count(EventChange))
			assert.True(t, s.Focused())
		})
	}

	t.Run("block type", func(t *testing.T) {
		s, _ := newSession(t, "<p>Hello</p>", nil)
		require.NoError(t, s.Execute(Direct(OpSetBlockType, string(surface.Heading3))))
		assert.Equal(t, "<h3>Hello</h3>", s.Content())
		assert.True(t, s.Undo())
		assert.Equal(t, "<p>Hello</p>", s.Content())
		assert.False(t, s.Undo())
	})

	t.Run("invalid argument", func(t *testing.T) {
		s, rec := newSession(t, "<p>Hello</p>", nil)
		err := s.Execute(Direct(OpSetBlockType, "heading-7"))
		assert.ErrorIs(t, err, apierrors.ErrUnknownCommand)
		err = s.Execute(Command{Kind: KindDirect, Op: "shout"})
		assert.ErrorIs(t, err, apierrors.ErrUnknownCommand)
		err = s.Execute(Command{Kind: "macro"})
		assert.ErrorIs(t, err, apierrors.ErrUnknownCommand)
		assert.Zero(t, rec.count(EventChange))
		assert.Equal(t, "<p>Hello</p>", s.Content())
	})

	t.Run("dialog command", func(t *testing.T) {
		s, _ := newSession(t, "<p>Hello</p>", nil)
		require.NoError(t, s.Execute(OpenDialog(DialogVideo)))
		require.NotNil(t, s.Dialog())
		assert.Equal(t, DialogVideo, s.Dialog().Kind)
	})
}

func TestHandleKey(t *testing.T) {
	s, rec := newSession(t, "<p>Hello</p>", nil)
	require.NoError(t, s.Select(surface.Position{Offset: 5}, surface.Position{Offset: 5}))

	handled, err := s.HandleKey(KeyEvent{Key: "b", Mod: true})
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Contains(t, s.State().ActiveMarks, surface.Bold)

	require.NoError(t, s.InsertText("!"))
	assert.Equal(t, "<p>Hello<strong>!</strong></p>", s.Content())

	handled, err = s.HandleKey(KeyEvent{Key: "z", Mod: true})
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, "<p>Hello</p>", s.Content())

	handled, err = s.HandleKey(KeyEvent{Key: "Z", Mod: true, Shift: true})
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, "<p>Hello<strong>!</strong></p>", s.Content())

	changes := rec.count(EventChange)
	handled, err = s.HandleKey(KeyEvent{Key: "a"})
	require.NoError(t, err)
	assert.False(t, handled)
	handled, _ = s.HandleKey(KeyEvent{Key: "k", Mod: true})
	assert.False(t, handled)
	assert.Equal(t, changes, rec.count(EventChange))
}

func TestViewMode(t *testing.T) {
	s, rec := newSession(t, "<p>Текст</p>", nil)
	assert.Equal(t, ModeEdit, s.Mode())
	s.Focus()

	modes := []ViewMode{ModeEdit, ModePreview, ModeSplit}
	for _, from := range modes {
		for _, to := range modes {
			if from == to {
				continue
			}
			require.NoError(t, s.SetMode(from))
			require.NoError(t, s.SetMode(to))
			assert.Equal(t, to, s.Mode())
			assert.Equal(t, "<p>Текст</p>", s.Content())
		}
	}
	assert.Zero(t, rec.count(EventChange))

	require.NoError(t, s.SetMode(ModePreview))
	assert.False(t, s.Focused())
	st := s.State()
	assert.False(t, st.ShowEditor)
	assert.Equal(t, `<div class="finlearn-content"><p>Текст</p></div>`, st.Preview)

	require.NoError(t, s.SetMode(ModeEdit))
	require.NoError(t, s.InsertText("Новый "))
	require.NoError(t, s.SetMode(ModeSplit))
	assert.Contains(t, s.State().Preview, "Новый Текст")

	assert.ErrorIs(t, s.SetMode("fullscreen"), apierrors.ErrInvalidViewMode)
}

func TestLinkDialog(t *testing.T) {
	s, rec := newSession(t, "<p>Читайте про облигации</p>", nil)
	require.NoError(t, s.Select(surface.Position{Offset: 12}, surface.Position{Offset: 21}))

	d, err := s.OpenDialog(DialogLink)
	require.NoError(t, err)
	assert.Equal(t, "облигации", d.Label)
	assert.False(t, s.CanConfirm())
	assert.ErrorIs(t, s.ConfirmDialog(), apierrors.ErrLinkURLRequired)

	url := "https://finlearn.ru/bonds"
	_, err = s.UpdateDialog(&url, nil)
	require.NoError(t, err)
	assert.True(t, s.CanConfirm())

	require.NoError(t, s.ConfirmDialog())
	assert.Equal(t, `<p>Читайте про <a href="https://finlearn.ru/bonds" target="_blank" rel="noopener noreferrer" class="`+media.LinkClass+`">облигации</a></p>`, s.Content())
	assert.Nil(t, s.Dialog())
	assert.Equal(t, 1, rec.count(EventChange))

	assert.ErrorIs(t, s.ConfirmDialog(), apierrors.ErrNoDialog)
}

func TestVideoDialog(t *testing.T) {
	t.Run("invalid url", func(t *testing.T) {
		s, rec := newSession(t, "<p>Урок</p>", nil)
		_, err := s.OpenDialog(DialogVideo)
		require.NoError(t, err)
		url := "https://example.com/clip.mp4"
		d, err := s.UpdateDialog(&url, nil)
		require.NoError(t, err)
		assert.Empty(t, d.EmbedURL)

		err = s.ConfirmDialog()
		assert.ErrorIs(t, err, apierrors.ErrInvalidVideoURL)
		assert.Equal(t, "<p>Урок</p>", s.Content())
		require.NotNil(t, s.Dialog())
		assert.Equal(t, apierrors.ErrInvalidVideoURL.Code, s.Dialog().Error.Code)
		assert.Zero(t, rec.count(EventChange))
	})

	t.Run("vimeo", func(t *testing.T) {
		s, _ := newSession(t, "<p>Урок</p>", nil)
		require.NoError(t, s.Select(surface.Position{Offset: 4}, surface.Position{Offset: 4}))
		_, err := s.OpenDialog(DialogVideo)
		require.NoError(t, err)
		url := "https://vimeo.com/76979871"
		d, err := s.UpdateDialog(&url, nil)
		require.NoError(t, err)
		assert.Equal(t, "https://player.vimeo.com/video/76979871", d.EmbedURL)

		require.NoError(t, s.ConfirmDialog())
		fragment, _ := media.VideoFragment(url)
		assert.Equal(t, "<p>Урок</p>"+fragment+"<p></p>", s.Content())
	})
}

func TestImageUpload(t *testing.T) {
	t.Run("upload then confirm", func(t *testing.T) {
		up := &fakeUploader{}
		s, rec := newSession(t, "<p>Текст</p>", up)
		require.NoError(t, s.Select(surface.Position{Offset: 5}, surface.Position{Offset: 5}))
		_, err := s.OpenDialog(DialogImage)
		require.NoError(t, err)

		require.NoError(t, s.UploadDialogFile(jpegFile("chart.jpg", 4<<20)))
		s.WaitUploads()

		d := s.Dialog()
		require.NotNil(t, d)
		assert.False(t, d.Uploading)
		assert.Equal(t, 100, d.Progress)
		assert.Equal(t, "https://cdn.finlearn.ru/chart.jpg", d.URL)
		assert.Equal(t, 1, rec.count(EventUploadDone))
		assert.NotZero(t, rec.count(EventUploadProgress))
		assert.Equal(t, "<p>Текст</p>", s.Content())

		require.NoError(t, s.ConfirmDialog())
		assert.Equal(t, `<p>Текст<img src="https://cdn.finlearn.ru/chart.jpg" alt="" class="`+media.ImageClass+`"/></p>`, s.Content())
	})

	t.Run("too large rejected before upload", func(t *testing.T) {
		up := &fakeUploader{}
		s, _ := newSession(t, "<p></p>", up)
		_, err := s.OpenDialog(DialogImage)
		require.NoError(t, err)

		err = s.UploadDialogFile(jpegFile("big.jpg", 6<<20))
		assert.ErrorIs(t, err, apierrors.ErrUploadTooLarge)
		assert.Zero(t, up.Calls())
		assert.Equal(t, apierrors.ErrUploadTooLarge.Code, s.Dialog().Error.Code)
	})

	t.Run("only image dialog accepts files", func(t *testing.T) {
		s, _ := newSession(t, "<p></p>", &fakeUploader{})
		assert.ErrorIs(t, s.UploadDialogFile(jpegFile("a.jpg", 10)), apierrors.ErrNoDialog)
		_, err := s.OpenDialog(DialogLink)
		require.NoError(t, err)
		assert.ErrorIs(t, s.UploadDialogFile(jpegFile("a.jpg", 10)), apierrors.ErrDialogKindMismatch)
	})

	t.Run("confirm blocked while uploading", func(t *testing.T) {
		up := &fakeUploader{release: make(chan struct{})}
		s, _ := newSession(t, "<p></p>", up)
		_, err := s.OpenDialog(DialogImage)
		require.NoError(t, err)
		require.NoError(t, s.UploadDialogFile(jpegFile("a.jpg", 1024)))

		assert.ErrorIs(t, s.ConfirmDialog(), apierrors.ErrUploadInProgress)
		assert.ErrorIs(t, s.UploadDialogFile(jpegFile("b.jpg", 1024)), apierrors.ErrUploadInProgress)
		assert.False(t, s.CanConfirm())
		close(up.release)
		s.WaitUploads()
		assert.True(t, s.CanConfirm())
	})

	t.Run("late result after cancel is ignored", func(t *testing.T) {
		up := &fakeUploader{release: make(chan struct{})}
		s, rec := newSession(t, "<p>x</p>", up)
		_, err := s.OpenDialog(DialogImage)
		require.NoError(t, err)
		require.NoError(t, s.UploadDialogFile(jpegFile("a.jpg", 1024)))

		s.CancelDialog()
		close(up.release)
		s.WaitUploads()

		assert.Nil(t, s.Dialog())
		assert.Equal(t, "<p>x</p>", s.Content())
		assert.Zero(t, rec.count(EventUploadDone))
		assert.Zero(t, rec.count(EventChange))
	})

	t.Run("storage failure", func(t *testing.T) {
		up := &fakeUploader{err: errors.New("bucket unavailable")}
		s, rec := newSession(t, "<p>x</p>", up)
		_, err := s.OpenDialog(DialogImage)
		require.NoError(t, err)
		require.NoError(t, s.UploadDialogFile(jpegFile("a.jpg", 1024)))
		s.WaitUploads()

		e := rec.last(EventUploadFailed)
		require.NotNil(t, e)
		assert.Equal(t, apierrors.ErrUploadFailed.Code, e.Error.Code)
		d := s.Dialog()
		require.NotNil(t, d)
		assert.False(t, d.Uploading)
		assert.Empty(t, d.URL)
		assert.Equal(t, "<p>x</p>", s.Content())
	})
}

func TestPasteFile(t *testing.T) {
	t.Run("inserted at caret", func(t *testing.T) {
		up := &fakeUploader{}
		s, rec := newSession(t, "<p>ab</p>", up)
		require.NoError(t, s.Select(surface.Position{Offset: 1}, surface.Position{Offset: 1}))

		require.NoError(t, s.PasteFile(jpegFile("paste.jpg", 2048)))
		s.WaitUploads()

		assert.Equal(t, `<p>a<img src="https://cdn.finlearn.ru/paste.jpg" alt="" class="`+media.ImageClass+`"/>b</p>`, s.Content())
		assert.Nil(t, s.Dialog())
		assert.Equal(t, 1, rec.count(EventChange))
		assert.Equal(t, s.DocumentId(), up.document)
	})

	t.Run("text file rejected", func(t *testing.T) {
		up := &fakeUploader{}
		s, _ := newSession(t, "<p>ab</p>", up)
		data := []byte("notes")
		err := s.PasteFile(media.File{Name: "notes.txt", ContentType: "text/plain", Size: int64(len(data)), Reader: bytes.NewReader(data)})
		assert.ErrorIs(t, err, apierrors.ErrInvalidFileType)
		assert.Zero(t, up.Calls())
	})

	t.Run("dropped when document replaced", func(t *testing.T) {
		up := &fakeUploader{release: make(chan struct{})}
		s, _ := newSession(t, "<p>ab</p>", up)
		require.NoError(t, s.PasteFile(jpegFile("paste.jpg", 2048)))
		assert.True(t, s.SetValue("<p>other</p>"))
		close(up.release)
		s.WaitUploads()
		assert.Equal(t, "<p>other</p>", s.Content())
	})
}

type memStore struct {
	mu      sync.Mutex
	docs    map[uuid.UUID]string
	saves   int
	saveErr error
}

func (m *memStore) Load(ctx context.Context, id uuid.UUID) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	content, ok := m.docs[id]
	if !ok {
		return "", apierrors.ErrDocumentNotFound
	}
	return content, nil
}

func (m *memStore) Save(ctx context.Context, id uuid.UUID, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.docs[id] = content
	m.saves++
	return nil
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()
	docId := uuid.Must(uuid.NewV4())
	store := &memStore{docs: map[uuid.UUID]string{docId: "<p>Черновик</p>"}}
	var closed []uuid.UUID
	reg := NewRegistry(store, RegistryConfig{
		IdleTimeout: time.Minute,
		OnClose:     func(id uuid.UUID) { closed = append(closed, id) },
	})

	_, err := reg.Open(ctx, uuid.Must(uuid.NewV4()))
	assert.ErrorIs(t, err, apierrors.ErrDocumentNotFound)

	s, err := reg.Open(ctx, docId)
	require.NoError(t, err)
	assert.Equal(t, "<p>Черновик</p>", s.Content())

	got, err := reg.Get(s.Id())
	require.NoError(t, err)
	assert.Same(t, s, got)
	assert.Len(t, reg.ByDocument(docId), 1)

	assert.Zero(t, reg.SaveDirty(ctx))
	require.NoError(t, s.InsertText("Новый "))
	assert.Equal(t, 1, reg.SaveDirty(ctx))
	assert.Equal(t, "<p>Новый Черновик</p>", store.docs[docId])
	assert.Zero(t, reg.SaveDirty(ctx))

	require.NoError(t, s.InsertText("!"))
	assert.Zero(t, reg.CloseIdle(ctx, time.Now()))
	assert.Equal(t, 1, reg.CloseIdle(ctx, time.Now().Add(time.Hour)))
	assert.Equal(t, "<p>Новый !Черновик</p>", store.docs[docId])
	assert.Equal(t, []uuid.UUID{s.Id()}, closed)

	_, err = reg.Get(s.Id())
	assert.ErrorIs(t, err, apierrors.ErrSessionNotFound)
	assert.ErrorIs(t, reg.Close(ctx, s.Id()), apierrors.ErrSessionNotFound)
	assert.Equal(t, 2, store.saves)
}

func TestRegistryKeepsSessionWhenSaveFails(t *testing.T) {
	ctx := context.Background()
	docId := uuid.Must(uuid.NewV4())
	store := &memStore{docs: map[uuid.UUID]string{docId: "<p>Черновик</p>"}}
	var closed []uuid.UUID
	reg := NewRegistry(store, RegistryConfig{
		IdleTimeout: time.Minute,
		OnClose:     func(id uuid.UUID) { closed = append(closed, id) },
	})

	s, err := reg.Open(ctx, docId)
	require.NoError(t, err)
	require.NoError(t, s.InsertText("Несохранённое "))

	store.saveErr = errors.New("db down")
	assert.Zero(t, reg.CloseIdle(ctx, time.Now().Add(time.Hour)))
	assert.Error(t, reg.Close(ctx, s.Id()))
	assert.Empty(t, closed)

	got, err := reg.Get(s.Id())
	require.NoError(t, err)
	assert.True(t, got.Dirty())
	assert.Equal(t, "<p>Несохранённое Черновик</p>", got.Content())
	assert.Equal(t, "<p>Черновик</p>", store.docs[docId])

	store.saveErr = nil
	assert.Equal(t, 1, reg.CloseIdle(ctx, time.Now().Add(time.Hour)))
	assert.Equal(t, "<p>Несохранённое Черновик</p>", store.docs[docId])
	assert.Equal(t, []uuid.UUID{s.Id()}, closed)
	assert.Zero(t, reg.Len())
}
