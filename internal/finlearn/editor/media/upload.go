package media

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/apierrors"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gofrs/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// MaxUploadSize - предельный размер загружаемого изображения по умолчанию.
const MaxUploadSize int64 = apierrors.UploadMaxSizeMB << 20

// sniffLen - сколько байт читается для определения типа файла.
const sniffLen = 3072

var uploadsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "finlearn",
	Name:      "editor_uploads_total",
	Help:      "Image uploads by outcome",
}, []string{"outcome"})

// Collectors возвращает метрики пакета для регистрации на сервере.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{uploadsCounter}
}

type File struct {
	Name        string
	ContentType string
	Size        int64
	Reader      io.Reader
}

type documentKey struct{}

// WithDocument помечает контекст загрузки документом, в который вставляется файл.
func WithDocument(ctx context.Context, documentId uuid.UUID) context.Context {
	return context.WithValue(ctx, documentKey{}, documentId)
}

// DocumentFromContext возвращает документ, для которого выполняется загрузка.
func DocumentFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(documentKey{}).(uuid.UUID)
	return id, ok
}

// Uploader - внешнее хранилище. Upload возвращает прямую ссылку на загруженный файл,
// progress вызывается с процентом от 0 до 100.
type Uploader interface {
	Upload(ctx context.Context, file File, progress func(percent int)) (string, error)
}

// ValidateUpload проверяет размер и тип файла. Тип определяется по содержимому,
// заявленный тип используется, только если содержимое не распознано.
// После проверки Reader файла читается с начала.
func ValidateUpload(f *File, maxSize int64) error {
	if maxSize <= 0 {
		maxSize = MaxUploadSize
	}
	if f.Size > maxSize {
		return apierrors.ErrUploadTooLarge
	}

	contentType := f.ContentType
	if f.Reader != nil {
		head := make([]byte, sniffLen)
		n, err := io.ReadFull(f.Reader, head)
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
			return err
		}
		head = head[:n]
		f.Reader = io.MultiReader(bytes.NewReader(head), f.Reader)

		if n > 0 {
			if detected := mimetype.Detect(head); !detected.Is("application/octet-stream") {
				contentType = detected.String()
			}
		}
	}

	if !strings.HasPrefix(contentType, "image/") {
		return apierrors.ErrInvalidFileType
	}
	f.ContentType = strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	return nil
}

// Upload проверяет файл и передаёт его хранилищу. Ошибки хранилища сворачиваются в ErrUploadFailed,
// повторных попыток нет.
func Upload(ctx context.Context, up Uploader, f File, maxSize int64, progress func(percent int)) (string, error) {
	if err := ValidateUpload(&f, maxSize); err != nil {
		uploadsCounter.WithLabelValues("rejected").Inc()
		return "", err
	}
	if progress == nil {
		progress = func(int) {}
	}
	progress(0)

	url, err := up.Upload(ctx, f, progress)
	if err != nil {
		uploadsCounter.WithLabelValues("failed").Inc()
		slog.Warn("Upload image", "name", f.Name, "size", f.Size, "err", err)
		return "", apierrors.ErrUploadFailed
	}
	uploadsCounter.WithLabelValues("succeeded").Inc()
	progress(100)
	return NormalizeImageURL(url), nil
}

// ProgressReader считает переданные байты и сообщает процент при каждом изменении.
// Подходит как Progress для minio.PutObjectOptions: клиент читает из него столько байт, сколько отправил.
type ProgressReader struct {
	mu       sync.Mutex
	total    int64
	read     int64
	last     int
	callback func(percent int)
}

func NewProgressReader(total int64, callback func(percent int)) *ProgressReader {
	return &ProgressReader{total: total, last: -1, callback: callback}
}

func (p *ProgressReader) Read(b []byte) (int, error) {
	p.Add(int64(len(b)))
	return len(b), nil
}

func (p *ProgressReader) Add(n int64) {
	p.mu.Lock()
	p.read += n
	percent := 100
	if p.total > 0 && p.read < p.total {
		percent = int(p.read * 100 / p.total)
	}
	changed := percent != p.last
	p.last = percent
	p.mu.Unlock()

	if changed && p.callback != nil {
		p.callback(percent)
	}
}

// Tee возвращает reader, который сообщает о прогрессе по мере чтения из r.
func (p *ProgressReader) Tee(r io.Reader) io.Reader {
	return &teeReader{r: r, p: p}
}

type teeReader struct {
	r io.Reader
	p *ProgressReader
}

func (t *teeReader) Read(b []byte) (int, error) {
	n, err := t.r.Read(b)
	if n > 0 {
		t.p.Add(int64(n))
	}
	return n, err
}
