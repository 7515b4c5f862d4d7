package filestorage

import (
	"context"
	"net/url"

	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/editor/media"
	"github.com/gofrs/uuid"
)

// Uploader сохраняет изображения редактора в хранилище и возвращает ссылку на них
// вида <baseURL>/api/file/<name>/.
type Uploader struct {
	storage FileStorage
	baseURL *url.URL

	// OnSaved вызывается после успешного сохранения, например для записи файла в базу.
	OnSaved func(ctx context.Context, name uuid.UUID, file media.File) error
}

func NewUploader(storage FileStorage, baseURL *url.URL) *Uploader {
	return &Uploader{storage: storage, baseURL: baseURL}
}

func (u *Uploader) Upload(ctx context.Context, file media.File, progress func(percent int)) (string, error) {
	name, err := uuid.NewV4()
	if err != nil {
		return "", err
	}

	pr := media.NewProgressReader(file.Size, progress)
	if err := u.storage.SaveReader(ctx, file.Reader, file.Size, name, file.ContentType, &Metadata{FileName: file.Name}, pr); err != nil {
		return "", err
	}

	if u.OnSaved != nil {
		if err := u.OnSaved(ctx, name, file); err != nil {
			u.storage.Delete(context.WithoutCancel(ctx), name)
			return "", err
		}
	}

	return FileURL(u.baseURL, name), nil
}

// FileURL возвращает публичный адрес файла.
func FileURL(base *url.URL, name uuid.UUID) string {
	return base.JoinPath("api", "file", name.String()).String() + "/"
}
