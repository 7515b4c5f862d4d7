// Пакет предоставляет интерфейс и реализации файлового хранилища для изображений учебных материалов:
// локальный диск и Minio. Загрузка сообщает о прогрессе, чтобы окно вставки изображения показывало процент.
package filestorage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/editor/media"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gofrs/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var ErrNotFound = errors.New("file not found")

type Metadata struct {
	FileName string
}

type FileInfo struct {
	Name        string
	Size        int64
	ContentType string
	CreatedAt   time.Time
}

func (m Metadata) GetMap() map[string]string {
	meta := make(map[string]string)
	if m.FileName != "" {
		meta["filename"] = m.FileName
	}
	return meta
}

type FileStorage interface {
	SaveReader(ctx context.Context, reader io.Reader, fileSize int64, name uuid.UUID, contentType string, metadata *Metadata, progress *media.ProgressReader) error
	LoadReader(ctx context.Context, name uuid.UUID) (io.ReadCloser, error)
	Delete(ctx context.Context, name uuid.UUID) error
	Exist(ctx context.Context, name uuid.UUID) (bool, error)
	GetFileInfo(ctx context.Context, name uuid.UUID) (*FileInfo, error)
}

type LocalStorage struct {
	rootDir string
}

func NewLocalStorage(rootPath string) (FileStorage, error) {
	if err := os.MkdirAll(rootPath, 0755); err != nil {
		return nil, err
	}
	return &LocalStorage{rootPath}, nil
}

func (s *LocalStorage) path(name uuid.UUID) string {
	return filepath.Join(s.rootDir, name.String())
}

func (s *LocalStorage) SaveReader(ctx context.Context, reader io.Reader, fileSize int64, name uuid.UUID, contentType string, metadata *Metadata, progress *media.ProgressReader) error {
	if progress != nil {
		reader = progress.Tee(reader)
	}

	tmp, err := os.CreateTemp(s.rootDir, name.String()+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path(name))
}

func (s *LocalStorage) LoadReader(ctx context.Context, name uuid.UUID) (io.ReadCloser, error) {
	f, err := os.Open(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

func (s *LocalStorage) Delete(ctx context.Context, name uuid.UUID) error {
	err := os.Remove(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (s *LocalStorage) Exist(ctx context.Context, name uuid.UUID) (bool, error) {
	_, err := os.Stat(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

func (s *LocalStorage) GetFileInfo(ctx context.Context, name uuid.UUID) (*FileInfo, error) {
	stat, err := os.Stat(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	// Тип на диске не хранится, определяем по содержимому
	mtype, err := mimetype.DetectFile(s.path(name))
	if err != nil {
		return nil, err
	}

	return &FileInfo{
		Name:        name.String(),
		Size:        stat.Size(),
		ContentType: mtype.String(),
		CreatedAt:   stat.ModTime(),
	}, nil
}

type MinioStorage struct {
	client     *minio.Client
	bucketName string
}

func NewMinioStorage(endpoint string, accessKeyID string, secretAccessKey string, useSSL bool, bucketName string) (FileStorage, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKeyID, secretAccessKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, err
	}

	exists, err := client.BucketExists(context.Background(), bucketName)
	if err != nil {
		return nil, err
	}

	if !exists {
		// Create bucket if not exist
		if err := client.MakeBucket(context.Background(), bucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, err
		}
	}

	return &MinioStorage{client, bucketName}, nil
}

func (s *MinioStorage) SaveReader(ctx context.Context, reader io.Reader, fileSize int64, name uuid.UUID, contentType string, metadata *Metadata, progress *media.ProgressReader) error {
	putOptions := minio.PutObjectOptions{ContentType: contentType}
	if metadata != nil {
		putOptions.UserMetadata = metadata.GetMap()
	}
	if progress != nil {
		putOptions.Progress = progress
	}
	if fileSize <= 0 {
		fileSize = -1
	}

	_, err := s.client.PutObject(ctx,
		s.bucketName,
		name.String(),
		reader,
		fileSize,
		putOptions,
	)
	if err != nil {
		resp := minio.ToErrorResponse(err)
		slog.Error("Upload file to minio", "name", name, "code", resp.StatusCode, "msg", resp.Message, "err", err)
	}
	return err
}

func (s *MinioStorage) LoadReader(ctx context.Context, name uuid.UUID) (io.ReadCloser, error) {
	return s.client.GetObject(ctx,
		s.bucketName,
		name.String(),
		minio.GetObjectOptions{},
	)
}

func (s *MinioStorage) Delete(ctx context.Context, name uuid.UUID) error {
	return s.client.RemoveObject(
		ctx,
		s.bucketName,
		name.String(),
		minio.RemoveObjectOptions{},
	)
}

func (s *MinioStorage) Exist(ctx context.Context, name uuid.UUID) (bool, error) {
	_, err := s.client.StatObject(
		ctx,
		s.bucketName,
		name.String(),
		minio.StatObjectOptions{},
	)
	if err != nil {
		errResponse := minio.ToErrorResponse(err)
		if errResponse.Code == "NoSuchKey" {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *MinioStorage) GetFileInfo(ctx context.Context, name uuid.UUID) (*FileInfo, error) {
	stat, err := s.client.StatObject(ctx, s.bucketName, name.String(), minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &FileInfo{
		Name:        name.String(),
		Size:        stat.Size,
		ContentType: stat.ContentType,
		CreatedAt:   stat.LastModified,
	}, nil
}
