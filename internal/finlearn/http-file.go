package finlearn

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/dao"
	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/editor/media"
	filestorage "github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/file-storage"
	"github.com/gofrs/uuid"
	"github.com/labstack/echo/v4"
)

// getFile отдаёт загруженное изображение. Имена файлов не меняются, поэтому ETag - это имя файла.
func (s *Services) getFile(c echo.Context) error {
	name, err := uuid.FromString(strings.TrimSuffix(c.Param("fileName"), "/"))
	if err != nil {
		return c.NoContent(http.StatusNotFound)
	}

	ctx := c.Request().Context()
	asset, err := s.store.GetFileAsset(ctx, name)
	if err != nil {
		return c.NoContent(http.StatusNotFound)
	}

	etag := `"` + asset.Id.String() + `"`
	if c.Request().Header.Get("If-None-Match") == etag {
		return c.NoContent(http.StatusNotModified)
	}

	info, err := s.storage.GetFileInfo(ctx, asset.Id)
	if err != nil {
		if errors.Is(err, filestorage.ErrNotFound) {
			return c.NoContent(http.StatusNotFound)
		}
		return EError(c, err)
	}

	r, err := s.storage.LoadReader(ctx, asset.Id)
	if err != nil {
		return EError(c, err)
	}
	defer r.Close()

	c.Response().Header().Set("ETag", etag)
	c.Response().Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	c.Response().Header().Set("Content-Length", fmt.Sprint(info.Size))
	return c.Stream(http.StatusOK, asset.ContentType, r)
}

// recordFileAsset сохраняет в базе сведения о загруженном изображении.
func (s *Services) recordFileAsset(ctx context.Context, name uuid.UUID, file media.File) error {
	asset := dao.FileAsset{
		Id:          name,
		Name:        file.Name,
		FileSize:    file.Size,
		ContentType: file.ContentType,
	}
	if docId, ok := media.DocumentFromContext(ctx); ok {
		asset.DocId = uuid.NullUUID{UUID: docId, Valid: true}
	}
	return s.store.CreateFileAsset(context.WithoutCancel(ctx), &asset)
}
