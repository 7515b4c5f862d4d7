// Пакет превращает ввод автора (адрес или локальный файл) в готовый фрагмент разметки.
//
// Основные возможности:
//   - Нормализация ссылок облачного диска в прямые ссылки на изображение.
//   - Распознавание ссылок Vimeo и YouTube и построение адреса встраиваемого плеера.
//   - Построение фрагментов ссылки, изображения и видео.
//   - Проверка загружаемого файла (тип и размер) до начала загрузки.
//   - Загрузка файла во внешнее хранилище с отчётом о прогрессе.
package media

import (
	"regexp"
	"strings"

	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/apierrors"
)

const driveViewURL = "https://drive.google.com/uc?export=view&id="

var (
	driveFileRegexp = regexp.MustCompile(`/file/d/([a-zA-Z0-9_-]+)`)
	driveOpenRegexp = regexp.MustCompile(`/open\?id=([a-zA-Z0-9_-]+)`)

	vimeoRegexp   = regexp.MustCompile(`^(?:https?://)?(?:www\.)?(?:player\.)?vimeo\.com/(?:video/)?(\d+)`)
	youtubeRegexp = regexp.MustCompile(`^(?:https?://)?(?:www\.|m\.)?(?:youtube\.com/(?:watch\?(?:[^#]*&)?v=|embed/)|youtu\.be/)([a-zA-Z0-9_-]+)`)
)

// NormalizeImageURL переписывает ссылки облачного диска на прямой просмотр файла.
// Остальные адреса возвращаются без изменений.
func NormalizeImageURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if m := driveFileRegexp.FindStringSubmatch(raw); m != nil {
		return driveViewURL + m[1]
	}
	if m := driveOpenRegexp.FindStringSubmatch(raw); m != nil {
		return driveViewURL + m[1]
	}
	return raw
}

// VideoEmbedURL возвращает адрес встраиваемого плеера для ссылок Vimeo и YouTube.
func VideoEmbedURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", apierrors.ErrVideoURLRequired
	}
	if m := vimeoRegexp.FindStringSubmatch(raw); m != nil {
		return "https://player.vimeo.com/video/" + m[1], nil
	}
	if m := youtubeRegexp.FindStringSubmatch(raw); m != nil {
		return "https://www.youtube.com/embed/" + m[1], nil
	}
	return "", apierrors.ErrInvalidVideoURL
}
