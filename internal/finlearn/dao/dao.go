// Пакет dao содержит модели учебных материалов и методы работы с ними в базе данных.
//
// Основные возможности:
//   - Открытие соединения с Postgres или SQLite и миграция моделей.
//   - Создание и получение материалов.
//   - Загрузка и сохранение содержимого материала для сессий редактора.
//   - Учёт загруженных файлов.
package dao

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/apierrors"
	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/gormlogger"
	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/types"
	"github.com/glebarez/sqlite"
	"github.com/gofrs/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	KindArticle = "article"
	KindLesson  = "lesson"
	KindCourse  = "course"
)

var models = []interface{}{&Document{}, &FileAsset{}}

type Document struct {
	ID uuid.UUID `gorm:"column:id;primaryKey;type:uuid" json:"id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Title   string             `json:"title" validate:"required,max=150"`
	Kind    string             `json:"kind" gorm:"default:article;index"`
	Content types.RedactorHTML `json:"content"`
	Draft   bool               `json:"draft"`

	InlineAttachments []FileAsset `json:"inline_attachments,omitempty" gorm:"foreignKey:DocId"`
}

func (Document) TableName() string { return "documents" }

func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID.IsNil() {
		id, err := uuid.NewV4()
		if err != nil {
			return err
		}
		d.ID = id
	}
	if d.Kind == "" {
		d.Kind = KindArticle
	}
	return nil
}

type FileAsset struct {
	Id        uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	CreatedAt time.Time `json:"created_at"`

	DocId uuid.NullUUID `json:"doc" gorm:"type:uuid;index"`

	Name        string `json:"name" gorm:"index"`
	FileSize    int64  `json:"size"`
	ContentType string `json:"content_type"`
}

func (FileAsset) TableName() string { return "file_assets" }

// ValidKind сообщает, поддерживается ли тип материала.
func ValidKind(kind string) bool {
	switch kind {
	case KindArticle, KindLesson, KindCourse:
		return true
	}
	return false
}

// Open подключается к базе. DSN, начинающийся с postgres, открывает Postgres, иначе это путь к файлу SQLite.
func Open(dsn string, logger *gormlogger.GormLogger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, "postgres") {
		dialector = postgres.New(postgres.Config{DSN: dsn})
	} else {
		dialector = sqlite.Open(dsn)
	}

	cfg := &gorm.Config{TranslateError: true}
	if logger != nil {
		cfg.Logger = logger
	}
	return gorm.Open(dialector, cfg)
}

func Migrate(db *gorm.DB) error {
	slog.Info("Migrate models", "count", len(models))
	return db.AutoMigrate(models...)
}

// DocumentStore хранит материалы. Реализует хранилище сессий редактора.
type DocumentStore struct {
	db *gorm.DB
}

func NewDocumentStore(db *gorm.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

func (s *DocumentStore) Create(ctx context.Context, doc *Document) error {
	doc.Title = strings.TrimSpace(doc.Title)
	if doc.Title == "" {
		return apierrors.ErrDocumentTitle
	}
	if doc.Kind == "" {
		doc.Kind = KindArticle
	}
	if !ValidKind(doc.Kind) {
		return apierrors.ErrDocumentKind.WithFormattedMessage(doc.Kind)
	}
	return s.db.WithContext(ctx).Create(doc).Error
}

func (s *DocumentStore) Get(ctx context.Context, id uuid.UUID) (*Document, error) {
	var doc Document
	if err := s.db.WithContext(ctx).
		Preload("InlineAttachments").
		Where("id = ?", id).
		First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierrors.ErrDocumentNotFound
		}
		return nil, err
	}
	return &doc, nil
}

// Load возвращает содержимое материала.
func (s *DocumentStore) Load(ctx context.Context, id uuid.UUID) (string, error) {
	var doc Document
	if err := s.db.WithContext(ctx).
		Select("id", "content").
		Where("id = ?", id).
		First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", apierrors.ErrDocumentNotFound
		}
		return "", err
	}
	return doc.Content.Body, nil
}

// Save заменяет содержимое материала. Разметка очищается при записи.
func (s *DocumentStore) Save(ctx context.Context, id uuid.UUID, content string) error {
	res := s.db.WithContext(ctx).
		Model(&Document{}).
		Where("id = ?", id).
		Update("content", types.NewRedactorHTML(content))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apierrors.ErrDocumentNotFound
	}
	return nil
}

func (s *DocumentStore) CreateFileAsset(ctx context.Context, asset *FileAsset) error {
	return s.db.WithContext(ctx).Create(asset).Error
}

func (s *DocumentStore) GetFileAsset(ctx context.Context, id uuid.UUID) (*FileAsset, error) {
	var asset FileAsset
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&asset).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierrors.ErrFileNotFound
		}
		return nil, err
	}
	return &asset, nil
}
