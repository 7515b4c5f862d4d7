// Пакет finlearn - HTTP-сервис редактора учебных материалов по инвестициям. Редактор работает на сервере:
// браузер передаёт действия автора в сессию редактирования и получает изменения по вебсокету.
//
// Основные возможности:
//   - Материалы: создание, сохранение, статистика, импорт и экспорт Markdown.
//   - Сессии редактора: ввод, команды, окна вставки, загрузка изображений, режимы просмотра.
//   - Опубликованные страницы материалов.
//   - Автосохранение открытых сессий и закрытие неактивных по расписанию.
//   - Метрики Prometheus.
package finlearn

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/config"
	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/cronmanager"
	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/dao"
	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/editor/media"
	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/editor/session"
	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/events"
	filestorage "github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/file-storage"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

//go:generate go run ../../cmd/docsgen/main.go -src apierrors/apierrors.go -out ../../docs/api_errors.md

type Services struct {
	db       *gorm.DB
	cfg      *config.Config
	store    *dao.DocumentStore
	storage  filestorage.FileStorage
	registry *session.Registry
	hub      *events.Hub
	version  string
}

// ServerHeader middleware adds a `Server` header to the response.
func ServerHeader(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Set(echo.HeaderServer, "FinLearn")
		return next(c)
	}
}

func NewServices(db *gorm.DB, storage filestorage.FileStorage, cfg *config.Config, version string) *Services {
	s := &Services{
		db:      db,
		cfg:     cfg,
		store:   dao.NewDocumentStore(db),
		storage: storage,
		hub:     events.NewHub(cfg.WebURL.Host),
		version: version,
	}

	uploader := filestorage.NewUploader(storage, cfg.WebURL)
	uploader.OnSaved = s.recordFileAsset

	s.registry = session.NewRegistry(s.store, session.RegistryConfig{
		Uploader:      uploader,
		MaxUploadSize: cfg.UploadMaxSize(),
		IdleTimeout:   cfg.SessionIdleTimeout(),
		OnEvent:       s.hub.Publish,
		OnClose:       s.hub.CloseSession,
	})
	return s
}

// Jobs возвращает периодические задачи сервиса.
func (s *Services) Jobs() cronmanager.JobRegistry {
	return cronmanager.JobRegistry{
		"autosave": cronmanager.Job{
			Func: func() {
				if n := s.registry.SaveDirty(context.Background()); n > 0 {
					slog.Info("Autosave documents", "count", n)
				}
			},
			Schedule: s.cfg.AutosaveSchedule,
		},
		"idle_sessions_close": cronmanager.Job{
			Func: func() {
				if n := s.registry.CloseIdle(context.Background(), time.Now()); n > 0 {
					slog.Info("Close idle editing sessions", "count", n)
				}
			},
			Schedule: "@every 1m",
		},
	}
}

// Echo собирает HTTP-сервер со всеми обработчиками.
func (s *Services) Echo() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
		}

		// Ignore 404
		if code == http.StatusNotFound {
			c.NoContent(http.StatusNotFound)
			return
		}
		slog.Error("Unhandled error in endpoint", "url", c.Request().URL, "err", err)
		EErrorMsgStatus(c, err, code)
	}

	// Global middlewares
	e.Use(ServerHeader)
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{s.cfg.WebURL.Scheme + "://" + s.cfg.WebURL.Host},
		AllowCredentials: true,
	}))
	e.Use(middleware.BodyLimitWithConfig(middleware.BodyLimitConfig{
		Limit: "1M",
		Skipper: func(c echo.Context) bool {
			return strings.HasSuffix(c.Path(), "/dialog/upload/") ||
				strings.HasSuffix(c.Path(), "/paste/")
		},
	}))
	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level:     5,
		MinLength: 2048,
		Skipper: func(c echo.Context) bool {
			return strings.HasSuffix(c.Path(), "/ws/") ||
				strings.HasPrefix(c.Path(), "/api/file/")
		},
	}))
	if s.cfg.MetricsEnable {
		e.Use(echoprometheus.NewMiddleware("finlearn"))
	}
	e.Pre(middleware.AddTrailingSlash())

	e.Validator = NewRequestValidator()

	apiGroup := e.Group("/api/")

	s.AddDocumentServices(apiGroup)
	s.AddSessionServices(apiGroup)

	// Version endpoint
	apiGroup.GET("version/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"version":       s.version,
			"upload_max_mb": s.cfg.UploadMaxSizeMB,
		})
	})

	// Health endpoint
	apiGroup.GET("_health/", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	if s.cfg.MetricsEnable {
		apiGroup.GET("metrics/", echoprometheus.NewHandler())
	}

	apiGroup.GET("file/:fileName/", s.getFile)

	// Published documents
	e.GET("/d/:docId/", s.publishedPage)

	// Front handler
	if s.cfg.FrontFilesPath != "" {
		slog.Info("Start front routing")
		e.Use(middleware.StaticWithConfig(middleware.StaticConfig{
			Root:  s.cfg.FrontFilesPath,
			HTML5: true,
			Skipper: func(c echo.Context) bool {
				return strings.HasPrefix(c.Request().URL.Path, "/api/") ||
					strings.HasPrefix(c.Request().URL.Path, "/d/")
			},
		}))
	}

	return e
}

// RegisterMetrics регистрирует метрики редактора и время запуска.
func RegisterMetrics() error {
	bootTimeGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "finlearn",
		Name:      "boot_time",
		Help:      "Server startup time",
	})
	bootTimeGauge.Set(float64(time.Now().UnixMilli()))

	collectors := []prometheus.Collector{bootTimeGauge}
	collectors = append(collectors, media.Collectors()...)
	collectors = append(collectors, session.Collectors()...)
	for _, c := range collectors {
		if err := prometheus.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Server запускает HTTP-сервер и периодические задачи и блокируется до сигнала остановки.
// При остановке все открытые сессии сохраняются.
func Server(db *gorm.DB, storage filestorage.FileStorage, cfg *config.Config, version string) error {
	s := NewServices(db, storage, cfg, version)

	if cfg.MetricsEnable {
		if err := RegisterMetrics(); err != nil {
			return err
		}
	}

	cronManager := cronmanager.NewCronManager(s.Jobs())
	if err := cronManager.LoadJobs(); err != nil {
		return err
	}
	cronManager.Start()

	e := s.Echo()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := e.Start(":8080"); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server fail", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down gracefully, press Ctrl+C again to force")
	stop()

	cronManager.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s.registry.CloseAll(shutdownCtx)
	return e.Shutdown(shutdownCtx)
}
