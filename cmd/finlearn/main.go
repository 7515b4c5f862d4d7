// Основной пакет сервиса FinLearn. Читает конфигурацию, подключает базу и файловое хранилище,
// применяет миграции и запускает HTTP-сервер редактора.
//
// Пример запуска: go run main.go --trace
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn"
	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/config"
	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/dao"
	filestorage "github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/file-storage"
	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/gormlogger"
)

var version string = "DEV"

func main() {
	paramQueries := flag.Bool("paramQueries", true, "Mask queries params in log")
	noMigration := flag.Bool("noMigration", false, "Turn off DB migration")
	trace := flag.Bool("trace", false, "Verbose logs and sql trace")
	flag.Parse()

	PrintBanner()

	if *trace {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	// Set prod log format
	if version != "DEV" {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{})))
	}

	cfg := config.ReadConfig()

	slog.Info("FinLearn start.")

	db, err := dao.Open(cfg.DatabaseDSN, gormlogger.NewGormLogger(slog.Default(), time.Second*4, *paramQueries))
	if err != nil {
		slog.Error("Fail init DB connection", "err", err)
		os.Exit(1)
	}

	if cfg.UsePostgres() {
		sqlDB, err := db.DB()
		if err != nil {
			slog.Error("Fail set settings to conn pool", "err", err)
			os.Exit(1)
		}
		sqlDB.SetMaxOpenConns(50)
		sqlDB.SetMaxIdleConns(25)
		sqlDB.SetConnMaxLifetime(time.Hour)
		sqlDB.SetConnMaxIdleTime(time.Minute * 15)
	}

	if !*noMigration {
		if err := dao.Migrate(db); err != nil {
			slog.Error("Migration failed", "err", err)
			os.Exit(1)
		}
	}

	var storage filestorage.FileStorage
	if cfg.UseMinio() {
		slog.Info("Use S3 file storage", "endpoint", cfg.AWSEndpoint, "bucket", cfg.AWSBucketName)
		storage, err = filestorage.NewMinioStorage(cfg.AWSEndpoint, cfg.AWSAccessKey, cfg.AWSSecretKey, cfg.AWSUseSSL, cfg.AWSBucketName)
	} else {
		slog.Info("Use local file storage", "path", cfg.LocalStoragePath)
		storage, err = filestorage.NewLocalStorage(cfg.LocalStoragePath)
	}
	if err != nil {
		slog.Error("Fail init file storage", "err", err)
		os.Exit(1)
	}

	if err := finlearn.Server(db, storage, cfg, version); err != nil {
		slog.Error("Server stopped with error", "err", err)
		os.Exit(1)
	}
}

// PrintBanner выводит заголовок приложения с версией.
func PrintBanner() {
	banner := `
  _____ _       _
 |  ___(_)_ __ | |    ___  __ _ _ __ _ __
 | |_  | | '_ \| |   / _ \/ _  | '__| '_ \
 |  _| | | | | | |__|  __/ (_| | |  | | | |
 |_|   |_|_| |_|_____\___|\__,_|_|  |_| |_| %s
Investment lessons editor
----------------------------------------------------
`
	colorReset := "\033[0m"
	colorYellow := "\033[33m"

	formattedVersion := version
	if version == "DEV" {
		formattedVersion = colorYellow + version + colorReset
	}

	fmt.Printf(banner, formattedVersion)
}
