// Управление конфигурацией сервиса finlearn из переменных окружения.
// Содержит структуру Config для хранения параметров и функцию ReadConfig для их загрузки.
//
// Основные возможности:
//   - Загрузка конфигурации из переменных окружения с использованием тегов struct.
//   - Валидация обязательных переменных (WEB_URL).
//   - Преобразование типов данных из переменных окружения (string, int, bool).
//   - Маскировка секретных значений в логах.
//   - Значения по умолчанию для лимита загрузки, таймаута сессий и расписания автосохранения.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"reflect"
	"strings"
	"time"
)

const (
	DefaultUploadMaxSizeMB    = 5
	DefaultSessionIdleMinutes = 30
	DefaultAutosaveSchedule   = "@every 1m"
	DefaultDatabaseDSN        = "finlearn.db"
	DefaultLocalStoragePath   = "uploads"
)

type Config struct {
	AWSAccessKey  string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretKey  string `env:"AWS_SECRET_ACCESS_KEY"`
	AWSEndpoint   string `env:"AWS_S3_ENDPOINT_URL"`
	AWSBucketName string `env:"AWS_S3_BUCKET_NAME"`
	AWSUseSSL     bool   `env:"AWS_S3_USE_SSL"`

	LocalStoragePath string `env:"LOCAL_STORAGE_PATH"`

	DatabaseDSN string `env:"DATABASE_URL"`

	WebURLRaw string `env:"WEB_URL"`
	WebURL    *url.URL

	FrontFilesPath string `env:"FRONT_PATH"`

	UploadMaxSizeMB    int    `env:"UPLOAD_MAX_SIZE_MB"`
	SessionIdleMinutes int    `env:"SESSION_IDLE_MINUTES"`
	AutosaveSchedule   string `env:"AUTOSAVE_SCHEDULE"`

	MetricsEnable bool `env:"METRICS_ENABLE"`
}

// ReadConfig загружает конфигурацию из переменных окружения. Если WEB_URL не задан или некорректен,
// приложение завершает работу с ошибкой.
func ReadConfig() *Config {
	config, err := Load()
	if err != nil {
		slog.Error("Read config", "err", err)
		os.Exit(1)
	}
	return config
}

// Load читает и проверяет конфигурацию, не завершая процесс.
func Load() (*Config, error) {
	config := &Config{}

	envConfig("env", config)

	// Check required envs
	if config.WebURLRaw == "" {
		return nil, errors.New("WEB_URL is required")
	}
	var err error
	config.WebURL, err = url.Parse(config.WebURLRaw)
	if err != nil {
		return nil, fmt.Errorf("WEB_URL incorrect: %w", err)
	}

	if config.DatabaseDSN == "" {
		config.DatabaseDSN = DefaultDatabaseDSN
	}
	if config.AWSEndpoint == "" && config.LocalStoragePath == "" {
		config.LocalStoragePath = DefaultLocalStoragePath
	}
	if config.UploadMaxSizeMB <= 0 {
		config.UploadMaxSizeMB = DefaultUploadMaxSizeMB
	}
	if config.SessionIdleMinutes <= 0 {
		config.SessionIdleMinutes = DefaultSessionIdleMinutes
	}
	if config.AutosaveSchedule == "" {
		config.AutosaveSchedule = DefaultAutosaveSchedule
	}

	return config, nil
}

// UseMinio сообщает, настроено ли S3-совместимое хранилище.
func (c *Config) UseMinio() bool {
	return c.AWSEndpoint != ""
}

// UsePostgres сообщает, указывает ли DATABASE_URL на Postgres. Иначе это путь к файлу SQLite.
func (c *Config) UsePostgres() bool {
	return strings.HasPrefix(c.DatabaseDSN, "postgres")
}

func (c *Config) UploadMaxSize() int64 {
	return int64(c.UploadMaxSizeMB) << 20
}

func (c *Config) SessionIdleTimeout() time.Duration {
	return time.Duration(c.SessionIdleMinutes) * time.Minute
}

// Присваивает полям в переданной структуре значения переменных. Название переменной для каждого поля лежит в теге этого поля.
func envConfig(key string, s interface{}) {
	v := reflect.ValueOf(s).Elem()
	typeParam := v.Type()
	for i := 0; i < v.NumField(); i++ {
		fName := typeParam.Field(i).Name
		fEnvTag := typeParam.Field(i).Tag.Get(key)

		if fEnvTag == "" || !Exist(fEnvTag) {
			continue
		}

		logValue := GetEnv(fEnvTag)
		if logValue == "" {
			continue
		}

		if isSecret(fName) {
			logValue = mask(logValue)
		}
		slog.Info("Set config value",
			slog.String("key", typeParam.Name()+"."+fName),
			slog.String("value", logValue),
			slog.String("source", "ENVIRONMENT"),
		)

		switch v.Field(i).Interface().(type) {
		case string:
			v.Field(i).SetString(GetEnv(fEnvTag))
		case int:
			v.Field(i).SetInt(int64(GetIntEnv(fEnvTag)))
		case bool:
			v.Field(i).SetBool(GetBoolEnv(fEnvTag))
		}
	}
}

func isSecret(field string) bool {
	field = strings.ToLower(field)
	return strings.Contains(field, "pass") || strings.Contains(field, "secret") || strings.Contains(field, "token")
}

// mask оставляет видимыми первый и последний символы значения.
func mask(value string) string {
	runes := []rune(value)
	if len(runes) <= 2 {
		return strings.Repeat("*", len(runes))
	}
	return string(runes[0]) + strings.Repeat("*", len(runes)-2) + string(runes[len(runes)-1])
}
