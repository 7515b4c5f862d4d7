// Логирование запросов GORM через slog с выделением медленных запросов.
//
// Основные возможности:
//   - Логирование запросов GORM с использованием slog.
//   - Трассировка медленных запросов, превышающих заданный порог времени.
//   - Отключение подстановки параметров в логируемый SQL.
package gormlogger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	gormLog "gorm.io/gorm/logger"
	"gorm.io/gorm/utils"
)

type GormLogger struct {
	SlowThreshold        time.Duration
	ParameterizedQueries bool
	level                gormLog.LogLevel
	logger               *slog.Logger
}

func NewGormLogger(logger *slog.Logger, slowThreshold time.Duration, paramQueries bool) *GormLogger {
	return &GormLogger{logger: logger, SlowThreshold: slowThreshold, ParameterizedQueries: paramQueries, level: gormLog.Warn}
}

func (gl *GormLogger) LogMode(level gormLog.LogLevel) gormLog.Interface {
	l := *gl
	l.level = level
	return &l
}

func (gl *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if gl.level >= gormLog.Info {
		gl.logger.InfoContext(ctx, fmt.Sprintf(msg, data...), slog.String("file", utils.FileWithLineNum()))
	}
}

func (gl *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if gl.level >= gormLog.Warn {
		gl.logger.WarnContext(ctx, fmt.Sprintf(msg, data...), slog.String("file", utils.FileWithLineNum()))
	}
}

func (gl *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if gl.level >= gormLog.Error {
		gl.logger.ErrorContext(ctx, fmt.Sprintf(msg, data...), slog.String("file", utils.FileWithLineNum()))
	}
}

func (gl *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if gl.level <= gormLog.Silent {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := fc()
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		gl.logger.ErrorContext(ctx, "SQL error",
			slog.String("file", utils.FileWithLineNum()),
			slog.String("elapsed", elapsed.String()),
			slog.Int64("rowsCount", rows),
			slog.String("err", err.Error()),
			slog.String("sql", sql),
		)
	case elapsed > gl.SlowThreshold && gl.SlowThreshold != 0:
		gl.logger.WarnContext(ctx, fmt.Sprintf("SLOW SQL >= %v", gl.SlowThreshold),
			slog.String("file", utils.FileWithLineNum()),
			slog.String("elapsed", elapsed.String()),
			slog.Int64("rowsCount", rows),
			slog.String("sql", sql),
		)
	default:
		gl.logger.DebugContext(ctx, "SQL trace",
			slog.String("file", utils.FileWithLineNum()),
			slog.String("elapsed", elapsed.String()),
			slog.Int64("rowsCount", rows),
			slog.String("sql", sql),
		)
	}
}

func (gl *GormLogger) ParamsFilter(ctx context.Context, sql string, params ...interface{}) (string, []interface{}) {
	if gl.ParameterizedQueries {
		return sql, nil
	}
	return sql, params
}
