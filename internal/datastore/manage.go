package datastore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/joelefrain/gura-forge/internal/logging"
)

// DefaultSlowQueryThreshold marks queries slower than this for warning-level
// logging. Batch inserts of long sample series routinely take hundreds of
// milliseconds, so the threshold sits above those.
const DefaultSlowQueryThreshold = 1 * time.Second

var dbLogger = func() *slog.Logger { return logging.ForService("datastore") }

// slogGormLogger adapts gorm's logger interface onto the structured logger.
type slogGormLogger struct {
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

func createGormLogger() gormlogger.Interface {
	return &slogGormLogger{
		level:         gormlogger.Warn,
		slowThreshold: DefaultSlowQueryThreshold,
	}
}

func (l *slogGormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *slogGormLogger) Info(_ context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Info {
		dbLogger().Info(fmt.Sprintf(msg, args...))
	}
}

func (l *slogGormLogger) Warn(_ context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Warn {
		dbLogger().Warn(fmt.Sprintf(msg, args...))
	}
}

func (l *slogGormLogger) Error(_ context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Error {
		dbLogger().Error(fmt.Sprintf(msg, args...))
	}
}

func (l *slogGormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && l.level >= gormlogger.Error:
		sql, rows := fc()
		dbLogger().Error("query failed",
			"sql", sql, "rows", rows, "elapsed", elapsed, "error", err)
	case elapsed > l.slowThreshold && l.level >= gormlogger.Warn:
		sql, rows := fc()
		dbLogger().Warn("slow query",
			"sql", sql, "rows", rows, "elapsed", elapsed,
			"threshold", l.slowThreshold)
	case l.level >= gormlogger.Info:
		sql, rows := fc()
		dbLogger().Debug("query", "sql", sql, "rows", rows, "elapsed", elapsed)
	}
}

// performAutoMigration creates or updates the schema for every persisted
// entity.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(
		&SeismicStation{},
		&SeismicEvent{},
		&AccelerationRecord{},
		&AccelerationSample{},
		&FilterDefinition{},
		&ProcessedAccelerationRecord{},
		&ProcessedAccelerationSample{},
		&FourierSpectrum{},
		&FourierResponseSpectrum{},
		&ResponseSpectrum{},
		&VelocityDisplacementSpectrum{},
		&SpectralRatio{},
		&SpectralParameters{},
		&CoherenceSpectrum{},
		&SpectralStability{},
	); err != nil {
		return fmt.Errorf("failed to auto-migrate %s database: %w", dbType, err)
	}

	if debug {
		dbLogger().Debug("schema migration complete",
			"db_type", dbType, "connection", connectionInfo)
	}
	return nil
}
