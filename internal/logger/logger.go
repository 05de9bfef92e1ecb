package logger

import (
	"io"
	"os"
	"time"

	"github.com/natefinch/lumberjack"
	logrus "github.com/sirupsen/logrus"
	gormlogger "gorm.io/gorm/logger"
)

// Setup initializes Logrus to write to stdout and a rotating file.
// The returned writer is shared with the HTTP access logger.
func Setup(file string, level logrus.Level) io.Writer {
	rotator := &lumberjack.Logger{
		Filename:   file,
		MaxSize:    10, // megabytes
		MaxBackups: 7,
		MaxAge:     7, // days
		Compress:   true,
	}
	out := io.MultiWriter(os.Stdout, rotator)

	logrus.SetOutput(out)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	logrus.SetLevel(level)
	return out
}

// GormLogger routes GORM's SQL logging through logrus. SQL statements are
// only traced when the application runs at debug level.
func GormLogger(level logrus.Level) gormlogger.Interface {
	gormLevel := gormlogger.Warn
	switch {
	case level >= logrus.DebugLevel:
		gormLevel = gormlogger.Info
	case level <= logrus.ErrorLevel:
		gormLevel = gormlogger.Error
	}
	return gormlogger.New(logrus.StandardLogger(), gormlogger.Config{
		SlowThreshold:             500 * time.Millisecond,
		LogLevel:                  gormLevel,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}
