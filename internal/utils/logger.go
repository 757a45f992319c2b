package utils

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	loggerMu sync.RWMutex
	logger   = zerolog.New(os.Stdout).With().Timestamp().Logger()
)

// InitLogger configures the global logger. Output always goes to stdout so the
// Lambda runtime forwards it to CloudWatch; when file is set it is additionally
// written to a rotated log file.
func InitLogger(file string, maxSizeMB, maxBackups, maxAgeDays int, compress bool, level string) {
	var out io.Writer = os.Stdout
	if file != "" {
		out = zerolog.MultiLevelWriter(os.Stdout, &lumberjack.Logger{
			Filename:   file,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
			Compress:   compress,
		})
	}

	l := zerolog.New(out).With().Timestamp().Logger().Level(parseLevel(level))

	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()
}

// SetLogLevel changes the level of the global logger. Unknown levels fall back to info.
func SetLogLevel(level string) {
	loggerMu.Lock()
	logger = logger.Level(parseLevel(level))
	loggerMu.Unlock()
}

// SetLoggerForTest replaces the global logger.
func SetLoggerForTest(l zerolog.Logger) {
	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()
}

func parseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// Debug logs a message with key/value pairs at debug level.
func Debug(msg string, kv ...any) { log(zerolog.DebugLevel, msg, kv) }

// Info logs a message with key/value pairs at info level.
func Info(msg string, kv ...any) { log(zerolog.InfoLevel, msg, kv) }

// Warn logs a message with key/value pairs at warn level.
func Warn(msg string, kv ...any) { log(zerolog.WarnLevel, msg, kv) }

// Error logs a message with key/value pairs at error level.
func Error(msg string, kv ...any) { log(zerolog.ErrorLevel, msg, kv) }

func log(level zerolog.Level, msg string, kv []any) {
	loggerMu.RLock()
	l := logger
	loggerMu.RUnlock()

	ev := l.WithLevel(level)
	if ev == nil {
		return
	}
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		switch v := kv[i+1].(type) {
		case error:
			ev = ev.AnErr(key, v)
		default:
			ev = ev.Interface(key, v)
		}
	}
	if len(kv)%2 == 1 {
		ev = ev.Interface("extra", kv[len(kv)-1])
	}
	ev.Msg(msg)
}
