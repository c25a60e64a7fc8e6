package log

import (
	"fmt"
	"io"
	"os"
	"path"
	"runtime"
	"strings"
	"sync"
	"time"

	formatter "github.com/antonfisher/nested-logrus-formatter"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logger *logrus.Logger
	once   sync.Once
)

const RequestIDKey = "request_id"

type Fields = logrus.Fields

// NewLogger returns the process-wide logger. The rotating file sink is skipped
// when APP_ENV=test so tests never touch ./storage.
func NewLogger() *logrus.Logger {
	once.Do(func() {
		logger = logrus.New()

		level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
		if err != nil {
			level = logrus.DebugLevel
		}
		logger.SetLevel(level)

		logger.SetFormatter(&formatter.Formatter{
			NoColors:        os.Getenv("APP_ENV") == "production",
			TimestampFormat: "02 Jan 06 - 15:04",
			HideKeys:        false,
			CallerFirst:     true,
			CustomCallerFormatter: func(f *runtime.Frame) string {
				s := strings.Split(f.Function, ".")
				funcName := s[len(s)-1]
				return fmt.Sprintf(" \x1b[%dm[%s:%d][%s()]", 34, path.Base(f.File), f.Line, funcName)
			},
		})

		writers := []io.Writer{os.Stderr}

		if os.Getenv("APP_ENV") != "test" {
			writers = append(writers, &lumberjack.Logger{
				Filename:   fmt.Sprintf("./storage/logs/battery-web-%s.log", time.Now().Format("2006-01-02")),
				LocalTime:  true,
				Compress:   true,
				MaxSize:    50,
				MaxAge:     7,
				MaxBackups: 3,
			})
		}

		logger.SetOutput(io.MultiWriter(writers...))
		logger.SetReportCaller(true)
	})

	return logger
}

func Info(fields Fields, msg string) {
	entry(fields).Info(msg)
}

func Warn(fields Fields, msg string) {
	entry(fields).Warn(msg)
}

func Error(fields Fields, msg string) {
	entry(fields).Error(msg)
}

// ErrorWithTraceID logs at error level and returns the id under which the
// entry can be found: the request id when present, a fresh uuid otherwise.
func ErrorWithTraceID(fields Fields, msg string) string {
	if fields == nil {
		fields = Fields{}
	}

	traceID, _ := fields[RequestIDKey].(string)
	if traceID == "" || traceID == "unknown" {
		id, err := uuid.NewRandom()
		if err != nil {
			traceID = "unknown"
		} else {
			traceID = id.String()
		}
	}

	fields["trace_id"] = traceID
	entry(fields).Error(msg)

	return traceID
}

func entry(fields Fields) *logrus.Entry {
	if fields == nil {
		fields = Fields{}
	}
	return NewLogger().WithFields(fields)
}
