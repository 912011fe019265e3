package log

import (
	"fmt"
	stdlog "log/slog"
	"os"

	"github.com/rs/zerolog"

	"github.com/harvestlab/cropml/pkg/errors"
)

// SetupLogger function setup logger.
func SetupLogger(loglevel string) {
	ops := stdlog.HandlerOptions{
		AddSource: true,
		Level:     ToLogLevel(loglevel),
	}
	handler := stdlog.NewJSONHandler(os.Stdout, &ops)
	errFmtHandler := WrapByErrFmtHandler(handler)
	stdlog.SetDefault(stdlog.New(errFmtHandler))
}

func ToLogLevel(level string) stdlog.Level {
	switch level {
	case "info":
		return stdlog.LevelInfo
	case "debug":
		return stdlog.LevelDebug
	case "warn":
		return stdlog.LevelWarn
	case "error":
		return stdlog.LevelError
	default:
		panic(fmt.Sprintf("invalid log level :%s", level))
	}
}

const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"
)

// ErrAttr is a wrapper to pass err to slog.
func ErrAttr(err error) stdlog.Attr {
	return stdlog.Any(ErrAttrKey, err)
}

// EnableZerologWarnings routes library warnings (see pkg/errors.Warn) through
// a zerolog logger writing to stderr. Warning types implementing
// zerolog.LogObjectMarshaler are emitted as structured objects.
func EnableZerologWarnings() {
	zl := zerolog.New(os.Stderr).With().Timestamp().Logger()
	errors.SetZerologWarnFunc(func(warning error) {
		ev := zl.Warn()
		if obj, ok := warning.(zerolog.LogObjectMarshaler); ok {
			ev = ev.EmbedObject(obj)
		}
		ev.Msg(warning.Error())
	})
}
