package logx

import (
	"io"
	"os"

	"github.com/aegis-safety/intake/internal/core"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var DefaultLoggerOpts = &LoggerOpts{
	Environment: core.Development,
	Service:     "intake",
}

type LoggerOpts struct {
	Environment core.Environment
	// Service is attached to every event as "service".
	Service string
	// Output overrides stdout/console; used by tests.
	Output io.Writer
}

func safe(opts ...LoggerOpts) *LoggerOpts {
	if len(opts) == 0 {
		return DefaultLoggerOpts
	}
	return &opts[0]
}

func Init(opts ...LoggerOpts) {
	o := safe(opts...)
	service := o.Service
	if service == "" {
		service = DefaultLoggerOpts.Service
	}

	if o.Environment.IsProduction() {
		var out io.Writer = os.Stdout
		if o.Output != nil {
			out = o.Output
		}
		log.Logger = zerolog.New(out).With().Timestamp().Str("service", service).Logger().Level(zerolog.InfoLevel)
		return
	}

	var out io.Writer = zerolog.NewConsoleWriter()
	if o.Output != nil {
		out = o.Output
	}
	log.Logger = zerolog.New(out).With().Timestamp().Caller().Str("service", service).Logger().Level(zerolog.DebugLevel)
}

func Debug() *zerolog.Event {
	return log.Debug()
}

func Info() *zerolog.Event {
	return log.Info()
}

func Warn() *zerolog.Event {
	return log.Warn()
}

func Error() *zerolog.Event {
	return log.Error()
}

func Panic() *zerolog.Event {
	return log.Panic()
}

func Fatal() *zerolog.Event {
	return log.Fatal()
}
