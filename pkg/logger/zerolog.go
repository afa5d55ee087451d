package logger

import (
	"io"

	"github.com/rs/zerolog"
)

// ZerologAdapter adapts a zerolog.Logger to Logger.
type ZerologAdapter struct {
	logger zerolog.Logger
}

func NewZerolog(w io.Writer) *ZerologAdapter {
	return &ZerologAdapter{
		logger: zerolog.New(w).With().Timestamp().Logger(),
	}
}

func FromZerolog(l zerolog.Logger) *ZerologAdapter {
	return &ZerologAdapter{logger: l}
}

func (z *ZerologAdapter) Error(msg string, args ...any) {
	z.log(z.logger.Error(), msg, args)
}

func (z *ZerologAdapter) Warn(msg string, args ...any) {
	z.log(z.logger.Warn(), msg, args)
}

func (z *ZerologAdapter) Info(msg string, args ...any) {
	z.log(z.logger.Info(), msg, args)
}

func (z *ZerologAdapter) Debug(msg string, args ...any) {
	z.log(z.logger.Debug(), msg, args)
}

func (z *ZerologAdapter) log(ev *zerolog.Event, msg string, args []any) {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(key, args[i+1])
	}
	ev.Msg(msg)
}
