package logging

import (
	"log"
	"log/slog"
)

// Slog returns a structured logger that honors the current level. It is used
// by libraries that take a *slog.Logger, such as the supervisor event hook.
func Slog() *slog.Logger {
	return slog.New(slog.NewTextHandler(log.Writer(), &slog.HandlerOptions{
		Level: GetLevel().slogLevel(),
	}))
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
