package lineproto

import "log/slog"

// Logger is the interface for structured logging.
// It is designed to be compatible with *slog.Logger from the standard library.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// defaultLogger returns the default slog logger from the standard library.
func defaultLogger() Logger {
	return slog.Default()
}

// withFields returns a Logger that adds the key/value pairs in fields to every record.
// *slog.Logger values use their native With; other loggers are wrapped.
func withFields(logger Logger, fields ...any) Logger {
	if len(fields) == 0 {
		return logger
	}
	if sl, ok := logger.(*slog.Logger); ok {
		return sl.With(fields...)
	}
	return fieldLogger{next: logger, fields: fields}
}

// fieldLogger prepends a fixed set of key/value pairs to each call.
type fieldLogger struct {
	next   Logger
	fields []any
}

func (l fieldLogger) merge(args []any) []any {
	out := make([]any, 0, len(l.fields)+len(args))
	out = append(out, l.fields...)
	return append(out, args...)
}

func (l fieldLogger) Debug(msg string, args ...any) { l.next.Debug(msg, l.merge(args)...) }
func (l fieldLogger) Info(msg string, args ...any)  { l.next.Info(msg, l.merge(args)...) }
func (l fieldLogger) Warn(msg string, args ...any)  { l.next.Warn(msg, l.merge(args)...) }
func (l fieldLogger) Error(msg string, args ...any) { l.next.Error(msg, l.merge(args)...) }
