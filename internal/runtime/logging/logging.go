// Package logging defines the minimal structured logging contract used across
// the eventspine runtime and bridges it to Watermill's LoggerAdapter so the
// queue machinery and the pipeline components share one logger.
package logging

import (
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
)

// LogFields represents structured key/value pairs attached to a log line.
type LogFields map[string]any

// ServiceLogger is the logging contract required by eventspine components.
// It maps directly onto Watermill's logging needs so applications can adapt
// their existing loggers without depending on slog.
type ServiceLogger interface {
	With(fields LogFields) ServiceLogger
	Debug(msg string, fields LogFields)
	Info(msg string, fields LogFields)
	Warn(msg string, fields LogFields)
	Error(msg string, err error, fields LogFields)
}

// NewSlogLogger wraps a slog.Logger so it satisfies ServiceLogger.
func NewSlogLogger(log *slog.Logger) ServiceLogger {
	if log == nil {
		panic("eventspine: slog logger cannot be nil")
	}
	return &slogLogger{inner: log}
}

type slogLogger struct {
	inner *slog.Logger
}

func (l *slogLogger) With(fields LogFields) ServiceLogger {
	return &slogLogger{inner: l.inner.With(toArgs(fields)...)}
}

func (l *slogLogger) Debug(msg string, fields LogFields) {
	l.inner.Debug(msg, toArgs(fields)...)
}

func (l *slogLogger) Info(msg string, fields LogFields) {
	l.inner.Info(msg, toArgs(fields)...)
}

func (l *slogLogger) Warn(msg string, fields LogFields) {
	l.inner.Warn(msg, toArgs(fields)...)
}

func (l *slogLogger) Error(msg string, err error, fields LogFields) {
	args := toArgs(fields)
	if err != nil {
		args = append(args, "error", err)
	}
	l.inner.Error(msg, args...)
}

func toArgs(fields LogFields) []any {
	if len(fields) == 0 {
		return nil
	}
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return args
}

// NewWatermillLogger wraps an existing Watermill LoggerAdapter so it can back
// a ServiceLogger.
func NewWatermillLogger(logger watermill.LoggerAdapter) ServiceLogger {
	if logger == nil {
		panic("eventspine: watermill logger cannot be nil")
	}
	return &watermillLogger{inner: logger}
}

type watermillLogger struct {
	inner watermill.LoggerAdapter
}

func (w *watermillLogger) With(fields LogFields) ServiceLogger {
	return &watermillLogger{inner: w.inner.With(watermill.LogFields(fields))}
}

func (w *watermillLogger) Debug(msg string, fields LogFields) {
	w.inner.Debug(msg, watermill.LogFields(fields))
}

func (w *watermillLogger) Info(msg string, fields LogFields) {
	w.inner.Info(msg, watermill.LogFields(fields))
}

// Watermill adapters have no warn level; warnings degrade to info with a
// marker field so they stay visible.
func (w *watermillLogger) Warn(msg string, fields LogFields) {
	enriched := watermill.LogFields(fields).Add(watermill.LogFields{"level": "warn"})
	w.inner.Info(msg, enriched)
}

func (w *watermillLogger) Error(msg string, err error, fields LogFields) {
	w.inner.Error(msg, err, watermill.LogFields(fields))
}

// NewWatermillAdapter converts a ServiceLogger into a Watermill LoggerAdapter
// so the router and transports reuse the same logger abstraction.
func NewWatermillAdapter(log ServiceLogger) watermill.LoggerAdapter {
	if log == nil {
		panic("eventspine: ServiceLogger cannot be nil")
	}
	return &loggerAdapter{base: log}
}

type loggerAdapter struct {
	base ServiceLogger
}

func (a *loggerAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.base.Error(msg, err, LogFields(fields))
}

func (a *loggerAdapter) Info(msg string, fields watermill.LogFields) {
	a.base.Info(msg, LogFields(fields))
}

func (a *loggerAdapter) Debug(msg string, fields watermill.LogFields) {
	a.base.Debug(msg, LogFields(fields))
}

func (a *loggerAdapter) Trace(msg string, fields watermill.LogFields) {
	a.base.Debug(msg, LogFields(fields))
}

func (a *loggerAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &loggerAdapter{base: a.base.With(LogFields(fields))}
}
