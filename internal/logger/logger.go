// Package logger provides structured, context-aware logging for the session
// pipeline, built on logrus.
package logger

import (
	"context"

	"github.com/sirupsen/logrus"
)

type ctxKey struct{}

// FromContext returns the logger attached to ctx, or the package default.
func FromContext(ctx context.Context) *logrus.Entry {
	if entry, ok := ctx.Value(ctxKey{}).(*logrus.Entry); ok {
		return entry
	}
	return logrus.NewEntry(std)
}

// WithContext attaches fields to ctx and returns the derived context plus
// the entry so callers can keep logging with the same fields.
func WithContext(ctx context.Context, fields logrus.Fields) (context.Context, *logrus.Entry) {
	entry := FromContext(ctx).WithFields(fields)
	return context.WithValue(ctx, ctxKey{}, entry), entry
}

var std = logrus.New()

func init() {
	std.SetFormatter(&logrus.JSONFormatter{})
}

// SetLevel configures the package-level default logger's verbosity.
func SetLevel(level logrus.Level) {
	std.SetLevel(level)
}

func GetLogger(ctx context.Context) *logrus.Entry {
	return FromContext(ctx)
}

func Infof(ctx context.Context, format string, args ...interface{}) {
	FromContext(ctx).Infof(format, args...)
}

func Warnf(ctx context.Context, format string, args ...interface{}) {
	FromContext(ctx).Warnf(format, args...)
}

func Errorf(ctx context.Context, format string, args ...interface{}) {
	FromContext(ctx).Errorf(format, args...)
}

func Debugf(ctx context.Context, format string, args ...interface{}) {
	FromContext(ctx).Debugf(format, args...)
}
