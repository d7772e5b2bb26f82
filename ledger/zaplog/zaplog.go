// Package zaplog adapts go.uber.org/zap to the ledger.Logger interface.
package zaplog

import (
	"context"

	"go.uber.org/zap"

	"github.com/getcask/ledgerbox/ledger"
)

// Logger implements ledger.Logger on top of a zap logger.
type Logger struct {
	sugar *zap.SugaredLogger
}

var _ ledger.Logger = (*Logger)(nil)

// New wraps the given zap logger.
func New(l *zap.Logger) *Logger {
	return &Logger{
		sugar: l.WithOptions(zap.AddCallerSkip(1)).Sugar(),
	}
}

// Debug implements ledger.Logger.
func (l *Logger) Debug(_ context.Context, msg string, keyvals ...any) {
	l.sugar.Debugw(msg, keyvals...)
}

// Info implements ledger.Logger.
func (l *Logger) Info(_ context.Context, msg string, keyvals ...any) {
	l.sugar.Infow(msg, keyvals...)
}

// Error implements ledger.Logger.
func (l *Logger) Error(_ context.Context, msg string, keyvals ...any) {
	l.sugar.Errorw(msg, keyvals...)
}
