package goroutine

import (
	"context"
	"runtime/debug"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/marketplace-backend/internal/logger"
)

// Logger интерфейс для логирования ошибок
type Logger interface {
	WithFields(fields logrus.Fields) *logrus.Entry
}

// RecoveryHandler обрабатывает panic в горутинах
type RecoveryHandler struct {
	logger Logger
}

func NewRecoveryHandler(logger Logger) *RecoveryHandler {
	return &RecoveryHandler{logger: logger}
}

// SafeGo запускает горутину с обработкой panic
func (rh *RecoveryHandler) SafeGo(name string, fn func()) {
	go func() {
		defer rh.recover(name)
		fn()
	}()
}

// SafeGoWithContext запускает горутину с контекстом и обработкой panic
func (rh *RecoveryHandler) SafeGoWithContext(ctx context.Context, name string, fn func(context.Context)) {
	go func() {
		defer rh.recover(name)
		fn(ctx)
	}()
}

func (rh *RecoveryHandler) recover(name string) {
	if r := recover(); r != nil {
		rh.logger.WithFields(logrus.Fields{
			"goroutine": name,
			"panic":     r,
			"stack":     string(debug.Stack()),
		}).Error("panic в горутине")
	}
}

// SafeGo запускает горутину через глобальный логгер
func SafeGo(name string, fn func()) {
	NewRecoveryHandler(logger.Log).SafeGo(name, fn)
}

// SafeGoWithContext - то же с контекстом
func SafeGoWithContext(ctx context.Context, name string, fn func(context.Context)) {
	NewRecoveryHandler(logger.Log).SafeGoWithContext(ctx, name, fn)
}
