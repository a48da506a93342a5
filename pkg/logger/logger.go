package logger

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var InfoLogger, FatalLogger *zap.Logger

var (
	serviceName = "default"
	nop         = zap.NewNop()
	debugOn     atomic.Bool
)

func SetServiceName(newName string) string {
	oldName := serviceName
	serviceName = newName

	return oldName
}

// Init собирает zap-логгеры. level: debug|info|warn|error.
func Init(level string, jsonOutput bool) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("parse log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	if !jsonOutput {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}

	InfoLogger = l
	FatalLogger = l
	debugOn.Store(lvl <= zapcore.DebugLevel)
	return nil
}

// Sync сбрасывает буферы, вызывается на остановке.
func Sync() {
	if InfoLogger != nil {
		_ = InfoLogger.Sync()
	}
}

// в тестах логгер не инициализирован — пишем в никуда
func base() *zap.Logger {
	if InfoLogger == nil {
		return nop
	}
	return InfoLogger.With(zap.String("service", serviceName))
}

func Debug(format string, args ...interface{}) {
	if !debugOn.Load() {
		return
	}
	base().Debug(fmt.Sprintf(format, args...))
}

func Info(format string, args ...interface{}) {
	base().Info(fmt.Sprintf(format, args...))
}

func Warn(format string, args ...interface{}) {
	base().Warn(fmt.Sprintf(format, args...))
}

func Error(format string, args ...interface{}) {
	base().Error(fmt.Sprintf(format, args...))
}

func Fatal(format string, args ...interface{}) {
	if FatalLogger == nil {
		panic("FatalLogger is not initialized")
	}

	msg := fmt.Sprintf(format, args...)
	FatalLogger.With(
		zap.String("service", serviceName),
	).Fatal(msg)
}
