package economy

import (
	"fmt"

	"github.com/heroiclabs/nakama-common/runtime"
	"go.uber.org/zap"
)

// zapLogger adapts a zap.Logger to runtime.Logger so the systems can run outside the Nakama
// runtime, for example in tools and tests.
type zapLogger struct {
	logger *zap.Logger
	fields map[string]interface{}
}

var _ runtime.Logger = (*zapLogger)(nil)

func NewZapLogger(logger *zap.Logger) runtime.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &zapLogger{logger: logger, fields: map[string]interface{}{}}
}

func (l *zapLogger) Debug(format string, v ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, v...))
}

func (l *zapLogger) Info(format string, v ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, v...))
}

func (l *zapLogger) Warn(format string, v ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, v...))
}

func (l *zapLogger) Error(format string, v ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, v...))
}

func (l *zapLogger) WithField(key string, v interface{}) runtime.Logger {
	return l.WithFields(map[string]interface{}{key: v})
}

func (l *zapLogger) WithFields(fields map[string]interface{}) runtime.Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	zapFields := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		merged[k] = v
		zapFields = append(zapFields, zap.Any(k, v))
	}
	return &zapLogger{logger: l.logger.With(zapFields...), fields: merged}
}

func (l *zapLogger) Fields() map[string]interface{} {
	return l.fields
}
