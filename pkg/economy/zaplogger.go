package economy

import (
	"context"

	"go.uber.org/zap"
)

type zapOperationLogger struct {
	logger *zap.Logger
}

// NewZapOperationLogger adapts a zap logger to OperationLogger. Failed operations log at Warn.
func NewZapOperationLogger(logger *zap.Logger) OperationLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &zapOperationLogger{logger: logger}
}

func (adapter *zapOperationLogger) LogOperation(_ context.Context, entry OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("status", entry.Status),
		zap.String("sender", entry.Sender.String()),
	}
	if entry.Digest != "" {
		fields = append(fields, zap.String("digest", entry.Digest))
	}
	if entry.IdempotencyKey != "" {
		fields = append(fields, zap.String("idempotency_key", entry.IdempotencyKey))
	}
	if entry.Amount != 0 {
		fields = append(fields, zap.Uint64("amount", entry.Amount.Uint64()))
	}
	if entry.ObjectID != "" {
		fields = append(fields, zap.String("object_id", entry.ObjectID.String()))
	}
	if entry.Replayed {
		fields = append(fields, zap.Bool("replayed", true))
	}
	if entry.Error != nil {
		adapter.logger.Warn("ledger operation failed", append(fields, zap.Error(entry.Error))...)
		return
	}
	adapter.logger.Info("ledger operation", fields...)
}
