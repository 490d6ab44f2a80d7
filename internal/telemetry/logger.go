package telemetry

import (
	"context"

	"github.com/MarkoPoloResearchLab/unitledger/pkg/ledger"
	"go.uber.org/zap"
)

// ZapOperationLogger writes one structured line per ledger operation.
// Caller mistakes are logged at warn level and unexpected failures at error level.
type ZapOperationLogger struct {
	logger *zap.Logger
}

var _ ledger.OperationLogger = (*ZapOperationLogger)(nil)

// NewZapOperationLogger returns a logger writing to logger, or a no-op logger when nil.
func NewZapOperationLogger(logger *zap.Logger) *ZapOperationLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapOperationLogger{logger: logger}
}

func (operationLogger *ZapOperationLogger) LogOperation(_ context.Context, entry ledger.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("status", entry.Status),
		zap.String("address", entry.Address.String()),
		zap.Int64("amount_cents", entry.Amount.Int64()),
	}
	if entry.Counterparty != "" {
		fields = append(fields, zap.String("counterparty", entry.Counterparty))
	}
	if !entry.Reference.IsZero() {
		fields = append(fields, zap.String("reference", entry.Reference.String()))
	}
	if entry.Channel != "" {
		fields = append(fields, zap.String("channel", entry.Channel))
	}
	if entry.Error == nil {
		operationLogger.logger.Info("ledger operation", fields...)
		return
	}
	kind := ledger.KindOf(entry.Error)
	fields = append(fields, zap.String("kind", string(kind)), zap.Error(entry.Error))
	if kind == ledger.KindUnexpected {
		operationLogger.logger.Error("ledger operation failed", fields...)
		return
	}
	operationLogger.logger.Warn("ledger operation rejected", fields...)
}
