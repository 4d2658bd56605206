package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	FieldOffer    = "offer_id"
	FieldRun      = "run_id"
	FieldSignal   = "signal"
	FieldProvider = "provider"
	FieldModel    = "model"
)

// Offer returns the structured field identifying an offer
func Offer(id int64) zap.Field {
	return zap.Int64(FieldOffer, id)
}

// Run returns the structured field identifying a pipeline run
func Run(id string) zap.Field {
	return zap.String(FieldRun, id)
}

// Service returns provider and model fields, omitting empty values
func Service(provider, model string) []zap.Field {
	fields := make([]zap.Field, 0, 2)
	if p := strings.TrimSpace(provider); p != "" {
		fields = append(fields, zap.String(FieldProvider, p))
	}
	if m := strings.TrimSpace(model); m != "" {
		fields = append(fields, zap.String(FieldModel, m))
	}
	return fields
}

// WithService attaches provider and model fields to l. A nil l yields a no-op logger.
func WithService(l *zap.Logger, provider, model string) *zap.Logger {
	l = OrNop(l)
	fields := Service(provider, model)
	if len(fields) == 0 {
		return l
	}
	return l.With(fields...)
}
