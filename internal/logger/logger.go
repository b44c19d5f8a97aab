package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"tenantbot/internal/config"
)

// New builds the process logger. Every core is wrapped so message bodies,
// codes and credentials never reach the output.
func New(cfg *config.Config) (*zap.Logger, error) {
	var logConfig zap.Config
	if cfg.IsProduction() || cfg.Log.Format == "json" {
		logConfig = zap.NewProductionConfig()
	} else {
		logConfig = zap.NewDevelopmentConfig()
		logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		level = zapcore.InfoLevel
	}
	logConfig.Level.SetLevel(level)

	log, err := logConfig.Build(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return NewPrivacyCore(core)
	}))
	if err != nil {
		return nil, err
	}
	log.Info("Logger initialized", zap.String("level", level.String()))
	return log, nil
}

// Tenant returns a child logger scoped to one tenant operation.
func Tenant(log *zap.Logger, tenantID int, op string) *zap.Logger {
	return log.With(zap.Int("tenant_id", tenantID), zap.String("op", op))
}
