package logger

import (
	"fmt"

	waLog "go.mau.fi/whatsmeow/util/log"
	"go.uber.org/zap"
)

type waLogger struct {
	log *zap.SugaredLogger
}

// WhatsApp adapts a zap logger to whatsmeow's logging interface.
func WhatsApp(log *zap.Logger, module string) waLog.Logger {
	return &waLogger{log: log.Named(module).Sugar()}
}

func (l *waLogger) Debugf(msg string, args ...interface{}) { l.log.Debug(fmt.Sprintf(msg, args...)) }
func (l *waLogger) Infof(msg string, args ...interface{})  { l.log.Info(fmt.Sprintf(msg, args...)) }
func (l *waLogger) Warnf(msg string, args ...interface{})  { l.log.Warn(fmt.Sprintf(msg, args...)) }
func (l *waLogger) Errorf(msg string, args ...interface{}) { l.log.Error(fmt.Sprintf(msg, args...)) }

func (l *waLogger) Sub(module string) waLog.Logger {
	return &waLogger{log: l.log.Named(module)}
}
