// Package logrus adapts sirupsen/logrus to logger.Logger
package logrus

import (
	"io"
	"os"

	"github.com/raykavin/dexwatch/pkg/logger"
	"github.com/sirupsen/logrus"
)

type Adapter struct {
	entry *logrus.Entry
}

// New returns a logrus backed logger writing text or JSON records to out
func New(level logger.Level, timeLayout string, jsonFormat bool, out io.Writer) *Adapter {
	if out == nil {
		out = os.Stdout
	}

	log := logrus.New()
	log.SetOutput(out)
	if jsonFormat {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: timeLayout})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: timeLayout})
	}

	adapter := &Adapter{entry: logrus.NewEntry(log)}
	adapter.SetLevel(level)
	return adapter
}

func (l *Adapter) WithField(key string, value any) logger.Logger {
	return &Adapter{entry: l.entry.WithField(key, value)}
}

func (l *Adapter) WithFields(fields map[string]any) logger.Logger {
	return &Adapter{entry: l.entry.WithFields(fields)}
}

func (l *Adapter) WithError(err error) logger.Logger {
	return &Adapter{entry: l.entry.WithError(err)}
}

func (l *Adapter) Debug(args ...any) { l.entry.Debug(args...) }
func (l *Adapter) Info(args ...any)  { l.entry.Info(args...) }
func (l *Adapter) Warn(args ...any)  { l.entry.Warn(args...) }
func (l *Adapter) Error(args ...any) { l.entry.Error(args...) }
func (l *Adapter) Fatal(args ...any) { l.entry.Fatal(args...) }

func (l *Adapter) Debugf(format string, args ...any) { l.entry.Debugf(format, args...) }
func (l *Adapter) Infof(format string, args ...any)  { l.entry.Infof(format, args...) }
func (l *Adapter) Warnf(format string, args ...any)  { l.entry.Warnf(format, args...) }
func (l *Adapter) Errorf(format string, args ...any) { l.entry.Errorf(format, args...) }
func (l *Adapter) Fatalf(format string, args ...any) { l.entry.Fatalf(format, args...) }

func (l *Adapter) SetLevel(level logger.Level) {
	if level == logger.Disabled {
		l.entry.Logger.SetOutput(io.Discard)
		return
	}
	l.entry.Logger.SetLevel(toLogrusLevel(level))
}

func (l *Adapter) GetLevel() logger.Level {
	switch l.entry.Logger.GetLevel() {
	case logrus.TraceLevel:
		return logger.TraceLevel
	case logrus.DebugLevel:
		return logger.DebugLevel
	case logrus.WarnLevel:
		return logger.WarnLevel
	case logrus.ErrorLevel:
		return logger.ErrorLevel
	case logrus.FatalLevel, logrus.PanicLevel:
		return logger.FatalLevel
	default:
		return logger.InfoLevel
	}
}

func toLogrusLevel(level logger.Level) logrus.Level {
	switch level {
	case logger.TraceLevel:
		return logrus.TraceLevel
	case logger.DebugLevel:
		return logrus.DebugLevel
	case logger.WarnLevel:
		return logrus.WarnLevel
	case logger.ErrorLevel:
		return logrus.ErrorLevel
	case logger.FatalLevel:
		return logrus.FatalLevel
	default:
		return logrus.InfoLevel
	}
}
