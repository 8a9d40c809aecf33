package offers

import (
	"github.com/sirupsen/logrus"
)

// Logger is the minimal structured logging interface used by the client.
// Arguments after the message are alternating keys and values. A nil Logger
// disables logging entirely.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type logrusLogger struct {
	l *logrus.Logger
}

// NewLogrusLogger adapts a logrus.Logger to the client's Logger interface.
func NewLogrusLogger(l *logrus.Logger) Logger {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return &logrusLogger{l: l}
}

func (a *logrusLogger) fields(keysAndValues []interface{}) logrus.Fields {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		fields[key] = keysAndValues[i+1]
	}
	return fields
}

func (a *logrusLogger) Debug(msg string, keysAndValues ...interface{}) {
	a.l.WithFields(a.fields(keysAndValues)).Debug(msg)
}

func (a *logrusLogger) Info(msg string, keysAndValues ...interface{}) {
	a.l.WithFields(a.fields(keysAndValues)).Info(msg)
}

func (a *logrusLogger) Warn(msg string, keysAndValues ...interface{}) {
	a.l.WithFields(a.fields(keysAndValues)).Warn(msg)
}

func (a *logrusLogger) Error(msg string, keysAndValues ...interface{}) {
	a.l.WithFields(a.fields(keysAndValues)).Error(msg)
}
