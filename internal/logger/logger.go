package logger

import (
	"fmt"
	"io"
	"log"

	"github.com/sirupsen/logrus"
)

type Logger struct {
	l *logrus.Logger
}

func New(l *logrus.Logger) *Logger {
	return &Logger{l: l}
}

// Setup builds a JSON logger writing to out. Unknown levels fall back to info.
func Setup(level string, out io.Writer) *Logger {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}

	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetOutput(out)
	l.SetLevel(lvl)

	return New(l)
}

func (l *Logger) LogErrorf(format string, v ...any) {
	l.l.Error(fmt.Sprintf(format, v...))
}

func (l *Logger) LogWarnf(format string, v ...any) {
	l.l.Warn(fmt.Sprintf(format, v...))
}

func (l *Logger) LogInfo(format string, v ...any) {
	l.l.Info(fmt.Sprintf(format, v...))
}

func (l *Logger) LogDebugf(format string, v ...any) {
	l.l.Debug(fmt.Sprintf(format, v...))
}

// StdLogger adapts the logger for consumers that need a *log.Logger, such as http.Server.
func (l *Logger) StdLogger() *log.Logger {
	return log.New(l.l.WriterLevel(logrus.ErrorLevel), "", 0)
}
