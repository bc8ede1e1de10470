package cmd

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// newLogger builds the run's logger. With --log-file the output is copied to
// a rotating file; the returned func closes it.
func newLogger(console io.Writer) (*logrus.Logger, func()) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{})
	logger.SetOutput(console)
	logger.SetLevel(logrus.InfoLevel)
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	if logFile == "" {
		return logger, func() {}
	}
	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
		logger.WithError(err).Warn("Could not create log directory, logging to console only")
		return logger, func() {}
	}
	rotator := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     30,
		LocalTime:  true,
	}
	logger.SetOutput(io.MultiWriter(console, rotator))
	return logger, func() { _ = rotator.Close() }
}
