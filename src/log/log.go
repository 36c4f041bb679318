package log

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/streamalert-go/streamalert-go/src/configs"
)

// New configures the process-wide logrus logger from the current
// config and returns it.
func New() *logrus.Logger {
	cfg := configs.GetCurrentConfig()
	logLevel := logrus.InfoLevel
	if cfg != nil && cfg.Debug {
		logLevel = logrus.DebugLevel
	}

	writers := []io.Writer{os.Stderr}
	if cfg != nil && cfg.Log.SaveLastLog {
		logLocation := filepath.Join(cfg.Log.OutPutFolder, "streamalert.log")
		logFile, err := os.OpenFile(logLocation, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			logrus.WithError(err).WithField("path", logLocation).Error("failed to open log file")
		} else {
			writers = append(writers, logFile)
		}
	}

	logrus.SetOutput(io.MultiWriter(writers...))
	logrus.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	if cfg != nil && cfg.Debug {
		logrus.SetReportCaller(true)
	}
	logrus.SetLevel(logLevel)

	return logrus.StandardLogger()
}

// GetLogger returns the global logger.
func GetLogger() *logrus.Logger {
	return logrus.StandardLogger()
}

// WithFields is a convenience wrapper around the global logger.
func WithFields(fields logrus.Fields) *logrus.Entry {
	return logrus.StandardLogger().WithFields(fields)
}
