// Package logging configures the logrus logger shared by every command.
package logging

import (
	"io"
	"os"
	"strings"

	"livecap/internal/config"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Configure returns a logger writing to the rotated log file, mirrored to
// stdout when logging.stdout is set.
func Configure(cfg *config.Config) (*logrus.Logger, error) {
	if err := config.MustStatePaths(cfg); err != nil {
		return nil, err
	}
	logger := logrus.New()
	logger.SetFormatter(formatter(cfg.Logging.Format))
	if lvl, err := logrus.ParseLevel(strings.ToLower(cfg.Logging.Level)); err == nil {
		logger.SetLevel(lvl)
	}
	var out io.Writer = rotator(cfg)
	if cfg.Logging.Stdout {
		out = io.MultiWriter(os.Stdout, out)
	}
	logger.SetOutput(out)
	return logger, nil
}

// Foreground is Configure for commands that own the terminal: the log only
// goes to the file.
func Foreground(cfg *config.Config) (*logrus.Logger, error) {
	c := *cfg
	c.Logging.Stdout = false
	return Configure(&c)
}

func formatter(name string) logrus.Formatter {
	if strings.EqualFold(name, "json") {
		return &logrus.JSONFormatter{}
	}
	return &logrus.TextFormatter{FullTimestamp: true}
}

func rotator(cfg *config.Config) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   cfg.Paths.LogPath,
		MaxSize:    cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAgeDays,
	}
}

// NewTestLogger returns a logger that discards everything.
func NewTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.DebugLevel)
	return logger
}
