// Package logger provides the structured logger used throughout the
// control plane, built on logrus.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger wraps logrus.Logger. Field-setting methods (WithField,
// WithFields, WithError, WithContext, ...) are promoted from the
// embedded logrus.Logger.
type Logger struct {
	*logrus.Logger
}

// Config controls level, format, and destination for a Logger built
// with New.
type Config struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePrefix string `mapstructure:"file_prefix"`
}

// LoggingConfig is an alias of Config kept for callers that decode
// configuration under the older field name.
type LoggingConfig = Config

func newBase(level string, textFormat bool) *logrus.Logger {
	base := logrus.New()

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	base.SetLevel(parsed)

	if textFormat {
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		base.SetFormatter(&logrus.JSONFormatter{})
	}
	base.SetOutput(os.Stdout)
	return base
}

// New builds a Logger from cfg: level defaults to info on a parse
// failure, format is "json" or text (the default), and output is
// either stdout (the default) or "file", which tees to both stdout
// and logs/<FilePrefix>.log.
func New(cfg Config) *Logger {
	base := newBase(cfg.Level, strings.ToLower(cfg.Format) != "json")

	if strings.ToLower(cfg.Output) == "file" {
		prefix := cfg.FilePrefix
		if prefix == "" {
			prefix = "controlplane"
		}
		if err := os.MkdirAll("logs", 0755); err != nil {
			base.Errorf("failed to create logs directory: %v", err)
		} else if f, err := os.OpenFile(filepath.Join("logs", prefix+".log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err != nil {
			base.Errorf("failed to open log file: %v", err)
		} else {
			base.SetOutput(io.MultiWriter(os.Stdout, f))
		}
	}

	return &Logger{Logger: base}
}

// NewDefault builds an info-level, text-formatted Logger writing to
// stdout, with every entry tagged "component": name so logs from
// independently-constructed subsystems (ota, audit, the email
// adapter, ...) can be told apart in a shared log stream.
func NewDefault(name string) *Logger {
	base := newBase("info", true)
	base.AddHook(componentHook{name: name})
	return &Logger{Logger: base}
}

// componentHook stamps every entry with the owning subsystem's name,
// unless the entry already set one explicitly.
type componentHook struct {
	name string
}

func (h componentHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h componentHook) Fire(e *logrus.Entry) error {
	if _, set := e.Data["component"]; !set {
		e.Data["component"] = h.name
	}
	return nil
}
