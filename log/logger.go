package log

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/natefinch/lumberjack"
	"github.com/sirupsen/logrus"

	"github.com/shreekarashastry/blocksim/chain"
)

const (
	defaultLevel      = "info"
	defaultMaxSizeMB  = 100
	defaultMaxBackups = 3
	defaultMaxAgeDays = 28
)

// Global is the process wide logger used outside the protocol engines.
var Global = logrus.New()

var (
	output   io.Writer = os.Stdout
	levelStr           = defaultLevel
)

// Options selects the log destination and verbosity.
type Options struct {
	// File, when set, sends logs to a rotating file instead of stdout.
	File       string
	Level      string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

func init() {
	Global.SetFormatter(textFormatter())
}

func textFormatter() *logrus.TextFormatter {
	return &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "01-02|15:04:05.000",
	}
}

// Configure points the global logger and every node logger created later at
// the writer and level described by opts.
func Configure(opts Options) error {
	level := strings.ToLower(opts.Level)
	if level == "" {
		level = defaultLevel
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("log level %q: %w", opts.Level, err)
	}

	var w io.Writer = os.Stdout
	if opts.File != "" {
		w = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.MaxSizeMB, defaultMaxSizeMB),
			MaxBackups: orDefault(opts.MaxBackups, defaultMaxBackups),
			MaxAge:     orDefault(opts.MaxAgeDays, defaultMaxAgeDays),
			Compress:   true,
		}
	}

	Global.SetOutput(w)
	Global.SetLevel(lvl)
	Global.SetFormatter(textFormatter())
	output = w
	levelStr = level
	return nil
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

// NodeLogger returns the logger of one simulated node. It shares the writer
// and level of the global logger.
func NodeLogger(id chain.NodeID) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:   fmt.Sprintf("node-%d", id),
		Output: output,
		Level:  hclogLevel(levelStr),
	})
}

func hclogLevel(level string) hclog.Level {
	switch level {
	case "warning":
		return hclog.Warn
	case "fatal", "panic":
		return hclog.Error
	}
	if l := hclog.LevelFromString(level); l != hclog.NoLevel {
		return l
	}
	return hclog.Info
}
