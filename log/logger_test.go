package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/sirupsen/logrus"
)

func TestConfigureRotatingFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "blocksim.log")
	if err := Configure(Options{File: file, Level: "debug"}); err != nil {
		t.Fatal(err)
	}
	defer Configure(Options{})

	Global.WithField("run", 1).Info("simulation started")
	NodeLogger(3).Debug("validated block", "height", 1)

	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"simulation started", "node-3", "validated block"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("log file misses %q:\n%s", want, data)
		}
	}
	if Global.GetLevel() != logrus.DebugLevel {
		t.Errorf("global level = %v", Global.GetLevel())
	}
}

func TestConfigureRejectsUnknownLevel(t *testing.T) {
	if err := Configure(Options{Level: "loud"}); err == nil {
		t.Fatal("unknown level accepted")
	}
}

func TestHclogLevel(t *testing.T) {
	tests := map[string]hclog.Level{
		"trace":   hclog.Trace,
		"debug":   hclog.Debug,
		"info":    hclog.Info,
		"warning": hclog.Warn,
		"error":   hclog.Error,
		"panic":   hclog.Error,
	}
	for in, want := range tests {
		if got := hclogLevel(in); got != want {
			t.Errorf("hclogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
