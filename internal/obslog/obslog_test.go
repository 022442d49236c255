package obslog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitWritesJSONFile(t *testing.T) {
	t.Cleanup(func() { Set(nil) })
	path := filepath.Join(t.TempDir(), "nested", "arena.log")
	if err := Init(Options{Level: "debug", Format: "json", ToFile: true, File: path}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	L().Info("queue_pair", zap.String("match_id", "m1"))
	_ = L().Sync()
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(raw), `"msg":"queue_pair"`) || !strings.Contains(string(raw), `"match_id":"m1"`) {
		t.Fatalf("unexpected log content: %s", raw)
	}
}

func TestSetObserver(t *testing.T) {
	t.Cleanup(func() { Set(nil) })
	core, logs := observer.New(zapcore.InfoLevel)
	Set(zap.New(core))
	L().Debug("hidden")
	L().Warn("shown")
	if logs.Len() != 1 || logs.All()[0].Message != "shown" {
		t.Fatalf("unexpected entries: %+v", logs.All())
	}
}

func TestParseLevel(t *testing.T) {
	if parseLevel("WARNING") != zapcore.WarnLevel || parseLevel("bogus") != zapcore.InfoLevel {
		t.Fatalf("unexpected level mapping")
	}
}
