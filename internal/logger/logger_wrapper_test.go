package logger

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leandrodaf/nanoctl/sdk/contracts"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLogger_FieldsAreTyped(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapLoggerFromCore(core)

	log.Warn("decode failed",
		log.Field().String("kind", "unmapped"),
		log.Field().Uint8("controller", 0x09),
		log.Field().Float64("delta", 0.25),
		log.Field().Error("error", errors.New("boom")),
	)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["kind"] != "unmapped" {
		t.Fatalf("kind=%v", ctx["kind"])
	}
	if ctx["controller"] != uint8(0x09) {
		t.Fatalf("controller=%#v", ctx["controller"])
	}
	if ctx["delta"] != 0.25 {
		t.Fatalf("delta=%v", ctx["delta"])
	}
	if ctx["error"] != "boom" {
		t.Fatalf("error=%v", ctx["error"])
	}
}

func TestZapLogger_SetLevel(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapLoggerFromCore(core)

	log.SetLevel(contracts.InfoLevel)
	log.Debug("hidden")
	log.Info("shown")

	log.SetLevel(contracts.DebugLevel)
	log.Debug("shown too")

	if got := logs.Len(); got != 2 {
		t.Fatalf("expected 2 entries, got %d", got)
	}
	if logs.FilterMessage("hidden").Len() != 0 {
		t.Fatal("debug entry written at info level")
	}
}

func TestZapLogger_SetDestinationFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nanoctl.log")

	log := NewZapLogger()
	log.SetDestination(contracts.FileLog, path)
	log.Info("to file", log.Field().Int("port", 0))
	if err := log.(*ZapLogger).Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"to file"`) {
		t.Fatalf("log file missing entry: %s", data)
	}
	if !strings.Contains(string(data), `"port":0`) {
		t.Fatalf("log file missing field: %s", data)
	}
	log.SetDestination(contracts.ConsoleLog)
}
