package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leandrodaf/nanoctl/sdk/contracts"
)

func apply(f *File) contracts.ControllerOptions {
	o := contracts.ControllerOptions{
		Pattern:           contracts.DefaultPattern(),
		InputIndex:        -1,
		OutputIndex:       -1,
		VirtualInputName:  "default in",
		VirtualOutputName: "default out",
	}
	for _, opt := range f.Options() {
		opt(&o)
	}
	return o
}

func TestLoad_EmptyPath(t *testing.T) {
	f, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if opts := f.Options(); len(opts) != 0 {
		t.Fatalf("empty file produced %d options", len(opts))
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nanoctl.json")
	data := `{
		"backend": "loopback",
		"debug": true,
		"run_pattern": false,
		"idle_interval": "250ms",
		"pattern": {"low": 32, "high": 40, "channels": 2, "delay": "20ms"},
		"virtual_input": "my in",
		"input_index": 1,
		"log_file": "/tmp/nanoctl.log",
		"retry_on_send_error": true,
		"event_buffer": 16
	}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	o := apply(f)

	if o.Backend != "loopback" || !o.DebugLogging || o.LogLevel != contracts.DebugLevel {
		t.Errorf("backend/debug not applied: %+v", o)
	}
	if o.RunPattern || o.IdleInterval != 250*time.Millisecond {
		t.Errorf("run_pattern/idle_interval not applied: %v %s", o.RunPattern, o.IdleInterval)
	}
	want := contracts.DefaultPattern()
	want.Low, want.High, want.ChannelHigh, want.Delay = 0x20, 0x28, 2, 20*time.Millisecond
	if o.Pattern != want {
		t.Errorf("Pattern = %+v, want %+v", o.Pattern, want)
	}
	if o.VirtualInputName != "my in" || o.VirtualOutputName != "default out" {
		t.Errorf("virtual names = %q/%q", o.VirtualInputName, o.VirtualOutputName)
	}
	if o.InputIndex != 1 || o.OutputIndex != -1 {
		t.Errorf("indexes = %d/%d", o.InputIndex, o.OutputIndex)
	}
	if o.LogFilePath != "/tmp/nanoctl.log" || !o.RetryOnSendError || o.EventBuffer != 16 {
		t.Errorf("log/retry/buffer not applied: %+v", o)
	}
}

func TestLoad_Missing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want ErrNotExist", err)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		invalid bool
	}{
		{name: "syntax", data: `{"backend":`},
		{name: "unknown key", data: `{"colour": "red"}`},
		{name: "bad duration", data: `{"idle_interval": "soon"}`},
		{name: "numeric duration", data: `{"idle_interval": 100}`},
		{name: "zero idle", data: `{"idle_interval": "0s"}`, invalid: true},
		{name: "empty range", data: `{"pattern": {"low": 48, "high": 48}}`, invalid: true},
		{name: "high past data range", data: `{"pattern": {"high": 129}}`, invalid: true},
		{name: "channel too large", data: `{"pattern": {"channel": 16}}`, invalid: true},
		{name: "channels overflow", data: `{"pattern": {"channel": 15, "channels": 2}}`, invalid: true},
		{name: "no channels", data: `{"pattern": {"channels": 0}}`, invalid: true},
		{name: "press too large", data: `{"pattern": {"press": 128}}`, invalid: true},
		{name: "zero delay", data: `{"pattern": {"delay": "0s"}}`, invalid: true},
		{name: "input index", data: `{"input_index": -2}`, invalid: true},
		{name: "event buffer", data: `{"event_buffer": 0}`, invalid: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.invalid && !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("err = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestDuration_MarshalJSON(t *testing.T) {
	b, err := Duration(1500 * time.Millisecond).MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `"1.5s"` {
		t.Fatalf("MarshalJSON = %s", b)
	}
}
