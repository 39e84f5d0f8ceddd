package config

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	want := Config{
		Driver:         "hl2",
		PollInterval:   15 * time.Millisecond,
		AttachInterval: time.Second,
		RemoteTimeout:  2 * time.Second,
		EventBuffer:    256,
		MaxBacklog:     65536,
	}
	if !reflect.DeepEqual(cfg, want) {
		t.Fatalf("defaults = %+v, want %+v", cfg, want)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SPLITWATCH_DRIVER", "bms")
	t.Setenv("SPLITWATCH_PROCESS", "bms.exe,hl2.exe")
	t.Setenv("SPLITWATCH_POLL_INTERVAL", "10ms")
	t.Setenv("SPLITWATCH_JOURNAL_PATH", "/tmp/splitwatch.db")
	t.Setenv("SPLITWATCH_HTTP_ADDR", "127.0.0.1:7810")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Driver != "bms" || cfg.PollInterval != 10*time.Millisecond {
		t.Fatalf("cfg = %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.ProcessNames, []string{"bms.exe", "hl2.exe"}) {
		t.Fatalf("process names = %v", cfg.ProcessNames)
	}
	if cfg.JournalPath != "/tmp/splitwatch.db" || cfg.HTTPAddr != "127.0.0.1:7810" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadParseError(t *testing.T) {
	t.Setenv("SPLITWATCH_POLL_INTERVAL", "soon")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("err = %v, want parse env error", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"zero poll", map[string]string{"SPLITWATCH_POLL_INTERVAL": "0s"}},
		{"attach faster than poll", map[string]string{"SPLITWATCH_POLL_INTERVAL": "2s"}},
		{"no backlog", map[string]string{"SPLITWATCH_MAX_BACKLOG": "0"}},
		{"negative buffer", map[string]string{"SPLITWATCH_EVENT_BUFFER": "-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); !errors.Is(err, ErrInvalid) {
				t.Fatalf("err = %v, want ErrInvalid", err)
			}
		})
	}
}
