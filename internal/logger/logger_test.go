package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNew(t *testing.T) {
	log := New()
	if log.GetLevel() != zerolog.InfoLevel {
		t.Errorf("level = %v, want info", log.GetLevel())
	}
}

func TestNewWithWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf)

	log.Info().Msg("test message")

	if !strings.Contains(buf.String(), "test message") {
		t.Errorf("Expected output to contain 'test message', got: %s", buf.String())
	}
}

func TestNewWithSettings(t *testing.T) {
	tests := []struct {
		name       string
		level      string
		format     string
		wantErr    bool
		wantDebug  bool
		wantPrefix string
	}{
		{name: "json debug", level: "debug", format: FormatJSON, wantDebug: true, wantPrefix: "{"},
		{name: "console info", level: "info", format: FormatConsole},
		{name: "empty level defaults to info", level: "", format: FormatJSON, wantPrefix: "{"},
		{name: "bad level", level: "loud", format: FormatJSON, wantErr: true},
		{name: "bad format", level: "info", format: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			log, err := NewWithSettings(buf, tt.level, tt.format)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}

			log.Debug().Msg("dbg")
			if got := strings.Contains(buf.String(), "dbg"); got != tt.wantDebug {
				t.Errorf("debug logged = %v, want %v", got, tt.wantDebug)
			}

			buf.Reset()
			log.Info().Msg("hello")
			if !strings.Contains(buf.String(), "hello") {
				t.Errorf("info not logged: %q", buf.String())
			}
			if tt.wantPrefix != "" && !strings.HasPrefix(buf.String(), tt.wantPrefix) {
				t.Errorf("output %q should start with %q", buf.String(), tt.wantPrefix)
			}
		})
	}
}

func TestFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx := WithContext(context.Background(), NewWithWriter(buf))

	retrievedLog := FromContext(ctx)
	retrievedLog.Info().Msg("test")

	if buf.Len() == 0 {
		t.Error("Expected log output from retrieved logger")
	}
}

func TestFromContext_DefaultLogger(t *testing.T) {
	log := FromContext(context.Background())
	if log.GetLevel() == zerolog.Disabled {
		t.Error("Expected default logger to be enabled")
	}
}

func TestWithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := WithFields(NewWithWriter(buf), map[string]interface{}{
		"run_id": "123",
		"source": "gs://b/p",
	})
	log.Info().Msg("test message")

	output := buf.String()
	for _, want := range []string{"run_id", "123", "source", "gs://b/p"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q: %s", want, output)
		}
	}
}
