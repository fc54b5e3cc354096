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
		t.Errorf("expected info level, got %s", log.GetLevel())
	}
}

func TestNewWithLevel(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"warn", zerolog.WarnLevel},
		{"", zerolog.InfoLevel},
		{"nonsense", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			if got := NewWithLevel(tt.level).GetLevel(); got != tt.want {
				t.Errorf("NewWithLevel(%q) level = %s, want %s", tt.level, got, tt.want)
			}
		})
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
		"award_id": 42,
		"step":     "aggregate",
	})
	log.Info().Msg("test message")

	output := buf.String()
	if !strings.Contains(output, `"award_id":42`) {
		t.Errorf("Expected output to contain award_id field, got: %s", output)
	}
	if !strings.Contains(output, `"step":"aggregate"`) {
		t.Errorf("Expected output to contain step field, got: %s", output)
	}
}

func TestWithRun(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx := WithContext(context.Background(), NewWithWriter(buf))
	ctx = WithRun(ctx, "refresh", "run-1")

	l := FromContext(ctx)
	l.Info().Msg("started")

	output := buf.String()
	if !strings.Contains(output, `"pipeline":"refresh"`) || !strings.Contains(output, `"run_id":"run-1"`) {
		t.Errorf("Expected run fields in output, got: %s", output)
	}
}
