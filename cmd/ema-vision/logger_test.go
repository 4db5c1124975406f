package main

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/koscakluka/ema-vision/internal/config"
	otellog "go.opentelemetry.io/otel/log"
)

func TestSeverityLevel(t *testing.T) {
	tests := []struct {
		severity otellog.Severity
		level    slog.Level
	}{
		{otellog.SeverityDebug, slog.LevelDebug},
		{otellog.SeverityInfo, slog.LevelInfo},
		{otellog.SeverityWarn, slog.LevelWarn},
		{otellog.SeverityError, slog.LevelError},
		{otellog.SeverityUndefined, slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := severityLevel(tt.severity); got != tt.level {
			t.Fatalf("severity %v: expected %v, got %v", tt.severity, tt.level, got)
		}
	}
}

func TestLogBridgeForwardsRecords(t *testing.T) {
	var out bytes.Buffer
	logger := newLogger(&out, config.LoggingConfig{Level: "info", NoColor: true})
	provider := &slogLoggerProvider{handler: logger.Handler()}
	bridged := provider.Logger("github.com/koscakluka/ema-vision/core/captions")

	var record otellog.Record
	record.SetTimestamp(time.Now())
	record.SetSeverity(otellog.SeverityInfo)
	record.SetBody(otellog.StringValue("created caption"))
	record.AddAttributes(otellog.Int64("id", 7))
	bridged.Emit(context.Background(), record)

	line := out.String()
	for _, want := range []string{"created caption", "scope=captions", "id=7"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}

	out.Reset()
	var debug otellog.Record
	debug.SetSeverity(otellog.SeverityDebug)
	debug.SetBody(otellog.StringValue("hidden"))
	bridged.Emit(context.Background(), debug)
	if out.Len() != 0 {
		t.Fatalf("expected debug record to be filtered, got %q", out.String())
	}
}
