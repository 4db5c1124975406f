package main

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/koscakluka/ema-vision/internal/config"
	"github.com/lmittmann/tint"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/embedded"
	"go.opentelemetry.io/otel/log/global"
)

func newLogger(output io.Writer, cfg config.LoggingConfig) *slog.Logger {
	handler := tint.NewHandler(output, &tint.Options{
		Level:      parseLevel(cfg.Level),
		TimeFormat: "2006-01-02 15:04:05.000Z07:00",
		NoColor:    cfg.NoColor,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Value.Kind() == slog.KindAny {
				if _, ok := a.Value.Any().(error); ok {
					return tint.Attr(9, a)
				}
			}
			return a
		},
	})
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// installLogBridge routes every package logger, which all log through the
// global OpenTelemetry logger provider, into handler.
func installLogBridge(handler slog.Handler) {
	global.SetLoggerProvider(&slogLoggerProvider{handler: handler})
}

type slogLoggerProvider struct {
	embedded.LoggerProvider
	handler slog.Handler
}

func (p *slogLoggerProvider) Logger(name string, _ ...otellog.LoggerOption) otellog.Logger {
	scope := name[strings.LastIndex(name, "/")+1:]
	return &slogLogger{handler: p.handler.WithAttrs([]slog.Attr{slog.String("scope", scope)})}
}

type slogLogger struct {
	embedded.Logger
	handler slog.Handler
}

func (l *slogLogger) Emit(ctx context.Context, record otellog.Record) {
	level := severityLevel(record.Severity())
	if !l.handler.Enabled(ctx, level) {
		return
	}

	r := slog.NewRecord(record.Timestamp(), level, record.Body().AsString(), 0)
	record.WalkAttributes(func(kv otellog.KeyValue) bool {
		r.AddAttrs(convertAttr(kv))
		return true
	})
	_ = l.handler.Handle(ctx, r)
}

func (l *slogLogger) Enabled(ctx context.Context, param otellog.EnabledParameters) bool {
	return l.handler.Enabled(ctx, severityLevel(param.Severity))
}

// severityLevel inverts the otelslog mapping, which places slog.LevelInfo
// on SeverityInfo and keeps the distance between levels.
func severityLevel(severity otellog.Severity) slog.Level {
	if severity == otellog.SeverityUndefined {
		return slog.LevelInfo
	}
	return slog.Level(int(severity) - int(otellog.SeverityInfo))
}

func convertAttr(kv otellog.KeyValue) slog.Attr {
	switch kv.Value.Kind() {
	case otellog.KindBool:
		return slog.Bool(kv.Key, kv.Value.AsBool())
	case otellog.KindInt64:
		return slog.Int64(kv.Key, kv.Value.AsInt64())
	case otellog.KindFloat64:
		return slog.Float64(kv.Key, kv.Value.AsFloat64())
	case otellog.KindString:
		return slog.String(kv.Key, kv.Value.AsString())
	case otellog.KindMap:
		attrs := make([]any, 0, len(kv.Value.AsMap()))
		for _, nested := range kv.Value.AsMap() {
			attrs = append(attrs, convertAttr(nested))
		}
		return slog.Group(kv.Key, attrs...)
	default:
		return slog.String(kv.Key, kv.Value.String())
	}
}
