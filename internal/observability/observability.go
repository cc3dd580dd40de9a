// Package observability configures the process-wide logging pipeline.
//
// The text and json formats write slog records straight to stderr. The
// otlp-* formats bridge slog through the OpenTelemetry log SDK with
// minimum-severity filtering, exporting via OTLP HTTP, OTLP gRPC, or a
// pretty-printed stdout exporter for local inspection.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// loggerName identifies this process in bridged OTel log records.
const loggerName = "dida-mcp"

// Instrument installs the default slog logger for the given level and
// format. The returned shutdown function flushes any buffered export
// pipeline; for plain stderr formats it is a no-op.
func Instrument(level slog.Level, format string) (func(context.Context) error, error) {
	switch format {
	case "text":
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return noopShutdown, nil

	case "json":
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return noopShutdown, nil

	case "otlp-http", "otlp-grpc", "otlp-stdout":
		exporter, err := newExporter(context.Background(), format)
		if err != nil {
			return nil, fmt.Errorf("creating log exporter: %w", err)
		}

		provider := sdklog.NewLoggerProvider(
			sdklog.WithProcessor(
				minsev.NewLogProcessor(sdklog.NewBatchProcessor(exporter), severity(level)),
			),
		)
		slog.SetDefault(otelslog.NewLogger(loggerName, otelslog.WithLoggerProvider(provider)))
		return provider.Shutdown, nil

	default:
		return nil, fmt.Errorf("unsupported log format: %q", format)
	}
}

func newExporter(ctx context.Context, format string) (sdklog.Exporter, error) {
	switch format {
	case "otlp-http":
		return otlploghttp.New(ctx)
	case "otlp-grpc":
		return otlploggrpc.New(ctx)
	default:
		return stdoutlog.New(stdoutlog.WithPrettyPrint())
	}
}

// severity maps an slog level onto the minimum OTel severity kept by the
// filtering processor.
func severity(level slog.Level) minsev.Severity {
	switch {
	case level <= slog.LevelDebug:
		return minsev.SeverityDebug
	case level <= slog.LevelInfo:
		return minsev.SeverityInfo
	case level <= slog.LevelWarn:
		return minsev.SeverityWarn
	default:
		return minsev.SeverityError
	}
}

func noopShutdown(context.Context) error { return nil }
