package client

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stleox/caphub/pkg/hub"
	attr "go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktr "go.opentelemetry.io/otel/sdk/trace"
	tr "go.opentelemetry.io/otel/trace"
)

// Exporter 把采样命中的 transaction 回放成 otel span 树。
type Exporter struct {
	provider *sdktr.TracerProvider
	tracer   tr.Tracer
}

// NewExporter 按配置选择导出方式：grpc | stdout | dummy（默认）。
func NewExporter(kind string) (*Exporter, error) {
	var provider *sdktr.TracerProvider
	switch kind {
	case "grpc":
		exporter, err := otlptracegrpc.New(context.Background())
		if err != nil {
			return nil, fmt.Errorf("creating gRPC exporter: %w", err)
		}
		provider = sdktr.NewTracerProvider(
			sdktr.WithBatcher(exporter),
			sdktr.WithResource(resource.Empty()))
	case "stdout":
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("creating stdout exporter: %w", err)
		}
		provider = sdktr.NewTracerProvider(
			sdktr.WithBatcher(exporter),
			sdktr.WithResource(resource.Empty()))
	default:
		provider = sdktr.NewTracerProvider(
			sdktr.WithResource(resource.NewSchemaless(attr.Bool("debug", true))),
		)
	}
	return &Exporter{
		provider: provider,
		tracer:   provider.Tracer("caphub"),
	}, nil
}

// ExportTransaction 以 transaction 为根回放全部子 span。
func (e *Exporter) ExportTransaction(t *hub.Transaction) {
	if e == nil || t == nil {
		return
	}

	rootCtx := tr.ContextWithSpanContext(context.Background(), tr.NewSpanContext(tr.SpanContextConfig{
		TraceID:    t.TraceID,
		SpanID:     t.ParentSpanID,
		TraceFlags: tr.FlagsSampled,
	}))

	ctx, root := e.tracer.Start(rootCtx, t.Name,
		tr.WithTimestamp(t.StartTime),
		tr.WithAttributes(attr.String("op", t.Op)))

	for _, child := range t.Children() {
		opts := []tr.SpanStartOption{
			tr.WithTimestamp(child.StartTime),
			tr.WithAttributes(attr.String("op", child.Op)),
		}
		for k, v := range child.Tags() {
			opts = append(opts, tr.WithAttributes(attr.String(k, v)))
		}
		_, span := e.tracer.Start(ctx, child.Op, opts...)
		end := child.EndTime
		if end.IsZero() {
			end = time.Now().UTC()
		}
		span.End(tr.WithTimestamp(end))
	}

	rootEnd := t.EndTime
	if rootEnd.IsZero() {
		rootEnd = time.Now().UTC()
	}
	root.End(tr.WithTimestamp(rootEnd))
}

// Shutdown 最多等待 timeout。
func (e *Exporter) Shutdown(timeout time.Duration) {
	if e == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := e.provider.Shutdown(ctx); err != nil {
		logrus.WithError(err).Warn("Caphub couldn't shut down exporter")
	}
}
