// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package telemetry

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	otelmetric "go.opentelemetry.io/otel/metric"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// The OTLP endpoint is opaque to this package beyond being attached as a
// resource attribute (spec §6: "opaque to the core, passed verbatim to
// the telemetry collaborator"). No OTLP exporter dependency is wired here
// (see DESIGN.md) — spans are always written through the stdout exporter,
// which is always exercisable without a collector.

func toKeyValue(key string, value interface{}) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case bool:
		return attribute.Bool(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}

type otelSpan struct {
	span oteltrace.Span
}

func (s otelSpan) SetAttribute(key string, value interface{}) {
	s.span.SetAttributes(toKeyValue(key, value))
}

func (s otelSpan) AddEvent(name string, attrs map[string]interface{}) {
	kvs := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		kvs = append(kvs, toKeyValue(k, v))
	}
	s.span.AddEvent(name, oteltrace.WithAttributes(kvs...))
}

func (s otelSpan) End() { s.span.End() }

type otelTracer struct {
	tracer oteltrace.Tracer
}

func (t otelTracer) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name)
	return ctx, otelSpan{span: span}
}

// NewOTelTracer builds a Tracer backed by the OTel SDK's stdout span
// exporter, writing to w (typically io.Discard in production and a
// test-observable buffer in tests). otlpEndpoint, when non-empty, is
// recorded as a resource attribute only.
func NewOTelTracer(serviceName, otlpEndpoint string, w io.Writer) (Tracer, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("telemetry: building stdout span exporter: %w", err)
	}

	attrs := []attribute.KeyValue{attribute.String("service.name", serviceName)}
	if otlpEndpoint != "" {
		attrs = append(attrs, attribute.String("otlp.endpoint", otlpEndpoint))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(attrs...)),
	)

	return otelTracer{tracer: tp.Tracer(serviceName)}, nil
}

type otelCounter struct {
	counter otelmetric.Int64Counter
}

func (c otelCounter) Add(ctx context.Context, value int64) { c.counter.Add(ctx, value) }

type otelHistogram struct {
	histogram otelmetric.Float64Histogram
}

func (h otelHistogram) Record(ctx context.Context, value float64) { h.histogram.Record(ctx, value) }

type otelMeter struct {
	meter otelmetric.Meter
}

func (m otelMeter) Counter(name string) (Counter, error) {
	c, err := m.meter.Int64Counter(name)
	if err != nil {
		return nil, fmt.Errorf("telemetry: creating counter %s: %w", name, err)
	}
	return otelCounter{counter: c}, nil
}

func (m otelMeter) Histogram(name string) (Histogram, error) {
	h, err := m.meter.Float64Histogram(name)
	if err != nil {
		return nil, fmt.Errorf("telemetry: creating histogram %s: %w", name, err)
	}
	return otelHistogram{histogram: h}, nil
}

// NewOTelMeter builds a Meter backed by the OTel SDK's manual reader: no
// push exporter dependency is declared for metrics (see DESIGN.md), so
// readings accumulate in-process and are exposed via Collect for tests or
// a future scrape endpoint, rather than being shipped anywhere by
// themselves.
func NewOTelMeter(serviceName string) (Meter, *sdkmetric.ManualReader) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	return otelMeter{meter: mp.Meter(serviceName)}, reader
}
