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

// Package telemetry declares the abstract span/counter/histogram
// collaborator contract (spec §6's "Telemetry collaborator contract") that
// the tracinglayer and metricslayer packages observe through, independent
// of any particular backend.
package telemetry

import "context"

// Span is one observed operation's lifetime.
type Span interface {
	SetAttribute(key string, value interface{})
	AddEvent(name string, attrs map[string]interface{})
	End()
}

// Tracer starts spans.
type Tracer interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
}

// Counter accumulates a monotonic count.
type Counter interface {
	Add(ctx context.Context, value int64)
}

// Histogram records a distribution of observed values.
type Histogram interface {
	Record(ctx context.Context, value float64)
}

// Meter produces named counters and histograms.
type Meter interface {
	Counter(name string) (Counter, error)
	Histogram(name string) (Histogram, error)
}

// noopSpan/noopTracer/noopMeter let a layer be constructed with telemetry
// disabled without a nil check on every call.
type noopSpan struct{}

func (noopSpan) SetAttribute(string, interface{})        {}
func (noopSpan) AddEvent(string, map[string]interface{}) {}
func (noopSpan) End()                                    {}

type noopTracer struct{}

func (noopTracer) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	return ctx, noopSpan{}
}

// NewNoopTracer returns a Tracer whose spans do nothing, for a layer stack
// built with tracing disabled.
func NewNoopTracer() Tracer { return noopTracer{} }

type noopCounter struct{}

func (noopCounter) Add(context.Context, int64) {}

type noopHistogram struct{}

func (noopHistogram) Record(context.Context, float64) {}

type noopMeter struct{}

func (noopMeter) Counter(string) (Counter, error)     { return noopCounter{}, nil }
func (noopMeter) Histogram(string) (Histogram, error) { return noopHistogram{}, nil }

// NewNoopMeter returns a Meter whose instruments discard every
// observation, for a layer stack built with metrics disabled.
func NewNoopMeter() Meter { return noopMeter{} }
