// SPDX-License-Identifier: MIT

// Package observe holds the OpenTelemetry instruments for the frame loop
// and its outputs. Metrics are scraped through the Prometheus bridge set up
// by InitProvider; tests build a Metrics against a manual reader with
// NewMetrics.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "audioviz"

// Metrics holds every instrument. The OTel types synchronise internally.
type Metrics struct {
	// FrameDuration is the wall time of one full frame (snapshot to publish).
	FrameDuration metric.Float64Histogram
	// StageDuration splits a frame by stage. Attribute "stage":
	// analyze, update, render.
	StageDuration metric.Float64Histogram

	Frames        metric.Int64Counter
	SkippedFrames metric.Int64Counter

	// InstanceErrors counts instances entering the error state.
	// Attributes "type" and "stage".
	InstanceErrors metric.Int64Counter

	// Published counts frames handed to a transport. Attribute "transport".
	Published metric.Int64Counter

	// DeviceSwitches counts capture source changes. Attribute "status".
	DeviceSwitches metric.Int64Counter

	Instances        metric.Int64Gauge
	AudioLevel       metric.Float64Gauge
	WebSocketClients metric.Int64UpDownCounter
}

// frameBuckets suit frame budgets from 240 fps down to a few fps.
var frameBuckets = []float64{
	0.001, 0.002, 0.004, 0.008, 0.0167, 0.033, 0.066, 0.133, 0.25, 0.5,
}

// NewMetrics creates every instrument from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.FrameDuration, err = m.Float64Histogram("audioviz.frame.duration",
		metric.WithDescription("Wall time of one frame."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(frameBuckets...),
	); err != nil {
		return nil, err
	}
	if met.StageDuration, err = m.Float64Histogram("audioviz.stage.duration",
		metric.WithDescription("Wall time of one frame stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(frameBuckets...),
	); err != nil {
		return nil, err
	}

	if met.Frames, err = m.Int64Counter("audioviz.frames",
		metric.WithDescription("Frames rendered."),
	); err != nil {
		return nil, err
	}
	if met.SkippedFrames, err = m.Int64Counter("audioviz.frames.skipped_analysis",
		metric.WithDescription("Frames rendered without a full audio window."),
	); err != nil {
		return nil, err
	}
	if met.InstanceErrors, err = m.Int64Counter("audioviz.instance.errors",
		metric.WithDescription("Visualizer instances entering the error state by type and stage."),
	); err != nil {
		return nil, err
	}
	if met.Published, err = m.Int64Counter("audioviz.published",
		metric.WithDescription("Frames handed to a transport."),
	); err != nil {
		return nil, err
	}
	if met.DeviceSwitches, err = m.Int64Counter("audioviz.device.switches",
		metric.WithDescription("Capture source changes by outcome."),
	); err != nil {
		return nil, err
	}

	if met.Instances, err = m.Int64Gauge("audioviz.instances",
		metric.WithDescription("Registered visualizer instances."),
	); err != nil {
		return nil, err
	}
	if met.AudioLevel, err = m.Float64Gauge("audioviz.audio.rms",
		metric.WithDescription("RMS of the latest analysis window."),
	); err != nil {
		return nil, err
	}
	if met.WebSocketClients, err = m.Int64UpDownCounter("audioviz.websocket.clients",
		metric.WithDescription("Connected WebSocket clients."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns a process-wide Metrics built on the global
// provider.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordStage records one stage duration in seconds.
func (m *Metrics) RecordStage(ctx context.Context, stage string, seconds float64) {
	m.StageDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("stage", stage)))
}

// RecordInstanceError counts an instance failure.
func (m *Metrics) RecordInstanceError(ctx context.Context, typeName, stage string) {
	m.InstanceErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", typeName),
		attribute.String("stage", stage),
	))
}

// RecordPublished counts a frame handed to transport.
func (m *Metrics) RecordPublished(ctx context.Context, transport string) {
	m.Published.Add(ctx, 1, metric.WithAttributes(attribute.String("transport", transport)))
}

// RecordDeviceSwitch counts a source change.
func (m *Metrics) RecordDeviceSwitch(ctx context.Context, ok bool) {
	status := "ok"
	if !ok {
		status = "error"
	}
	m.DeviceSwitches.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}
