package ingest

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"machine-health-engine/detector"
)

type captureSink struct {
	mu      sync.Mutex
	samples []detector.Sample
}

func (s *captureSink) AppendSamples(samples []detector.Sample) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, samples...)
	return len(samples)
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.samples)
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return log
}

func startCollector(t *testing.T, sink SampleSink, batchSize int) *Collector {
	t.Helper()
	c := NewCollector(sink, []string{"motor_temp", "oil_pressure"}, 100, batchSize, time.Hour, quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := c.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	return c
}

func TestCollectorFlushesOnBatchSize(t *testing.T) {
	sink := &captureSink{}
	c := startCollector(t, sink, 3)

	for i := 0; i < 3; i++ {
		if err := c.Ingest(detector.Sample{"motor_temp": 65}); err != nil {
			t.Fatalf("ingest failed: %v", err)
		}
	}

	if got := sink.count(); got != 3 {
		t.Errorf("expected 3 flushed samples, got %d", got)
	}

	stats := c.Stats()
	if stats.TotalAccepted != 3 || stats.Batches != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestCollectorRejectsInvalidSamples(t *testing.T) {
	sink := &captureSink{}
	c := startCollector(t, sink, 10)

	cases := []detector.Sample{
		{},
		{"unknown": 1.0},
		{"motor_temp": math.NaN()},
		{"motor_temp": math.Inf(1)},
	}
	for i, s := range cases {
		if err := c.Ingest(s); err == nil {
			t.Errorf("case %d: expected rejection", i)
		}
	}

	if stats := c.Stats(); stats.TotalRejected != int64(len(cases)) {
		t.Errorf("expected %d rejections, got %d", len(cases), stats.TotalRejected)
	}
}

func TestCollectorStopDrainsBuffer(t *testing.T) {
	sink := &captureSink{}
	c := startCollector(t, sink, 50)

	for i := 0; i < 7; i++ {
		if err := c.Ingest(detector.Sample{"oil_pressure": 4.5}); err != nil {
			t.Fatalf("ingest failed: %v", err)
		}
	}
	if got := sink.count(); got != 0 {
		t.Fatalf("buffer should not have flushed yet, sink has %d", got)
	}

	c.Stop()

	if got := sink.count(); got != 7 {
		t.Errorf("stop should drain the buffer, sink has %d", got)
	}
	if err := c.Ingest(detector.Sample{"oil_pressure": 4.5}); err == nil {
		t.Error("ingest after stop should fail")
	}
}

func TestCollectorBatchIngestSkipsInvalid(t *testing.T) {
	sink := &captureSink{}
	c := startCollector(t, sink, 100)

	batch := []detector.Sample{
		{"motor_temp": 65},
		{"unknown": 1},
		{"motor_temp": 66},
	}
	if accepted := c.IngestBatch(batch); accepted != 2 {
		t.Errorf("expected 2 accepted, got %d", accepted)
	}
}
