// Package ingest buffers incoming telemetry and feeds it to the detection
// engine in batches, decoupling intake rate from the engine's write lock.
package ingest

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"machine-health-engine/detector"
	"machine-health-engine/metrics"
)

// SampleSink receives validated sample batches. Satisfied by the detection
// engine.
type SampleSink interface {
	AppendSamples(samples []detector.Sample) int
}

// Collector is a buffered telemetry intake. Samples accumulate in memory
// and are flushed to the sink when the batch size is reached or the flush
// interval elapses.
type Collector struct {
	sink          SampleSink
	monitored     map[string]bool
	bufferSize    int
	batchSize     int
	flushInterval time.Duration
	log           *logrus.Entry

	mu        sync.Mutex
	buffer    []detector.Sample
	isRunning bool
	stopChan  chan struct{}
	wg        sync.WaitGroup

	stats struct {
		sync.RWMutex
		TotalAccepted int64
		TotalRejected int64
		TotalFlushed  int64
		Batches       int64
	}
}

// Stats is a snapshot of collector counters.
type Stats struct {
	TotalAccepted int64 `json:"total_accepted"`
	TotalRejected int64 `json:"total_rejected"`
	TotalFlushed  int64 `json:"total_flushed"`
	Batches       int64 `json:"batches"`
	BufferDepth   int   `json:"buffer_depth"`
	Running       bool  `json:"running"`
}

// NewCollector creates a collector feeding the given sink. Only samples
// carrying at least one monitored metric are accepted.
func NewCollector(sink SampleSink, monitored []string, bufferSize, batchSize int, flushInterval time.Duration, log *logrus.Logger) *Collector {
	if log == nil {
		log = logrus.StandardLogger()
	}
	names := make(map[string]bool, len(monitored))
	for _, m := range monitored {
		names[m] = true
	}
	return &Collector{
		sink:          sink,
		monitored:     names,
		bufferSize:    bufferSize,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		log:           log.WithField("component", "ingest"),
		buffer:        make([]detector.Sample, 0, bufferSize),
		stopChan:      make(chan struct{}),
	}
}

// Start launches the background flush routine.
func (c *Collector) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.isRunning {
		c.mu.Unlock()
		return fmt.Errorf("collector already running")
	}
	c.isRunning = true
	c.mu.Unlock()

	c.wg.Add(1)
	go c.flushRoutine(ctx)
	return nil
}

// Stop halts the flush routine and drains the remaining buffer.
func (c *Collector) Stop() {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return
	}
	c.isRunning = false
	c.mu.Unlock()

	close(c.stopChan)
	c.wg.Wait()
	c.flush()
}

// Ingest validates and buffers one sample.
func (c *Collector) Ingest(s detector.Sample) error {
	if err := c.validate(s); err != nil {
		c.stats.Lock()
		c.stats.TotalRejected++
		c.stats.Unlock()
		metrics.SamplesRejected.Inc()
		return err
	}

	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return fmt.Errorf("collector not running")
	}
	if len(c.buffer) >= c.bufferSize {
		c.mu.Unlock()
		c.flush()
		c.mu.Lock()
	}
	c.buffer = append(c.buffer, s)
	depth := len(c.buffer)
	c.mu.Unlock()

	c.stats.Lock()
	c.stats.TotalAccepted++
	c.stats.Unlock()
	metrics.IngestBufferDepth.Set(float64(depth))

	if depth >= c.batchSize {
		c.flush()
	}
	return nil
}

// IngestBatch buffers many samples, skipping invalid ones. Returns the
// number accepted.
func (c *Collector) IngestBatch(samples []detector.Sample) int {
	accepted := 0
	for _, s := range samples {
		if err := c.Ingest(s); err == nil {
			accepted++
		}
	}
	return accepted
}

// validate rejects empty samples, samples with no monitored metric and
// non-finite values. Rows missing some monitored metrics still pass; corpus
// cleaning handles column alignment downstream.
func (c *Collector) validate(s detector.Sample) error {
	if len(s) == 0 {
		return fmt.Errorf("empty sample")
	}
	known := false
	for name, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("metric %q has non-finite value", name)
		}
		if c.monitored[name] {
			known = true
		}
	}
	if !known {
		return fmt.Errorf("sample carries no monitored metric")
	}
	return nil
}

func (c *Collector) flushRoutine(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.flush()
		}
	}
}

func (c *Collector) flush() {
	c.mu.Lock()
	if len(c.buffer) == 0 {
		c.mu.Unlock()
		return
	}
	batch := make([]detector.Sample, len(c.buffer))
	copy(batch, c.buffer)
	c.buffer = c.buffer[:0]
	c.mu.Unlock()

	accepted := c.sink.AppendSamples(batch)
	if accepted < len(batch) {
		c.log.WithFields(logrus.Fields{
			"batch":    len(batch),
			"accepted": accepted,
		}).Warn("sink dropped part of the batch")
	}

	c.stats.Lock()
	c.stats.TotalFlushed += int64(accepted)
	c.stats.Batches++
	c.stats.Unlock()
	metrics.IngestBufferDepth.Set(0)
}

// Stats returns a snapshot of the collector counters.
func (c *Collector) Stats() Stats {
	c.mu.Lock()
	depth := len(c.buffer)
	running := c.isRunning
	c.mu.Unlock()

	c.stats.RLock()
	defer c.stats.RUnlock()
	return Stats{
		TotalAccepted: c.stats.TotalAccepted,
		TotalRejected: c.stats.TotalRejected,
		TotalFlushed:  c.stats.TotalFlushed,
		Batches:       c.stats.Batches,
		BufferDepth:   depth,
		Running:       running,
	}
}
