package converter

import (
	"bytes"
	"sync"

	"github.com/harliandi/go-convert/pkg/metrics"
)

// Sink size classes
const (
	smallSink  = 64 * 1024
	mediumSink = 512 * 1024
	largeSink  = 5 * 1024 * 1024

	// Sinks that grew past this are left to the GC
	maxPooledSink = 32 * 1024 * 1024
)

// SinkPool hands out reusable encode sinks so the trial encodes of a
// search share one buffer instead of allocating per trial
type SinkPool struct {
	small  sync.Pool
	medium sync.Pool
	large  sync.Pool
}

// NewSinkPool creates a tiered sink pool
func NewSinkPool() *SinkPool {
	return &SinkPool{
		small:  sync.Pool{New: newSink("small", smallSink)},
		medium: sync.Pool{New: newSink("medium", mediumSink)},
		large:  sync.Pool{New: newSink("large", largeSink)},
	}
}

func newSink(class string, size int) func() interface{} {
	return func() interface{} {
		metrics.RecordSinkAllocation(class)
		return bytes.NewBuffer(make([]byte, 0, size))
	}
}

// Get returns an empty sink with room for roughly size bytes
func (p *SinkPool) Get(size int64) *bytes.Buffer {
	var buf *bytes.Buffer
	switch {
	case size <= smallSink:
		buf = p.small.Get().(*bytes.Buffer)
	case size <= mediumSink:
		buf = p.medium.Get().(*bytes.Buffer)
	default:
		buf = p.large.Get().(*bytes.Buffer)
	}
	buf.Reset()
	return buf
}

// Put returns a sink to the tier matching its capacity
func (p *SinkPool) Put(buf *bytes.Buffer) {
	if buf == nil {
		return
	}
	buf.Reset()

	capacity := buf.Cap()
	switch {
	case capacity > maxPooledSink:
		// Don't pool oversized buffers
	case capacity >= largeSink:
		p.large.Put(buf)
	case capacity >= mediumSink:
		p.medium.Put(buf)
	case capacity >= smallSink:
		p.small.Put(buf)
	}
}
