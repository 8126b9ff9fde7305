package relay

import (
	"sync/atomic"

	"github.com/valyala/bytebufferpool"
)

var bufPool bytebufferpool.Pool

// Envelope is one raw XML message passed through the pipeline plus a
// monotonically increasing sequence id, per spec.md §3. The underlying
// bytes live in a pooled bytebufferpool buffer, reused across stdout,
// file, subscriber, and Kafka sinks the way pkg/extio.Extio's Output
// channel of *bytebufferpool.ByteBuffer is reused across writers -- the
// difference here is that one envelope fans out to many sinks at once, so
// the buffer is only returned to the pool once every sink has finished
// with it.
type Envelope struct {
	Seq uint64

	buf  *bytebufferpool.ByteBuffer
	refs atomic.Int32
}

// newEnvelope copies data into a pooled buffer and starts the envelope
// with one reference, held by the dispatch worker for the duration of its
// synchronous stdout/file writes.
func newEnvelope(seq uint64, data []byte) *Envelope {
	bb := bufPool.Get()
	bb.Write(data)
	e := &Envelope{Seq: seq, buf: bb}
	e.refs.Store(1)
	return e
}

// Bytes returns the envelope's raw XML bytes. Valid as long as the caller
// holds a reference (between retain/release, or during the initial
// synchronous phase before the worker's own release).
func (e *Envelope) Bytes() []byte { return e.buf.B }

// retain must be called before handing e to an asynchronous consumer
// (a subscriber queue, the Kafka sink) that will call release once done.
func (e *Envelope) retain() { e.refs.Add(1) }

// release drops one reference; once the last reference is gone the buffer
// returns to the pool for reuse.
func (e *Envelope) release() {
	if e.refs.Add(-1) == 0 {
		bufPool.Put(e.buf)
	}
}
