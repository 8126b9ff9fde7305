package upstream

import (
	"runtime"

	"github.com/rs/zerolog"
)

// Reader drains the upstream Client in a loop, pushing each decoded
// message onto queue and detecting disconnection -- spec.md §4.3's
// upstream reader. It is the sole producer on queue; the filter worker is
// its sole consumer (spec.md §5).
type Reader struct {
	client *Client
	queue  chan<- []byte
	log    zerolog.Logger

	// onDisconnect is called exactly once, when ReadOneMessage reports the
	// transport is gone; it is how the reader sets the shared shutdown
	// flag (spec.md §4.3, §5).
	onDisconnect func()
}

func NewReader(client *Client, queue chan<- []byte, log zerolog.Logger, onDisconnect func()) *Reader {
	return &Reader{client: client, queue: queue, log: log.With().Str("component", "upstream-reader").Logger(), onDisconnect: onDisconnect}
}

// Run blocks until done is closed or the upstream disconnects, whichever
// comes first.
func (r *Reader) Run(done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		default:
		}

		msg, err := r.client.ReadOneMessage()
		if err != nil {
			r.log.Warn().Err(err).Msg("upstream disconnected")
			r.onDisconnect()
			return
		}

		if !r.push(done, msg) {
			return
		}
	}
}

// push enqueues msg, yielding and retrying while the queue is full
// (spec.md §4.3: "never blocks on a full queue for longer than a
// cooperative yield interval"). Returns false if done fired first.
func (r *Reader) push(done <-chan struct{}, msg []byte) bool {
	for {
		select {
		case r.queue <- msg:
			return true
		case <-done:
			return false
		default:
			runtime.Gosched()
		}
	}
}
