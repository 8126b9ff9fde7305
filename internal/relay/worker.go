package relay

import (
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/bgpmon/bgpmon-filter/internal/filter"
	"github.com/bgpmon/bgpmon-filter/internal/xmlrec"
)

// FileSink is the output-file half of the filter/dispatch worker's
// fanout; implemented by internal/relay/filesink. Write is synchronous
// and exclusively owned by the worker, per spec.md §5.
type FileSink interface {
	Write(data []byte) error
}

// KafkaSink is the optional message-bus fanout sink, implemented by
// internal/relay/kafkasink. Publish must copy data before returning if it
// defers the send, since the worker reuses/releases its envelope buffer
// as soon as every sink's call returns.
type KafkaSink interface {
	Publish(data []byte)
}

// Worker is spec.md §4.4's filter/dispatch worker: the sole consumer of
// the upstream queue, and the sole producer toward stdout, the file sink,
// every subscriber queue, and the optional Kafka sink.
type Worker struct {
	filterStore *filter.Filter
	queue       <-chan []byte
	registry    *Registry

	stdout   bool
	stdoutMu *sync.Mutex
	stdoutW  io.Writer

	fileSink  FileSink
	kafkaSink KafkaSink
	mirror    func([]byte)

	dropLogLimiter *rate.Limiter
	seq            atomic.Uint64

	log zerolog.Logger
}

// WorkerConfig collects Worker's dependencies; stdoutW defaults to
// os.Stdout when nil (tests can substitute a buffer).
type WorkerConfig struct {
	Filter    *filter.Filter
	Queue     <-chan []byte
	Registry  *Registry
	Stdout    bool
	StdoutW   io.Writer
	FileSink  FileSink
	KafkaSink KafkaSink
	// Mirror, when set, receives a copy of every matched envelope -- wired
	// to internal/debugsrv's websocket broadcaster when debug_listen is
	// configured.
	Mirror func([]byte)
	Log    zerolog.Logger
}

func NewWorker(cfg WorkerConfig) *Worker {
	w := &Worker{
		filterStore:    cfg.Filter,
		queue:          cfg.Queue,
		registry:       cfg.Registry,
		stdout:         cfg.Stdout,
		stdoutMu:       &sync.Mutex{},
		stdoutW:        cfg.StdoutW,
		fileSink:       cfg.FileSink,
		kafkaSink:      cfg.KafkaSink,
		mirror:         cfg.Mirror,
		dropLogLimiter: rate.NewLimiter(rate.Every(time.Second), 5),
		log:            cfg.Log.With().Str("component", "filter-worker").Logger(),
	}
	if w.stdoutW == nil {
		w.stdoutW = os.Stdout
	}
	return w
}

// Run drains the upstream queue until it is closed or done fires.
func (w *Worker) Run(done <-chan struct{}) {
	for {
		select {
		case raw, ok := <-w.queue:
			if !ok {
				return
			}
			w.handle(raw)
		case <-done:
			return
		}
	}
}

// handle implements one pass of spec.md §4.4's four steps.
func (w *Worker) handle(raw []byte) {
	rec, err := xmlrec.Extract(raw)
	if err != nil {
		w.log.Debug().Err(err).Msg("xml extraction failed, treating as no extractable data")
	}

	if !w.filterStore.Matches(rec) {
		return
	}
	messagesMatchedTotal.Inc()

	env := newEnvelope(w.seq.Add(1), raw)
	defer env.release()

	if w.stdout {
		w.stdoutMu.Lock()
		w.stdoutW.Write(env.Bytes())
		w.stdoutMu.Unlock()
	}

	if w.fileSink != nil {
		if err := w.fileSink.Write(env.Bytes()); err != nil {
			w.log.Error().Err(err).Msg("output file write failed")
		}
	}

	if w.kafkaSink != nil {
		w.kafkaSink.Publish(env.Bytes())
	}

	if w.mirror != nil {
		w.mirror(env.Bytes())
	}

	w.registry.Fanout(env, w.onDrop)
}

// onDrop logs the slow-consumer overflow at a rate-limited cadence
// (spec.md §7: "logged at notice level with a counter") and always
// updates the global drop counter regardless of whether this particular
// drop got logged.
func (w *Worker) onDrop(id uint64, drops int64) {
	messagesDroppedTotal.Inc()
	if w.dropLogLimiter.Allow() {
		w.log.Warn().Uint64("subscriber", id).Int64("drops", drops).Msg("slow consumer, dropped envelope")
	}
}
