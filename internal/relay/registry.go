package relay

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"
)

// subscriber is spec.md §3's (id, output socket, bounded queue, alive
// flag). Its queue is exclusively consumed by its own handler.
type subscriber struct {
	id    uint64
	conn  net.Conn
	queue chan *Envelope
	alive atomic.Bool
}

// SubscriberStat is a point-in-time snapshot exposed to internal/debugsrv.
type SubscriberStat struct {
	ID     uint64
	Remote string
	Drops  int64
}

// Registry is the subscriber registry of spec.md §5: "a list guarded by
// one mutex; writers are acceptor and handler (on deregister); reader is
// filter worker. The worker takes the lock for the duration of one fanout
// pass." The per-subscriber drop counter lives in a separate xsync.MapOf
// deliberately outside that mutex -- it is written by the filter worker's
// fanout pass and read concurrently by the debug server, a pattern the
// spec never mandates a single lock for (see DESIGN.md).
type Registry struct {
	mu     sync.Mutex
	subs   map[uint64]*subscriber
	nextID uint64

	drops *xsync.MapOf[uint64, *atomic.Int64]
}

func NewRegistry() *Registry {
	return &Registry{
		subs:  make(map[uint64]*subscriber),
		drops: xsync.NewMapOf[uint64, *atomic.Int64](),
	}
}

// Add registers a newly accepted connection and returns its subscriber
// record, with a bounded queue of the given capacity.
func (r *Registry) Add(conn net.Conn, queueLen int) *subscriber {
	r.mu.Lock()
	r.nextID++
	sub := &subscriber{id: r.nextID, conn: conn, queue: make(chan *Envelope, queueLen)}
	sub.alive.Store(true)
	r.subs[sub.id] = sub
	r.mu.Unlock()

	r.drops.Store(sub.id, new(atomic.Int64))
	return sub
}

// Remove deregisters a subscriber, called by its handler on exit.
func (r *Registry) Remove(id uint64) {
	r.mu.Lock()
	delete(r.subs, id)
	r.mu.Unlock()
	r.drops.Delete(id)
}

// Size reports the number of currently registered subscribers.
func (r *Registry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// Snapshot lists every subscriber's id, remote address, and drop count,
// for internal/debugsrv's /subscribers endpoint.
func (r *Registry) Snapshot() []SubscriberStat {
	r.mu.Lock()
	stats := make([]SubscriberStat, 0, len(r.subs))
	for id, sub := range r.subs {
		stats = append(stats, SubscriberStat{ID: id, Remote: sub.conn.RemoteAddr().String()})
	}
	r.mu.Unlock()

	for i := range stats {
		if c, ok := r.drops.Load(stats[i].ID); ok {
			stats[i].Drops = c.Load()
		}
	}
	return stats
}

// Fanout attempts to enqueue e on every alive subscriber's queue without
// blocking, per spec.md §4.4's slow-consumer policy: a full queue drops
// the envelope for that subscriber only, never the worker's own progress.
// onDrop is invoked (outside the registry lock) for every subscriber the
// envelope was dropped for, with that subscriber's running drop count.
func (r *Registry) Fanout(e *Envelope, onDrop func(id uint64, drops int64)) {
	r.mu.Lock()
	type dropped struct {
		id    uint64
		count int64
	}
	var drops []dropped
	for id, sub := range r.subs {
		if !sub.alive.Load() {
			continue
		}
		e.retain()
		select {
		case sub.queue <- e:
		default:
			e.release()
			counter, _ := r.drops.Load(id)
			drops = append(drops, dropped{id: id, count: counter.Add(1)})
		}
	}
	r.mu.Unlock()

	for _, d := range drops {
		onDrop(d.id, d.count)
	}
}
