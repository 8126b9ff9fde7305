package relay

import (
	"errors"
	"net"

	"github.com/rs/zerolog"
)

// Acceptor is spec.md §4.5's subscriber acceptor: listens on a TCP port,
// registers a subscriber record with a bounded queue per accepted
// connection, and spawns a handler.
type Acceptor struct {
	ln       net.Listener
	registry *Registry
	queueLen int
	log      zerolog.Logger
}

func NewAcceptor(ln net.Listener, registry *Registry, queueLen int, log zerolog.Logger) *Acceptor {
	return &Acceptor{
		ln:       ln,
		registry: registry,
		queueLen: queueLen,
		log:      log.With().Str("component", "acceptor").Logger(),
	}
}

// Run accepts connections until done is closed or the listener is closed.
// spawnHandler is called once per accepted subscriber, in its own
// goroutine, to run its receive-only write loop.
func (a *Acceptor) Run(done <-chan struct{}, spawnHandler func(sub *subscriber)) {
	for {
		conn, err := a.ln.Accept()
		if err != nil {
			select {
			case <-done:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			a.log.Warn().Err(err).Msg("accept error")
			continue
		}

		sub := a.registry.Add(conn, a.queueLen)
		a.log.Info().Uint64("subscriber", sub.id).Str("remote", conn.RemoteAddr().String()).Msg("subscriber connected")
		go spawnHandler(sub)
	}
}
