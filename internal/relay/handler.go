package relay

import (
	"github.com/rs/zerolog"
)

// prolog is the literal framing bytes written to every subscriber on
// accept, per spec.md §6's subscriber wire protocol.
const prolog = "<xml>"

// RunHandler is spec.md §4.6's subscriber handler: write the prolog, then
// drain the subscriber's queue to its socket until shutdown or a write
// failure, never reading from the socket. It blocks on an empty queue
// (select on the queue and done) rather than busy-spinning, the
// shutdown-aware wake spec.md §9's Design Notes recommend in place of a
// per-thread busy-sleep loop.
func RunHandler(sub *subscriber, registry *Registry, done <-chan struct{}, log zerolog.Logger) {
	log = log.With().Str("component", "subscriber-handler").Uint64("subscriber", sub.id).Logger()

	defer func() {
		sub.alive.Store(false)
		sub.conn.Close()
		registry.Remove(sub.id)
		log.Info().Msg("subscriber disconnected")
	}()

	if _, err := sub.conn.Write([]byte(prolog)); err != nil {
		log.Warn().Err(err).Msg("prolog write failed")
		return
	}

	for {
		select {
		case e, ok := <-sub.queue:
			if !ok {
				return
			}
			_, err := sub.conn.Write(e.Bytes())
			e.release()
			if err != nil {
				log.Warn().Err(err).Msg("write failed")
				return
			}
		case <-done:
			return
		}
	}
}
