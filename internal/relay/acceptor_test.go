package relay

import (
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestAcceptorRegistersEachAcceptedConnection(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	registry := NewRegistry()
	a := NewAcceptor(ln, registry, 4, zerolog.Nop())

	spawned := make(chan *subscriber, 2)
	done := make(chan struct{})
	go a.Run(done, func(sub *subscriber) { spawned <- sub })

	c1, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer c1.Close()
	c2, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer c2.Close()

	for i := 0; i < 2; i++ {
		select {
		case <-spawned:
		case <-time.After(time.Second):
			t.Fatal("acceptor did not spawn a handler for an accepted connection")
		}
	}
	require.Equal(t, 2, registry.Size())

	close(done)
	ln.Close()
}
