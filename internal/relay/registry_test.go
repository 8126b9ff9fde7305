package relay

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeConn is a net.Conn whose writes go nowhere; enough to register a
// subscriber without opening a real socket.
type fakeConn struct {
	net.Conn
	remote string
}

func (c fakeConn) RemoteAddr() net.Addr      { return fakeAddr(c.remote) }
func (c fakeConn) Write(b []byte) (int, error) { return len(b), nil }
func (c fakeConn) Close() error                { return nil }

type fakeAddr string

func (a fakeAddr) Network() string { return "tcp" }
func (a fakeAddr) String() string  { return string(a) }

func TestFanoutDeliversInOrderToEachSubscriber(t *testing.T) {
	r := NewRegistry()
	const n = 50
	subA := r.Add(fakeConn{remote: "a"}, n)
	subB := r.Add(fakeConn{remote: "b"}, n)

	for i := 1; i <= n; i++ {
		env := newEnvelope(uint64(i), []byte{byte(i)})
		r.Fanout(env, func(uint64, int64) {})
		env.release()
	}

	require.Len(t, subA.queue, n)
	require.Len(t, subB.queue, n)

	var lastA, lastB uint64
	for i := 0; i < n; i++ {
		ea := <-subA.queue
		eb := <-subB.queue
		require.Greater(t, ea.Seq, lastA)
		require.Greater(t, eb.Seq, lastB)
		require.Equal(t, ea.Seq, eb.Seq)
		lastA, lastB = ea.Seq, eb.Seq
		ea.release()
		eb.release()
	}
}

func TestFanoutDropsOnFullQueueWithoutBlockingFastSubscriber(t *testing.T) {
	r := NewRegistry()
	const queueCap = 8
	slow := r.Add(fakeConn{remote: "slow"}, queueCap)
	fast := r.Add(fakeConn{remote: "fast"}, 10000)

	const total = 10000
	var drops []int64
	for i := 1; i <= total; i++ {
		env := newEnvelope(uint64(i), []byte{byte(i)})
		r.Fanout(env, func(id uint64, count int64) {
			if id == slow.id {
				drops = append(drops, count)
			}
		})
		env.release()
	}

	require.Len(t, fast.queue, total)
	require.Len(t, slow.queue, queueCap)
	require.Equal(t, total-queueCap, len(drops))
	require.EqualValues(t, total-queueCap, drops[len(drops)-1])
}

func TestRegistryAddRemoveSize(t *testing.T) {
	r := NewRegistry()
	require.Equal(t, 0, r.Size())

	sub := r.Add(fakeConn{remote: "x"}, 4)
	require.Equal(t, 1, r.Size())

	r.Remove(sub.id)
	require.Equal(t, 0, r.Size())
}

func TestRegistrySnapshotReportsDropCounts(t *testing.T) {
	r := NewRegistry()
	sub := r.Add(fakeConn{remote: "x"}, 1)

	env1 := newEnvelope(1, []byte("a"))
	env2 := newEnvelope(2, []byte("b"))
	r.Fanout(env1, func(uint64, int64) {})
	r.Fanout(env2, func(uint64, int64) {})
	env1.release()
	env2.release()

	stats := r.Snapshot()
	require.Len(t, stats, 1)
	require.Equal(t, sub.id, stats[0].ID)
	require.EqualValues(t, 1, stats[0].Drops)
}
