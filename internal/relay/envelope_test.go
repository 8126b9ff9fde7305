package relay

import "testing"

func TestEnvelopeReleasesBufferOnlyAfterEveryReferenceIsGone(t *testing.T) {
	e := newEnvelope(1, []byte("hello"))
	e.retain()
	e.retain()

	e.release() // worker's initial reference
	if got := string(e.Bytes()); got != "hello" {
		t.Fatalf("buffer released too early: Bytes() = %q", got)
	}

	e.release()
	if got := string(e.Bytes()); got != "hello" {
		t.Fatalf("buffer released too early: Bytes() = %q", got)
	}

	e.release() // last reference: buffer returns to the pool
}

func TestEnvelopeSeqIsPreserved(t *testing.T) {
	e := newEnvelope(42, []byte("x"))
	defer e.release()
	if e.Seq != 42 {
		t.Fatalf("Seq = %d, want 42", e.Seq)
	}
}
