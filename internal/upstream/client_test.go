package upstream

import (
	"context"
	"net"
	"testing"
	"time"
)

func listenAndServe(t *testing.T, write func(net.Conn)) (host string, port int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		write(conn)
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return "127.0.0.1", addr.Port
}

func TestReadOneMessageDecodesFramedDocument(t *testing.T) {
	host, port := listenAndServe(t, func(conn net.Conn) {
		defer conn.Close()
		conn.Write([]byte("<BGP_MESSAGE><ASCII_MSG/></BGP_MESSAGE>"))
		time.Sleep(50 * time.Millisecond)
	})

	c := New(host, port)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Close()

	msg, err := c.ReadOneMessage()
	if err != nil {
		t.Fatalf("ReadOneMessage: %v", err)
	}
	want := "<BGP_MESSAGE><ASCII_MSG/></BGP_MESSAGE>"
	if string(msg) != want {
		t.Fatalf("got %q, want %q", msg, want)
	}
}

func TestReadOneMessageSkipsLeadingNoise(t *testing.T) {
	host, port := listenAndServe(t, func(conn net.Conn) {
		defer conn.Close()
		conn.Write([]byte("\n\n<BGP_MESSAGE>hello</BGP_MESSAGE>"))
		time.Sleep(50 * time.Millisecond)
	})

	c := New(host, port)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Close()

	msg, err := c.ReadOneMessage()
	if err != nil {
		t.Fatalf("ReadOneMessage: %v", err)
	}
	if string(msg) != "<BGP_MESSAGE>hello</BGP_MESSAGE>" {
		t.Fatalf("got %q", msg)
	}
}

func TestReadOneMessageReturnsErrorAndMarksDisconnectedOnClose(t *testing.T) {
	host, port := listenAndServe(t, func(conn net.Conn) {
		conn.Close()
	})

	c := New(host, port)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	if _, err := c.ReadOneMessage(); err == nil {
		t.Fatal("expected error reading from a closed connection")
	}
	if c.IsConnected() {
		t.Fatal("expected IsConnected to report false after disconnect")
	}
}

func TestReaderRunInvokesOnDisconnect(t *testing.T) {
	host, port := listenAndServe(t, func(conn net.Conn) {
		conn.Close()
	})

	c := New(host, port)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	queue := make(chan []byte, 1)
	disconnected := make(chan struct{})
	r := NewReader(c, queue, testLogger(), func() { close(disconnected) })

	done := make(chan struct{})
	go r.Run(done)

	select {
	case <-disconnected:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for onDisconnect")
	}
}

func TestReaderRunPushesMessagesInOrder(t *testing.T) {
	host, port := listenAndServe(t, func(conn net.Conn) {
		defer conn.Close()
		conn.Write([]byte("<BGP_MESSAGE>1</BGP_MESSAGE><BGP_MESSAGE>2</BGP_MESSAGE>"))
		time.Sleep(100 * time.Millisecond)
	})

	c := New(host, port)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	queue := make(chan []byte, 8)
	done := make(chan struct{})
	r := NewReader(c, queue, testLogger(), func() {})
	go r.Run(done)
	defer close(done)

	first := <-queue
	second := <-queue
	if string(first) != "<BGP_MESSAGE>1</BGP_MESSAGE>" || string(second) != "<BGP_MESSAGE>2</BGP_MESSAGE>" {
		t.Fatalf("got %q then %q", first, second)
	}
}
