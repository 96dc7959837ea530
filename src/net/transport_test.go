package net

import (
	"bytes"
	"testing"
	"time"

	"github.com/lholznagel/carina/src/common"
	"github.com/sirupsen/logrus/hooks/test"
)

func receive(t *testing.T, trans Transport) Datagram {
	select {
	case d := <-trans.Consumer():
		return d
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for a datagram on %s", trans.LocalAddr())
	}
	return Datagram{}
}

func TestInmemTransport(t *testing.T) {
	addrA, a := NewInmemTransport("")
	addrB, b := NewInmemTransport("")
	ConnectMesh(a, b)

	if err := a.SendTo([]byte("ping"), addrB); err != nil {
		t.Fatal(err)
	}

	d := receive(t, b)
	if d.Source != addrA || !bytes.Equal(d.Data, []byte("ping")) {
		t.Fatalf("unexpected datagram %+v", d)
	}

	if err := a.SendTo([]byte("x"), "nowhere"); err == nil {
		t.Fatalf("sending to an unconnected peer should fail")
	}

	a.Close()
	if err := a.SendTo([]byte("x"), addrB); err != ErrTransportShutdown {
		t.Fatalf("expected ErrTransportShutdown, got %v", err)
	}
}

func TestUDPTransport(t *testing.T) {
	logger := common.NewTestEntry(t, "udp")

	a, err := NewUDPTransport("127.0.0.1:0", logger)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	b, err := NewUDPTransport("127.0.0.1:0", logger)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	a.Listen()
	b.Listen()

	if err := a.SendTo([]byte{0, 1, 2}, b.LocalAddr()); err != nil {
		t.Fatal(err)
	}

	d := receive(t, b)
	if d.Source != a.LocalAddr() || !bytes.Equal(d.Data, []byte{0, 1, 2}) {
		t.Fatalf("unexpected datagram %+v", d)
	}

	// the receiver can answer on the same socket
	if err := b.SendTo([]byte{9}, d.Source); err != nil {
		t.Fatal(err)
	}
	if d := receive(t, a); !bytes.Equal(d.Data, []byte{9}) {
		t.Fatalf("unexpected reply %+v", d)
	}

	a.Close()
	if err := a.SendTo([]byte{1}, b.LocalAddr()); err != ErrTransportShutdown {
		t.Fatalf("expected ErrTransportShutdown, got %v", err)
	}
}

func TestBindFailure(t *testing.T) {
	a, err := NewUDPTransport("127.0.0.1:0", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	if _, err := NewUDPTransport(a.LocalAddr(), nil); err == nil {
		t.Fatalf("binding an address in use should fail")
	}
}

func TestReadErrorBackoff(t *testing.T) {
	logger, hook := test.NewNullLogger()

	a, err := NewUDPTransport("127.0.0.1:0", logger.WithField("prefix", "udp"))
	if err != nil {
		t.Fatal(err)
	}

	a.Listen()

	// every read fails from now on, but the transport is not shut down
	a.conn.Close()
	time.Sleep(300 * time.Millisecond)

	a.Close()

	// 5ms, 10ms, 20ms... leaves room for a handful of attempts only
	if l := len(hook.AllEntries()); l == 0 || l > 10 {
		t.Fatalf("expected a few read failures to be logged, got %d", l)
	}
}
