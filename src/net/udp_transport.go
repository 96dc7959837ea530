package net

import (
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// UDPTransport is a Transport over one UDP socket.
type UDPTransport struct {
	logger *logrus.Entry

	conn      *net.UDPConn
	consumeCh chan Datagram

	shutdown     bool
	shutdownCh   chan struct{}
	shutdownLock sync.Mutex
	listenOnce   sync.Once
}

// NewUDPTransport binds bindAddr. A bind failure is returned to the caller,
// which treats it as fatal.
func NewUDPTransport(bindAddr string, logger *logrus.Entry) (*UDPTransport, error) {
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}

	addr, err := net.ResolveUDPAddr("udp", bindAddr)
	if err != nil {
		return nil, err
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, err
	}

	return &UDPTransport{
		logger:     logger.WithField("transport", "udp"),
		conn:       conn,
		consumeCh:  make(chan Datagram, 256),
		shutdownCh: make(chan struct{}),
	}, nil
}

// Listen implements the Transport interface.
func (u *UDPTransport) Listen() {
	u.listenOnce.Do(func() {
		go u.listen()
	})
}

// Bounds of the pause after a failed read. It doubles on each consecutive
// failure and resets on the next datagram.
const (
	minReadBackoff = 5 * time.Millisecond
	maxReadBackoff = time.Second
)

func (u *UDPTransport) listen() {
	buf := make([]byte, MaxDatagramSize)
	var backoff time.Duration

	for {
		n, addr, err := u.conn.ReadFromUDP(buf)
		if err != nil {
			if u.IsShutdown() {
				return
			}

			backoff *= 2
			if backoff == 0 {
				backoff = minReadBackoff
			}
			if backoff > maxReadBackoff {
				backoff = maxReadBackoff
			}
			u.logger.WithError(err).WithField("retry", backoff).Error("Failed to read datagram")

			select {
			case <-time.After(backoff):
			case <-u.shutdownCh:
				return
			}
			continue
		}
		backoff = 0

		data := make([]byte, n)
		copy(data, buf[:n])

		select {
		case u.consumeCh <- Datagram{Data: data, Source: addr.String()}:
		case <-u.shutdownCh:
			return
		}
	}
}

// Consumer implements the Transport interface.
func (u *UDPTransport) Consumer() <-chan Datagram {
	return u.consumeCh
}

// LocalAddr implements the Transport interface.
func (u *UDPTransport) LocalAddr() string {
	return u.conn.LocalAddr().String()
}

// SendTo implements the Transport interface.
func (u *UDPTransport) SendTo(data []byte, target string) error {
	if u.IsShutdown() {
		return ErrTransportShutdown
	}

	addr, err := net.ResolveUDPAddr("udp", target)
	if err != nil {
		return err
	}

	_, err = u.conn.WriteToUDP(data, addr)
	return err
}

// IsShutdown is used to check if the transport is shutdown.
func (u *UDPTransport) IsShutdown() bool {
	u.shutdownLock.Lock()
	defer u.shutdownLock.Unlock()
	return u.shutdown
}

// Close implements the Transport interface.
func (u *UDPTransport) Close() error {
	u.shutdownLock.Lock()
	defer u.shutdownLock.Unlock()

	if !u.shutdown {
		close(u.shutdownCh)
		u.shutdown = true
		return u.conn.Close()
	}
	return nil
}
