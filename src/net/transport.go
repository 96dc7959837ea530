package net

import "errors"

// MaxDatagramSize is the size of the receive buffer.
const MaxDatagramSize = 65535

var (
	// ErrTransportShutdown is returned when operations on a transport are
	// invoked after it's been terminated.
	ErrTransportShutdown = errors.New("transport shutdown")
)

// Datagram is a received packet and the address it came from.
type Datagram struct {
	Data   []byte
	Source string
}

// Transport provides an interface for datagram transports.
type Transport interface {

	// Listen starts delivering datagrams to the consumer channel.
	Listen()

	// Consumer returns the channel of received datagrams.
	Consumer() <-chan Datagram

	// LocalAddr is used to return our local address
	LocalAddr() string

	// SendTo sends data to target. Delivery is not guaranteed.
	SendTo(data []byte, target string) error

	// Close permanently closes a transport, stopping
	// any associated goroutines and freeing other resources.
	Close() error
}
