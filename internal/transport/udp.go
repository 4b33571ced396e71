// Package transport implements the UDP unicast/multicast sockets spec.md
// §4.9 describes: MTU-bounded outbound sends and a receive loop that hands
// each datagram's source address and payload to a dispatcher.
//
// Grounded on other_examples' nabbar/golib socket/udp doc.go (connectionless,
// single-handler UDP server: net.ListenUDP, a context-cancellable read
// loop, callback-based datagram dispatch) adapted from a single shared
// listener into the two-socket-per-transport (unicast + multicast) shape
// spec.md's discovery subsystem needs.
package transport

import (
	"context"
	"fmt"
	"net"

	"github.com/rs/zerolog"

	"godds/internal/rtpscore"
)

// DatagramHandler processes one received UDP datagram. The byte slice is
// only valid for the duration of the call — implementations that need to
// retain it must copy.
type DatagramHandler func(from *net.UDPAddr, data []byte)

// Socket wraps one UDP listener (unicast or multicast) with a receive loop
// and bounded-size send.
type Socket struct {
	conn       *net.UDPConn
	maxMessage int
	logger     zerolog.Logger
}

// ListenUnicast opens a unicast UDP socket on the given port, optionally
// bound to a single interface's address.
func ListenUnicast(port int, bindAddr net.IP, maxMessage int, logger zerolog.Logger) (*Socket, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: bindAddr, Port: port})
	if err != nil {
		return nil, fmt.Errorf("transport: listen unicast :%d: %w", port, err)
	}
	return &Socket{conn: conn, maxMessage: maxMessage, logger: logger}, nil
}

// ListenMulticast opens a socket joined to the given multicast group on
// the given port, via the named interface (empty means the first suitable
// non-loopback interface, per spec.md §9's open question resolution in
// DESIGN.md).
func ListenMulticast(group net.IP, port int, ifaceName string, maxMessage int, logger zerolog.Logger) (*Socket, error) {
	iface, err := resolveInterface(ifaceName)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenMulticastUDP("udp4", iface, &net.UDPAddr{IP: group, Port: port})
	if err != nil {
		return nil, fmt.Errorf("transport: listen multicast %s:%d: %w", group, port, err)
	}
	return &Socket{conn: conn, maxMessage: maxMessage, logger: logger}, nil
}

// resolveInterface picks the named interface, or else the lowest-index
// non-loopback multicast-capable interface.
func resolveInterface(name string) (*net.Interface, error) {
	if name != "" {
		iface, err := net.InterfaceByName(name)
		if err != nil {
			return nil, fmt.Errorf("transport: interface %q: %w", name, err)
		}
		return iface, nil
	}
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("transport: enumerate interfaces: %w", err)
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagMulticast == 0 {
			continue
		}
		ifcopy := iface
		return &ifcopy, nil
	}
	return nil, fmt.Errorf("transport: no suitable multicast-capable interface found")
}

// Run reads datagrams until ctx is cancelled, invoking handler for each.
func (s *Socket) Run(ctx context.Context, handler DatagramHandler) {
	go func() {
		<-ctx.Done()
		s.conn.Close()
	}()

	buf := make([]byte, 65536)
	for {
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				s.logger.Warn().Err(err).Msg("udp read error")
				return
			}
		}
		datagram := make([]byte, n)
		copy(datagram, buf[:n])
		handler(addr, datagram)
	}
}

// Send writes data to dst, refusing payloads over the configured MTU
// bound (spec.md §4.9) rather than letting the OS fragment at IP level.
func (s *Socket) Send(dst *net.UDPAddr, data []byte) error {
	if s.maxMessage > 0 && len(data) > s.maxMessage {
		return fmt.Errorf("transport: message of %d bytes exceeds max %d", len(data), s.maxMessage)
	}
	_, err := s.conn.WriteToUDP(data, dst)
	return err
}

// LocalPort returns the port this socket is bound to (useful when Listen
// was called with port 0 for an OS-assigned ephemeral port).
func (s *Socket) LocalPort() int {
	return s.conn.LocalAddr().(*net.UDPAddr).Port
}

// Close releases the underlying socket.
func (s *Socket) Close() error {
	return s.conn.Close()
}

// ToUDPAddr converts an RTPS Locator to a net.UDPAddr for sending.
func ToUDPAddr(loc rtpscore.Locator) *net.UDPAddr {
	return loc.UDPAddr()
}
