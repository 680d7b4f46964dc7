package msgcenter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"
)

// MaxPacketSize is the maximum size of a message sent over udp.
const MaxPacketSize = 8192

// maxBackoff is the longest time the reader waits after a failed read
const maxBackoff = time.Second

// UDP is a transport that sends datagrams to a fixed set of peers.
type UDP struct {
	conn net.PacketConn

	// Logger receives read errors; nil discards them.
	Logger *slog.Logger

	m     sync.RWMutex
	peers []net.Addr

	wg sync.WaitGroup
}

// NewUDP creates a udp transport listening on listen and sending to peers.
// Peers may include broadcast addresses.
func NewUDP(listen string, peers ...string) (*UDP, error) {
	lc := net.ListenConfig{Control: allowBroadcast}
	conn, err := lc.ListenPacket(context.Background(), "udp", listen)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %q: %w", listen, err)
	}

	udp, err := NewUDPConn(conn, peers...)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return udp, nil
}

// NewUDPConn creates a udp transport on an existing connection.
func NewUDPConn(conn net.PacketConn, peers ...string) (*UDP, error) {
	udp := &UDP{conn: conn}
	for _, peer := range peers {
		if err := udp.AddPeer(peer); err != nil {
			return nil, err
		}
	}
	return udp, nil
}

// LocalAddr returns the address this transport receives on.
func (udp *UDP) LocalAddr() net.Addr {
	return udp.conn.LocalAddr()
}

// AddPeer adds a peer to send messages to.
func (udp *UDP) AddPeer(peer string) error {
	addr, err := net.ResolveUDPAddr("udp", peer)
	if err != nil {
		return fmt.Errorf("failed to resolve peer %q: %w", peer, err)
	}

	udp.m.Lock()
	defer udp.m.Unlock()

	udp.peers = append(udp.peers, addr)
	return nil
}

// Send sends data to every peer.
// Failures for individual peers are joined into a single error.
func (udp *UDP) Send(ctx context.Context, data []byte) error {
	if len(data) > MaxPacketSize {
		return fmt.Errorf("%w: %d bytes exceed the maximum packet size", ErrInvalid, len(data))
	}

	udp.m.RLock()
	defer udp.m.RUnlock()

	var errs []error
	for _, peer := range udp.peers {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := udp.conn.WriteTo(data, peer); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", peer, err))
		}
	}
	return errors.Join(errs...)
}

// Listen starts reading datagrams in a separate goroutine.
func (udp *UDP) Listen(handler func(data []byte)) error {
	udp.wg.Add(1)
	go func() {
		defer udp.wg.Done()

		buffer := make([]byte, MaxPacketSize)
		var backoff time.Duration
		for {
			n, _, err := udp.conn.ReadFrom(buffer)
			if errors.Is(err, net.ErrClosed) {
				return
			}
			if err != nil {
				backoff = min(max(2*backoff, 10*time.Millisecond), maxBackoff)
				if udp.Logger != nil {
					udp.Logger.Warn("failed to read datagram", slog.Any("err", err), slog.Duration("backoff", backoff))
				}
				time.Sleep(backoff)
				continue
			}
			backoff = 0
			handler(buffer[:n])
		}
	}()
	return nil
}

// Close closes the socket and waits for the reader to stop.
func (udp *UDP) Close() error {
	err := udp.conn.Close()
	udp.wg.Wait()
	return err
}
