package msgcenter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Transport delivers raw messages between nodes.
type Transport interface {
	// Send sends data to all other nodes.
	Send(ctx context.Context, data []byte) error

	// Listen starts delivering received data to handler.
	// It returns once the transport is ready to receive.
	// handler is never called concurrently.
	Listen(handler func(data []byte)) error

	// Close stops sending and receiving.
	Close() error
}

// Handler handles a received message.
type Handler func(message Message)

// Stats holds message counters.
type Stats struct {
	Sent     uint64
	Received uint64
	Ignored  uint64 // sent by this node
	Dropped  uint64 // malformed
}

var ErrNotStarted = errors.New("msgcenter: not started")

// Center sends and receives messages through a transport.
type Center struct {
	node      string
	transport Transport
	logger    *slog.Logger

	m        sync.RWMutex
	handlers map[string][]Handler
	nodes    map[string]time.Time // other nodes by last contact
	started  bool
	closed   bool

	sent, received, ignored, dropped atomic.Uint64
}

// New creates a new center using the given transport.
// If node is empty, a random node name is used.
func New(node string, transport Transport, logger *slog.Logger) *Center {
	if node == "" {
		node = uuid.NewString()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Center{
		node:      node,
		transport: transport,
		logger:    logger.With(slog.String("node", node)),
		handlers:  make(map[string][]Handler),
		nodes:     make(map[string]time.Time),
	}
}

// Node returns the name of this node.
func (center *Center) Node() string {
	return center.node
}

// Handle registers handler to be called for received messages of the given kind.
// The kind "*" receives all messages.
func (center *Center) Handle(kind string, handler Handler) {
	center.m.Lock()
	defer center.m.Unlock()

	center.handlers[kind] = append(center.handlers[kind], handler)
}

// Start starts receiving messages and announces this node to the others.
func (center *Center) Start(ctx context.Context) error {
	center.m.Lock()
	if center.started || center.closed {
		center.m.Unlock()
		return fmt.Errorf("msgcenter: already started")
	}
	center.started = true
	center.m.Unlock()

	if err := center.transport.Listen(center.receive); err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	center.logger.Info("message center started")
	return center.Send(ctx, KindHello, "")
}

// Send sends a message of the given kind to all other nodes.
func (center *Center) Send(ctx context.Context, kind, payload string) error {
	center.m.RLock()
	started := center.started && !center.closed
	center.m.RUnlock()
	if !started {
		return ErrNotStarted
	}

	data, err := Message{Kind: kind, Node: center.node, Time: time.Now(), Payload: payload}.MarshalText()
	if err != nil {
		return err
	}
	if err := center.transport.Send(ctx, data); err != nil {
		return fmt.Errorf("failed to send %s message: %w", kind, err)
	}
	center.sent.Add(1)
	return nil
}

func (center *Center) receive(data []byte) {
	var message Message
	if err := message.UnmarshalText(data); err != nil {
		center.dropped.Add(1)
		center.logger.Warn("dropping malformed message", slog.Any("err", err))
		return
	}
	if message.Node == center.node {
		center.ignored.Add(1)
		return
	}
	center.received.Add(1)

	center.m.Lock()
	center.nodes[message.Node] = time.Now()
	handlers := slices.Concat(center.handlers[message.Kind], center.handlers["*"])
	center.m.Unlock()

	if message.Kind == KindHello {
		center.logger.Info("node joined", slog.String("peer", message.Node))

		// answer announcements so that the new node learns about this one
		if message.Payload != helloReply {
			if err := center.Send(context.Background(), KindHello, helloReply); err != nil {
				center.logger.Debug("failed to answer hello", slog.Any("err", err))
			}
		}
	}

	for _, handler := range handlers {
		center.dispatch(handler, message)
	}
}

func (center *Center) dispatch(handler Handler, message Message) {
	defer func() {
		if r := recover(); r != nil {
			center.logger.Error("message handler panicked", slog.String("kind", message.Kind), slog.Any("panic", r))
		}
	}()
	handler(message)
}

// Nodes returns the names of other nodes messages were received from.
func (center *Center) Nodes() []string {
	center.m.RLock()
	defer center.m.RUnlock()

	return slices.Sorted(maps.Keys(center.nodes))
}

// Stats returns the message counters of this center.
func (center *Center) Stats() Stats {
	return Stats{
		Sent:     center.sent.Load(),
		Received: center.received.Load(),
		Ignored:  center.ignored.Load(),
		Dropped:  center.dropped.Load(),
	}
}

// Close closes the underlying transport.
func (center *Center) Close() error {
	center.m.Lock()
	if center.closed {
		center.m.Unlock()
		return nil
	}
	center.closed = true
	center.m.Unlock()

	return center.transport.Close()
}
