package msgcenter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// DefaultSubject is the default nats subject messages are exchanged on.
const DefaultSubject = "swb.messages"

// NATS is a transport that publishes messages to a nats subject.
type NATS struct {
	conn    *nats.Conn
	subject string

	m   sync.Mutex
	sub *nats.Subscription
}

// NewNATS connects to the nats server at url.
// An empty subject uses DefaultSubject.
func NewNATS(url, subject, name string) (*NATS, error) {
	if subject == "" {
		subject = DefaultSubject
	}

	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return &NATS{conn: conn, subject: subject}, nil
}

// Send publishes data on the subject.
func (n *NATS) Send(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return n.conn.Publish(n.subject, data)
}

// Listen subscribes to the subject.
// It returns once the server has acknowledged the subscription.
func (n *NATS) Listen(handler func(data []byte)) error {
	n.m.Lock()
	defer n.m.Unlock()

	if n.sub != nil {
		return fmt.Errorf("msgcenter: already listening on %q", n.subject)
	}

	sub, err := n.conn.Subscribe(n.subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %q: %w", n.subject, err)
	}
	if err := n.conn.Flush(); err != nil {
		sub.Unsubscribe()
		return fmt.Errorf("failed to flush subscription: %w", err)
	}

	n.sub = sub
	return nil
}

// Close unsubscribes and closes the connection.
func (n *NATS) Close() error {
	n.m.Lock()
	defer n.m.Unlock()

	var err error
	if n.sub != nil {
		err = n.sub.Unsubscribe()
		n.sub = nil
	}
	n.conn.Close()
	return err
}
