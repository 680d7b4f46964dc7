package msgcenter_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/haxdai/SWBPlatform-sub000/internal/msgcenter"
	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestMessage(t *testing.T) {
	when := time.UnixMilli(1700000000123)

	message := msgcenter.Message{Kind: "hit", Node: "a", Time: when, Payload: "http://example.org/x|y"}
	data, err := message.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "hit|a|1700000000123|http://example.org/x|y", string(data))

	var decoded msgcenter.Message
	require.NoError(t, decoded.UnmarshalText(append(data, '\n')))
	assert.Equal(t, message.Kind, decoded.Kind)
	assert.Equal(t, message.Node, decoded.Node)
	assert.True(t, when.Equal(decoded.Time))
	assert.Equal(t, message.Payload, decoded.Payload)

	for _, invalid := range []msgcenter.Message{
		{Kind: ""},
		{Kind: "a|b"},
		{Kind: "hit", Node: "a|b"},
		{Kind: "hit", Payload: "line\nbreak"},
	} {
		_, err := invalid.MarshalText()
		assert.ErrorIs(t, err, msgcenter.ErrInvalid, invalid.Kind)
	}

	for _, malformed := range []string{"", "hit", "hit|a|b", "hit|a|notatime|x", "|a|1|x"} {
		assert.ErrorIs(t, decoded.UnmarshalText([]byte(malformed)), msgcenter.ErrMalformed, malformed)
	}
}

// collector collects received messages
type collector struct {
	m        sync.Mutex
	messages []msgcenter.Message
}

func (c *collector) handle(message msgcenter.Message) {
	c.m.Lock()
	defer c.m.Unlock()

	c.messages = append(c.messages, message)
}

func (c *collector) payloads() []string {
	c.m.Lock()
	defer c.m.Unlock()

	payloads := make([]string, len(c.messages))
	for i, message := range c.messages {
		payloads[i] = message.Kind + " " + message.Payload
	}
	return payloads
}

func TestCenter_UDP(t *testing.T) {
	ctx := context.Background()

	udpA, err := msgcenter.NewUDP("127.0.0.1:0")
	require.NoError(t, err)
	udpB, err := msgcenter.NewUDP("127.0.0.1:0")
	require.NoError(t, err)

	// a also talks to itself, which must be ignored
	require.NoError(t, udpA.AddPeer(udpA.LocalAddr().String()))
	require.NoError(t, udpA.AddPeer(udpB.LocalAddr().String()))
	require.NoError(t, udpB.AddPeer(udpA.LocalAddr().String()))

	a := msgcenter.New("a", udpA, discard)
	b := msgcenter.New("b", udpB, discard)
	defer a.Close()
	defer b.Close()

	var gotA, gotB collector
	a.Handle("*", gotA.handle)
	b.Handle(msgcenter.KindHit, gotB.handle)
	b.Handle(msgcenter.KindHit, func(msgcenter.Message) { panic("broken handler") })

	require.NoError(t, b.Start(ctx))
	require.NoError(t, a.Start(ctx))

	require.NoError(t, a.Send(ctx, msgcenter.KindHit, "urn:1"))
	require.NoError(t, a.Send(ctx, msgcenter.KindInvalidate, "urn:2"))
	require.NoError(t, a.Send(ctx, msgcenter.KindHit, "urn:3"))

	// garbage is dropped
	conn, err := net.Dial("udp", udpB.LocalAddr().String())
	require.NoError(t, err)
	_, err = conn.Write([]byte("garbage"))
	require.NoError(t, err)
	conn.Close()

	assert.Eventually(t, func() bool {
		return len(gotB.payloads()) == 2 && b.Stats().Dropped == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"hit urn:1", "hit urn:3"}, gotB.payloads())

	// a saw b's hello and b's answer to its own hello, but none of its own messages
	assert.Eventually(t, func() bool {
		return a.Stats().Ignored == 5 && len(gotA.payloads()) == 2
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"hello ", "hello reply"}, gotA.payloads())
	assert.Equal(t, []string{"b"}, a.Nodes())
	assert.Equal(t, []string{"a"}, b.Nodes())

	// each node answered the other's hello once
	assert.EqualValues(t, 5, a.Stats().Sent)
	assert.EqualValues(t, 2, b.Stats().Sent)
}

func TestCenter_HelloReply(t *testing.T) {
	ctx := context.Background()

	udpA, err := msgcenter.NewUDP("127.0.0.1:0")
	require.NoError(t, err)
	udpB, err := msgcenter.NewUDP("127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, udpB.AddPeer(udpA.LocalAddr().String()))

	a := msgcenter.New("a", udpA, discard)
	b := msgcenter.New("b", udpB, discard)
	defer a.Close()
	defer b.Close()

	// a started before it knew about b, so its hello went nowhere
	require.NoError(t, a.Start(ctx))
	require.NoError(t, udpA.AddPeer(udpB.LocalAddr().String()))
	require.NoError(t, b.Start(ctx))

	assert.Eventually(t, func() bool {
		return len(b.Nodes()) == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"a"}, b.Nodes())
	assert.Equal(t, []string{"b"}, a.Nodes())
}

func TestCenter_NotStarted(t *testing.T) {
	udp, err := msgcenter.NewUDP("127.0.0.1:0")
	require.NoError(t, err)

	center := msgcenter.New("", udp, discard)
	assert.NotEmpty(t, center.Node())
	assert.ErrorIs(t, center.Send(context.Background(), msgcenter.KindHit, "x"), msgcenter.ErrNotStarted)

	require.NoError(t, center.Close())
	assert.Error(t, center.Start(context.Background()))
}

func TestCenter_NATS(t *testing.T) {
	ns, err := natsserver.NewServer(&natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	})
	require.NoError(t, err)

	go ns.Start()
	defer ns.Shutdown()
	require.True(t, ns.ReadyForConnections(5*time.Second), "nats server did not start")

	ctx := context.Background()

	natsA, err := msgcenter.NewNATS(ns.ClientURL(), "", "a")
	require.NoError(t, err)
	natsB, err := msgcenter.NewNATS(ns.ClientURL(), "", "b")
	require.NoError(t, err)

	a := msgcenter.New("a", natsA, discard)
	b := msgcenter.New("b", natsB, discard)
	defer a.Close()
	defer b.Close()

	var gotB collector
	b.Handle(msgcenter.KindInvalidate, gotB.handle)

	require.NoError(t, b.Start(ctx))
	require.NoError(t, a.Start(ctx))
	require.NoError(t, a.Send(ctx, msgcenter.KindInvalidate, "urn:1"))

	assert.Eventually(t, func() bool {
		return len(gotB.payloads()) == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"invalidate urn:1"}, gotB.payloads())

	// both see their own hello on the shared subject
	assert.Eventually(t, func() bool {
		return a.Stats().Ignored >= 2 && b.Stats().Ignored >= 1
	}, 5*time.Second, 10*time.Millisecond)
}

// brokenConn is a packet connection whose reads fail a number of times before it is closed
type brokenConn struct {
	net.PacketConn
	failures int
	reads    int
}

func (bc *brokenConn) ReadFrom(p []byte) (int, net.Addr, error) {
	bc.reads++
	if bc.reads > bc.failures {
		return 0, nil, net.ErrClosed
	}
	return 0, nil, errors.New("socket broken")
}

func (bc *brokenConn) Close() error { return nil }

func TestUDP_ReadErrors(t *testing.T) {
	conn := &brokenConn{failures: 3}
	udp, err := msgcenter.NewUDPConn(conn)
	require.NoError(t, err)

	var logs bytes.Buffer
	udp.Logger = slog.New(slog.NewTextHandler(&logs, nil))

	var handled int
	start := time.Now()
	require.NoError(t, udp.Listen(func([]byte) { handled++ }))
	require.NoError(t, udp.Close())

	// the reader waited 10ms, 20ms and 40ms between the failures
	assert.GreaterOrEqual(t, time.Since(start), 70*time.Millisecond)
	assert.Equal(t, 4, conn.reads)
	assert.Zero(t, handled)
	assert.Equal(t, 3, strings.Count(logs.String(), "failed to read datagram"))
}
