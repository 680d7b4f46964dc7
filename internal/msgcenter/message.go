// Package msgcenter exchanges best-effort notifications between platform nodes.
//
// Messages are small text lines; there are no ordering or delivery guarantees.
package msgcenter

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Well-known message kinds
const (
	KindHello      = "hello"      // a node has started
	KindHit        = "hit"        // an object was read; payload is its uri
	KindInvalidate = "invalidate" // an object was changed; payload is its uri
	KindReset      = "reset"      // many objects of a model were changed; payload is the model name
)

// helloReply is the payload of a hello sent in response to another one
const helloReply = "reply"

const separator = '|'

var (
	ErrMalformed = errors.New("msgcenter: malformed message")
	ErrInvalid   = errors.New("msgcenter: message can not be encoded")
)

// Message is a single notification.
type Message struct {
	Kind    string
	Node    string // node that sent the message
	Time    time.Time
	Payload string
}

// MarshalText encodes this message as a single "kind|node|unixmillis|payload" line.
func (message Message) MarshalText() ([]byte, error) {
	if message.Kind == "" || strings.ContainsAny(message.Kind, "|\r\n") {
		return nil, fmt.Errorf("%w: invalid kind %q", ErrInvalid, message.Kind)
	}
	if strings.ContainsAny(message.Node, "|\r\n") {
		return nil, fmt.Errorf("%w: invalid node %q", ErrInvalid, message.Node)
	}
	if strings.ContainsAny(message.Payload, "\r\n") {
		return nil, fmt.Errorf("%w: payload contains a newline", ErrInvalid)
	}

	var buffer bytes.Buffer
	buffer.WriteString(message.Kind)
	buffer.WriteByte(separator)
	buffer.WriteString(message.Node)
	buffer.WriteByte(separator)
	buffer.WriteString(strconv.FormatInt(message.Time.UnixMilli(), 10))
	buffer.WriteByte(separator)
	buffer.WriteString(message.Payload)
	return buffer.Bytes(), nil
}

// UnmarshalText decodes a message encoded by MarshalText.
// A trailing newline is ignored.
func (message *Message) UnmarshalText(data []byte) error {
	data = bytes.TrimRight(data, "\r\n")

	parts := bytes.SplitN(data, []byte{separator}, 4)
	if len(parts) != 4 || len(parts[0]) == 0 {
		return fmt.Errorf("%w: %q", ErrMalformed, data)
	}

	millis, err := strconv.ParseInt(string(parts[2]), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: invalid time %q", ErrMalformed, parts[2])
	}

	message.Kind = string(parts[0])
	message.Node = string(parts[1])
	message.Time = time.UnixMilli(millis)
	message.Payload = string(parts[3])
	return nil
}

func (message Message) String() string {
	data, err := message.MarshalText()
	if err != nil {
		return fmt.Sprintf("invalid message (%s)", err)
	}
	return string(data)
}
