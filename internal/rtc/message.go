package rtc

import (
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Message types carried on the session channel.
const (
	TypeText = "text"
	TypePing = "ping"
	TypePong = "pong"
)

// Message represents all data channel messages
type Message struct {
	Type    string             `msgpack:"type"`
	Payload msgpack.RawMessage `msgpack:"payload"`
}

// TextPayload is free-form text.
type TextPayload struct {
	Body string `msgpack:"body"`
}

// PingPayload is sent by the offerer and returned unchanged in a pong.
type PingPayload struct {
	Seq    uint64 `msgpack:"seq"`
	SentAt int64  `msgpack:"sentAt"`
}

// RTT returns the round trip time of a pong carrying p.
func (p PingPayload) RTT(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, p.SentAt))
}

// DecodePayload decodes the message payload into the provided struct
func (m Message) DecodePayload(v any) error {
	return msgpack.Unmarshal(m.Payload, v)
}

// Encode serializes m for sending.
func (m Message) Encode() ([]byte, error) {
	return msgpack.Marshal(m)
}

// NewMessage creates a new Message with the given type and payload
func NewMessage(t string, payload any) (Message, error) {
	b, err := msgpack.Marshal(payload)
	if err != nil {
		return Message{}, err
	}

	return Message{
		Type:    t,
		Payload: b,
	}, nil
}

// DecodeMessage parses a received frame.
func DecodeMessage(data []byte) (Message, error) {
	var m Message
	err := msgpack.Unmarshal(data, &m)
	return m, err
}

// EncodeText builds a text frame.
func EncodeText(body string) ([]byte, error) {
	m, err := NewMessage(TypeText, TextPayload{Body: body})
	if err != nil {
		return nil, err
	}
	return m.Encode()
}

// EncodePing builds a ping frame stamped with now.
func EncodePing(seq uint64, now time.Time) ([]byte, error) {
	m, err := NewMessage(TypePing, PingPayload{Seq: seq, SentAt: now.UnixNano()})
	if err != nil {
		return nil, err
	}
	return m.Encode()
}
