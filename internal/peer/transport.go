package peer

import "context"

// SDPType is the role of a description in the offer/answer exchange.
type SDPType string

const (
	SDPTypeOffer    SDPType = "offer"
	SDPTypeAnswer   SDPType = "answer"
	SDPTypePranswer SDPType = "pranswer"
	SDPTypeRollback SDPType = "rollback"
)

// Description is an opaque session description exchanged with the
// remote endpoint. It serializes to the same JSON shape browsers use
// for RTCSessionDescription.
type Description struct {
	Type SDPType `json:"type"`
	SDP  string  `json:"sdp"`
}

// IsZero reports whether d carries no description.
func (d Description) IsZero() bool {
	return d.Type == "" && d.SDP == ""
}

// Candidate is a discovered network path. The zero Candidate marks the
// end of candidate gathering.
type Candidate struct {
	Address string
}

// IsEnd reports whether c is the end-of-candidates marker.
func (c Candidate) IsEnd() bool {
	return c.Address == ""
}

// Event is a notification emitted by a Transport or Channel.
type Event interface {
	event()
}

// CandidateEvent reports a locally gathered candidate, or the end of
// gathering when Candidate.IsEnd.
type CandidateEvent struct {
	Candidate Candidate
}

// TransportStateEvent reports a connection state change.
type TransportStateEvent struct {
	State TransportState
}

// ChannelStateEvent reports a data channel ready state change.
type ChannelStateEvent struct {
	State ChannelState
}

// MessageEvent carries a message received on a data channel.
type MessageEvent struct {
	Data []byte
}

func (CandidateEvent) event()      {}
func (TransportStateEvent) event() {}
func (ChannelStateEvent) event()   {}
func (MessageEvent) event()        {}

// EventSink receives events. Implementations must not block.
type EventSink func(Event)

// Transport is the engine that gathers candidates, holds the local and
// remote descriptions and carries data channels.
type Transport interface {
	// Subscribe directs all future events to sink, replacing any
	// previous subscriber.
	Subscribe(sink EventSink)

	CreateOffer() (Description, error)
	SetLocalDescription(Description) error

	// LocalDescription returns the current local description including
	// every candidate gathered so far.
	LocalDescription() (Description, bool)

	SetRemoteDescription(Description) error
	CreateChannel(label string) (Channel, error)
	Close() error
}

// Channel is a bidirectional data channel carried by a Transport.
type Channel interface {
	Label() string
	Subscribe(sink EventSink)
	Send(data []byte) error
	Close() error
}

// TransportFactory creates transports for new negotiations.
type TransportFactory interface {
	NewTransport() (Transport, error)
}

// TransportFactoryFunc adapts a function to TransportFactory.
type TransportFactoryFunc func() (Transport, error)

func (f TransportFactoryFunc) NewTransport() (Transport, error) {
	return f()
}

// Exchanger sends the local offer to a signaling target and returns the
// remote answer.
type Exchanger interface {
	Exchange(ctx context.Context, target string, offer Description) (Description, error)
}

// ExchangerFunc adapts a function to Exchanger.
type ExchangerFunc func(ctx context.Context, target string, offer Description) (Description, error)

func (f ExchangerFunc) Exchange(ctx context.Context, target string, offer Description) (Description, error) {
	return f(ctx, target, offer)
}
