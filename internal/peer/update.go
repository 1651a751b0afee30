package peer

import "fmt"

// UpdateKind classifies an Update.
type UpdateKind int

const (
	// UpdateState reports a change of the published snapshot.
	UpdateState UpdateKind = iota
	// UpdateTransportState reports the engine's connection state.
	UpdateTransportState
	// UpdateNegotiationFailed carries the NegotiationError in Err.
	UpdateNegotiationFailed
	// UpdateConnected reports that the remote description was applied.
	UpdateConnected
	UpdateChannelOpen
	UpdateChannelClosed
	// UpdateChannelFailed reports that the channel could not be created.
	UpdateChannelFailed
	// UpdateMessage carries data received on the open channel.
	UpdateMessage
	// UpdateStaleEventIgnored records an event for a transport or channel
	// that was already reconciled away.
	UpdateStaleEventIgnored
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateState:
		return "state"
	case UpdateTransportState:
		return "transport-state"
	case UpdateNegotiationFailed:
		return "negotiation-failed"
	case UpdateConnected:
		return "connected"
	case UpdateChannelOpen:
		return "channel-open"
	case UpdateChannelClosed:
		return "channel-closed"
	case UpdateChannelFailed:
		return "channel-failed"
	case UpdateMessage:
		return "message"
	case UpdateStaleEventIgnored:
		return "stale-event-ignored"
	default:
		return fmt.Sprintf("UpdateKind(%d)", int(k))
	}
}

// Update is a typed status value published by a Session for a
// presentation layer to render.
type Update struct {
	Kind     UpdateKind
	Snapshot Snapshot

	// Detail is a short human-readable note, e.g. the raw transport
	// state or the kind of stale event.
	Detail string
	Err    error
	Data   []byte
}
