package peer

import "fmt"

// ConnectionState is the published state of a Session.
//
//	Absent -> New -> Negotiating -> Connected -> Closed
//
// New means a transport exists but has no local description yet,
// Negotiating means the local description is applied and the session
// is waiting on candidate gathering or the signaling exchange.
type ConnectionState int

const (
	ConnectionAbsent ConnectionState = iota
	ConnectionNew
	ConnectionNegotiating
	ConnectionConnected
	ConnectionClosed
)

func (s ConnectionState) String() string {
	switch s {
	case ConnectionAbsent:
		return "absent"
	case ConnectionNew:
		return "new"
	case ConnectionNegotiating:
		return "negotiating"
	case ConnectionConnected:
		return "connected"
	case ConnectionClosed:
		return "closed"
	default:
		return fmt.Sprintf("ConnectionState(%d)", int(s))
	}
}

// Live reports whether a transport is held in this state.
func (s ConnectionState) Live() bool {
	return s == ConnectionNew || s == ConnectionNegotiating || s == ConnectionConnected
}

// TransportState mirrors the connection state reported by the
// underlying engine.
type TransportState int

const (
	TransportNew TransportState = iota
	TransportConnecting
	TransportConnected
	TransportDisconnected
	TransportFailed
	TransportClosed
)

func (s TransportState) String() string {
	switch s {
	case TransportNew:
		return "new"
	case TransportConnecting:
		return "connecting"
	case TransportConnected:
		return "connected"
	case TransportDisconnected:
		return "disconnected"
	case TransportFailed:
		return "failed"
	case TransportClosed:
		return "closed"
	default:
		return fmt.Sprintf("TransportState(%d)", int(s))
	}
}

// ChannelState is the ready state of the session's data channel.
// Transitions only move forward: Connecting -> Open -> Closing -> Closed.
// Absent means no channel is held.
type ChannelState int

const (
	ChannelAbsent ChannelState = iota
	ChannelConnecting
	ChannelOpen
	ChannelClosing
	ChannelClosed
)

func (s ChannelState) String() string {
	switch s {
	case ChannelAbsent:
		return "absent"
	case ChannelConnecting:
		return "connecting"
	case ChannelOpen:
		return "open"
	case ChannelClosing:
		return "closing"
	case ChannelClosed:
		return "closed"
	default:
		return fmt.Sprintf("ChannelState(%d)", int(s))
	}
}

// Live reports whether a channel is held in this state.
func (s ChannelState) Live() bool {
	return s == ChannelConnecting || s == ChannelOpen || s == ChannelClosing
}
