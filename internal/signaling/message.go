package signaling

import "github.com/BioHazard786/peerlink/internal/peer"

// Message is a WebSocket signaling frame.
type Message struct {
	Type        string            `json:"type"`
	Description *peer.Description `json:"description,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// Message type constants.
const (
	MessageTypeOffer  = "offer"
	MessageTypeAnswer = "answer"
	MessageTypeError  = "error"
)
