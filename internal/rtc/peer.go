package rtc

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/BioHazard786/peerlink/internal/config"
	"github.com/BioHazard786/peerlink/internal/peer"
	"github.com/BioHazard786/peerlink/internal/utils"
	pion "github.com/pion/webrtc/v4"
)

// The bootstrap data channel is created before the offer. It makes the
// offer carry an application section so the real channel can be opened
// after the answer without renegotiating. Nobody sends on it. Answerers
// recognise it by its subprotocol, so any label stays free for the real
// channel.
const (
	BootstrapLabel    = "init"
	BootstrapProtocol = "peerlink-bootstrap"
)

// Configuration builds the ICE configuration for cfg. Relay is forced
// when requested or when the host looks like it sits behind a VPN, but
// only if a TURN server is available.
func Configuration(cfg *config.Config) pion.Configuration {
	var iceServers []pion.ICEServer
	if stun := cfg.GetSTUNServers(); stun != nil {
		iceServers = append(iceServers, pion.ICEServer{URLs: stun})
	}

	turnServers := cfg.GetTURNServers()
	if turnServers != nil {
		username, password := cfg.GetTURNCredentials()
		iceServers = append(iceServers, pion.ICEServer{
			URLs:       turnServers,
			Username:   username,
			Credential: password,
		})
	}

	policy := pion.ICETransportPolicyAll
	if turnServers != nil && (cfg.ForceRelay || utils.ShouldForceRelay()) {
		policy = pion.ICETransportPolicyRelay
	}

	return pion.Configuration{
		ICEServers:         iceServers,
		ICETransportPolicy: policy,
	}
}

// Factory creates offering transports.
type Factory struct {
	Config pion.Configuration
	Logger *slog.Logger
}

func (f *Factory) NewTransport() (peer.Transport, error) {
	logger := f.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pc, err := pion.NewPeerConnection(f.Config)
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}
	t, err := NewTransport(pc, logger)
	if err != nil {
		pc.Close()
		return nil, err
	}
	return t, nil
}

// Transport adapts a pion PeerConnection to peer.Transport. Events
// raised before Subscribe are held and delivered on subscription.
type Transport struct {
	pc     *pion.PeerConnection
	logger *slog.Logger

	mu      sync.Mutex
	sink    peer.EventSink
	pending []peer.Event
}

// NewTransport wires pc's callbacks and creates the bootstrap channel.
func NewTransport(pc *pion.PeerConnection, logger *slog.Logger) (*Transport, error) {
	t := &Transport{pc: pc, logger: logger}

	pc.OnICECandidate(func(c *pion.ICECandidate) {
		if c == nil {
			t.emit(peer.CandidateEvent{})
			return
		}
		t.emit(peer.CandidateEvent{Candidate: peer.Candidate{Address: c.ToJSON().Candidate}})
	})

	pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		s, ok := transportState(state)
		if !ok {
			return
		}
		t.logger.Debug("peer connection state changed", "state", state.String())
		t.emit(peer.TransportStateEvent{State: s})
	})

	protocol := BootstrapProtocol
	if _, err := pc.CreateDataChannel(BootstrapLabel, &pion.DataChannelInit{Protocol: &protocol}); err != nil {
		return nil, fmt.Errorf("create bootstrap data channel: %w", err)
	}
	return t, nil
}

func (t *Transport) Subscribe(sink peer.EventSink) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sink = sink
	for _, ev := range t.pending {
		sink(ev)
	}
	t.pending = nil
}

func (t *Transport) emit(ev peer.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sink == nil {
		t.pending = append(t.pending, ev)
		return
	}
	t.sink(ev)
}

func (t *Transport) CreateOffer() (peer.Description, error) {
	offer, err := t.pc.CreateOffer(nil)
	if err != nil {
		return peer.Description{}, err
	}
	return fromPion(offer), nil
}

func (t *Transport) SetLocalDescription(d peer.Description) error {
	return t.pc.SetLocalDescription(toPion(d))
}

func (t *Transport) LocalDescription() (peer.Description, bool) {
	d := t.pc.LocalDescription()
	if d == nil {
		return peer.Description{}, false
	}
	return fromPion(*d), true
}

func (t *Transport) SetRemoteDescription(d peer.Description) error {
	return t.pc.SetRemoteDescription(toPion(d))
}

func (t *Transport) CreateChannel(label string) (peer.Channel, error) {
	ordered := true
	dc, err := t.pc.CreateDataChannel(label, &pion.DataChannelInit{Ordered: &ordered})
	if err != nil {
		return nil, fmt.Errorf("create data channel: %w", err)
	}
	return newChannel(dc, t.logger), nil
}

func (t *Transport) Close() error {
	return t.pc.Close()
}

func transportState(s pion.PeerConnectionState) (peer.TransportState, bool) {
	switch s {
	case pion.PeerConnectionStateNew:
		return peer.TransportNew, true
	case pion.PeerConnectionStateConnecting:
		return peer.TransportConnecting, true
	case pion.PeerConnectionStateConnected:
		return peer.TransportConnected, true
	case pion.PeerConnectionStateDisconnected:
		return peer.TransportDisconnected, true
	case pion.PeerConnectionStateFailed:
		return peer.TransportFailed, true
	case pion.PeerConnectionStateClosed:
		return peer.TransportClosed, true
	}
	return 0, false
}

func fromPion(d pion.SessionDescription) peer.Description {
	return peer.Description{Type: peer.SDPType(d.Type.String()), SDP: d.SDP}
}

func toPion(d peer.Description) pion.SessionDescription {
	return pion.SessionDescription{Type: pion.NewSDPType(string(d.Type)), SDP: d.SDP}
}
