package rtc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/BioHazard786/peerlink/internal/peer"
	"github.com/google/uuid"
	pion "github.com/pion/webrtc/v4"
)

const (
	iceGatherTimeout = 10 * time.Second

	// maxPeerHistory bounds how many closed peers Peers still reports.
	maxPeerHistory = 64
)

var (
	ErrNotOffer       = errors.New("description is not an offer")
	ErrAnswererClosed = errors.New("answerer closed")
)

// PeerInfo summarises one answered peer.
type PeerInfo struct {
	ID         string
	State      string
	Channels   []string
	Messages   int
	AnsweredAt time.Time
}

type answeredPeer struct {
	id       uuid.UUID
	pc       *pion.PeerConnection
	state    pion.PeerConnectionState
	channels []string
	messages int
	answered time.Time
}

// Answerer is the remote end of a session. It answers offers with full
// candidate gathering, echoes every message it receives on a data
// channel and replies to pings with pongs.
type Answerer struct {
	config pion.Configuration
	logger *slog.Logger

	mu      sync.Mutex
	peers   map[uuid.UUID]*answeredPeer // live connections
	history []PeerInfo                  // closed connections, oldest first
	closed  bool
}

func NewAnswerer(config pion.Configuration, logger *slog.Logger) *Answerer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Answerer{
		config: config,
		logger: logger,
		peers:  make(map[uuid.UUID]*answeredPeer),
	}
}

// Answer applies offer to a new peer connection and returns the complete
// answer once gathering has finished.
func (a *Answerer) Answer(ctx context.Context, offer peer.Description) (peer.Description, error) {
	if offer.Type != peer.SDPTypeOffer {
		return peer.Description{}, fmt.Errorf("%w: got %q", ErrNotOffer, offer.Type)
	}

	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()
	if closed {
		return peer.Description{}, ErrAnswererClosed
	}

	pc, err := pion.NewPeerConnection(a.config)
	if err != nil {
		return peer.Description{}, fmt.Errorf("create peer connection: %w", err)
	}

	p := &answeredPeer{id: uuid.New(), pc: pc, state: pion.PeerConnectionStateNew, answered: time.Now()}
	logger := a.logger.With("peer", p.id.String())

	pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		logger.Info("peer connection state changed", "state", state.String())
		a.mu.Lock()
		p.state = state
		if state == pion.PeerConnectionStateClosed {
			a.retire(p)
		}
		a.mu.Unlock()
		if state == pion.PeerConnectionStateFailed {
			pc.Close()
		}
	})
	pc.OnDataChannel(func(dc *pion.DataChannel) {
		a.handleDataChannel(p, dc, logger)
	})

	if err := pc.SetRemoteDescription(toPion(offer)); err != nil {
		pc.Close()
		return peer.Description{}, fmt.Errorf("set remote description: %w", err)
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		pc.Close()
		return peer.Description{}, fmt.Errorf("create answer: %w", err)
	}

	gatherComplete := pion.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		pc.Close()
		return peer.Description{}, fmt.Errorf("set local description: %w", err)
	}

	select {
	case <-gatherComplete:
	case <-time.After(iceGatherTimeout):
		pc.Close()
		return peer.Description{}, fmt.Errorf("ICE gathering timed out after %s", iceGatherTimeout)
	case <-ctx.Done():
		pc.Close()
		return peer.Description{}, ctx.Err()
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		pc.Close()
		return peer.Description{}, ErrAnswererClosed
	}
	a.add(p)
	a.mu.Unlock()

	logger.Info("offer answered")
	return fromPion(*pc.LocalDescription()), nil
}

// add registers an answered peer. A peer that closed while its answer
// was being prepared goes straight to the history. Called with a.mu held.
func (a *Answerer) add(p *answeredPeer) {
	if p.state == pion.PeerConnectionStateClosed {
		a.record(p)
		return
	}
	a.peers[p.id] = p
}

// retire moves a closed peer out of the live set. Called with a.mu held.
func (a *Answerer) retire(p *answeredPeer) {
	if _, ok := a.peers[p.id]; !ok {
		return
	}
	delete(a.peers, p.id)
	a.record(p)
}

func (a *Answerer) record(p *answeredPeer) {
	a.history = append(a.history, p.info())
	if n := len(a.history) - maxPeerHistory; n > 0 {
		a.history = slices.Delete(a.history, 0, n)
	}
}

func (p *answeredPeer) info() PeerInfo {
	return PeerInfo{
		ID:         p.id.String(),
		State:      p.state.String(),
		Channels:   slices.Clone(p.channels),
		Messages:   p.messages,
		AnsweredAt: p.answered,
	}
}

func (a *Answerer) handleDataChannel(p *answeredPeer, dc *pion.DataChannel, logger *slog.Logger) {
	if isBootstrap(dc) {
		dc.OnOpen(func() {
			dc.Close()
		})
		return
	}

	a.mu.Lock()
	p.channels = append(p.channels, dc.Label())
	a.mu.Unlock()

	dc.OnOpen(func() {
		logger.Debug("data channel opened", "label", dc.Label())
	})
	dc.OnMessage(func(msg pion.DataChannelMessage) {
		a.mu.Lock()
		p.messages++
		a.mu.Unlock()

		if err := dc.Send(Reply(msg.Data)); err != nil {
			logger.Warn("reply failed", "label", dc.Label(), "error", err)
		}
	})
}

func isBootstrap(dc *pion.DataChannel) bool {
	return dc.Protocol() == BootstrapProtocol
}

// Reply returns the frame sent back for data: a pong carrying the same
// payload for a ping, data itself for everything else.
func Reply(data []byte) []byte {
	msg, err := DecodeMessage(data)
	if err != nil || msg.Type != TypePing {
		return data
	}
	pong, err := Message{Type: TypePong, Payload: msg.Payload}.Encode()
	if err != nil {
		return data
	}
	return pong
}

// Peers returns the live peers and the most recently closed ones,
// oldest first.
func (a *Answerer) Peers() []PeerInfo {
	a.mu.Lock()
	defer a.mu.Unlock()

	infos := make([]PeerInfo, 0, len(a.history)+len(a.peers))
	infos = append(infos, a.history...)
	for _, p := range a.peers {
		infos = append(infos, p.info())
	}
	slices.SortFunc(infos, func(x, y PeerInfo) int {
		return x.AnsweredAt.Compare(y.AnsweredAt)
	})
	return infos
}

// Close closes every answered peer connection. Later offers are refused.
func (a *Answerer) Close() error {
	a.mu.Lock()
	a.closed = true
	peers := make([]*answeredPeer, 0, len(a.peers))
	for _, p := range a.peers {
		peers = append(peers, p)
	}
	a.mu.Unlock()

	var errs []error
	for _, p := range peers {
		if err := p.pc.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
