package rtc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/BioHazard786/peerlink/internal/peer"
	"github.com/BioHazard786/peerlink/internal/signaling"
	"github.com/google/uuid"
	pion "github.com/pion/webrtc/v4"
)

const loopbackTimeout = 20 * time.Second

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// loopback starts an answer server with host-only ICE and returns its
// base URL.
func loopback(t *testing.T) (*Answerer, string) {
	t.Helper()
	logger := discardLogger()
	answerer := NewAnswerer(pion.Configuration{}, logger)
	t.Cleanup(func() { answerer.Close() })

	srv := httptest.NewServer(signaling.NewServer(answerer, signaling.WithServerLogger(logger)))
	t.Cleanup(srv.Close)
	return answerer, srv.URL
}

func newSession(t *testing.T, opts ...peer.Option) *peer.Session {
	t.Helper()
	logger := discardLogger()
	opts = append([]peer.Option{peer.WithLogger(logger), peer.WithUpdateBuffer(256)}, opts...)
	s := peer.New(&Factory{Logger: logger}, signaling.NewExchanger(logger), opts...)
	t.Cleanup(s.Shutdown)
	return s
}

func awaitUpdate(t *testing.T, s *peer.Session, kind peer.UpdateKind) peer.Update {
	t.Helper()
	deadline := time.After(loopbackTimeout)
	for {
		select {
		case u, ok := <-s.Updates():
			if !ok {
				t.Fatalf("updates closed while waiting for %s", kind)
			}
			if u.Kind == kind {
				return u
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s (snapshot %+v)", kind, s.Snapshot())
		}
	}
}

func TestSessionAgainstAnswerer(t *testing.T) {
	for _, scheme := range []string{"http", "ws"} {
		t.Run(scheme, func(t *testing.T) {
			answerer, base := loopback(t)
			target := base + "/offer"
			if scheme == "ws" {
				target = "ws" + strings.TrimPrefix(base, "http") + "/ws"
			}

			s := newSession(t)
			ctx, cancel := context.WithTimeout(t.Context(), loopbackTimeout)
			defer cancel()

			if err := s.Negotiate(ctx, target); err != nil {
				t.Fatalf("Negotiate: %v", err)
			}
			awaitUpdate(t, s, peer.UpdateChannelOpen)
			if !s.Usable() {
				t.Fatalf("session not usable after channel open: %+v", s.Snapshot())
			}

			frame, err := EncodePing(1, time.Now())
			if err != nil {
				t.Fatalf("EncodePing: %v", err)
			}
			if err := s.Send(frame); err != nil {
				t.Fatalf("Send: %v", err)
			}

			reply := awaitUpdate(t, s, peer.UpdateMessage)
			msg, err := DecodeMessage(reply.Data)
			if err != nil {
				t.Fatalf("DecodeMessage: %v", err)
			}
			var pong PingPayload
			if err := msg.DecodePayload(&pong); err != nil || msg.Type != TypePong || pong.Seq != 1 {
				t.Fatalf("reply = %q %+v (%v), want pong 1", msg.Type, pong, err)
			}

			if err := s.CloseChannel(); err != nil {
				t.Fatalf("CloseChannel: %v", err)
			}
			awaitUpdate(t, s, peer.UpdateChannelClosed)
			if snap := s.Snapshot(); snap.Connection != peer.ConnectionConnected || snap.Channel != peer.ChannelAbsent {
				t.Errorf("after CloseChannel snapshot = %+v", snap)
			}

			if err := s.CloseConnection(); err != nil {
				t.Fatalf("CloseConnection: %v", err)
			}
			if snap := s.Snapshot(); snap.Connection != peer.ConnectionClosed {
				t.Errorf("after CloseConnection snapshot = %+v", snap)
			}

			peers := answerer.Peers()
			if len(peers) != 1 {
				t.Fatalf("answerer has %d peers, want 1", len(peers))
			}
			if !slices.Contains(peers[0].Channels, peer.DefaultChannelLabel) {
				t.Errorf("answerer channels = %v", peers[0].Channels)
			}
			if peers[0].Messages != 1 {
				t.Errorf("answerer messages = %d, want 1", peers[0].Messages)
			}
		})
	}
}

func TestSessionChannelSharingBootstrapLabel(t *testing.T) {
	answerer, base := loopback(t)
	s := newSession(t, peer.WithChannelLabel(BootstrapLabel))
	ctx, cancel := context.WithTimeout(t.Context(), loopbackTimeout)
	defer cancel()

	if err := s.Negotiate(ctx, base+"/offer"); err != nil {
		t.Fatalf("Negotiate: %v", err)
	}
	awaitUpdate(t, s, peer.UpdateChannelOpen)

	frame, err := EncodeText("hello")
	if err != nil {
		t.Fatalf("EncodeText: %v", err)
	}
	if err := s.Send(frame); err != nil {
		t.Fatalf("Send: %v", err)
	}
	reply := awaitUpdate(t, s, peer.UpdateMessage)
	if string(reply.Data) != string(frame) {
		t.Errorf("echo = %q, want %q", reply.Data, frame)
	}
	if snap := s.Snapshot(); !snap.Usable() || snap.ChannelLabel != BootstrapLabel {
		t.Errorf("snapshot = %+v, want usable %q channel", snap, BootstrapLabel)
	}

	peers := answerer.Peers()
	if len(peers) != 1 || !slices.Equal(peers[0].Channels, []string{BootstrapLabel}) {
		t.Errorf("answerer peers = %+v", peers)
	}
}

func TestSessionUnreachablePeer(t *testing.T) {
	_, base := loopback(t)
	s := newSession(t)
	ctx, cancel := context.WithTimeout(t.Context(), loopbackTimeout)
	defer cancel()

	err := s.Negotiate(ctx, base+"/missing")
	var negErr *peer.NegotiationError
	if !errors.As(err, &negErr) || negErr.Op != "exchange description" {
		t.Fatalf("err = %v, want exchange NegotiationError", err)
	}
	if !errors.Is(err, signaling.ErrUnexpectedStatus) {
		t.Errorf("err = %v, want ErrUnexpectedStatus in chain", err)
	}
	if snap := s.Snapshot(); snap.Connection != peer.ConnectionNegotiating || snap.Negotiating {
		t.Errorf("snapshot = %+v, want idle negotiating transport", snap)
	}
}

func TestReply(t *testing.T) {
	ping, err := EncodePing(3, time.Unix(10, 0))
	if err != nil {
		t.Fatal(err)
	}
	msg, err := DecodeMessage(Reply(ping))
	if err != nil || msg.Type != TypePong {
		t.Fatalf("Reply(ping) = %q, %v", msg.Type, err)
	}

	text, err := EncodeText("echo me")
	if err != nil {
		t.Fatal(err)
	}
	if got := Reply(text); string(got) != string(text) {
		t.Error("text frame not echoed unchanged")
	}
	if got := Reply([]byte("raw")); string(got) != "raw" {
		t.Errorf("raw frame echoed as %q", got)
	}
}

func TestAnswererRejectsAnswers(t *testing.T) {
	a := NewAnswerer(pion.Configuration{}, discardLogger())
	defer a.Close()

	_, err := a.Answer(t.Context(), peer.Description{Type: peer.SDPTypeAnswer, SDP: "v=0"})
	if !errors.Is(err, ErrNotOffer) {
		t.Errorf("err = %v, want ErrNotOffer", err)
	}
}

func TestAnswererPrunesClosedPeers(t *testing.T) {
	a := NewAnswerer(pion.Configuration{}, discardLogger())
	start := time.Now()

	a.mu.Lock()
	for i := 0; i < maxPeerHistory+10; i++ {
		p := &answeredPeer{
			id:       uuid.New(),
			state:    pion.PeerConnectionStateConnected,
			answered: start.Add(time.Duration(i) * time.Second),
		}
		a.add(p)
		p.state = pion.PeerConnectionStateClosed
		a.retire(p)
	}
	live := &answeredPeer{id: uuid.New(), state: pion.PeerConnectionStateConnected, answered: start.Add(time.Hour)}
	a.add(live)
	late := &answeredPeer{id: uuid.New(), state: pion.PeerConnectionStateClosed, answered: start.Add(2 * time.Hour)}
	a.add(late)
	liveCount := len(a.peers)
	a.mu.Unlock()

	if liveCount != 1 {
		t.Fatalf("live peers = %d, want 1", liveCount)
	}
	peers := a.Peers()
	if len(peers) != maxPeerHistory+1 {
		t.Fatalf("Peers = %d entries, want %d", len(peers), maxPeerHistory+1)
	}
	if want := start.Add(11 * time.Second); !peers[0].AnsweredAt.Equal(want) {
		t.Errorf("oldest kept peer answered at %s, want %s", peers[0].AnsweredAt, want)
	}
	if last := peers[len(peers)-1]; last.ID != late.id.String() || last.State != "closed" {
		t.Errorf("newest peer = %+v, want closed %s", last, late.id)
	}
	if !slices.ContainsFunc(peers, func(p PeerInfo) bool { return p.ID == live.id.String() }) {
		t.Error("live peer missing from Peers")
	}
}

func TestTransportState(t *testing.T) {
	tests := map[pion.PeerConnectionState]peer.TransportState{
		pion.PeerConnectionStateNew:          peer.TransportNew,
		pion.PeerConnectionStateConnecting:   peer.TransportConnecting,
		pion.PeerConnectionStateConnected:    peer.TransportConnected,
		pion.PeerConnectionStateDisconnected: peer.TransportDisconnected,
		pion.PeerConnectionStateFailed:       peer.TransportFailed,
		pion.PeerConnectionStateClosed:       peer.TransportClosed,
	}
	for in, want := range tests {
		if got, ok := transportState(in); !ok || got != want {
			t.Errorf("transportState(%s) = %s, %v", in, got, ok)
		}
	}
	if _, ok := transportState(pion.PeerConnectionStateUnknown); ok {
		t.Error("unknown state mapped")
	}
}
