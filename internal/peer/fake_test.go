package peer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

const testTimeout = 5 * time.Second

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeTransport records every call and lets the test emit events.
type fakeTransport struct {
	mu sync.Mutex

	sink     EventSink
	local    Description
	hasLocal bool
	remote   Description

	remoteSets int
	closed     bool
	channels   []*fakeChannel

	offerErr  error
	remoteErr error
}

func (t *fakeTransport) Subscribe(sink EventSink) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sink = sink
}

func (t *fakeTransport) emit(ev Event) {
	t.mu.Lock()
	sink := t.sink
	t.mu.Unlock()
	if sink != nil {
		sink(ev)
	}
}

func (t *fakeTransport) CreateOffer() (Description, error) {
	if t.offerErr != nil {
		return Description{}, t.offerErr
	}
	return Description{Type: SDPTypeOffer, SDP: "v=0 offer"}, nil
}

func (t *fakeTransport) SetLocalDescription(d Description) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.local = d
	t.hasLocal = true
	return nil
}

func (t *fakeTransport) LocalDescription() (Description, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.local, t.hasLocal
}

func (t *fakeTransport) SetRemoteDescription(d Description) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return errors.New("set remote description on closed transport")
	}
	if t.remoteErr != nil {
		return t.remoteErr
	}
	t.remote = d
	t.remoteSets++
	return nil
}

func (t *fakeTransport) CreateChannel(label string) (Channel, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch := &fakeChannel{label: label}
	t.channels = append(t.channels, ch)
	return ch, nil
}

// Close behaves like an engine: the transport reports closed and takes
// its channels down with it.
func (t *fakeTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	channels := append([]*fakeChannel(nil), t.channels...)
	t.mu.Unlock()

	t.emit(TransportStateEvent{State: TransportClosed})
	for _, ch := range channels {
		_ = ch.Close()
	}
	return nil
}

func (t *fakeTransport) remoteSetCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remoteSets
}

func (t *fakeTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *fakeTransport) channel(tb testing.TB, index int) *fakeChannel {
	tb.Helper()
	t.mu.Lock()
	defer t.mu.Unlock()
	if index >= len(t.channels) {
		tb.Fatalf("channel %d not created (have %d)", index, len(t.channels))
	}
	return t.channels[index]
}

func (t *fakeTransport) channelCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.channels)
}

// gather emits n candidates followed by the end-of-candidates marker.
func (t *fakeTransport) gather(n int) {
	for i := 0; i < n; i++ {
		t.emit(CandidateEvent{Candidate: Candidate{Address: "candidate:1 1 udp 2130706431 127.0.0.1 5000 typ host"}})
	}
	t.emit(CandidateEvent{})
}

type fakeChannel struct {
	mu     sync.Mutex
	label  string
	sink   EventSink
	sent   [][]byte
	closed bool
}

func (c *fakeChannel) Label() string { return c.label }

func (c *fakeChannel) Subscribe(sink EventSink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sink = sink
}

func (c *fakeChannel) emit(ev Event) {
	c.mu.Lock()
	sink := c.sink
	c.mu.Unlock()
	if sink != nil {
		sink(ev)
	}
}

func (c *fakeChannel) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("send on closed channel")
	}
	c.sent = append(c.sent, data)
	return nil
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	c.emit(ChannelStateEvent{State: ChannelClosed})
	return nil
}

func (c *fakeChannel) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

// exchangeRequest is one call to fakeExchanger.Exchange, held until the
// test replies.
type exchangeRequest struct {
	target string
	offer  Description
	reply  chan exchangeReply
}

type exchangeReply struct {
	answer Description
	err    error
}

// fakeExchanger hands every exchange to the test. It deliberately
// ignores context cancellation so tests can deliver a result after the
// transport has closed.
type fakeExchanger struct {
	requests chan exchangeRequest
}

func newFakeExchanger() *fakeExchanger {
	return &fakeExchanger{requests: make(chan exchangeRequest, 4)}
}

func (e *fakeExchanger) Exchange(_ context.Context, target string, offer Description) (Description, error) {
	req := exchangeRequest{target: target, offer: offer, reply: make(chan exchangeReply, 1)}
	e.requests <- req
	r := <-req.reply
	return r.answer, r.err
}

func (e *fakeExchanger) next(tb testing.TB) exchangeRequest {
	tb.Helper()
	select {
	case req := <-e.requests:
		return req
	case <-time.After(testTimeout):
		tb.Fatal("timed out waiting for exchange request")
		return exchangeRequest{}
	}
}

func (e *fakeExchanger) expectNone(tb testing.TB) {
	tb.Helper()
	select {
	case req := <-e.requests:
		tb.Fatalf("unexpected exchange request to %q", req.target)
	case <-time.After(50 * time.Millisecond):
	}
}

func answerReply() exchangeReply {
	return exchangeReply{answer: Description{Type: SDPTypeAnswer, SDP: "v=0 answer"}}
}

// countingFactory hands out fresh fake transports and counts calls.
type countingFactory struct {
	mu         sync.Mutex
	transports []*fakeTransport
	err        error
}

func (f *countingFactory) NewTransport() (Transport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	t := &fakeTransport{}
	f.transports = append(f.transports, t)
	return t, nil
}

func (f *countingFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.transports)
}

func (f *countingFactory) last(tb testing.TB) *fakeTransport {
	tb.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.transports) == 0 {
		tb.Fatal("no transport created")
	}
	return f.transports[len(f.transports)-1]
}

func waitOutcome(tb testing.TB, done <-chan error) error {
	tb.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(testTimeout):
		tb.Fatal("timed out waiting for negotiation outcome")
		return nil
	}
}

// waitUpdate drains Updates until one of kind arrives.
func waitUpdate(tb testing.TB, s *Session, kind UpdateKind) Update {
	tb.Helper()
	deadline := time.After(testTimeout)
	for {
		select {
		case u, ok := <-s.Updates():
			if !ok {
				tb.Fatalf("updates closed while waiting for %s", kind)
			}
			if u.Kind == kind {
				return u
			}
		case <-deadline:
			tb.Fatalf("timed out waiting for %s update", kind)
			return Update{}
		}
	}
}
