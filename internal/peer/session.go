package peer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

const defaultUpdateBuffer = 64

// Session is the aggregate root: it owns at most one transport and at
// most one data channel and publishes a single consistent view of both.
//
// All session logic runs on one goroutine that drains a FIFO task queue.
// Engine callbacks, exchange results and caller operations are all
// posted to that queue, so the components never run concurrently and
// need no locks of their own.
type Session struct {
	factory TransportFactory
	logger  *slog.Logger

	queue   taskQueue
	stop    chan struct{}
	stopped chan struct{}
	once    sync.Once

	updates chan Update

	// Owned by the loop goroutine.
	ids      uint64
	proj     synchronizer
	neg      negotiator
	channels channelManager
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithChannelLabel sets the label of the data channel.
func WithChannelLabel(label string) Option {
	return func(s *Session) {
		if label != "" {
			s.channels.label = label
		}
	}
}

// WithUpdateBuffer sets the capacity of the Updates channel.
func WithUpdateBuffer(n int) Option {
	return func(s *Session) {
		s.updates = make(chan Update, n)
	}
}

// New creates a session and starts its event loop. Call Shutdown to
// release it.
func New(factory TransportFactory, exchanger Exchanger, opts ...Option) *Session {
	s := &Session{
		factory: factory,
		logger:  slog.Default(),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
		updates: make(chan Update, defaultUpdateBuffer),
	}
	s.queue.ready = make(chan struct{}, 1)
	s.channels.label = DefaultChannelLabel

	for _, opt := range opts {
		opt(s)
	}

	s.neg.exchanger = exchanger
	s.channels.proj = &s.proj
	s.channels.logger = s.logger

	go s.run()
	return s
}

// Begin starts a negotiation against target. Errors are returned
// synchronously, with no side effect, when the call is invalid (they
// wrap ErrInvalidOperation) or when the transport cannot be created (a
// *NegotiationError with Op "create transport"). Otherwise the returned
// channel receives the outcome: nil once the remote description is
// applied, a *NegotiationError, or ErrTransportClosed if the transport
// closed first.
//
// Calling Begin after a failed attempt retries on the same transport.
func (s *Session) Begin(target string) (<-chan error, error) {
	var done chan error
	err := s.call(func() error {
		var err error
		done, err = s.begin(target)
		return err
	})
	if err != nil {
		return nil, err
	}
	return done, nil
}

// Negotiate calls Begin and waits for the outcome. ctx bounds only the
// wait: when it expires the negotiation keeps running and can still be
// abandoned with CloseConnection.
func (s *Session) Negotiate(ctx context.Context, target string) error {
	done, err := s.Begin(target)
	if err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CloseChannel asks the data channel to close. Its reference is dropped
// once the channel reports Closed; the transport is not affected.
func (s *Session) CloseChannel() error {
	return s.call(func() error {
		if err := s.channels.close(); err != nil {
			return err
		}
		s.publish(Update{Kind: UpdateState})
		return nil
	})
}

// CloseConnection closes the transport. Any in-flight negotiation
// completes with ErrTransportClosed and its exchange result is discarded.
func (s *Session) CloseConnection() error {
	return s.call(s.closeTransport)
}

// Snapshot returns the current published state.
func (s *Session) Snapshot() Snapshot {
	var snap Snapshot
	if err := s.call(func() error {
		snap = s.snapshot()
		return nil
	}); err != nil {
		return Snapshot{Connection: ConnectionClosed}
	}
	return snap
}

// Usable reports whether the channel is open on a connected transport.
func (s *Session) Usable() bool {
	return s.Snapshot().Usable()
}

// Channel returns the data channel only while it is usable.
func (s *Session) Channel() (Channel, bool) {
	var (
		ch Channel
		ok bool
	)
	_ = s.call(func() error {
		ch, ok = s.channels.usable()
		return nil
	})
	return ch, ok
}

// Send writes data to the open channel.
func (s *Session) Send(data []byte) error {
	return s.call(func() error {
		ch, ok := s.channels.usable()
		if !ok {
			return ErrChannelNotOpen
		}
		return ch.Send(data)
	})
}

// Updates returns the channel on which status values are published.
// Updates are dropped when the channel is full. The channel is closed
// once Shutdown has stopped the loop.
func (s *Session) Updates() <-chan Update {
	return s.updates
}

// Shutdown closes any live transport and stops the event loop.
func (s *Session) Shutdown() {
	_ = s.call(func() error {
		if _, ok := s.proj.currentTransport(); ok {
			if err := s.closeTransport(); err != nil {
				s.logger.Warn("closing transport failed", "error", err)
			}
		}
		return nil
	})
	s.once.Do(func() {
		close(s.stop)
	})
	<-s.stopped
}

func (s *Session) run() {
	defer close(s.stopped)
	defer close(s.updates)
	for {
		select {
		case <-s.stop:
			return
		case <-s.queue.ready:
			for _, task := range s.queue.drain() {
				task()
			}
		}
	}
}

// post enqueues task on the loop. It never blocks.
func (s *Session) post(task func()) bool {
	select {
	case <-s.stop:
		return false
	default:
	}
	s.queue.push(task)
	return true
}

// call runs task on the loop and waits for its result. It must not be
// called from the loop.
func (s *Session) call(task func() error) error {
	result := make(chan error, 1)
	if !s.post(func() { result <- task() }) {
		return ErrSessionStopped
	}
	select {
	case err := <-result:
		return err
	case <-s.stopped:
		return ErrSessionStopped
	}
}

func (s *Session) nextID() uint64 {
	s.ids++
	return s.ids
}

func (s *Session) snapshot() Snapshot {
	snap := s.proj.snapshot()
	if a := s.neg.attempt; a != nil {
		snap.Negotiating = true
		snap.Target = a.target
	}
	if snap.Connection.Live() {
		snap.Candidates = s.neg.detector.Candidates()
		snap.GatheringComplete = s.neg.detector.IsComplete()
	}
	return snap
}

// publish stamps u with the current snapshot and offers it to Updates.
func (s *Session) publish(u Update) {
	u.Snapshot = s.snapshot()
	select {
	case s.updates <- u:
	default:
		s.logger.Debug("update dropped", "kind", u.Kind)
	}
}

func (s *Session) ignoreStale(what string, id uint64) {
	s.logger.Debug("stale event ignored", "event", what, "id", id)
	s.publish(Update{Kind: UpdateStaleEventIgnored, Detail: what})
}

// transportSink tags transport events with the transport id.
func (s *Session) transportSink(id uint64) EventSink {
	return func(ev Event) {
		s.post(func() { s.onTransportEvent(id, ev) })
	}
}

// channelSink tags channel events with the channel id.
func (s *Session) channelSink(id uint64) EventSink {
	return func(ev Event) {
		s.post(func() { s.onChannelEvent(id, ev) })
	}
}

func (s *Session) onTransportEvent(id uint64, ev Event) {
	switch ev := ev.(type) {
	case CandidateEvent:
		s.onCandidate(id, ev.Candidate)
	case TransportStateEvent:
		s.onTransportState(id, ev.State)
	default:
		s.logger.Debug("unexpected transport event", "event", fmt.Sprintf("%T", ev))
	}
}

func (s *Session) onTransportState(id uint64, state TransportState) {
	res := s.proj.reconcileTransport(id, state)
	if res.stale {
		s.ignoreStale("transport state "+state.String(), id)
		return
	}
	if res.changed {
		s.logger.Info("transport state changed", "state", state)
		s.publish(Update{Kind: UpdateTransportState, Detail: state.String()})
	}
	if res.dropped {
		s.onTransportDropped()
	}
}

// onTransportDropped abandons any in-flight negotiation and asks the
// channel to close. The channel slot is cleared by its own Closed event.
func (s *Session) onTransportDropped() {
	s.neg.finish(ErrTransportClosed)
	if slot, ok := s.proj.currentChannel(); ok && slot.state != ChannelClosing {
		if err := slot.handle.Close(); err != nil {
			s.logger.Debug("closing channel of closed transport failed", "error", err)
		}
	}
	s.publish(Update{Kind: UpdateState})
}

func (s *Session) onChannelEvent(id uint64, ev Event) {
	switch ev := ev.(type) {
	case ChannelStateEvent:
		if kind, ok := s.channels.onState(id, ev.State); ok {
			detail := ""
			if kind == UpdateStaleEventIgnored {
				s.logger.Debug("stale event ignored", "event", "channel state", "state", ev.State, "id", id)
				detail = "channel state " + ev.State.String()
			}
			s.publish(Update{Kind: kind, Detail: detail})
		}
	case MessageEvent:
		if slot, ok := s.proj.currentChannel(); !ok || slot.id != id {
			s.ignoreStale("channel message", id)
			return
		}
		s.publish(Update{Kind: UpdateMessage, Data: ev.Data})
	default:
		s.logger.Debug("unexpected channel event", "event", fmt.Sprintf("%T", ev))
	}
}

// closeTransport closes the live transport and reconciles the close at
// once; the engine's own closed event then arrives as stale.
func (s *Session) closeTransport() error {
	slot, ok := s.proj.currentTransport()
	if !ok {
		return ErrNoConnection
	}
	if err := slot.handle.Close(); err != nil {
		return fmt.Errorf("close transport: %w", err)
	}
	s.onTransportState(slot.id, TransportClosed)
	return nil
}

// taskQueue is an unbounded FIFO of loop tasks. push never blocks, so
// engine callbacks fired from inside a loop task cannot deadlock.
type taskQueue struct {
	mu    sync.Mutex
	tasks []func()
	ready chan struct{}
}

func (q *taskQueue) push(task func()) {
	q.mu.Lock()
	q.tasks = append(q.tasks, task)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

func (q *taskQueue) drain() []func() {
	q.mu.Lock()
	defer q.mu.Unlock()
	tasks := q.tasks
	q.tasks = nil
	return tasks
}
