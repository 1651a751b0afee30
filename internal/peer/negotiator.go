package peer

import "context"

// attempt is one in-flight negotiation. done receives exactly one
// outcome.
type attempt struct {
	id         uint64
	target     string
	exchanging bool
	done       chan error
}

// negotiator drives the offer/answer exchange for the session's
// transport: local description, gathering, signaling, remote
// description. Only one attempt may be in flight. No timeouts are
// imposed and failed attempts are not retried automatically.
type negotiator struct {
	exchanger Exchanger
	detector  GatheringDetector
	attempt   *attempt
	cancel    context.CancelFunc
}

func (n *negotiator) inFlight() bool {
	return n.attempt != nil
}

// reset prepares for a new transport.
func (n *negotiator) reset() {
	n.detector = GatheringDetector{}
}

// finish completes the in-flight attempt with err.
func (n *negotiator) finish(err error) {
	if n.attempt == nil {
		return
	}
	if n.cancel != nil {
		n.cancel()
		n.cancel = nil
	}
	n.attempt.done <- err
	n.attempt = nil
}

// begin validates and starts a negotiation. It runs on the session loop.
func (s *Session) begin(target string) (chan error, error) {
	if target == "" {
		return nil, ErrTargetNotConfigured
	}
	if s.neg.inFlight() {
		return nil, ErrAlreadyNegotiating
	}

	switch s.proj.transport.phase {
	case ConnectionConnected:
		return nil, ErrAlreadyConnected

	case ConnectionAbsent, ConnectionClosed:
		t, err := s.factory.NewTransport()
		if err != nil {
			return nil, &NegotiationError{Op: "create transport", Target: target, Err: err}
		}
		id := s.nextID()
		t.Subscribe(s.transportSink(id))
		s.proj.register(id, t)
		s.neg.reset()
		s.logger.Debug("transport registered", "target", target)
	}

	a := &attempt{
		id:     s.nextID(),
		target: target,
		done:   make(chan error, 1),
	}
	s.neg.attempt = a
	s.publish(Update{Kind: UpdateState})

	s.advanceNegotiation()
	return a.done, nil
}

// advanceNegotiation performs whichever step the current transport is
// ready for.
func (s *Session) advanceNegotiation() {
	a := s.neg.attempt
	slot, ok := s.proj.currentTransport()
	if a == nil || !ok {
		return
	}

	if slot.phase == ConnectionNew {
		offer, err := slot.handle.CreateOffer()
		if err != nil {
			s.failNegotiation(&NegotiationError{Op: "create offer", Err: err})
			return
		}
		if err := slot.handle.SetLocalDescription(offer); err != nil {
			s.failNegotiation(&NegotiationError{Op: "set local description", Err: err})
			return
		}
		s.proj.advance(slot.id, ConnectionNegotiating)
		s.publish(Update{Kind: UpdateState})
	}

	if s.neg.detector.IsComplete() {
		s.startExchange()
	}
}

// onCandidate feeds the gathering detector and starts the exchange once
// gathering completes.
func (s *Session) onCandidate(id uint64, c Candidate) {
	if !s.proj.isCurrent(id) {
		s.ignoreStale("candidate", id)
		return
	}
	if !s.neg.detector.Observe(c) {
		return
	}

	s.logger.Debug("candidate gathering complete", "candidates", s.neg.detector.Candidates())
	s.publish(Update{Kind: UpdateState, Detail: "gathering complete"})

	if s.proj.transport.phase == ConnectionNegotiating {
		s.startExchange()
	}
}

// startExchange sends the complete local description to the signaling
// target. The network round trip runs off the loop; its result is posted
// back as an event.
func (s *Session) startExchange() {
	a := s.neg.attempt
	slot, ok := s.proj.currentTransport()
	if a == nil || a.exchanging || !ok {
		return
	}

	local, ok := slot.handle.LocalDescription()
	if !ok {
		s.failNegotiation(&NegotiationError{Op: "read local description", Err: errNoLocalDescription})
		return
	}

	a.exchanging = true
	ctx, cancel := context.WithCancel(context.Background())
	s.neg.cancel = cancel

	s.logger.Info("exchanging description", "target", a.target)

	transportID, attemptID, target := slot.id, a.id, a.target
	go func() {
		answer, err := s.neg.exchanger.Exchange(ctx, target, local)
		s.post(func() {
			s.onExchangeResult(transportID, attemptID, answer, err)
		})
	}()
}

// onExchangeResult applies the remote answer unless the transport was
// closed or the attempt was abandoned while the exchange was in flight.
func (s *Session) onExchangeResult(transportID, attemptID uint64, answer Description, err error) {
	a := s.neg.attempt
	if !s.proj.isCurrent(transportID) || a == nil || a.id != attemptID {
		s.ignoreStale("exchange result", transportID)
		return
	}
	if err != nil {
		s.failNegotiation(&NegotiationError{Op: "exchange description", Target: a.target, Err: err})
		return
	}

	slot := s.proj.transport
	if err := slot.handle.SetRemoteDescription(answer); err != nil {
		s.failNegotiation(&NegotiationError{Op: "set remote description", Target: a.target, Err: err})
		return
	}

	s.proj.advance(slot.id, ConnectionConnected)
	s.neg.finish(nil)
	s.logger.Info("negotiation complete", "target", a.target)
	s.publish(Update{Kind: UpdateConnected})

	if _, err := s.channels.onNegotiationComplete(s.nextID(), slot.handle, s.channelSink); err != nil {
		s.logger.Warn("creating channel failed", "error", err)
		s.publish(Update{Kind: UpdateChannelFailed, Err: err})
		return
	}
	s.publish(Update{Kind: UpdateState})
}

// failNegotiation reports err and leaves the transport open.
func (s *Session) failNegotiation(err *NegotiationError) {
	if a := s.neg.attempt; a != nil && err.Target == "" {
		err.Target = a.target
	}
	s.neg.finish(err)
	s.logger.Warn("negotiation failed", "error", err)
	s.publish(Update{Kind: UpdateNegotiationFailed, Err: err})
}
