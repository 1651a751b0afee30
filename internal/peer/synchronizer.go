package peer

// transportSlot holds the session's transport. The handle is only
// meaningful while phase.Live().
type transportSlot struct {
	id       uint64
	phase    ConnectionState
	reported TransportState
	handle   Transport
}

// channelSlot holds the session's data channel. The handle is only
// meaningful while state.Live().
type channelSlot struct {
	id     uint64
	label  string
	state  ChannelState
	handle Channel
}

// reconcileResult describes the effect of one observed event.
type reconcileResult struct {
	stale   bool
	changed bool
	dropped bool
}

// synchronizer owns the published projection of the session. It is the
// only component that clears a slot. Every method runs on the session
// loop.
type synchronizer struct {
	transport transportSlot
	channel   channelSlot
}

// register installs a new transport in state New.
func (s *synchronizer) register(id uint64, t Transport) {
	s.transport = transportSlot{
		id:       id,
		phase:    ConnectionNew,
		reported: TransportNew,
		handle:   t,
	}
}

// currentTransport returns the live transport, if any.
func (s *synchronizer) currentTransport() (transportSlot, bool) {
	if !s.transport.phase.Live() {
		return transportSlot{}, false
	}
	return s.transport, true
}

// isCurrent reports whether id names the live transport.
func (s *synchronizer) isCurrent(id uint64) bool {
	return s.transport.phase.Live() && s.transport.id == id
}

// advance moves the live transport forward to phase. Backward moves and
// moves on a transport that is no longer current are ignored.
func (s *synchronizer) advance(id uint64, phase ConnectionState) bool {
	if !s.isCurrent(id) || phase <= s.transport.phase || phase == ConnectionClosed {
		return false
	}
	s.transport.phase = phase
	return true
}

// attachChannel installs a new channel in state Connecting.
func (s *synchronizer) attachChannel(id uint64, label string, ch Channel) {
	s.channel = channelSlot{
		id:     id,
		label:  label,
		state:  ChannelConnecting,
		handle: ch,
	}
}

// currentChannel returns the live channel, if any.
func (s *synchronizer) currentChannel() (channelSlot, bool) {
	if !s.channel.state.Live() {
		return channelSlot{}, false
	}
	return s.channel, true
}

// reconcileTransport applies a reported transport state. A closed
// transport is dropped regardless of the channel slot.
func (s *synchronizer) reconcileTransport(id uint64, state TransportState) reconcileResult {
	if !s.isCurrent(id) {
		return reconcileResult{stale: true}
	}
	res := reconcileResult{changed: s.transport.reported != state}
	s.transport.reported = state
	if state == TransportClosed {
		s.transport.phase = ConnectionClosed
		s.transport.handle = nil
		res.changed = true
		res.dropped = true
	}
	return res
}

// reconcileChannel applies a reported channel state. A closed channel is
// dropped regardless of the transport slot.
func (s *synchronizer) reconcileChannel(id uint64, state ChannelState) reconcileResult {
	if !s.channel.state.Live() || s.channel.id != id {
		return reconcileResult{stale: true}
	}
	if state <= s.channel.state {
		return reconcileResult{}
	}
	s.channel.state = state
	if state == ChannelClosed {
		s.channel.state = ChannelAbsent
		s.channel.handle = nil
		return reconcileResult{changed: true, dropped: true}
	}
	return reconcileResult{changed: true}
}

// snapshot renders the projection.
func (s *synchronizer) snapshot() Snapshot {
	snap := Snapshot{
		Connection: s.transport.phase,
		Channel:    s.channel.state,
	}
	if s.transport.phase != ConnectionAbsent {
		snap.Transport = s.transport.reported
	}
	if s.channel.state.Live() {
		snap.ChannelLabel = s.channel.label
	}
	return snap
}

// Snapshot is the externally visible state of a Session.
type Snapshot struct {
	Connection   ConnectionState
	Transport    TransportState
	Channel      ChannelState
	ChannelLabel string

	// Negotiating is set while a negotiation is in flight.
	Negotiating bool
	Target      string

	// Candidates counts gathered candidates for the current transport.
	Candidates        int
	GatheringComplete bool
}

// Usable reports whether data can be sent right now.
func (s Snapshot) Usable() bool {
	return s.Connection == ConnectionConnected && s.Channel == ChannelOpen
}

// CanBegin reports whether a negotiation may be started.
func (s Snapshot) CanBegin() bool {
	if s.Negotiating {
		return false
	}
	return s.Connection != ConnectionConnected
}

// CanCloseChannel reports whether a channel is held.
func (s Snapshot) CanCloseChannel() bool {
	return s.Channel.Live()
}

// CanCloseConnection reports whether a transport is held.
func (s Snapshot) CanCloseConnection() bool {
	return s.Connection.Live()
}
