package peer

import "log/slog"

// DefaultChannelLabel labels the session's data channel.
const DefaultChannelLabel = "channel"

// channelManager creates the session's data channel once negotiation
// completes and follows its ready state. The channel slot itself lives in
// the synchronizer; the manager only requests changes to it.
type channelManager struct {
	label  string
	proj   *synchronizer
	logger *slog.Logger
}

// onNegotiationComplete creates exactly one channel on t. A second
// channel is refused while the first is still live.
func (m *channelManager) onNegotiationComplete(id uint64, t Transport, sink func(id uint64) EventSink) (Channel, error) {
	if _, ok := m.proj.currentChannel(); ok {
		return nil, ErrChannelExists
	}

	ch, err := t.CreateChannel(m.label)
	if err != nil {
		return nil, err
	}
	ch.Subscribe(sink(id))
	m.proj.attachChannel(id, m.label, ch)

	m.logger.Debug("channel created", "label", m.label)
	return ch, nil
}

// onState applies a reported ready state and returns the update to
// publish, if any.
func (m *channelManager) onState(id uint64, state ChannelState) (UpdateKind, bool) {
	res := m.proj.reconcileChannel(id, state)
	if res.stale {
		return UpdateStaleEventIgnored, true
	}
	if !res.changed {
		return 0, false
	}

	m.logger.Debug("channel state changed", "label", m.label, "state", state)

	switch state {
	case ChannelOpen:
		return UpdateChannelOpen, true
	case ChannelClosed:
		return UpdateChannelClosed, true
	default:
		return UpdateState, true
	}
}

// close requests the live channel to close. The slot is cleared when the
// channel reports Closed.
func (m *channelManager) close() error {
	slot, ok := m.proj.currentChannel()
	if !ok {
		return ErrNoChannel
	}
	if err := slot.handle.Close(); err != nil {
		return err
	}
	m.proj.reconcileChannel(slot.id, ChannelClosing)
	return nil
}

// usable returns the channel only while it is open on a connected
// transport.
func (m *channelManager) usable() (Channel, bool) {
	slot, ok := m.proj.currentChannel()
	if !ok || slot.state != ChannelOpen {
		return nil, false
	}
	if m.proj.transport.phase != ConnectionConnected {
		return nil, false
	}
	return slot.handle, true
}
