package rtc

import (
	"log/slog"
	"sync"

	"github.com/BioHazard786/peerlink/internal/peer"
	pion "github.com/pion/webrtc/v4"
)

// Channel adapts a pion DataChannel to peer.Channel.
type Channel struct {
	dc     *pion.DataChannel
	logger *slog.Logger

	mu      sync.Mutex
	sink    peer.EventSink
	pending []peer.Event
}

func newChannel(dc *pion.DataChannel, logger *slog.Logger) *Channel {
	c := &Channel{dc: dc, logger: logger}

	dc.OnOpen(func() {
		c.emit(peer.ChannelStateEvent{State: peer.ChannelOpen})
	})
	dc.OnClose(func() {
		c.emit(peer.ChannelStateEvent{State: peer.ChannelClosed})
	})
	dc.OnError(func(err error) {
		c.logger.Warn("data channel error", "label", dc.Label(), "error", err)
	})
	dc.OnMessage(func(msg pion.DataChannelMessage) {
		c.emit(peer.MessageEvent{Data: msg.Data})
	})
	return c
}

func (c *Channel) Label() string { return c.dc.Label() }

func (c *Channel) Subscribe(sink peer.EventSink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sink = sink
	for _, ev := range c.pending {
		sink(ev)
	}
	c.pending = nil
}

func (c *Channel) emit(ev peer.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sink == nil {
		c.pending = append(c.pending, ev)
		return
	}
	c.sink(ev)
}

func (c *Channel) Send(data []byte) error {
	return c.dc.Send(data)
}

func (c *Channel) Close() error {
	return c.dc.Close()
}
