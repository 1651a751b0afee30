package signaling

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/BioHazard786/peerlink/internal/peer"
)

// Exchanger routes an exchange by the target's scheme: http and https
// targets are posted to, ws and wss targets get a WebSocket exchange.
type Exchanger struct {
	HTTP      *HTTPExchanger
	WebSocket *WebSocketExchanger
}

func NewExchanger(logger *slog.Logger) *Exchanger {
	return &Exchanger{
		HTTP:      NewHTTPExchanger(nil, logger),
		WebSocket: NewWebSocketExchanger(logger),
	}
}

func (e *Exchanger) Exchange(ctx context.Context, target string, offer peer.Description) (peer.Description, error) {
	u, err := url.Parse(target)
	if err != nil {
		return peer.Description{}, newError("parse target", err)
	}
	switch u.Scheme {
	case "http", "https":
		return e.HTTP.Exchange(ctx, target, offer)
	case "ws", "wss":
		return e.WebSocket.Exchange(ctx, target, offer)
	}
	return peer.Description{}, newError("parse target", fmt.Errorf("%w %q", ErrUnsupportedScheme, u.Scheme))
}
