package signaling

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BioHazard786/peerlink/internal/dns"
	"github.com/BioHazard786/peerlink/internal/peer"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	answerWait     = 30 * time.Second
	maxMessageSize = 64 * 1024
)

// WebSocketExchanger sends the offer over a short-lived WebSocket
// connection and waits for a single answer frame.
type WebSocketExchanger struct {
	dialer *websocket.Dialer
	logger *slog.Logger
}

func NewWebSocketExchanger(logger *slog.Logger) *WebSocketExchanger {
	if logger == nil {
		logger = slog.Default()
	}
	dialer := *websocket.DefaultDialer
	dialer.NetDialContext = dns.DialContext
	return &WebSocketExchanger{dialer: &dialer, logger: logger}
}

func (e *WebSocketExchanger) Exchange(ctx context.Context, target string, offer peer.Description) (peer.Description, error) {
	conn, resp, err := e.dialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil {
			return peer.Description{}, &ExchangeError{Op: "dial", StatusCode: resp.StatusCode, Err: err}
		}
		return peer.Description{}, newError("dial", err)
	}
	defer conn.Close()

	// Unblock the read below if the caller gives up.
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	conn.SetReadLimit(maxMessageSize)

	e.logger.Debug("sending offer", "target", target, "candidates", CandidateCount(offer))

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(Message{Type: MessageTypeOffer, Description: &offer}); err != nil {
		return peer.Description{}, newError("send offer", contextErr(ctx, err))
	}

	deadline := time.Now().Add(answerWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetReadDeadline(deadline)

	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		return peer.Description{}, newError("read answer", contextErr(ctx, err))
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

	switch msg.Type {
	case MessageTypeAnswer:
		if msg.Description == nil {
			return peer.Description{}, newError("read answer", fmt.Errorf("%w: answer frame without description", ErrMalformedDescription))
		}
		if err := Validate(*msg.Description, peer.SDPTypeAnswer); err != nil {
			return peer.Description{}, newError("validate answer", err)
		}
		return *msg.Description, nil
	case MessageTypeError:
		return peer.Description{}, newError("read answer", fmt.Errorf("%w: %s", ErrRemote, msg.Error))
	default:
		return peer.Description{}, newError("read answer", fmt.Errorf("unexpected message type %q", msg.Type))
	}
}

// contextErr prefers the context's error once it is done, since closing
// the connection surfaces as an unrelated network error.
func contextErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}
