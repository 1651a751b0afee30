package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/BioHazard786/peerlink/internal/peer"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// Answerer turns a remote offer into a complete answer.
type Answerer interface {
	Answer(ctx context.Context, offer peer.Description) (peer.Description, error)
}

// AnswererFunc adapts a function to Answerer.
type AnswererFunc func(ctx context.Context, offer peer.Description) (peer.Description, error)

func (f AnswererFunc) Answer(ctx context.Context, offer peer.Description) (peer.Description, error) {
	return f(ctx, offer)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  maxMessageSize,
	WriteBufferSize: maxMessageSize,

	// Offers carry no credentials, so any origin may connect.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const shutdownTimeout = 5 * time.Second

// Server exposes an Answerer over HTTP and WebSocket:
//
//	GET  /health  liveness
//	POST /offer   offer JSON in, answer JSON out (also POST /)
//	GET  /ws      WebSocket, one answer frame per offer frame
type Server struct {
	answerer Answerer
	limiter  *rate.Limiter
	logger   *slog.Logger
	mux      *http.ServeMux
}

type ServerOption func(*Server)

// WithRateLimit bounds how many offers are answered.
func WithRateLimit(limit rate.Limit, burst int) ServerOption {
	return func(s *Server) {
		s.limiter = rate.NewLimiter(limit, burst)
	}
}

func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func NewServer(answerer Answerer, opts ...ServerOption) *Server {
	s := &Server{
		answerer: answerer,
		limiter:  rate.NewLimiter(rate.Every(200*time.Millisecond), 10),
		logger:   slog.Default(),
		mux:      http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /offer", s.handleOffer)
	s.mux.HandleFunc("POST /{$}", s.handleOffer)
	s.mux.HandleFunc("GET /ws", s.handleWebSocket)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Signaling server is healthy."))
}

func (s *Server) handleOffer(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		http.Error(w, ErrRateLimited.Error(), http.StatusTooManyRequests)
		return
	}

	var offer peer.Description
	if err := json.NewDecoder(io.LimitReader(r.Body, maxDescriptionSize)).Decode(&offer); err != nil {
		http.Error(w, fmt.Sprintf("decode offer: %v", err), http.StatusBadRequest)
		return
	}

	answer, status, err := s.answer(r.Context(), offer)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(answer)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	conn.SetReadLimit(maxMessageSize)
	for {
		conn.SetReadDeadline(time.Now().Add(answerWait))
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket read ended", "error", err)
			}
			return
		}

		reply := s.replyTo(r.Context(), msg)
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(reply); err != nil {
			s.logger.Debug("websocket write failed", "error", err)
			return
		}
	}
}

func (s *Server) replyTo(ctx context.Context, msg Message) Message {
	if msg.Type != MessageTypeOffer || msg.Description == nil {
		return Message{Type: MessageTypeError, Error: fmt.Sprintf("expected an offer, got %q", msg.Type)}
	}
	if !s.limiter.Allow() {
		return Message{Type: MessageTypeError, Error: ErrRateLimited.Error()}
	}
	answer, _, err := s.answer(ctx, *msg.Description)
	if err != nil {
		return Message{Type: MessageTypeError, Error: err.Error()}
	}
	return Message{Type: MessageTypeAnswer, Description: &answer}
}

// answer validates offer and runs the answerer, returning the HTTP
// status to report on failure.
func (s *Server) answer(ctx context.Context, offer peer.Description) (peer.Description, int, error) {
	if err := Validate(offer, peer.SDPTypeOffer); err != nil {
		return peer.Description{}, http.StatusBadRequest, err
	}

	s.logger.Info("answering offer", "candidates", CandidateCount(offer))
	answer, err := s.answerer.Answer(ctx, offer)
	if err != nil {
		s.logger.Warn("answer failed", "error", err)
		return peer.Description{}, http.StatusInternalServerError, fmt.Errorf("answer offer: %w", err)
	}
	return answer, 0, nil
}
