package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/mosaic-social/mosaic/internal/metrics"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	// Outbound queue depth per session.
	outboundBuffer = 32
)

// Session owns the lifecycle of one live connection: it registers
// itself, runs a broker-forwarding task, serves inbound send requests
// and tears everything down on disconnect. At most one session is live
// per user per process; a newer connection force-closes the older one.
type Session struct {
	id       string
	userID   uuid.UUID
	conn     *websocket.Conn
	svc      *Service
	registry *Registry
	logger   zerolog.Logger

	outbound  chan []byte
	closing   chan struct{}
	closeOnce sync.Once
}

// NewSession wraps an accepted websocket connection for one user.
func NewSession(userID uuid.UUID, conn *websocket.Conn, svc *Service, registry *Registry, logger zerolog.Logger) *Session {
	id := ulid.Make().String()
	return &Session{
		id:       id,
		userID:   userID,
		conn:     conn,
		svc:      svc,
		registry: registry,
		logger: logger.With().
			Str("session_id", id).
			Str("user_id", userID.String()).
			Logger(),
		outbound: make(chan []byte, outboundBuffer),
		closing:  make(chan struct{}),
	}
}

// Close asks the session to shut down. It unblocks the read loop by
// closing the underlying connection. Safe to call from any goroutine,
// repeatedly.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.closing)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
			time.Now().Add(writeWait))
		_ = s.conn.Close()
	})
}

// Run serves the session until disconnect. It blocks the caller (the
// websocket HTTP handler) for the lifetime of the connection and
// guarantees that on return the forwarding task has unwound, the broker
// subscription is released and the session is deregistered.
func (s *Session) Run(ctx context.Context) {
	metrics.SessionsActive.Inc()
	metrics.SessionsTotal.Inc()
	defer metrics.SessionsActive.Dec()

	if prev := s.registry.Register(s); prev != nil {
		prev.Close()
	}
	s.logger.Info().Msg("session accepted")

	sub, err := s.svc.broker.Subscribe(ctx, s.userID.String())
	if err != nil {
		s.logger.Error().Err(err).Msg("broker subscribe failed")
		s.writeDirect(ErrorFrame{Type: frameError, Message: "broker unavailable"})
		s.registry.Deregister(s)
		_ = s.conn.Close()
		return
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.writePump()
	}()
	go func() {
		defer wg.Done()
		s.forward(sub)
	}()

	s.readLoop(ctx)

	// Teardown runs on every exit path, in order: signal cancellation,
	// wait for the forwarding task to fully unwind, release the broker
	// subscription, deregister.
	s.Close()
	wg.Wait()
	_ = sub.Close()
	s.registry.Deregister(s)
	s.logger.Info().Msg("session closed")
}

// readLoop reads inbound requests one at a time. Each send is fully
// processed before the next request is read, which is what guarantees
// per-sender submission order.
func (s *Session) readLoop(ctx context.Context) {
	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				s.logger.Warn().Err(err).Msg("websocket read error")
			}
			return
		}
		s.handleInbound(ctx, data)
	}
}

// handleInbound dispatches one client frame. Failures are reported as
// in-band error frames; the connection stays open.
func (s *Session) handleInbound(ctx context.Context, data []byte) {
	var frame InboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		s.sendError("invalid frame: not a JSON object")
		return
	}

	switch frame.Type {
	case frameSend:
		s.handleSend(ctx, frame)
	default:
		s.sendError(fmt.Sprintf("unrecognized frame type %q", frame.Type))
	}
}

func (s *Session) handleSend(ctx context.Context, frame InboundFrame) {
	receiverID, err := uuid.Parse(frame.ReceiverID)
	if err != nil {
		s.sendError("invalid receiver_id")
		return
	}

	msg, err := s.svc.Send(ctx, s.userID, receiverID, frame.Content)
	if msg == nil {
		s.sendError(err.Error())
		return
	}
	metrics.MessagesSent.WithLabelValues("ws").Inc()

	// Echo the stored message back to the sender. If only the broker
	// publish failed the message is already durable, so the echo still
	// goes out and the degradation is reported in-band.
	s.enqueueJSON(NewMessageEnvelope(msg))
	if err != nil {
		s.sendError("delivery degraded: message stored but receiver not notified")
	}
}

// forward relays broker payloads to the session until cancelled. A
// failure to hand off (session already closing) terminates the task
// quietly.
func (s *Session) forward(sub Subscription) {
	for {
		select {
		case <-s.closing:
			return
		case payload, ok := <-sub.Messages():
			if !ok {
				return
			}
			if !s.enqueue(payload) {
				return
			}
		}
	}
}

// writePump owns all writes to the connection: queued payloads, pings,
// and the final close frame.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data := <-s.outbound:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.Close()
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.Close()
				return
			}
		case <-s.closing:
			return
		}
	}
}

func (s *Session) sendError(message string) {
	s.enqueueJSON(ErrorFrame{Type: frameError, Message: message})
}

func (s *Session) enqueueJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error().Err(err).Msg("marshal outbound frame")
		return
	}
	s.enqueue(data)
}

// enqueue queues an outbound payload, reporting false if the session is
// shutting down.
func (s *Session) enqueue(data []byte) bool {
	select {
	case s.outbound <- data:
		return true
	case <-s.closing:
		return false
	}
}

// writeDirect writes a frame before the write pump exists. Only used on
// the setup failure path.
func (s *Session) writeDirect(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = s.conn.WriteMessage(websocket.TextMessage, data)
}
