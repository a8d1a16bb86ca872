// Package ws is the WebSocket transport: connection admission, the
// per-connection read/write loops, event dispatch and the room fan-out.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"chatline/internal/auth"
	"chatline/internal/chat"
	"chatline/internal/metrics"
	"chatline/internal/presence"
	"chatline/pkg/types"
)

var upgrader = websocket.Upgrader{
	HandshakeTimeout: 10 * time.Second,
	CheckOrigin: func(r *http.Request) bool {
		// Origin policy is enforced by the deployment's edge; cookies
		// still gate admission here.
		return true
	},
}

// Handler admits WebSocket connections and runs their event loops.
type Handler struct {
	auth      *auth.Authenticator
	rooms     *Rooms
	lifecycle *presence.Lifecycle
	pipeline  *chat.Pipeline
	relay     *chat.Relay

	pingInterval time.Duration
	pongTimeout  time.Duration

	metrics *metrics.Metrics
	log     zerolog.Logger
}

// NewHandler wires the transport handler.
func NewHandler(a *auth.Authenticator, rooms *Rooms, lifecycle *presence.Lifecycle, pipeline *chat.Pipeline, relay *chat.Relay, pingInterval, pongTimeout time.Duration, m *metrics.Metrics, log zerolog.Logger) *Handler {
	return &Handler{
		auth:         a,
		rooms:        rooms,
		lifecycle:    lifecycle,
		pipeline:     pipeline,
		relay:        relay,
		pingInterval: pingInterval,
		pongTimeout:  pongTimeout,
		metrics:      m,
		log:          log.With().Str("component", "ws").Logger(),
	}
}

// HandleWebSocket admits, upgrades and runs one connection. Admission
// failures are terminal for the attempt and leave no state behind; the
// presence side effects run only after a successful upgrade.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	identity, err := h.auth.Admit(r.Context(), r)
	if err != nil {
		h.rejectAdmission(w, err)
		return
	}

	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	conn := NewConnection(raw)
	conn.SetIdentity(*identity)

	h.rooms.Add(conn)
	h.lifecycle.Connect(context.Background(), *identity, conn.ID())
	h.metrics.ConnectionsActive.Inc()
	h.metrics.PresenceEvents.WithLabelValues("connect").Inc()

	h.log.Info().Str("user", identity.ID).Str("conn", conn.ID()).Msg("connection admitted")

	go h.run(conn)
}

func (h *Handler) rejectAdmission(w http.ResponseWriter, err error) {
	h.log.Warn().Err(err).Msg("admission rejected")
	switch {
	case errors.Is(err, auth.ErrServerMisconfigured):
		http.Error(w, auth.ErrServerMisconfigured.Error(), http.StatusInternalServerError)
	case errors.Is(err, auth.ErrNoCredential),
		errors.Is(err, auth.ErrInvalidCredential),
		errors.Is(err, auth.ErrUnknownUser):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	default:
		http.Error(w, "admission failed", http.StatusInternalServerError)
	}
}

// run owns the connection lifecycle: heartbeat, read pump, teardown.
func (h *Handler) run(conn *Connection) {
	identity := conn.Identity()

	defer func() {
		h.rooms.Remove(conn.ID())
		h.lifecycle.Disconnect(context.Background(), identity, conn.ID())
		_ = conn.Close()
		h.metrics.ConnectionsActive.Dec()
		h.metrics.PresenceEvents.WithLabelValues("disconnect").Inc()
		h.log.Info().Str("user", identity.ID).Str("conn", conn.ID()).Msg("connection closed")
	}()

	if err := conn.conn.SetReadDeadline(time.Now().Add(h.pongTimeout)); err != nil {
		return
	}
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(h.pongTimeout))
	})

	go h.heartbeat(conn)

	for {
		messageType, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.log.Warn().Err(err).Str("conn", conn.ID()).Msg("read error")
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		// Each inbound event is its own task: a slow repository call on
		// one event must not stall this connection's heartbeat or reads.
		go h.dispatch(conn, data)
	}
}

func (h *Handler) heartbeat(conn *Connection) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := conn.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-conn.Done():
			return
		}
	}
}

// dispatch decodes one inbound envelope and routes it. Every failure is
// scoped to this event: the sender gets a message:error and the
// connection stays open.
func (h *Handler) dispatch(conn *Connection, data []byte) {
	identity := conn.Identity()

	var envelope types.Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		h.sendError(conn, "malformed event")
		return
	}

	ctx := context.Background()

	switch envelope.Event {
	case types.EventMessageSend:
		var payload types.SendMessagePayload
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			h.sendError(conn, "malformed message:send payload")
			return
		}
		if _, err := h.pipeline.Send(ctx, identity.ID, payload.ReceiverID, payload.Content); err != nil {
			h.log.Debug().Err(err).Str("user", identity.ID).Msg("send rejected")
			h.sendError(conn, userMessage(err))
		}

	case types.EventTypingStart, types.EventTypingStop:
		var payload types.TypingPayload
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			h.sendError(conn, "malformed typing payload")
			return
		}
		isTyping := envelope.Event == types.EventTypingStart
		if err := h.relay.Typing(identity, payload.ReceiverID, isTyping); err != nil {
			h.sendError(conn, userMessage(err))
		}

	case types.EventMessagesRead:
		var payload types.MarkReadPayload
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			h.sendError(conn, "malformed messages:read payload")
			return
		}
		if err := h.relay.MarkRead(ctx, identity.ID, payload.ConversationID); err != nil {
			h.log.Warn().Err(err).Str("user", identity.ID).Msg("mark read failed")
			h.sendError(conn, userMessage(err))
		}

	default:
		h.sendError(conn, "unknown event: "+envelope.Event)
	}
}

func (h *Handler) sendError(conn *Connection, message string) {
	if err := conn.Send(types.EventMessageError, types.ErrorPayload{Message: message}); err != nil {
		h.log.Debug().Err(err).Str("conn", conn.ID()).Msg("error event not delivered")
	}
}

// userMessage maps pipeline/relay errors to the single human-readable
// message carried by message:error. Storage details stay out of it.
func userMessage(err error) string {
	switch {
	case chat.IsValidationError(err):
		return err.Error()
	case errors.Is(err, chat.ErrRateLimited):
		return "rate limit exceeded, slow down"
	case errors.Is(err, chat.ErrDelivery):
		return "message was saved but could not be delivered"
	default:
		return "message could not be processed"
	}
}
