package chat

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"pedidoflow/auth"
	"pedidoflow/order"
)

// ConversationService is the slice of the lifecycle engine the channel
// needs: authorized history replay and authorized, atomic appends.
type ConversationService interface {
	History(ctx context.Context, actorID, orderID string) ([]order.Message, error)
	AppendMessage(ctx context.Context, actorID, orderID, content string) (order.Message, error)
}

// TokenVerifier validates a bearer credential and yields the caller identity.
type TokenVerifier interface {
	VerifyToken(token string) (string, auth.Role, error)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler upgrades authenticated requests to websocket conversations.
type Handler struct {
	hub      *Hub
	orders   ConversationService
	verifier TokenVerifier
}

// NewHandler wires the channel onto the hub and the lifecycle engine.
func NewHandler(hub *Hub, orders ConversationService, verifier TokenVerifier) *Handler {
	return &Handler{hub: hub, orders: orders, verifier: verifier}
}

// Serve is the websocket endpoint. The bearer credential comes from the
// Authorization header or, for browser websocket clients that cannot set
// headers, the token query parameter.
func (h *Handler) Serve() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing credentials"})
			return
		}
		userID, _, err := h.verifier.VerifyToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("chat: websocket upgrade failed", "error", err)
			return
		}
		slog.Info("chat: client connected", "user_id", userID)

		client := newClient(h.hub, ws, userID)
		go client.writePump()
		client.readPump(h)
	}
}

func bearerToken(c *gin.Context) string {
	if t := c.Query("token"); t != "" {
		return t
	}
	header := c.GetHeader("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return after
	}
	return ""
}

// dispatch routes one decoded client event. Failures never tear down the
// connection; they come back as error events.
func (h *Handler) dispatch(c *Client, ev inboundEvent) {
	switch ev.Event {
	case eventJoin:
		h.handleJoin(c, ev)
	case eventSendMessage:
		h.handleSend(c, ev)
	case eventTyping:
		h.handleTyping(c, ev)
	default:
		c.enqueue(marshalError("unknown event"))
	}
}

// handleJoin replays the conversation as a single batch and subscribes the
// client to the order's room. Membership is checked here: only the buyer or
// the seller of the order may read its history.
func (h *Handler) handleJoin(c *Client, ev inboundEvent) {
	history, err := h.orders.History(context.Background(), c.userID, ev.OrderID)
	if err != nil {
		c.enqueue(marshalError(reasonFor(err)))
		return
	}
	h.hub.Join(c, ev.OrderID)
	c.joined[ev.OrderID] = struct{}{}
	c.enqueue(marshalPreviousMessages(ev.OrderID, history))
}

// handleSend sanitizes, persists and only then broadcasts. The sender
// receives the stored message too, so its UI renders from the same source of
// truth as everyone else's.
func (h *Handler) handleSend(c *Client, ev inboundEvent) {
	content := SanitizeContent(ev.Content)
	if content == "" {
		c.enqueue(marshalError("message is empty"))
		return
	}

	m, err := h.orders.AppendMessage(context.Background(), c.userID, ev.OrderID, content)
	if err != nil {
		c.enqueue(marshalError(reasonFor(err)))
		return
	}

	payload := marshalNewMessage(m)
	h.hub.BroadcastExcept(ev.OrderID, payload, c)
	c.enqueue(payload)
}

// handleTyping relays the ephemeral signal to the other room members. It is
// never persisted and never echoed back to the sender. Only connections that
// passed the join check may signal into a room.
func (h *Handler) handleTyping(c *Client, ev inboundEvent) {
	if ev.OrderID == "" {
		c.enqueue(marshalError("orderId is required"))
		return
	}
	if _, ok := c.joined[ev.OrderID]; !ok {
		c.enqueue(marshalError("join the conversation first"))
		return
	}
	h.hub.BroadcastExcept(ev.OrderID, marshalTyping(ev.OrderID, c.userID, ev.IsTyping), c)
}

// reasonFor translates a failure into the short reason string carried by an
// error event. Internals are logged, not leaked.
func reasonFor(err error) string {
	var verr *order.ValidationError
	switch {
	case errors.As(err, &verr):
		return verr.Error()
	case errors.Is(err, order.ErrNotFound):
		return "order not found"
	case errors.Is(err, order.ErrForbidden):
		return "you are not a party to this order"
	case errors.Is(err, order.ErrConflict):
		return err.Error()
	case errors.Is(err, order.ErrStorageTimeout):
		return "storage timeout, retry"
	default:
		slog.Error("chat: operation failed", "error", err)
		return "internal error"
	}
}
