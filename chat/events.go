package chat

import (
	"encoding/json"
	"time"

	"pedidoflow/order"
)

// Client-initiated event names.
const (
	eventJoin        = "join"
	eventSendMessage = "sendMessage"
	eventTyping      = "typing"
)

// Server-initiated event names.
const (
	eventPreviousMessages = "previousMessages"
	eventNewMessage       = "newMessage"
	eventError            = "error"
)

// inboundEvent is the envelope every client frame is decoded into.
type inboundEvent struct {
	Event    string `json:"event"`
	OrderID  string `json:"orderId"`
	Content  string `json:"content,omitempty"`
	IsTyping bool   `json:"isTyping,omitempty"`
}

// wireMessage is the JSON shape of a persisted conversation entry.
type wireMessage struct {
	ID       int64     `json:"id"`
	OrderID  string    `json:"orderId"`
	SenderID string    `json:"senderId"`
	Content  string    `json:"content"`
	SentAt   time.Time `json:"sentAt"`
}

func toWire(m order.Message) wireMessage {
	return wireMessage{
		ID:       m.ID,
		OrderID:  m.OrderID,
		SenderID: m.SenderID,
		Content:  m.Content,
		SentAt:   m.SentAt,
	}
}

func marshalPreviousMessages(orderID string, msgs []order.Message) []byte {
	wire := make([]wireMessage, len(msgs))
	for i, m := range msgs {
		wire[i] = toWire(m)
	}
	return mustMarshal(map[string]any{
		"event":    eventPreviousMessages,
		"orderId":  orderID,
		"messages": wire,
	})
}

func marshalNewMessage(m order.Message) []byte {
	return mustMarshal(map[string]any{
		"event":   eventNewMessage,
		"orderId": m.OrderID,
		"message": toWire(m),
	})
}

func marshalTyping(orderID, senderID string, isTyping bool) []byte {
	return mustMarshal(map[string]any{
		"event":    eventTyping,
		"orderId":  orderID,
		"senderId": senderID,
		"isTyping": isTyping,
	})
}

func marshalError(reason string) []byte {
	return mustMarshal(map[string]any{
		"event":  eventError,
		"reason": reason,
	})
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
