package chat

import (
	"context"
	"log/slog"
)

// Hub owns room membership. A single goroutine processes every join, leave
// and broadcast, so the maps below are never touched concurrently. Rooms are
// keyed by order id; state lives in the order store, so a dropped room needs
// no cleanup beyond forgetting its members.
type Hub struct {
	join      chan joinRequest
	leave     chan *Client
	broadcast chan broadcastRequest

	rooms   map[string]map[*Client]struct{}
	members map[*Client]map[string]struct{}
}

type joinRequest struct {
	client *Client
	room   string
}

type broadcastRequest struct {
	room    string
	payload []byte
	exclude *Client
}

// NewHub builds an empty hub; call Run to start processing.
func NewHub() *Hub {
	return &Hub{
		join:      make(chan joinRequest),
		leave:     make(chan *Client),
		broadcast: make(chan broadcastRequest, 64),
		rooms:     make(map[string]map[*Client]struct{}),
		members:   make(map[*Client]map[string]struct{}),
	}
}

// Run processes hub events until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-h.join:
			h.addMember(req.client, req.room)
		case c := <-h.leave:
			h.removeMember(c)
		case req := <-h.broadcast:
			h.fanOut(req)
		}
	}
}

// Join subscribes the client to the room.
func (h *Hub) Join(c *Client, room string) {
	h.join <- joinRequest{client: c, room: room}
}

// Leave removes the client from every room it joined.
func (h *Hub) Leave(c *Client) {
	h.leave <- c
}

// Broadcast delivers payload to every member of the room.
func (h *Hub) Broadcast(room string, payload []byte) {
	h.broadcast <- broadcastRequest{room: room, payload: payload}
}

// BroadcastExcept delivers payload to every member of the room but one.
func (h *Hub) BroadcastExcept(room string, payload []byte, except *Client) {
	h.broadcast <- broadcastRequest{room: room, payload: payload, exclude: except}
}

func (h *Hub) addMember(c *Client, room string) {
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]struct{})
	}
	h.rooms[room][c] = struct{}{}
	if h.members[c] == nil {
		h.members[c] = make(map[string]struct{})
	}
	h.members[c][room] = struct{}{}
}

func (h *Hub) removeMember(c *Client) {
	for room := range h.members[c] {
		delete(h.rooms[room], c)
		if len(h.rooms[room]) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(h.members, c)
}

func (h *Hub) fanOut(req broadcastRequest) {
	for c := range h.rooms[req.room] {
		if c == req.exclude {
			continue
		}
		if !c.enqueue(req.payload) {
			// Slow consumer: its buffer is full, drop the membership so
			// the rest of the room keeps moving.
			slog.Warn("chat: dropping slow client", "user_id", c.userID, "room", req.room)
			h.removeMember(c)
			c.closeSend()
		}
	}
}
