package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Message is a live membership or invitation event for one household.
type Message struct {
	Type        string         `json:"type"`
	Entity      string         `json:"entity"`
	Action      string         `json:"action"`
	HouseholdID int64          `json:"household_id"`
	ID          int64          `json:"id,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
}

// NewMessage creates a Message with the Type field derived from entity and action.
func NewMessage(entity, action string, id int64, extra map[string]any) Message {
	return Message{
		Type:   fmt.Sprintf("%s_%s", entity, action),
		Entity: entity,
		Action: action,
		ID:     id,
		Extra:  extra,
	}
}

// Hub tracks connected clients per household. A broadcast only reaches the
// clients of the household it names.
type Hub struct {
	mu      sync.RWMutex
	clients map[int64]map[*Client]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[int64]map[*Client]struct{}),
		logger:  logger,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	set, ok := h.clients[c.householdID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.householdID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if set, ok := h.clients[c.householdID]; ok {
		if _, ok := set[c]; ok {
			delete(set, c)
			close(c.send)
		}
		if len(set) == 0 {
			delete(h.clients, c.householdID)
		}
	}
	h.mu.Unlock()
}

func (h *Hub) Broadcast(householdID int64, msg Message) {
	msg.HouseholdID = householdID
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients[householdID] {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("dropping message for slow client", "household_id", householdID, "type", msg.Type)
		}
	}
}

// Disconnect drops the household's clients belonging to userID, or every
// client of the household when userID is empty, and reports how many went.
func (h *Hub) Disconnect(householdID int64, userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.clients[householdID]
	n := 0
	for c := range set {
		if userID != "" && c.userID != userID {
			continue
		}
		delete(set, c)
		close(c.send)
		n++
	}
	if len(set) == 0 {
		delete(h.clients, householdID)
	}
	if n > 0 {
		h.logger.Info("websocket subscriptions revoked", "household_id", householdID, "user_id", userID, "count", n)
	}
	return n
}

// ClientCount returns the number of clients connected to the household.
func (h *Hub) ClientCount(householdID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[householdID])
}
