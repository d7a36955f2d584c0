package websocket

import (
	"context"
	"time"

	ws "github.com/coder/websocket"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
	writeTimeout   = 10 * time.Second
	// Clients only listen; anything larger than a control frame is abuse.
	readLimit = 512
)

// Client is one connection subscribed to a household's events on behalf of
// a member.
type Client struct {
	hub         *Hub
	conn        *ws.Conn
	householdID int64
	userID      string
	send        chan []byte
}

func NewClient(hub *Hub, conn *ws.Conn, sub Subscription) *Client {
	return &Client{
		hub:         hub,
		conn:        conn,
		householdID: sub.HouseholdID,
		userID:      sub.UserID,
		send:        make(chan []byte, sendBufferSize),
	}
}

// Run registers the client and pumps until the peer goes away or the hub
// revokes the subscription.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.conn.SetReadLimit(readLimit)
	go c.writePump(ctx)
	c.readPump(ctx)
}

func (c *Client) readPump(ctx context.Context) {
	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			return
		}
	}
}

func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				// Closing the connection also ends readPump.
				c.conn.Close(ws.StatusPolicyViolation, "subscription revoked")
				return
			}
			if err := c.write(ctx, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) write(ctx context.Context, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, ws.MessageText, msg)
}
