/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"

	"github.com/Seednode/triviabox/game"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	maxFrameSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one team connection. The coordinator only ever queues frames;
// the write pump owns the socket's write side.
type Client struct {
	id   string
	ip   string
	conn *websocket.Conn
	send chan string

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

func newClient(conn *websocket.Conn, ip string, buffer int) *Client {
	return &Client{
		id:   uuid.NewString(),
		ip:   ip,
		conn: conn,
		send: make(chan string, buffer),
		done: make(chan struct{}),
	}
}

func (c *Client) ID() string {
	return c.id
}

// Send queues frame without blocking. It reports false when the buffer is
// full or the client is closed.
func (c *Client) Send(frame string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.done)
	}

	return nil
}

func (c *Client) readPump(coord *game.Coordinator, r *http.Request) {
	defer func() {
		coord.Unregister(c)
		_ = c.Close()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Debug().Str("conn", c.id).Err(err).Msg("websocket read error")
			}
			return
		}

		if messageType != websocket.TextMessage {
			continue
		}

		if err := coord.Deliver(r.Context(), c, string(data)); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func serveSocket(cfg *Config, coord *game.Coordinator) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Debug().Err(err).Str("ip", realIP(r)).Msg("websocket upgrade failed")
			return
		}

		client := newClient(conn, realIP(r), cfg.sendBuffer)

		if err := coord.Register(r.Context(), client); err != nil {
			_ = conn.Close()
			return
		}

		log.Debug().Str("conn", client.id).Str("ip", client.ip).Msg("websocket connected")

		go client.writePump()
		client.readPump(coord, r)
	}
}
