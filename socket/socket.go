// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package socket

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"github.com/campusvote/livetally/auth"
	"github.com/campusvote/livetally/live"
	"github.com/campusvote/livetally/models"
)

// Client message types
const (
	MsgJoinElection         = "join_election"
	MsgLeaveElection        = "leave_election"
	MsgSubscribeLiveResults = "subscribe_live_results"
)

const writeWait = 10 * time.Second

var (
	ErrClosed       = errors.New("connection closed")
	ErrSlowConsumer = errors.New("connection send buffer full")
)

type clientMessage struct {
	Type       string `json:"type"`
	ElectionID string `json:"electionId"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// Hub accepts websocket connections and feeds their join and leave
// requests to the registry.
type Hub struct {
	registry   *live.Registry
	secret     string
	sendBuffer int
	logger     *slog.Logger
}

func NewHub(registry *live.Registry, secret string, sendBuffer int, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if sendBuffer < 1 {
		sendBuffer = 64
	}
	return &Hub{registry: registry, secret: secret, sendBuffer: sendBuffer, logger: logger}
}

// Handler returns the websocket endpoint. Connections without a valid
// token are refused during the handshake.
func (h *Hub) Handler() http.Handler {
	return websocket.Server{
		Handshake: h.handshake,
		Handler:   h.serve,
	}
}

func (h *Hub) handshake(cfg *websocket.Config, r *http.Request) error {
	if _, err := auth.VerifyToken(auth.TokenFromRequest(r), h.secret); err != nil {
		h.logger.Info("websocket handshake rejected", "error", err, "remote", r.RemoteAddr)
		return err
	}
	return nil
}

func (h *Hub) serve(ws *websocket.Conn) {
	p, err := auth.VerifyToken(auth.TokenFromRequest(ws.Request()), h.secret)
	if err != nil {
		return
	}

	id, err := auth.GenerateID(8)
	if err != nil {
		slog.Error("failed to generate connection id", "error", err)
		return
	}

	c := newClient(id, p, ws, h.sendBuffer)
	log := h.logger.With("conn_id", id, "user_id", p.ID)
	log.Info("websocket connected", "role", p.Role)

	defer func() {
		h.registry.OnDisconnect(c)
		c.close()
		log.Info("websocket disconnected")
	}()

	go c.writeLoop(log)

	for {
		var raw []byte
		if err := websocket.Message.Receive(ws, &raw); err != nil {
			if !errors.Is(err, io.EOF) {
				log.Debug("websocket read ended", "error", err)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.Send(errorEvent("invalid message"))
			continue
		}

		switch msg.Type {
		case MsgJoinElection, MsgLeaveElection, MsgSubscribeLiveResults:
			if msg.ElectionID == "" {
				c.Send(errorEvent("electionId is required"))
				continue
			}
		default:
			c.Send(errorEvent("unknown message type"))
			continue
		}

		switch msg.Type {
		case MsgJoinElection:
			h.registry.Join(c, msg.ElectionID)
		case MsgLeaveElection:
			h.registry.Leave(c, msg.ElectionID)
		case MsgSubscribeLiveResults:
			if !h.registry.SubscribeLiveResults(c, msg.ElectionID) {
				log.Debug("live results subscription ignored", "election_id", msg.ElectionID)
			}
		}
	}
}

func errorEvent(msg string) live.Event {
	return live.Event{Name: models.EventError, Payload: errorPayload{Message: msg}}
}

// Client is one websocket connection. Events are queued and written by a
// dedicated goroutine; a client whose queue is full is disconnected.
type Client struct {
	id        string
	principal auth.Principal
	ws        *websocket.Conn
	out       chan live.Event
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(id string, p auth.Principal, ws *websocket.Conn, buffer int) *Client {
	return &Client{
		id:        id,
		principal: p,
		ws:        ws,
		out:       make(chan live.Event, buffer),
		done:      make(chan struct{}),
	}
}

func (c *Client) ID() string   { return c.id }
func (c *Client) Role() string { return c.principal.Role }

// Send queues ev without blocking.
func (c *Client) Send(ev live.Event) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.out <- ev:
		return nil
	case <-c.done:
		return ErrClosed
	default:
		c.close()
		return ErrSlowConsumer
	}
}

func (c *Client) writeLoop(log *slog.Logger) {
	for {
		select {
		case ev := <-c.out:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := websocket.JSON.Send(c.ws, ev); err != nil {
				log.Debug("websocket write failed", "error", err, "event", ev.Name)
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.ws != nil {
			c.ws.Close()
		}
	})
}

var _ live.Conn = (*Client)(nil)
