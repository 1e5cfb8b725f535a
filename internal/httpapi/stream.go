package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Event is a learning event pushed to stream subscribers.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Hub fans learning events out to websocket subscribers. Slow subscribers
// are dropped rather than allowed to block the broadcast path.
type Hub struct {
	register   chan *subscriber
	unregister chan *subscriber
	events     chan Event
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates an idle hub; call Run to start it.
func NewHub() *Hub {
	return &Hub{
		register:   make(chan *subscriber),
		unregister: make(chan *subscriber),
		events:     make(chan Event, 64),
	}
}

// Broadcast queues an event for all subscribers. Drops the event if the
// queue is full.
func (h *Hub) Broadcast(event Event) {
	select {
	case h.events <- event:
	default:
		log.Warn().Str("type", event.Type).Msg("event queue full, dropping")
	}
}

// Run owns the subscriber set until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	subs := make(map[*subscriber]struct{})
	for {
		select {
		case <-ctx.Done():
			for sub := range subs {
				close(sub.send)
			}
			return
		case sub := <-h.register:
			subs[sub] = struct{}{}
		case sub := <-h.unregister:
			if _, ok := subs[sub]; ok {
				delete(subs, sub)
				close(sub.send)
			}
		case event := <-h.events:
			payload, err := json.Marshal(event)
			if err != nil {
				log.Error().Err(err).Msg("marshal stream event")
				continue
			}
			for sub := range subs {
				select {
				case sub.send <- payload:
				default:
					delete(subs, sub)
					close(sub.send)
				}
			}
		}
	}
}

// HandleStream upgrades the request and attaches the connection to the hub.
func (h *Hub) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	sub := &subscriber{conn: conn, send: make(chan []byte, 16)}
	h.register <- sub

	go sub.writeLoop()
	go sub.readLoop(h)
}

func (s *subscriber) writeLoop() {
	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()
	defer s.conn.Close()

	for {
		select {
		case payload, ok := <-s.send:
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ping.C:
			s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop discards inbound frames; the stream is one-way. It exists to
// notice the peer closing the connection.
func (s *subscriber) readLoop(h *Hub) {
	defer func() {
		h.unregister <- s
		s.conn.Close()
	}()
	s.conn.SetReadLimit(512)
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}
