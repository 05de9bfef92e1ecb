package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Message is what websocket subscribers receive for every write.
type Message struct {
	Key     string `json:"key"`
	Value   any    `json:"value"`
	Removed bool   `json:"removed,omitempty"`
}

const (
	clientBuffer = 32
	writeWait    = 10 * time.Second
)

var ErrHubClosed = errors.New("realtime hub closed")

type hubClient struct {
	conn *websocket.Conn
	send chan Message
}

// Hub fans realtime writes out to websocket subscribers grouped by topic
// ("buses/3", "shifts/12") and remembers the latest value per key so new
// subscribers start from a snapshot.
type Hub struct {
	latest    *Memory
	clients   map[string]map[*hubClient]bool
	broadcast chan Message
	done      chan struct{}
	closeOnce sync.Once
	mu        sync.Mutex
}

// NewHub creates a Hub and starts its broadcasting goroutine.
func NewHub() *Hub {
	hub := &Hub{
		latest:    NewMemory(),
		clients:   make(map[string]map[*hubClient]bool),
		broadcast: make(chan Message, 100),
		done:      make(chan struct{}),
	}
	go hub.run()
	return hub
}

func (h *Hub) Set(ctx context.Context, key string, value any) error {
	_ = h.latest.Set(ctx, key, value)
	return h.publish(Message{Key: key, Value: value})
}

func (h *Hub) Remove(ctx context.Context, key string) error {
	_ = h.latest.Remove(ctx, key)
	return h.publish(Message{Key: key, Removed: true})
}

// Latest returns the last value written under key.
func (h *Hub) Latest(key string) (any, bool) { return h.latest.Get(key) }

func (h *Hub) publish(msg Message) error {
	select {
	case <-h.done:
		return ErrHubClosed
	default:
	}
	select {
	case h.broadcast <- msg:
	default:
		logrus.WithField("key", msg.Key).Warn("Hub broadcast channel full, dropping message")
	}
	return nil
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			return
		case msg := <-h.broadcast:
			topic := TopicOf(msg.Key)
			h.mu.Lock()
			for c := range h.clients[topic] {
				select {
				case c.send <- msg:
				default:
					logrus.WithFields(logrus.Fields{
						"topic":    topic,
						"conn_ptr": fmt.Sprintf("%p", c.conn),
					}).Warn("Subscriber too slow, dropping message")
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) register(topic string, conn *websocket.Conn) *hubClient {
	c := &hubClient{conn: conn, send: make(chan Message, clientBuffer)}
	for _, msg := range h.latest.Snapshot(topic) {
		select {
		case c.send <- msg:
		default:
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[topic]; !ok {
		h.clients[topic] = make(map[*hubClient]bool)
	}
	h.clients[topic][c] = true
	logrus.WithFields(logrus.Fields{
		"topic":    topic,
		"conn_ptr": fmt.Sprintf("%p", conn),
	}).Info("Client registered with hub")
	return c
}

func (h *Hub) unregister(topic string, c *hubClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.clients[topic]; ok {
		if _, ok := clients[c]; ok {
			delete(clients, c)
			close(c.send)
		}
		if len(clients) == 0 {
			delete(h.clients, topic)
		}
	}
	logrus.WithField("topic", topic).Debug("Client unregistered from hub")
}

// Subscribers returns the number of connections listening on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[topic])
}

// Serve streams topic to conn until the peer goes away. It blocks.
func (h *Hub) Serve(conn *websocket.Conn, topic string) {
	c := h.register(topic, conn)
	defer h.unregister(topic, c)

	go func() {
		for msg := range c.send {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				logrus.WithError(err).WithField("topic", topic).Debug("Websocket write failed")
				conn.Close()
				return
			}
		}
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logrus.WithError(err).WithField("topic", topic).Debug("Websocket read ended")
			}
			return
		}
	}
}

// Close stops the broadcasting goroutine and disconnects subscribers.
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
		h.mu.Lock()
		defer h.mu.Unlock()
		for topic, clients := range h.clients {
			for c := range clients {
				close(c.send)
			}
			delete(h.clients, topic)
		}
	})
}
