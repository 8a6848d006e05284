package broker

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// wsFrame is the framing used between a client and the websocket gateway.
// Payload rides as base64 through the default []byte JSON encoding.
type wsFrame struct {
	Op      string `json:"op"` // subscribe | unsubscribe | publish | message
	Topic   string `json:"topic"`
	Payload []byte `json:"payload,omitempty"`
}

// Websocket is a broker transport for clients that cannot reach Redis
// directly and instead talk to a websocket gateway. A single connection
// multiplexes every topic; the read pump dispatches inbound frames to the
// handler registered for their topic.
type Websocket struct {
	conn   *websocket.Conn
	logger *zap.Logger
	send   chan wsFrame

	mu       sync.RWMutex
	handlers map[string]Handler
	closed   bool
	done     chan struct{}
}

// DialWebsocket connects to the gateway and starts the read and write pumps.
func DialWebsocket(ctx context.Context, url string, logger *zap.Logger) (*Websocket, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}

	w := &Websocket{
		conn:     conn,
		logger:   logger,
		send:     make(chan wsFrame, 64),
		handlers: make(map[string]Handler),
		done:     make(chan struct{}),
	}
	go w.readPump()
	go w.writePump()
	return w, nil
}

func (w *Websocket) Publish(_ context.Context, topic string, payload []byte) error {
	return w.enqueue(wsFrame{Op: "publish", Topic: topic, Payload: payload})
}

func (w *Websocket) Subscribe(_ context.Context, topic string, h Handler) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrBrokerClosed
	}
	w.handlers[topic] = h
	w.mu.Unlock()

	return w.enqueue(wsFrame{Op: "subscribe", Topic: topic})
}

func (w *Websocket) Unsubscribe(_ context.Context, topic string) error {
	w.mu.Lock()
	delete(w.handlers, topic)
	w.mu.Unlock()

	return w.enqueue(wsFrame{Op: "unsubscribe", Topic: topic})
}

func (w *Websocket) enqueue(f wsFrame) error {
	w.mu.RLock()
	closed := w.closed
	w.mu.RUnlock()
	if closed {
		return ErrBrokerClosed
	}

	select {
	case w.send <- f:
		return nil
	case <-time.After(5 * time.Second):
		return ErrSendTimeout
	}
}

func (w *Websocket) readPump() {
	defer w.Close()

	for {
		_, data, err := w.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				w.logger.Warn("websocket broker connection lost", zap.Error(err))
			}
			return
		}

		var frame wsFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			w.logger.Warn("malformed gateway frame dropped", zap.Error(err))
			continue
		}
		if frame.Op != "message" {
			continue
		}

		w.mu.RLock()
		h, ok := w.handlers[frame.Topic]
		w.mu.RUnlock()
		if ok {
			h(frame.Topic, frame.Payload)
		}
	}
}

func (w *Websocket) writePump() {
	for {
		select {
		case <-w.done:
			_ = w.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case frame := <-w.send:
			if err := w.conn.WriteJSON(frame); err != nil {
				w.logger.Warn("websocket write failed", zap.String("topic", frame.Topic), zap.Error(err))
				return
			}
		}
	}
}

func (w *Websocket) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.handlers = make(map[string]Handler)
	close(w.done)
	w.mu.Unlock()

	return w.conn.Close()
}
