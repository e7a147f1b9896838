package http

import (
	"context"
	"sync"
	"time"

	"content-sync/internal/collection/domain/model"
	"content-sync/internal/collection/domain/repository"
	"content-sync/internal/shared/logger"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsSendQueue    = 64
)

// WebSocketHandler relays change events of a PushChannel to WebSocket
// clients. Clients send SubscriptionRequest frames and receive
// ServerMessage frames.
type WebSocketHandler struct {
	push    repository.PushChannel
	allowed map[string]bool
	log     logger.Logger
}

// NewWebSocketHandler creates a relay for the given collections. An empty
// list allows any collection name.
func NewWebSocketHandler(push repository.PushChannel, collections []string, log logger.Logger) *WebSocketHandler {
	allowed := make(map[string]bool, len(collections))
	for _, c := range collections {
		allowed[c] = true
	}
	return &WebSocketHandler{
		push:    push,
		allowed: allowed,
		log:     logger.OrNop(log).WithComponent("ws_relay"),
	}
}

// RegisterRoutes registers the relay at path behind the given guards.
func (h *WebSocketHandler) RegisterRoutes(router fiber.Router, path string, guards ...fiber.Handler) {
	handlers := make([]fiber.Handler, 0, len(guards)+2)
	handlers = append(handlers, guards...)
	handlers = append(handlers, h.upgradeOnly, websocket.New(h.serve))
	router.Get(path, handlers...)
}

func (h *WebSocketHandler) upgradeOnly(c *fiber.Ctx) error {
	if h.push == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "change push is disabled")
	}
	if websocket.IsWebSocketUpgrade(c) {
		c.Locals("allowed", true)
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// wsSession is one client connection and its subscriptions. Outbound
// frames go through a bounded queue drained by a single writer goroutine,
// so push callbacks never wait on the socket.
type wsSession struct {
	id    string
	write func(model.ServerMessage) error
	close func() error

	out       chan model.ServerMessage
	done      chan struct{}
	closeOnce sync.Once

	mu   sync.Mutex
	subs map[string]repository.Unsubscribe
}

func newWSSession(write func(model.ServerMessage) error, closeConn func() error) *wsSession {
	return &wsSession{
		id:    uuid.NewString(),
		write: write,
		close: closeConn,
		out:   make(chan model.ServerMessage, wsSendQueue),
		done:  make(chan struct{}),
		subs:  make(map[string]repository.Unsubscribe),
	}
}

// send queues msg without blocking. A full queue means the client stopped
// reading; the session is shut down and false is returned.
func (s *wsSession) send(msg model.ServerMessage) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.out <- msg:
		return true
	case <-s.done:
		return false
	default:
		s.shutdown()
		return false
	}
}

// writeLoop drains the queue until the session is shut down or a write fails.
func (s *wsSession) writeLoop(log logger.Logger) {
	log = logger.OrNop(log)
	for {
		select {
		case <-s.done:
			return
		case msg := <-s.out:
			if err := s.write(msg); err != nil {
				log.Debugf("relay write: %v", err)
				s.shutdown()
				return
			}
		}
	}
}

func (s *wsSession) shutdown() {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.close != nil {
			_ = s.close()
		}
	})
}

func (s *wsSession) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (h *WebSocketHandler) serve(conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := newWSSession(func(msg model.ServerMessage) error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		return conn.WriteJSON(msg)
	}, conn.Close)
	log := h.log.WithFields(map[string]interface{}{"session": s.id})
	log.Debug("relay session opened")
	written := make(chan struct{})
	go func() {
		defer close(written)
		s.writeLoop(log)
	}()

	defer func() {
		// The connection is released once serve returns.
		s.shutdown()
		<-written
		s.mu.Lock()
		subs := s.subs
		s.subs = nil
		s.mu.Unlock()
		for collection, unsubscribe := range subs {
			if err := unsubscribe(); err != nil {
				log.Warnf("unsubscribe %s: %v", collection, err)
			}
		}
		log.Debug("relay session closed")
	}()

	for {
		var req model.SubscriptionRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warnf("relay read: %v", err)
			}
			return
		}

		switch req.Action {
		case model.ActionSubscribe:
			h.subscribe(ctx, s, req.Collection)
		case model.ActionUnsubscribe:
			h.unsubscribe(s, req.Collection)
		default:
			s.send(model.ServerMessage{Type: model.MessageError, Collection: req.Collection, Error: "unknown action: " + req.Action})
		}
	}
}

func (h *WebSocketHandler) subscribe(ctx context.Context, s *wsSession, collection string) {
	if collection == "" || (len(h.allowed) > 0 && !h.allowed[collection]) {
		s.send(model.ServerMessage{Type: model.MessageError, Collection: collection, Error: "unknown collection"})
		return
	}

	s.mu.Lock()
	_, already := s.subs[collection]
	s.mu.Unlock()
	if already {
		s.send(model.ServerMessage{Type: model.MessageSubscribed, Collection: collection})
		return
	}

	unsubscribe, err := h.push.Subscribe(ctx, collection, func(event model.ChangeEvent) {
		if s.closed() {
			return
		}
		if !s.send(model.ServerMessage{Type: model.MessageChange, Collection: collection, Event: &event}) {
			h.log.Warnf("session %s is not keeping up, dropping %s event and closing", s.id, collection)
		}
	})
	if err != nil {
		h.log.Warnf("subscribe %s: %v", collection, err)
		s.send(model.ServerMessage{Type: model.MessageError, Collection: collection, Error: "subscription failed"})
		return
	}

	s.mu.Lock()
	if s.subs == nil {
		s.mu.Unlock()
		_ = unsubscribe()
		return
	}
	s.subs[collection] = unsubscribe
	s.mu.Unlock()
	s.send(model.ServerMessage{Type: model.MessageSubscribed, Collection: collection})
}

func (h *WebSocketHandler) unsubscribe(s *wsSession, collection string) {
	s.mu.Lock()
	unsubscribe, ok := s.subs[collection]
	delete(s.subs, collection)
	s.mu.Unlock()
	if ok {
		if err := unsubscribe(); err != nil {
			h.log.Warnf("unsubscribe %s: %v", collection, err)
		}
	}
	s.send(model.ServerMessage{Type: model.MessageUnsubscribed, Collection: collection})
}
