package realtime

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"content-sync/internal/collection/domain/model"
	"content-sync/internal/collection/domain/repository"
	"content-sync/internal/shared/logger"

	"github.com/fasthttp/websocket"
)

// ErrChannelClosed is returned when subscribing on a closed connection.
var ErrChannelClosed = stderrors.New("websocket channel closed")

// WebSocketChannel is a PushChannel over one multiplexed connection to a
// change relay. Every collection is subscribed at most once on the wire;
// local listeners of the same collection share it.
type WebSocketChannel struct {
	conn *websocket.Conn
	log  logger.Logger

	writeMu sync.Mutex

	mu     sync.Mutex
	nextID uint64
	subs   map[string]map[uint64]func(model.ChangeEvent)
	acks   map[string][]chan error

	done      chan struct{}
	closeOnce sync.Once
}

var _ repository.PushChannel = (*WebSocketChannel)(nil)

// DialWebSocket connects to the relay at url and starts reading frames.
func DialWebSocket(ctx context.Context, url string, header http.Header, log logger.Logger) (*WebSocketChannel, error) {
	dialer := &websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
	}
	conn, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}

	c := &WebSocketChannel{
		conn: conn,
		log:  logger.OrNop(log).WithComponent("websocket_channel"),
		subs: make(map[string]map[uint64]func(model.ChangeEvent)),
		acks: make(map[string][]chan error),
		done: make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Subscribe implements repository.PushChannel. The first listener of a
// collection waits until the relay confirms the subscription.
func (c *WebSocketChannel) Subscribe(ctx context.Context, collection string, onChange func(model.ChangeEvent)) (repository.Unsubscribe, error) {
	c.mu.Lock()
	select {
	case <-c.done:
		c.mu.Unlock()
		return nil, ErrChannelClosed
	default:
	}
	c.nextID++
	id := c.nextID
	first := len(c.subs[collection]) == 0
	if first {
		c.subs[collection] = make(map[uint64]func(model.ChangeEvent))
	}
	c.subs[collection][id] = onChange
	var ack chan error
	if first {
		ack = make(chan error, 1)
		c.acks[collection] = append(c.acks[collection], ack)
	}
	c.mu.Unlock()

	var once sync.Once
	unsubscribe := func() error {
		var err error
		once.Do(func() { err = c.remove(collection, id) })
		return err
	}

	if !first {
		return unsubscribe, nil
	}

	if err := c.write(model.SubscriptionRequest{Action: model.ActionSubscribe, Collection: collection}); err != nil {
		_ = unsubscribe()
		return nil, fmt.Errorf("failed to send subscription request: %w", err)
	}
	select {
	case err := <-ack:
		if err != nil {
			_ = unsubscribe()
			return nil, err
		}
		return unsubscribe, nil
	case <-ctx.Done():
		_ = unsubscribe()
		return nil, ctx.Err()
	case <-c.done:
		return nil, ErrChannelClosed
	}
}

func (c *WebSocketChannel) remove(collection string, id uint64) error {
	c.mu.Lock()
	listeners := c.subs[collection]
	delete(listeners, id)
	last := len(listeners) == 0
	if last {
		delete(c.subs, collection)
	}
	c.mu.Unlock()

	if !last {
		return nil
	}
	select {
	case <-c.done:
		return nil
	default:
	}
	return c.write(model.SubscriptionRequest{Action: model.ActionUnsubscribe, Collection: collection})
}

// Close sends a close frame and waits for the reader to stop.
func (c *WebSocketChannel) Close(context.Context) error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.conn.Close()
		<-c.done
	})
	return err
}

// Done is closed once the connection stops delivering.
func (c *WebSocketChannel) Done() <-chan struct{} { return c.done }

func (c *WebSocketChannel) write(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *WebSocketChannel) readLoop() {
	defer c.failPending(ErrChannelClosed)
	defer close(c.done)

	for {
		var msg model.ServerMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warnf("relay connection lost: %v", err)
			}
			return
		}

		switch msg.Type {
		case model.MessageChange:
			if msg.Event == nil {
				continue
			}
			event := *msg.Event
			if event.Collection == "" {
				event.Collection = msg.Collection
			}
			for _, fn := range c.listeners(event.Collection) {
				fn(event)
			}
		case model.MessageSubscribed:
			c.resolve(msg.Collection, nil)
		case model.MessageError:
			c.log.Warnf("relay error for %q: %s", msg.Collection, msg.Error)
			c.resolve(msg.Collection, fmt.Errorf("relay refused %s: %s", msg.Collection, msg.Error))
		case model.MessageUnsubscribed:
		default:
			c.log.Debugf("ignoring %q frame", msg.Type)
		}
	}
}

func (c *WebSocketChannel) listeners(collection string) []func(model.ChangeEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]func(model.ChangeEvent), 0, len(c.subs[collection]))
	for _, fn := range c.subs[collection] {
		out = append(out, fn)
	}
	return out
}

func (c *WebSocketChannel) resolve(collection string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pending := c.acks[collection]
	if len(pending) == 0 {
		return
	}
	pending[0] <- err
	if len(pending) == 1 {
		delete(c.acks, collection)
		return
	}
	c.acks[collection] = pending[1:]
}

func (c *WebSocketChannel) failPending(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for collection, pending := range c.acks {
		for _, ack := range pending {
			ack <- err
		}
		delete(c.acks, collection)
	}
}
