package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	channelPrefix  = "session:"
	publishTimeout = 5 * time.Second
)

// redisPayload is the message published to Redis for cross-instance broadcast.
type redisPayload struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	At    int64           `json:"at"`
}

type eventHandler func(event string, payload []byte)

// RedisPubSub bridges session events through Redis. One PSUBSCRIBE on session:* serves
// every session watched by this instance; it runs while at least one handler is registered.
type RedisPubSub struct {
	client *redis.Client
	logger *zap.Logger

	mu       sync.Mutex
	handlers map[uuid.UUID]map[uint64]eventHandler
	nextID   uint64
	stop     context.CancelFunc
}

// NewRedisPubSub creates a Redis pub/sub bridge for session events.
func NewRedisPubSub(client *redis.Client, logger *zap.Logger) *RedisPubSub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPubSub{
		client:   client,
		logger:   logger,
		handlers: make(map[uuid.UUID]map[uint64]eventHandler),
	}
}

func channelFor(sessionID uuid.UUID) string {
	return channelPrefix + sessionID.String()
}

// PublishSessionEvent publishes an event to the session's channel.
func (r *RedisPubSub) PublishSessionEvent(sessionID uuid.UUID, event string, payload []byte) error {
	body, err := json.Marshal(redisPayload{Event: event, Data: payload, At: time.Now().Unix()})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	return r.client.Publish(ctx, channelFor(sessionID), body).Err()
}

// SubscribeSession registers handler for a session's events. The returned cancel is
// idempotent.
func (r *RedisPubSub) SubscribeSession(sessionID uuid.UUID, handler func(event string, payload []byte)) (func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stop == nil {
		if err := r.startLocked(); err != nil {
			return nil, err
		}
	}
	r.nextID++
	id := r.nextID
	if r.handlers[sessionID] == nil {
		r.handlers[sessionID] = make(map[uint64]eventHandler)
	}
	r.handlers[sessionID][id] = handler

	var once sync.Once
	return func() { once.Do(func() { r.remove(sessionID, id) }) }, nil
}

// Close stops the shared subscription and drops every handler.
func (r *RedisPubSub) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stop != nil {
		r.stop()
		r.stop = nil
	}
	r.handlers = make(map[uuid.UUID]map[uint64]eventHandler)
}

func (r *RedisPubSub) startLocked() error {
	ctx, cancel := context.WithCancel(context.Background())
	ps := r.client.PSubscribe(ctx, channelPrefix+"*")
	if _, err := ps.Receive(ctx); err != nil {
		cancel()
		_ = ps.Close()
		return fmt.Errorf("psubscribe: %w", err)
	}
	r.stop = cancel
	go r.dispatch(ctx, ps)
	return nil
}

func (r *RedisPubSub) dispatch(ctx context.Context, ps *redis.PubSub) {
	defer ps.Close()
	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			r.deliver(msg)
		}
	}
}

// deliver runs the handlers of the message's session outside the lock, since handlers
// call back into the hub.
func (r *RedisPubSub) deliver(msg *redis.Message) {
	sessionID, err := uuid.Parse(strings.TrimPrefix(msg.Channel, channelPrefix))
	if err != nil {
		return
	}
	var p redisPayload
	if err := json.Unmarshal([]byte(msg.Payload), &p); err != nil {
		r.logger.Debug("dropping malformed session event", zap.String("channel", msg.Channel))
		return
	}
	r.mu.Lock()
	hs := make([]eventHandler, 0, len(r.handlers[sessionID]))
	for _, h := range r.handlers[sessionID] {
		hs = append(hs, h)
	}
	r.mu.Unlock()
	for _, h := range hs {
		h(p.Event, p.Data)
	}
}

func (r *RedisPubSub) remove(sessionID uuid.UUID, id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers[sessionID], id)
	if len(r.handlers[sessionID]) == 0 {
		delete(r.handlers, sessionID)
	}
	if len(r.handlers) == 0 && r.stop != nil {
		r.stop()
		r.stop = nil
	}
}
