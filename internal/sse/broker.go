package sse

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	redisclient "github.com/minutely/consult-server/internal/redis"
)

const (
	HeartbeatInterval = 30 * time.Second
	clientBufferSize  = 64
)

const (
	EventSessionCreated      = "session.created"
	EventSessionTransitioned = "session.transitioned"
	EventSessionExpired      = "session.expired"
	EventPayoutDecided       = "payout.decided"
)

type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// NewEvent marshals payload into an event of the given type.
func NewEvent(eventType string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: eventType, Data: data}, nil
}

type Client struct {
	ActorID string
	Events  chan Event
	Done    chan struct{}
}

// Broker fans session events out to connected clients. Events travel through
// Redis pub/sub so a client connected to any instance receives them.
type Broker struct {
	redis   *redisclient.Client
	clients map[string]map[*Client]struct{} // actorID -> set of clients
	subs    map[string]context.CancelFunc   // actorID -> redis subscription
	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewBroker(redisClient *redisclient.Client) *Broker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Broker{
		redis:   redisClient,
		clients: make(map[string]map[*Client]struct{}),
		subs:    make(map[string]context.CancelFunc),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (b *Broker) Subscribe(actorID string) *Client {
	client := &Client{
		ActorID: actorID,
		Events:  make(chan Event, clientBufferSize),
		Done:    make(chan struct{}),
	}

	b.mu.Lock()
	if b.clients[actorID] == nil {
		b.clients[actorID] = make(map[*Client]struct{})
		subCtx, cancel := context.WithCancel(b.ctx)
		b.subs[actorID] = cancel
		go b.subscribeToRedis(subCtx, actorID)
	}
	b.clients[actorID][client] = struct{}{}
	clientCount := len(b.clients[actorID])
	b.mu.Unlock()

	log.Debug().
		Str("actorId", actorID).
		Int("clientCount", clientCount).
		Msg("sse client subscribed")

	return client
}

func (b *Broker) Unsubscribe(client *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	clients, ok := b.clients[client.ActorID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}

	delete(clients, client)
	close(client.Done)
	if len(clients) == 0 {
		delete(b.clients, client.ActorID)
		if cancel, ok := b.subs[client.ActorID]; ok {
			cancel()
			delete(b.subs, client.ActorID)
		}
	}

	log.Debug().
		Str("actorId", client.ActorID).
		Int("clientCount", len(clients)).
		Msg("sse client unsubscribed")
}

// Publish sends event to every listed actor. Duplicate ids are sent once.
func (b *Broker) Publish(ctx context.Context, event Event, actorIDs ...string) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(actorIDs))
	for _, id := range actorIDs {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		if err := b.redis.Publish(ctx, redisclient.EventChannel(id), data).Err(); err != nil {
			return err
		}
	}
	return nil
}

func (b *Broker) subscribeToRedis(ctx context.Context, actorID string) {
	channel := redisclient.EventChannel(actorID)
	pubsub := b.redis.Subscribe(ctx, channel)
	defer pubsub.Close()

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Error().Err(err).Msg("failed to unmarshal event")
				continue
			}

			b.broadcast(actorID, event)
		}
	}
}

func (b *Broker) broadcast(actorID string, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for client := range b.clients[actorID] {
		select {
		case client.Events <- event:
		default:
			log.Warn().
				Str("actorId", actorID).
				Str("eventType", event.Type).
				Msg("client event buffer full, dropping event")
		}
	}
}

func (b *Broker) Close() {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, clients := range b.clients {
		for client := range clients {
			close(client.Done)
		}
	}
	b.clients = make(map[string]map[*Client]struct{})
	b.subs = make(map[string]context.CancelFunc)
}

func (b *Broker) ClientCount(actorID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients[actorID])
}
