package sse

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	redisclient "github.com/swipekit/swipekit/internal/redis"
)

const (
	HeartbeatInterval = 30 * time.Second
)

// Event is a lifecycle event fanned out to connected ops listeners.
// AccountID is zero for events not tied to a single account.
type Event struct {
	Type      string          `json:"type"`
	AccountID int64           `json:"accountId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Client is one connected listener. AccountID zero means all accounts.
type Client struct {
	AccountID int64
	Events    chan Event
	Done      chan struct{}
}

// Broker fans lifecycle events out to SSE listeners. Events travel through
// redis pubsub so listeners on any process see events from every worker.
type Broker struct {
	redis   *redisclient.Client
	clients map[*Client]bool
	mu      sync.RWMutex
	once    sync.Once
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewBroker(redisClient *redisclient.Client) *Broker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Broker{
		redis:   redisClient,
		clients: make(map[*Client]bool),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Subscribe registers a listener. Pass accountID zero to receive events for
// every account.
func (b *Broker) Subscribe(accountID int64) *Client {
	client := &Client{
		AccountID: accountID,
		Events:    make(chan Event, 100),
		Done:      make(chan struct{}),
	}

	b.mu.Lock()
	b.clients[client] = true
	clientCount := len(b.clients)
	b.mu.Unlock()

	b.once.Do(func() {
		go b.subscribeToRedis()
	})

	log.Info().
		Int64("accountId", accountID).
		Int("clientCount", clientCount).
		Msg("sse client subscribed")

	return client
}

func (b *Broker) Unsubscribe(client *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.clients[client]; ok {
		delete(b.clients, client)
		close(client.Done)

		log.Info().
			Int64("accountId", client.AccountID).
			Int("clientCount", len(b.clients)).
			Msg("sse client unsubscribed")
	}
}

func (b *Broker) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return b.redis.Client.Publish(ctx, redisclient.EventChannel(), data).Err()
}

func (b *Broker) subscribeToRedis() {
	channel := redisclient.EventChannel()
	pubsub := b.redis.Client.Subscribe(b.ctx, channel)
	defer pubsub.Close()

	log.Debug().
		Str("channel", channel).
		Msg("redis pubsub subscribed")

	ch := pubsub.Channel()

	for {
		select {
		case <-b.ctx.Done():
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

			b.broadcast(event)
		}
	}
}

func (b *Broker) broadcast(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for client := range b.clients {
		if client.AccountID != 0 && client.AccountID != event.AccountID {
			continue
		}
		select {
		case client.Events <- event:
		default:
			log.Warn().
				Int64("accountId", client.AccountID).
				Msg("client event buffer full, dropping event")
		}
	}
}

func (b *Broker) Close() {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	for client := range b.clients {
		close(client.Done)
	}
	b.clients = make(map[*Client]bool)
}

func (b *Broker) TotalClients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}
