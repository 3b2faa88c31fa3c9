package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/victornm/sketch/internal/domain"
)

const defaultQueueSize = 4096

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type PublisherConfig struct {
	Redis     Redis
	Prefix    string
	QueueSize int

	// Dropped counts notifications discarded because the queue was full. Optional.
	Dropped prometheus.Counter
}

// Publisher mirrors every outbound notification to Redis pub/sub so gateways
// running elsewhere can deliver them. Room notifications go to
// <prefix>:room:<roomID>, private ones to <prefix>:conn:<connID>.
// Messages are published in order by a single goroutine started with Run.
type Publisher struct {
	redis   Redis
	prefix  string
	dropped prometheus.Counter

	queue chan published
	once  sync.Once
	done  chan struct{}
}

type published struct {
	channel string
	payload []byte
}

// PubsubMessage is the payload of a published notification. Except lists the
// connections a room broadcast must skip.
type PubsubMessage struct {
	Event  string   `json:"event"`
	Data   any      `json:"data,omitempty"`
	Except []string `json:"except,omitempty"`
}

func NewPublisher(c PublisherConfig) *Publisher {
	if c.QueueSize <= 0 {
		c.QueueSize = defaultQueueSize
	}

	return &Publisher{
		redis:   c.Redis,
		prefix:  c.Prefix,
		dropped: c.Dropped,
		queue:   make(chan published, c.QueueSize),
		done:    make(chan struct{}),
	}
}

// Run publishes queued notifications until Close is called and the queue is drained.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case m := <-p.queue:
			p.publish(ctx, m)

		case <-p.done:
			for {
				select {
				case m := <-p.queue:
					p.publish(ctx, m)
				default:
					return nil
				}
			}
		}
	}
}

// Close stops Run once the queued notifications are published.
func (p *Publisher) Close() {
	p.once.Do(func() { close(p.done) })
}

// Join and Leave are no-ops: channels are keyed by room and connection.
func (p *Publisher) Join(string, string) {}

func (p *Publisher) Leave(string, string) {}

func (p *Publisher) Send(ctx context.Context, connID string, n domain.Notification) {
	p.enqueue(ctx, p.ConnChannel(connID), PubsubMessage{
		Event: n.Event,
		Data:  n.Data,
	})
}

func (p *Publisher) Broadcast(ctx context.Context, roomID string, n domain.Notification, except ...string) {
	p.enqueue(ctx, p.RoomChannel(roomID), PubsubMessage{
		Event:  n.Event,
		Data:   n.Data,
		Except: except,
	})
}

func (p *Publisher) RoomChannel(roomID string) string {
	return fmt.Sprintf("%s:room:%s", p.prefix, roomID)
}

func (p *Publisher) ConnChannel(connID string) string {
	return fmt.Sprintf("%s:conn:%s", p.prefix, connID)
}

func (p *Publisher) enqueue(ctx context.Context, channel string, m PubsubMessage) {
	b, err := json.Marshal(m)
	if err != nil {
		slog.ErrorContext(ctx, "pubsub: marshal notification failed", "event", m.Event, "error", err)
		return
	}

	select {
	case p.queue <- published{channel: channel, payload: b}:
	default:
		if p.dropped != nil {
			p.dropped.Inc()
		}
		slog.WarnContext(ctx, "pubsub: queue full, notification dropped", "channel", channel, "event", m.Event)
	}
}

func (p *Publisher) publish(ctx context.Context, m published) {
	if err := p.redis.Publish(ctx, m.channel, m.payload).Err(); err != nil {
		slog.ErrorContext(ctx, "pubsub: publish failed", "channel", m.channel, "error", err)
	}
}
