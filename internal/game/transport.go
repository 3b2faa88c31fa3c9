package game

import (
	"context"

	"github.com/victornm/sketch/internal/domain"
)

// Transport delivers notifications to connections and room groups. Send and
// Broadcast must not block on the network.
type Transport interface {
	Join(connID, roomID string)
	Leave(connID, roomID string)
	Send(ctx context.Context, connID string, n domain.Notification)
	Broadcast(ctx context.Context, roomID string, n domain.Notification, except ...string)
}

// Fanout delivers through every transport in order.
type Fanout []Transport

func (f Fanout) Join(connID, roomID string) {
	for _, t := range f {
		t.Join(connID, roomID)
	}
}

func (f Fanout) Leave(connID, roomID string) {
	for _, t := range f {
		t.Leave(connID, roomID)
	}
}

func (f Fanout) Send(ctx context.Context, connID string, n domain.Notification) {
	for _, t := range f {
		t.Send(ctx, connID, n)
	}
}

func (f Fanout) Broadcast(ctx context.Context, roomID string, n domain.Notification, except ...string) {
	for _, t := range f {
		t.Broadcast(ctx, roomID, n, except...)
	}
}
