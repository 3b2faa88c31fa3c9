package game_test

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/victornm/sketch/internal/domain"
	"github.com/victornm/sketch/internal/game"
)

// manualClock fires timers only when Advance is called, in due order.
type manualClock struct {
	mu     sync.Mutex
	now    time.Duration
	seq    int
	timers []*manualTimer
}

type manualTimer struct {
	c    *manualClock
	at   time.Duration
	seq  int
	f    func()
	done bool
}

func (t *manualTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()

	was := !t.done
	t.done = true
	return was
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) game.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	t := &manualTimer{c: c, at: c.now + d, seq: c.seq, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now + d

	for {
		var next *manualTimer
		for _, t := range c.timers {
			if t.done || t.at > target {
				continue
			}
			if next == nil || t.at < next.at || (t.at == next.at && t.seq < next.seq) {
				next = t
			}
		}
		if next == nil {
			break
		}

		next.done = true
		c.now = next.at
		c.mu.Unlock()
		next.f()
		c.mu.Lock()
	}

	c.now = target
	c.timers = slices.DeleteFunc(c.timers, func(t *manualTimer) bool { return t.done })
	c.mu.Unlock()
}

// Pending counts the timers that are armed and not yet fired.
func (c *manualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, t := range c.timers {
		if !t.done {
			n++
		}
	}
	return n
}

type delivery struct {
	conn   string
	room   string
	except []string
	n      domain.Notification
}

// recorder is a Transport that keeps everything it is asked to deliver.
type recorder struct {
	mu      sync.Mutex
	log     []delivery
	members map[string]string
}

func newRecorder() *recorder {
	return &recorder{members: make(map[string]string)}
}

func (r *recorder) Join(connID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[connID] = roomID
}

func (r *recorder) Leave(connID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, connID)
}

func (r *recorder) Send(_ context.Context, connID string, n domain.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = append(r.log, delivery{conn: connID, n: n})
}

func (r *recorder) Broadcast(_ context.Context, roomID string, n domain.Notification, except ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = append(r.log, delivery{room: roomID, except: except, n: n})
}

// toRoom returns the data of every broadcast of event to the room.
func (r *recorder) toRoom(roomID, event string) []any {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []any
	for _, d := range r.log {
		if d.room == roomID && d.n.Event == event {
			out = append(out, d.n.Data)
		}
	}
	return out
}

// toConn returns the data of every private event sent to the connection.
func (r *recorder) toConn(connID, event string) []any {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []any
	for _, d := range r.log {
		if d.conn == connID && d.n.Event == event {
			out = append(out, d.n.Data)
		}
	}
	return out
}

// events lists the event names broadcast to the room, in order.
func (r *recorder) events(roomID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []string
	for _, d := range r.log {
		if d.room == roomID {
			out = append(out, d.n.Event)
		}
	}
	return out
}

func (r *recorder) admin(roomID string) []string {
	var out []string
	for _, d := range r.toRoom(roomID, domain.NotifyMessage) {
		if m := d.(domain.ChatMessage); m.User == domain.AdminUser {
			out = append(out, m.Text)
		}
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = nil
}

// fixedWords always offers the same candidates.
type fixedWords []string

func (w fixedWords) Sample(domain.Difficulty) []string {
	return slices.Clone(w)
}
