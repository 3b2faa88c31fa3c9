package api

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/victornm/sketch/internal/game"
)

type call struct {
	method string
	conn   string
	arg    any
}

// fakeDirector records what the transport hands it.
type fakeDirector struct {
	mu    sync.Mutex
	calls []call
	err   error

	disconnected chan string
	// hold, when set, blocks Disconnect until it is closed.
	hold chan struct{}
}

func newFakeDirector() *fakeDirector {
	return &fakeDirector{disconnected: make(chan string, 16)}
}

func (f *fakeDirector) record(method, conn string, arg any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{method: method, conn: conn, arg: arg})
	return f.err
}

func (f *fakeDirector) recorded() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func (f *fakeDirector) CreateRoom(_ context.Context, connID string, req game.CreateRoomRequest) error {
	return f.record("CreateRoom", connID, req)
}

func (f *fakeDirector) JoinRoom(_ context.Context, connID string, req game.JoinRoomRequest) error {
	return f.record("JoinRoom", connID, req)
}

func (f *fakeDirector) StartGame(_ context.Context, connID string) error {
	return f.record("StartGame", connID, nil)
}

func (f *fakeDirector) SelectWord(_ context.Context, connID, word string) error {
	return f.record("SelectWord", connID, word)
}

func (f *fakeDirector) Guess(_ context.Context, connID, text string) error {
	return f.record("Guess", connID, text)
}

func (f *fakeDirector) VoteSkip(_ context.Context, connID string) error {
	return f.record("VoteSkip", connID, nil)
}

func (f *fakeDirector) Draw(_ context.Context, connID string, data json.RawMessage) error {
	return f.record("Draw", connID, string(data))
}

func (f *fakeDirector) Disconnect(_ context.Context, connID string) {
	_ = f.record("Disconnect", connID, nil)
	if f.hold != nil {
		<-f.hold
	}
	f.disconnected <- connID
}
