package room

import (
	stderrors "errors"
	"sort"
	"sync"

	"github.com/victornm/sketch/internal/domain"
	"github.com/victornm/sketch/internal/errors"
)

var (
	ErrRoomExists   = stderrors.New("room already exists")
	ErrRoomNotFound = stderrors.New("room not found")
)

// Registry maps room IDs to rooms. It is owned by the server and injected
// wherever rooms are looked up.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]*Room),
	}
}

// Create registers an empty room.
func (g *Registry) Create(id string, s Settings) (*Room, error) {
	r, err := g.Open(id, s)
	if err != nil {
		return nil, err
	}

	r.Unlock()
	return r, nil
}

// Open registers an empty room and returns it locked. Nobody else can hold the
// lock of a room that was not registered yet, so Open never blocks on it.
func (g *Registry) Open(id string, s Settings) (*Room, error) {
	if id == "" {
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("room id is required"))
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.rooms[id]; ok {
		return nil, errors.New(errors.CodeAlreadyExists,
			errors.WithMessagef("Room already exists!"),
			errors.WithCause(ErrRoomExists))
	}

	r := New(id, s)
	r.Lock()
	g.rooms[id] = r
	return r, nil
}

// Get never creates a room.
func (g *Registry) Get(id string) (*Room, error) {
	g.mu.RLock()
	r, ok := g.rooms[id]
	g.mu.RUnlock()

	if !ok {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("Room does not exist!"),
			errors.WithCause(ErrRoomNotFound))
	}
	return r, nil
}

// Remove deletes the room registered under id. It is idempotent.
func (g *Registry) Remove(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.rooms, id)
}

// Release removes r only if it is still the room registered under its ID, so a
// late release cannot delete a newer room that reused the ID.
func (g *Registry) Release(r *Room) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if cur, ok := g.rooms[r.ID()]; ok && cur == r {
		delete(g.rooms, r.ID())
	}
}

func (g *Registry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.rooms)
}

// ListPublic returns the public rooms sorted by ID.
func (g *Registry) ListPublic() []domain.RoomSummary {
	g.mu.RLock()
	rooms := make([]*Room, 0, len(g.rooms))
	for _, r := range g.rooms {
		if r.Settings().Public {
			rooms = append(rooms, r)
		}
	}
	g.mu.RUnlock()

	list := make([]domain.RoomSummary, 0, len(rooms))
	for _, r := range rooms {
		r.Lock()
		if !r.Closed() {
			list = append(list, domain.RoomSummary{RoomID: r.ID(), PlayerCount: r.PlayerCount()})
		}
		r.Unlock()
	}

	sort.Slice(list, func(i, j int) bool { return list[i].RoomID < list[j].RoomID })
	return list
}
