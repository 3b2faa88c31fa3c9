package room

import (
	stderrors "errors"
	"slices"
	"strings"
	"sync"

	"github.com/victornm/sketch/internal/domain"
	"github.com/victornm/sketch/internal/errors"
)

var ErrNoPlayers = stderrors.New("room has no players")

// Settings are fixed when the room is created.
type Settings struct {
	Difficulty  domain.Difficulty
	TotalRounds int
	Language    string
	Public      bool
}

// Player is bound to one connection for the lifetime of that connection.
type Player struct {
	ConnID    string
	Nickname  string
	Score     int
	Spectator bool
}

// Room is one game session. All methods except ID and Settings must be called
// with the room locked; the lock is the critical section shared by inbound
// events and round timers.
type Room struct {
	mu sync.Mutex

	id       string
	settings Settings

	players map[string]*Player
	order   []string
	turn    int

	round       int
	drawerID    string
	word        string
	candidates  []string
	skipVotes   map[string]struct{}
	drawerActed bool

	closed bool
}

func New(id string, s Settings) *Room {
	return &Room{
		id:        id,
		settings:  s,
		players:   make(map[string]*Player),
		skipVotes: make(map[string]struct{}),
	}
}

func (r *Room) Lock()   { r.mu.Lock() }
func (r *Room) Unlock() { r.mu.Unlock() }

func (r *Room) ID() string         { return r.id }
func (r *Room) Settings() Settings { return r.settings }

// AddPlayer appends the connection to the turn order. Spectators take a slot
// too. It reports false if the connection is already seated.
func (r *Room) AddPlayer(connID, nickname string, spectator bool) bool {
	if _, ok := r.players[connID]; ok {
		return false
	}

	r.players[connID] = &Player{
		ConnID:    connID,
		Nickname:  nickname,
		Spectator: spectator,
	}
	r.order = append(r.order, connID)
	return true
}

// RemovePlayer drops the connection and shifts the turn index so it keeps
// pointing at the same player, or at the next one when the current player left.
func (r *Room) RemovePlayer(connID string) (*Player, bool) {
	p, ok := r.players[connID]
	if !ok {
		return nil, false
	}

	delete(r.players, connID)
	delete(r.skipVotes, connID)

	i := slices.Index(r.order, connID)
	r.order = slices.Delete(r.order, i, i+1)

	switch {
	case len(r.order) == 0:
		r.turn = 0
	case i < r.turn:
		r.turn--
	case r.turn >= len(r.order):
		r.turn = 0
	}

	return p, true
}

func (r *Room) Player(connID string) (*Player, bool) {
	p, ok := r.players[connID]
	return p, ok
}

func (r *Room) PlayerCount() int { return len(r.players) }

func (r *Room) Empty() bool { return len(r.order) == 0 }

// ActivePlayerCount counts the non-spectators.
func (r *Room) ActivePlayerCount() int {
	n := 0
	for _, p := range r.players {
		if !p.Spectator {
			n++
		}
	}
	return n
}

// CurrentDrawer returns the player at the turn index.
func (r *Room) CurrentDrawer() (*Player, error) {
	if len(r.order) == 0 {
		return nil, errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("room %s has no players", r.id),
			errors.WithCause(ErrNoPlayers))
	}
	return r.players[r.order[r.turn]], nil
}

// AdvanceTurn moves the turn index one slot forward, wrapping around.
func (r *Room) AdvanceTurn() {
	if len(r.order) == 0 {
		r.turn = 0
		return
	}
	r.turn = (r.turn + 1) % len(r.order)
}

// SkipSpectators advances the turn index to the next non-spectator, if any.
func (r *Room) SkipSpectators() {
	for range r.order {
		if p := r.players[r.order[r.turn]]; !p.Spectator {
			return
		}
		r.AdvanceTurn()
	}
}

func (r *Room) TurnIndex() int { return r.turn }

// Order returns a copy of the turn order.
func (r *Room) Order() []string { return slices.Clone(r.order) }

func (r *Room) Round() int { return r.round }

// BeginRound resets the per-round state and bumps the round counter.
func (r *Room) BeginRound(drawerID string, candidates []string) {
	r.round++
	r.drawerID = drawerID
	r.word = ""
	r.candidates = candidates
	r.drawerActed = false
	clear(r.skipVotes)
}

// EndRound forgets the word and candidates of the finished round.
func (r *Room) EndRound() {
	r.word = ""
	r.candidates = nil
	r.drawerID = ""
	clear(r.skipVotes)
}

// ResetGame prepares a finished game to be played again.
func (r *Room) ResetGame() {
	r.round = 0
	for _, p := range r.players {
		p.Score = 0
	}
}

// DrawerID is the connection drawing in the current round, fixed at round start.
func (r *Room) DrawerID() string { return r.drawerID }

func (r *Room) Word() string { return r.word }

func (r *Room) Candidates() []string { return slices.Clone(r.candidates) }

// SelectWord sets the secret word if it is one of the offered candidates.
func (r *Room) SelectWord(word string) bool {
	for _, c := range r.candidates {
		if strings.EqualFold(c, word) {
			r.word = c
			return true
		}
	}
	return false
}

func (r *Room) MarkDrawerActed()  { r.drawerActed = true }
func (r *Room) DrawerActed() bool { return r.drawerActed }

// AddSkipVote records a vote and reports whether it was new.
func (r *Room) AddSkipVote(connID string) bool {
	if _, ok := r.skipVotes[connID]; ok {
		return false
	}
	r.skipVotes[connID] = struct{}{}
	return true
}

func (r *Room) SkipVotes() int { return len(r.skipVotes) }

// Award adds points to a seated player. Scores never decrease.
func (r *Room) Award(connID string, points int) {
	if p, ok := r.players[connID]; ok && points > 0 {
		p.Score += points
	}
}

// Scores lists every player in turn order.
func (r *Room) Scores() []domain.PlayerScore {
	out := make([]domain.PlayerScore, 0, len(r.order))
	for _, id := range r.order {
		p := r.players[id]
		out = append(out, domain.PlayerScore{ConnID: p.ConnID, Nickname: p.Nickname, Score: p.Score})
	}
	return out
}

// ActiveScores lists the non-spectators in turn order.
func (r *Room) ActiveScores() []domain.PlayerScore {
	out := make([]domain.PlayerScore, 0, len(r.order))
	for _, id := range r.order {
		if p := r.players[id]; !p.Spectator {
			out = append(out, domain.PlayerScore{ConnID: p.ConnID, Nickname: p.Nickname, Score: p.Score})
		}
	}
	return out
}

// Close marks the room destroyed. Timers that fire later see it and do nothing.
func (r *Room) Close()       { r.closed = true }
func (r *Room) Closed() bool { return r.closed }
