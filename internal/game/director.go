package game

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/victornm/sketch/internal/domain"
	"github.com/victornm/sketch/internal/errors"
	"github.com/victornm/sketch/internal/event"
	"github.com/victornm/sketch/internal/room"
)

type Config struct {
	Registry  *room.Registry
	Words     WordSampler
	Transport Transport
	EventBus  *event.Bus
	Tuning    Tuning
	Clock     Clock
	Rand      *rand.Rand
}

// Director turns inbound connection events into room and round transitions.
type Director struct {
	rooms  *room.Registry
	words  WordSampler
	out    Transport
	eb     *event.Bus
	tuning Tuning
	clock  Clock
	rnd    *rand.Rand

	// mu guards seats, schedulers and rnd. A seat pins the scheduler, and
	// through it the room, the connection sits in.
	mu         sync.Mutex
	seats      map[string]*Scheduler
	schedulers map[string]*Scheduler
}

func NewDirector(c Config) *Director {
	d := &Director{
		rooms:      c.Registry,
		words:      c.Words,
		out:        c.Transport,
		eb:         c.EventBus,
		tuning:     c.Tuning,
		clock:      c.Clock,
		rnd:        c.Rand,
		seats:      make(map[string]*Scheduler),
		schedulers: make(map[string]*Scheduler),
	}

	if d.clock == nil {
		d.clock = RealClock()
	}
	if d.rnd == nil {
		d.rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	return d
}

type CreateRoomRequest struct {
	RoomID      string
	Nickname    string
	Difficulty  domain.Difficulty
	TotalRounds int
	Spectator   bool
	Language    string
	Public      bool
}

// CreateRoom registers a room and seats the caller as its first player.
func (d *Director) CreateRoom(ctx context.Context, connID string, req CreateRoomRequest) error {
	if err := d.checkUnseated(connID); err != nil {
		return d.reject(ctx, connID, err)
	}

	rounds := req.TotalRounds
	if rounds <= 0 {
		rounds = d.tuning.DefaultRounds
	}

	// the room stays locked until its creator is seated and its scheduler is
	// registered, so a racing join queues behind and takes the second slot
	r, err := d.rooms.Open(req.RoomID, room.Settings{
		Difficulty:  req.Difficulty,
		TotalRounds: rounds,
		Language:    req.Language,
		Public:      req.Public,
	})
	if err != nil {
		return d.reject(ctx, connID, err)
	}
	defer r.Unlock()

	r.AddPlayer(connID, req.Nickname, req.Spectator)
	d.mu.Lock()
	sc := newScheduler(schedulerConfig{
		Room:      r,
		Tuning:    d.tuning,
		Clock:     d.clock,
		Words:     d.words,
		Transport: d.out,
		EventBus:  d.eb,
		// schedulers of different rooms run concurrently, each gets its own source
		Rand: rand.New(rand.NewPCG(d.rnd.Uint64(), d.rnd.Uint64())),
	})
	d.schedulers[r.ID()] = sc
	d.mu.Unlock()
	d.seat(ctx, sc, connID, req.Nickname)

	d.out.Broadcast(ctx, r.ID(), domain.Admin(fmt.Sprintf("%s has created the room.", req.Nickname)))
	d.eb.Publish(ctx, domain.EventRoomCreated{
		RoomID:     r.ID(),
		Difficulty: req.Difficulty,
		Public:     req.Public,
	})

	slog.InfoContext(ctx, "game: room created",
		"room", r.ID(),
		"difficulty", req.Difficulty,
		"rounds", rounds,
		"public", req.Public,
	)
	return nil
}

type JoinRoomRequest struct {
	RoomID    string
	Nickname  string
	Spectator bool
}

// JoinRoom seats the caller in an existing room.
func (d *Director) JoinRoom(ctx context.Context, connID string, req JoinRoomRequest) error {
	if err := d.checkUnseated(connID); err != nil {
		return d.reject(ctx, connID, err)
	}

	r, err := d.rooms.Get(req.RoomID)
	if err != nil {
		return d.reject(ctx, connID, err)
	}

	r.Lock()
	defer r.Unlock()

	// the last player may have left between Get and Lock
	if r.Closed() {
		return d.reject(ctx, connID, errors.New(errors.CodeNotFound,
			errors.WithMessagef("Room does not exist!"),
			errors.WithCause(room.ErrRoomNotFound)))
	}

	d.mu.Lock()
	sc, ok := d.schedulers[r.ID()]
	d.mu.Unlock()
	if !ok || sc.room != r {
		return d.reject(ctx, connID, errors.New(errors.CodeNotFound,
			errors.WithMessagef("Room does not exist!"),
			errors.WithCause(room.ErrRoomNotFound)))
	}

	r.AddPlayer(connID, req.Nickname, req.Spectator)
	d.seat(ctx, sc, connID, req.Nickname)
	d.out.Broadcast(ctx, r.ID(), domain.Admin(fmt.Sprintf("%s has joined the room.", req.Nickname)))
	return nil
}

// StartGame starts the first round, or a new game once the previous one finished.
func (d *Director) StartGame(ctx context.Context, connID string) error {
	r, s, ok := d.lockRoomOf(connID)
	if !ok {
		return nil
	}
	defer r.Unlock()

	return s.Start(ctx)
}

// SelectWord sets the secret word. Only the drawer of the running round may choose.
func (d *Director) SelectWord(ctx context.Context, connID, word string) error {
	r, s, ok := d.lockRoomOf(connID)
	if !ok {
		return nil
	}
	defer r.Unlock()

	return s.SelectWord(ctx, connID, word)
}

// Guess checks text against the secret word. Anything that does not score is
// relayed to the room as chat.
func (d *Director) Guess(ctx context.Context, connID, text string) error {
	r, s, ok := d.lockRoomOf(connID)
	if !ok {
		return nil
	}
	defer r.Unlock()

	p, ok := r.Player(connID)
	if !ok {
		return nil
	}

	word := r.Word()
	if !s.RoundActive() || word == "" || connID == r.DrawerID() || !strings.EqualFold(text, word) {
		d.out.Broadcast(ctx, r.ID(), domain.Notification{
			Event: domain.NotifyGuess,
			Data:  domain.GuessMessage{User: p.Nickname, Guess: text},
		})
		return nil
	}

	r.Award(connID, d.tuning.Points(r.Settings().Difficulty))
	r.Award(r.DrawerID(), d.tuning.DrawerBonus)

	d.out.Broadcast(ctx, r.ID(), domain.Admin(fmt.Sprintf("%s guessed the word correctly!", p.Nickname)))
	d.out.Broadcast(ctx, r.ID(), domain.Notification{
		Event: domain.NotifyScoreUpdate,
		Data:  r.Scores(),
	})

	s.End(ctx, domain.RoundEndGuessed)
	return nil
}

// VoteSkip records one vote per connection and ends the round once
// ceil(SkipVoteRatio * active players) votes are in.
func (d *Director) VoteSkip(ctx context.Context, connID string) error {
	r, s, ok := d.lockRoomOf(connID)
	if !ok {
		return nil
	}
	defer r.Unlock()

	p, ok := r.Player(connID)
	if !ok || p.Spectator || !s.RoundActive() {
		return nil
	}
	if !r.AddSkipVote(connID) {
		return nil
	}

	votes, need := r.SkipVotes(), d.tuning.SkipThreshold(r.ActivePlayerCount())
	d.out.Broadcast(ctx, r.ID(), domain.Admin(
		fmt.Sprintf("%s voted to skip the round (%d/%d).", p.Nickname, votes, need)))

	if votes >= need {
		d.out.Broadcast(ctx, r.ID(), domain.Admin("Vote passed, skipping the round."))
		s.End(ctx, domain.RoundEndSkipped)
	}
	return nil
}

// Draw relays opaque stroke data to everyone else in the room. Strokes from the
// drawer count as drawing activity.
func (d *Director) Draw(ctx context.Context, connID string, data json.RawMessage) error {
	r, s, ok := d.lockRoomOf(connID)
	if !ok {
		return nil
	}
	defer r.Unlock()

	if s.RoundActive() && connID == r.DrawerID() {
		r.MarkDrawerActed()
	}

	d.out.Broadcast(ctx, r.ID(), domain.Notification{
		Event: domain.NotifyDrawing,
		Data:  data,
	}, connID)
	return nil
}

// Disconnect removes the connection from its room and destroys the room once
// nobody is left. A drawer leaving mid-round does not end the round; it runs
// until one of the other triggers ends it. A leaver can bring the skip votes
// already cast up to the threshold, which ends the round.
func (d *Director) Disconnect(ctx context.Context, connID string) {
	d.mu.Lock()
	s, ok := d.seats[connID]
	delete(d.seats, connID)
	d.mu.Unlock()

	if !ok {
		return
	}

	r := s.room
	d.out.Leave(connID, r.ID())
	r.Lock()
	defer r.Unlock()

	p, ok := r.RemovePlayer(connID)
	if !ok {
		return
	}

	if !r.Empty() {
		d.out.Broadcast(ctx, r.ID(), domain.Admin(fmt.Sprintf("%s has left the room.", p.Nickname)))

		votes := r.SkipVotes()
		if s.RoundActive() && votes > 0 && votes >= d.tuning.SkipThreshold(r.ActivePlayerCount()) {
			d.out.Broadcast(ctx, r.ID(), domain.Admin("Vote passed, skipping the round."))
			s.End(ctx, domain.RoundEndSkipped)
		}
		return
	}

	r.Close()
	d.rooms.Release(r)
	s.Stop(ctx)

	d.mu.Lock()
	if cur, ok := d.schedulers[r.ID()]; ok && cur == s {
		delete(d.schedulers, r.ID())
	}
	d.mu.Unlock()

	d.eb.Publish(ctx, domain.EventRoomClosed{RoomID: r.ID()})
	slog.InfoContext(ctx, "game: room closed", "room", r.ID())
}

// RoomOf returns the ID of the room the connection is seated in.
func (d *Director) RoomOf(connID string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.seats[connID]
	if !ok {
		return "", false
	}
	return s.room.ID(), true
}

// Phase of the room's round lifecycle, for projections and tests.
func (d *Director) Phase(roomID string) (Phase, bool) {
	d.mu.Lock()
	s, ok := d.schedulers[roomID]
	d.mu.Unlock()
	if !ok {
		return PhaseIdle, false
	}

	s.room.Lock()
	defer s.room.Unlock()
	return s.Phase(), true
}

func (d *Director) checkUnseated(connID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if s, ok := d.seats[connID]; ok {
		return failedPrecondition(ErrAlreadySeated, "already in room %s", s.room.ID())
	}
	return nil
}

// seat binds the connection to the scheduler's room. The room must be locked.
func (d *Director) seat(ctx context.Context, s *Scheduler, connID, nickname string) {
	r := s.room

	d.mu.Lock()
	d.seats[connID] = s
	d.mu.Unlock()

	d.out.Join(connID, r.ID())
	d.out.Send(ctx, connID, domain.Notification{
		Event: domain.NotifyJoined,
		Data:  domain.Joined{RoomID: r.ID(), ConnID: connID, Nickname: nickname},
	})
}

// lockRoomOf returns the caller's room locked, along with its scheduler.
func (d *Director) lockRoomOf(connID string) (*room.Room, *Scheduler, bool) {
	d.mu.Lock()
	s, ok := d.seats[connID]
	d.mu.Unlock()

	if !ok {
		return nil, nil, false
	}

	s.room.Lock()
	if s.room.Closed() {
		s.room.Unlock()
		return nil, nil, false
	}
	return s.room, s, true
}

// reject reports a create or join failure to the caller.
func (d *Director) reject(ctx context.Context, connID string, err error) error {
	d.out.Send(ctx, connID, domain.Notification{
		Event: domain.NotifyError,
		Data:  errors.Convert(err).Message,
	})
	return err
}
