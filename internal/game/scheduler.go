package game

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/victornm/sketch/internal/domain"
	"github.com/victornm/sketch/internal/event"
	"github.com/victornm/sketch/internal/room"
)

const unknownWord = "unknown"

// Phase of a room's round lifecycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAwaitingWord
	PhaseInProgress
	PhaseEnding
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingWord:
		return "awaiting_word"
	case PhaseInProgress:
		return "in_progress"
	case PhaseEnding:
		return "ending"
	case PhaseFinished:
		return "finished"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// WordSampler offers candidate words for a tier.
type WordSampler interface {
	Sample(d domain.Difficulty) []string
}

// Scheduler drives the timed phases of one room. Exported methods other than
// Phase are called with the room locked. Timer callbacks lock the room
// themselves and carry the generation of the round that armed them; a callback
// whose generation is stale, or whose room is closed, does nothing.
type Scheduler struct {
	room   *room.Room
	tuning Tuning
	clock  Clock
	words  WordSampler
	out    Transport
	eb     *event.Bus
	rnd    *rand.Rand

	phase   Phase
	gen     uint64
	elapsed int
	hint    *hint

	timers []Timer
	next   Timer
}

type schedulerConfig struct {
	Room      *room.Room
	Tuning    Tuning
	Clock     Clock
	Words     WordSampler
	Transport Transport
	EventBus  *event.Bus
	Rand      *rand.Rand
}

func newScheduler(c schedulerConfig) *Scheduler {
	return &Scheduler{
		room:   c.Room,
		tuning: c.Tuning,
		clock:  c.Clock,
		words:  c.Words,
		out:    c.Transport,
		eb:     c.EventBus,
		rnd:    c.Rand,
	}
}

// Phase is safe to call with the room locked.
func (s *Scheduler) Phase() Phase { return s.phase }

// RoundActive reports whether a round is running, with or without a word.
func (s *Scheduler) RoundActive() bool {
	return s.phase == PhaseAwaitingWord || s.phase == PhaseInProgress
}

// Start moves Idle to AwaitingWord. A finished game starts over with zeroed scores.
func (s *Scheduler) Start(ctx context.Context) error {
	r := s.room

	switch s.phase {
	case PhaseAwaitingWord, PhaseInProgress, PhaseEnding:
		return failedPrecondition(ErrRoundActive, "round %d is already running", r.Round())
	case PhaseFinished:
		r.ResetGame()
		s.phase = PhaseIdle
	}

	if n := r.ActivePlayerCount(); n < s.tuning.MinPlayers {
		s.out.Broadcast(ctx, r.ID(), domain.Admin(
			fmt.Sprintf("Need at least %d players to start the round.", s.tuning.MinPlayers)))
		return failedPrecondition(ErrInsufficientPlayers, "need %d players, have %d", s.tuning.MinPlayers, n)
	}

	if s.tuning.SkipSpectatorDrawers {
		r.SkipSpectators()
	}

	drawer, err := r.CurrentDrawer()
	if err != nil {
		return err
	}

	s.stopNext()
	candidates := s.words.Sample(r.Settings().Difficulty)
	r.BeginRound(drawer.ConnID, candidates)

	s.gen++
	s.phase = PhaseAwaitingWord
	s.elapsed = 0
	s.hint = nil

	s.out.Send(ctx, drawer.ConnID, domain.Notification{
		Event: domain.NotifyWordCandidates,
		Data:  candidates,
	})
	s.out.Broadcast(ctx, r.ID(), domain.Notification{
		Event: domain.NotifyTurn,
		Data: domain.Turn{
			Drawer:      drawer.Nickname,
			Duration:    s.tuning.RoundDuration,
			Round:       r.Round(),
			TotalRounds: r.Settings().TotalRounds,
		},
	})

	gen := s.gen
	s.timers = append(s.timers, s.clock.AfterFunc(s.tuning.Tick, func() { s.onTick(gen) }))
	if w := s.tuning.DrawerWarningAt; w > 0 && w < s.tuning.RoundDuration {
		s.timers = append(s.timers, s.clock.AfterFunc(s.tuning.ticks(w), func() { s.onDrawerWarning(gen) }))
	}
	for i, h := range s.tuning.HintsAt {
		s.timers = append(s.timers, s.clock.AfterFunc(s.tuning.ticks(h), func() { s.onHint(gen, i) }))
	}

	slog.DebugContext(ctx, "game: round started",
		"room", r.ID(),
		"round", r.Round(),
		"drawer", drawer.ConnID,
	)
	return nil
}

// SelectWord moves AwaitingWord to InProgress.
func (s *Scheduler) SelectWord(ctx context.Context, connID, word string) error {
	r := s.room

	if s.phase != PhaseAwaitingWord {
		return failedPrecondition(ErrNoActiveWord, "no word is awaited")
	}
	if connID != r.DrawerID() {
		return failedPrecondition(ErrNotDrawer, "only the drawer selects the word")
	}
	if !r.SelectWord(word) {
		return failedPrecondition(ErrUnknownWord, "%q was not offered", word)
	}

	s.phase = PhaseInProgress
	if p, ok := r.Player(connID); ok {
		s.out.Broadcast(ctx, r.ID(), domain.Admin(fmt.Sprintf("%s has chosen a word.", p.Nickname)))
	}
	return nil
}

// End moves a running round to Ending and then to Idle or Finished. It reports
// false, doing nothing, when no round is running, so concurrent triggers end a
// round exactly once.
func (s *Scheduler) End(ctx context.Context, reason domain.RoundEndReason) bool {
	if !s.RoundActive() {
		return false
	}

	r := s.room
	s.phase = PhaseEnding
	s.stopTimers()

	word := r.Word()
	if word == "" {
		word = unknownWord
	}
	round := r.Round()

	s.out.Broadcast(ctx, r.ID(), domain.Admin(fmt.Sprintf("Round ended! The word was: %s", word)))
	s.out.Broadcast(ctx, r.ID(), domain.Notification{
		Event: domain.NotifyRoundEnd,
		Data:  domain.RoundEnd{Round: round, Word: word},
	})
	s.out.Broadcast(ctx, r.ID(), domain.Notification{Event: domain.NotifyClearBoard})

	s.eb.Publish(ctx, domain.EventRoundEnded{
		RoomID: r.ID(),
		Round:  round,
		Word:   word,
		Reason: reason,
	})

	r.AdvanceTurn()
	r.EndRound()

	if round >= r.Settings().TotalRounds {
		s.finish(ctx)
		return true
	}

	s.phase = PhaseIdle
	gen := s.gen
	s.next = s.clock.AfterFunc(s.tuning.ticks(s.tuning.BreakDuration), func() { s.onBreakOver(gen) })
	return true
}

// Stop cancels every timer of a room that is being destroyed.
func (s *Scheduler) Stop(ctx context.Context) {
	s.stopTimers()
	s.stopNext()

	if s.RoundActive() {
		s.eb.Publish(ctx, domain.EventRoundEnded{
			RoomID: s.room.ID(),
			Round:  s.room.Round(),
			Word:   s.room.Word(),
			Reason: domain.RoundEndRoomClosed,
		})
	}

	s.gen++
	s.phase = PhaseIdle
}

func (s *Scheduler) finish(ctx context.Context) {
	r := s.room
	s.phase = PhaseFinished

	scores := r.ActiveScores()
	var (
		winner domain.PlayerScore
		found  bool
	)
	for _, sc := range scores {
		if !found || sc.Score > winner.Score {
			winner, found = sc, true
		}
	}

	s.out.Broadcast(ctx, r.ID(), domain.Notification{
		Event: domain.NotifyFinalLeaderboard,
		Data:  scores,
	})
	if found {
		s.out.Broadcast(ctx, r.ID(), domain.Notification{
			Event: domain.NotifyWinner,
			Data:  winner,
		})
		s.out.Broadcast(ctx, r.ID(), domain.Admin(
			fmt.Sprintf("Game over! %s wins with %d points.", winner.Nickname, winner.Score)))
	}

	s.eb.Publish(ctx, domain.EventGameFinished{
		RoomID:     r.ID(),
		Difficulty: r.Settings().Difficulty,
		Rounds:     r.Round(),
		Scores:     scores,
		Winner:     winner,
		FinishTime: time.Now(),
	})

	slog.InfoContext(ctx, "game: game finished",
		"room", r.ID(),
		"rounds", r.Round(),
		"winner", winner.Nickname,
	)
}

// current reports whether the round armed with gen is still running.
func (s *Scheduler) current(gen uint64) bool {
	return !s.room.Closed() && s.gen == gen && s.RoundActive()
}

func (s *Scheduler) onTick(gen uint64) {
	s.room.Lock()
	defer s.room.Unlock()

	if !s.current(gen) {
		return
	}

	ctx := context.Background()
	s.elapsed++
	remaining := s.tuning.RoundDuration - s.elapsed

	s.out.Broadcast(ctx, s.room.ID(), domain.Notification{
		Event: domain.NotifyCountdown,
		Data:  domain.Countdown{Remaining: remaining},
	})

	if remaining <= 0 {
		s.End(ctx, domain.RoundEndTimeout)
		return
	}

	s.timers = append(s.timers, s.clock.AfterFunc(s.tuning.Tick, func() { s.onTick(gen) }))
}

func (s *Scheduler) onDrawerWarning(gen uint64) {
	s.room.Lock()
	defer s.room.Unlock()

	if !s.current(gen) || s.room.DrawerActed() {
		return
	}

	s.out.Send(context.Background(), s.room.DrawerID(), domain.Notification{
		Event: domain.NotifyDrawerWarning,
		Data:  domain.ChatMessage{User: domain.AdminUser, Text: "You haven't started drawing yet!"},
	})
}

func (s *Scheduler) onHint(gen uint64, i int) {
	s.room.Lock()
	defer s.room.Unlock()

	if !s.current(gen) {
		return
	}

	word := s.room.Word()
	if word == "" {
		return
	}

	// the first hint only masks, later ones reveal one more character each
	created := s.hint == nil
	if created {
		s.hint = newHint(word)
	}
	revealed := i > 0 && s.hint.revealOne(s.rnd)
	if created || revealed {
		s.broadcastHint()
	}
}

func (s *Scheduler) broadcastHint() {
	s.out.Broadcast(context.Background(), s.room.ID(), domain.Notification{
		Event: domain.NotifyHint,
		Data:  domain.Hint{Hint: s.hint.String()},
	})
}

func (s *Scheduler) onBreakOver(gen uint64) {
	s.room.Lock()
	defer s.room.Unlock()

	if s.room.Closed() || s.gen != gen || s.phase != PhaseIdle {
		return
	}

	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		slog.InfoContext(ctx, "game: next round not started",
			"room", s.room.ID(),
			"error", err,
		)
	}
}

func (s *Scheduler) stopTimers() {
	for _, t := range s.timers {
		t.Stop()
	}
	s.timers = s.timers[:0]
}

func (s *Scheduler) stopNext() {
	if s.next != nil {
		s.next.Stop()
		s.next = nil
	}
}
