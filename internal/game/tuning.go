package game

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/victornm/sketch/internal/domain"
)

// Tuning holds every constant of the round lifecycle. Durations are counted in
// ticks, one tick being Tick long.
type Tuning struct {
	Tick            time.Duration
	RoundDuration   int
	DrawerWarningAt int
	HintsAt         []int
	BreakDuration   int

	MinPlayers    int
	DefaultRounds int
	SkipVoteRatio float64

	GuessPoints map[domain.Difficulty]int
	DrawerBonus int

	// SkipSpectatorDrawers moves the turn past spectator slots when a round starts.
	// Off by default: spectators keep their slot in the turn order and can be
	// picked as drawer.
	SkipSpectatorDrawers bool
}

func DefaultTuning() Tuning {
	return Tuning{
		Tick:            time.Second,
		RoundDuration:   60,
		DrawerWarningAt: 10,
		HintsAt:         []int{15, 30},
		BreakDuration:   5,
		MinPlayers:      2,
		DefaultRounds:   3,
		SkipVoteRatio:   0.6,
		GuessPoints: map[domain.Difficulty]int{
			domain.DifficultyEasy:   5,
			domain.DifficultyMedium: 10,
			domain.DifficultyHard:   15,
			domain.DifficultyExpert: 20,
			domain.DifficultyInsane: 25,
		},
		DrawerBonus: 5,
	}
}

func (t Tuning) Validate() error {
	switch {
	case t.Tick <= 0:
		return fmt.Errorf("tick must be positive")
	case t.RoundDuration <= 0:
		return fmt.Errorf("round duration must be positive")
	case t.BreakDuration < 0:
		return fmt.Errorf("break duration must not be negative")
	case t.MinPlayers < 1:
		return fmt.Errorf("min players must be at least 1")
	case t.DefaultRounds < 1:
		return fmt.Errorf("default rounds must be at least 1")
	case t.SkipVoteRatio <= 0 || t.SkipVoteRatio > 1:
		return fmt.Errorf("skip vote ratio must be in (0, 1], got %v", t.SkipVoteRatio)
	case t.GuessPoints[domain.DifficultyEasy] <= 0:
		return fmt.Errorf("guess points for %s must be positive", domain.DifficultyEasy)
	}

	for _, h := range t.HintsAt {
		if h <= 0 || h >= t.RoundDuration {
			return fmt.Errorf("hint at %d is outside the round", h)
		}
	}

	return nil
}

// SkipThreshold is the number of votes that ends a round with n active players:
// ceil(SkipVoteRatio * n), never less than one.
func (t Tuning) SkipThreshold(n int) int {
	need := decimal.NewFromFloat(t.SkipVoteRatio).
		Mul(decimal.NewFromInt(int64(n))).
		Ceil().
		IntPart()

	return max(int(need), 1)
}

// Points awarded to the guesser for the tier, falling back to the easy tier.
func (t Tuning) Points(d domain.Difficulty) int {
	if p, ok := t.GuessPoints[d]; ok {
		return p
	}
	return t.GuessPoints[domain.DifficultyEasy]
}

func (t Tuning) ticks(n int) time.Duration {
	return time.Duration(n) * t.Tick
}
