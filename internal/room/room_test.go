package room_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/sketch/internal/domain"
	"github.com/victornm/sketch/internal/errors"
	"github.com/victornm/sketch/internal/room"
)

func newRoom(t *testing.T, players ...string) *room.Room {
	t.Helper()

	r := room.New("r1", room.Settings{Difficulty: domain.DifficultyEasy, TotalRounds: 3})
	for _, p := range players {
		require.True(t, r.AddPlayer(p, "nick-"+p, false))
	}
	return r
}

func TestRoom_AddPlayer(t *testing.T) {
	r := newRoom(t, "a")

	assert.False(t, r.AddPlayer("a", "again", false), "same connection must not be added twice")
	assert.True(t, r.AddPlayer("s", "watcher", true))

	assert.Equal(t, []string{"a", "s"}, r.Order(), "spectators still take a turn slot")
	assert.Equal(t, 2, r.PlayerCount())
	assert.Equal(t, 1, r.ActivePlayerCount())
}

func TestRoom_RemovePlayerKeepsTurnIndexValid(t *testing.T) {
	tests := map[string]struct {
		turns      int
		remove     []string
		wantTurn   int
		wantDrawer string
	}{
		"removing a player after the drawer keeps the drawer": {
			turns:      1,
			remove:     []string{"c"},
			wantTurn:   1,
			wantDrawer: "b",
		},

		"removing a player before the drawer keeps the drawer": {
			turns:      2,
			remove:     []string{"a"},
			wantTurn:   1,
			wantDrawer: "c",
		},

		"removing the drawer hands the slot to the next player": {
			turns:      1,
			remove:     []string{"b"},
			wantTurn:   1,
			wantDrawer: "c",
		},

		"removing the last drawer wraps around": {
			turns:      3,
			remove:     []string{"d"},
			wantTurn:   0,
			wantDrawer: "a",
		},

		"removing everyone resets the index": {
			turns:    2,
			remove:   []string{"a", "b", "c", "d"},
			wantTurn: 0,
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			r := newRoom(t, "a", "b", "c", "d")
			for range tt.turns {
				r.AdvanceTurn()
			}

			for _, id := range tt.remove {
				_, ok := r.RemovePlayer(id)
				require.True(t, ok)
				if !r.Empty() {
					assert.Less(t, r.TurnIndex(), len(r.Order()))
				}
			}

			assert.Equal(t, tt.wantTurn, r.TurnIndex())
			if tt.wantDrawer == "" {
				assert.True(t, r.Empty())
				_, err := r.CurrentDrawer()
				assert.ErrorIs(t, err, room.ErrNoPlayers)
				assert.True(t, errors.HasCode(err, errors.CodeFailedPrecondition))
				return
			}

			d, err := r.CurrentDrawer()
			require.NoError(t, err)
			assert.Equal(t, tt.wantDrawer, d.ConnID)
		})
	}
}

func TestRoom_RemoveUnknownPlayer(t *testing.T) {
	r := newRoom(t, "a")

	_, ok := r.RemovePlayer("zzz")
	assert.False(t, ok)
	assert.Equal(t, []string{"a"}, r.Order())
}

func TestRoom_AdvanceTurnWraps(t *testing.T) {
	r := newRoom(t, "a", "b", "c")

	var drawers []string
	for range 5 {
		d, err := r.CurrentDrawer()
		require.NoError(t, err)
		drawers = append(drawers, d.ConnID)
		r.AdvanceTurn()
	}

	assert.Equal(t, []string{"a", "b", "c", "a", "b"}, drawers)
}

func TestRoom_SkipSpectators(t *testing.T) {
	r := newRoom(t, "a")
	require.True(t, r.AddPlayer("s1", "w1", true))
	require.True(t, r.AddPlayer("s2", "w2", true))
	require.True(t, r.AddPlayer("b", "nick-b", false))

	r.AdvanceTurn()
	r.SkipSpectators()
	d, err := r.CurrentDrawer()
	require.NoError(t, err)
	assert.Equal(t, "b", d.ConnID)

	only := room.New("r2", room.Settings{})
	only.AddPlayer("s", "w", true)
	only.SkipSpectators()
	assert.Equal(t, 0, only.TurnIndex(), "a room of spectators must not loop forever")
}

func TestRoom_RoundState(t *testing.T) {
	r := newRoom(t, "a", "b", "c")

	r.BeginRound("a", []string{"cat", "dog", "sun"})
	assert.Equal(t, 1, r.Round())
	assert.Equal(t, "a", r.DrawerID())
	assert.Empty(t, r.Word())

	assert.False(t, r.SelectWord("banana"), "only offered candidates can be selected")
	assert.True(t, r.SelectWord("DOG"))
	assert.Equal(t, "dog", r.Word())

	assert.True(t, r.AddSkipVote("b"))
	assert.False(t, r.AddSkipVote("b"), "votes are idempotent per connection")
	assert.Equal(t, 1, r.SkipVotes())

	r.RemovePlayer("b")
	assert.Equal(t, 0, r.SkipVotes(), "a leaver's vote is dropped")

	r.MarkDrawerActed()
	r.BeginRound("c", []string{"car"})
	assert.Equal(t, 2, r.Round())
	assert.False(t, r.DrawerActed())
	assert.Empty(t, r.Word())
}

func TestRoom_Scores(t *testing.T) {
	r := newRoom(t, "a", "b")
	r.AddPlayer("s", "watcher", true)

	r.Award("b", 15)
	r.Award("a", 5)
	r.Award("a", -10)
	r.Award("ghost", 10)

	assert.Equal(t, []domain.PlayerScore{
		{ConnID: "a", Nickname: "nick-a", Score: 5},
		{ConnID: "b", Nickname: "nick-b", Score: 15},
		{ConnID: "s", Nickname: "watcher", Score: 0},
	}, r.Scores())
	assert.Len(t, r.ActiveScores(), 2)

	r.ResetGame()
	assert.Equal(t, 0, r.Round())
	for _, s := range r.Scores() {
		assert.Zero(t, s.Score)
	}
}
