package api

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/sketch/internal/domain"
	"github.com/victornm/sketch/internal/errors"
	"github.com/victornm/sketch/internal/game"
)

func TestDispatch(t *testing.T) {
	tests := map[string]struct {
		frame   string
		want    []call
		wantErr bool
	}{
		"create room": {
			frame: `{"type":"createRoom","data":{"roomId":" r1 ","nickname":"alice","difficulty":"Hard","totalRounds":2,"isSpectator":true,"language":"en","isPublic":true}}`,
			want: []call{{method: "CreateRoom", conn: "c1", arg: game.CreateRoomRequest{
				RoomID:      "r1",
				Nickname:    "alice",
				Difficulty:  domain.DifficultyHard,
				TotalRounds: 2,
				Spectator:   true,
				Language:    "en",
				Public:      true,
			}}},
		},

		"unknown difficulty falls back to easy and blank nickname is anonymous": {
			frame: `{"type":"createRoom","data":{"roomId":"r1","nickname":"  ","difficulty":"nightmare"}}`,
			want: []call{{method: "CreateRoom", conn: "c1", arg: game.CreateRoomRequest{
				RoomID:     "r1",
				Nickname:   "Anonymous",
				Difficulty: domain.DifficultyEasy,
			}}},
		},

		"join room as spectator": {
			frame: `{"type":"joinRoom","data":{"roomId":"r1","nickname":"bob","isSpectator":true}}`,
			want: []call{{method: "JoinRoom", conn: "c1", arg: game.JoinRoomRequest{
				RoomID:    "r1",
				Nickname:  "bob",
				Spectator: true,
			}}},
		},

		"start game": {
			frame: `{"type":"startGame"}`,
			want:  []call{{method: "StartGame", conn: "c1"}},
		},

		"select word": {
			frame: `{"type":"selectWord","data":{"word":"volcano"}}`,
			want:  []call{{method: "SelectWord", conn: "c1", arg: "volcano"}},
		},

		"select word as a bare string": {
			frame: `{"type":"selectWord","data":"volcano"}`,
			want:  []call{{method: "SelectWord", conn: "c1", arg: "volcano"}},
		},

		"guess is trimmed": {
			frame: `{"type":"guess","data":{"text":" volcano\n"}}`,
			want:  []call{{method: "Guess", conn: "c1", arg: "volcano"}},
		},

		"guess as a bare string": {
			frame: `{"type":"guess","data":"volcano"}`,
			want:  []call{{method: "Guess", conn: "c1", arg: "volcano"}},
		},

		"legacy field names are ignored": {
			frame: `{"type":"createRoom","data":{"roomId":"r1","nickname":"alice","rounds":2,"public":true}}`,
			want: []call{{method: "CreateRoom", conn: "c1", arg: game.CreateRoomRequest{
				RoomID:     "r1",
				Nickname:   "alice",
				Difficulty: domain.DifficultyEasy,
			}}},
		},

		"guess with wrong data": {
			frame:   `{"type":"guess","data":{"text":5}}`,
			wantErr: true,
		},

		"vote skip": {
			frame: `{"type":"voteSkip"}`,
			want:  []call{{method: "VoteSkip", conn: "c1"}},
		},

		"drawing is passed through untouched": {
			frame: `{"type":"drawing","data":{"x":1,"y":2,"color":"#000"}}`,
			want:  []call{{method: "Draw", conn: "c1", arg: `{"x":1,"y":2,"color":"#000"}`}},
		},

		"malformed frame": {
			frame:   `{"type":`,
			wantErr: true,
		},

		"unknown type": {
			frame:   `{"type":"teleport"}`,
			wantErr: true,
		},

		"guess without data": {
			frame:   `{"type":"guess"}`,
			wantErr: true,
		},

		"join room with wrong data": {
			frame:   `{"type":"joinRoom","data":"r1"}`,
			wantErr: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			d := newFakeDirector()

			err := dispatch(context.Background(), d, "c1", []byte(tt.frame))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.HasCode(err, errors.CodeInvalidArgument))
				assert.Empty(t, d.recorded())
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, d.recorded())
		})
	}
}
