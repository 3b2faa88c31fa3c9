package api

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"github.com/victornm/sketch/internal/domain"
	"github.com/victornm/sketch/internal/errors"
	"github.com/victornm/sketch/internal/game"
)

// Inbound message types.
const (
	TypeCreateRoom = "createRoom"
	TypeJoinRoom   = "joinRoom"
	TypeStartGame  = "startGame"
	TypeSelectWord = "selectWord"
	TypeGuess      = "guess"
	TypeVoteSkip   = "voteSkip"
	TypeDrawing    = "drawing"
)

const anonymous = "Anonymous"

// Director receives the decoded inbound events of every connection.
type Director interface {
	CreateRoom(ctx context.Context, connID string, req game.CreateRoomRequest) error
	JoinRoom(ctx context.Context, connID string, req game.JoinRoomRequest) error
	StartGame(ctx context.Context, connID string) error
	SelectWord(ctx context.Context, connID, word string) error
	Guess(ctx context.Context, connID, text string) error
	VoteSkip(ctx context.Context, connID string) error
	Draw(ctx context.Context, connID string, data json.RawMessage) error
	Disconnect(ctx context.Context, connID string)
}

// Inbound is a client frame, encoded as {"type": ..., "data": ...}.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type (
	CreateRoomData struct {
		RoomID     string `json:"roomId"`
		Nickname   string `json:"nickname"`
		Difficulty string `json:"difficulty"`
		Rounds     int    `json:"totalRounds"`
		Spectator  bool   `json:"isSpectator"`
		Language   string `json:"language"`
		Public     bool   `json:"isPublic"`
	}

	JoinRoomData struct {
		RoomID    string `json:"roomId"`
		Nickname  string `json:"nickname"`
		Spectator bool   `json:"isSpectator"`
	}

	SelectWordData struct {
		Word string `json:"word"`
	}

	GuessData struct {
		Text string `json:"text"`
	}
)

// dispatch decodes one frame and hands it to the director.
func dispatch(ctx context.Context, d Director, connID string, raw []byte) error {
	var in Inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		return invalid("decode frame: %v", err)
	}

	switch in.Type {
	case TypeCreateRoom:
		var data CreateRoomData
		if err := decodeData(in, &data); err != nil {
			return err
		}

		diff := domain.Difficulty(strings.ToLower(data.Difficulty))
		if !diff.Valid() {
			diff = domain.DifficultyEasy
		}

		return d.CreateRoom(ctx, connID, game.CreateRoomRequest{
			RoomID:      strings.TrimSpace(data.RoomID),
			Nickname:    nickname(data.Nickname),
			Difficulty:  diff,
			TotalRounds: data.Rounds,
			Spectator:   data.Spectator,
			Language:    data.Language,
			Public:      data.Public,
		})

	case TypeJoinRoom:
		var data JoinRoomData
		if err := decodeData(in, &data); err != nil {
			return err
		}

		return d.JoinRoom(ctx, connID, game.JoinRoomRequest{
			RoomID:    strings.TrimSpace(data.RoomID),
			Nickname:  nickname(data.Nickname),
			Spectator: data.Spectator,
		})

	case TypeStartGame:
		return d.StartGame(ctx, connID)

	case TypeSelectWord:
		var data SelectWordData
		if err := decodeText(in, &data.Word, &data); err != nil {
			return err
		}
		return d.SelectWord(ctx, connID, data.Word)

	case TypeGuess:
		var data GuessData
		if err := decodeText(in, &data.Text, &data); err != nil {
			return err
		}
		return d.Guess(ctx, connID, strings.TrimSpace(data.Text))

	case TypeVoteSkip:
		return d.VoteSkip(ctx, connID)

	case TypeDrawing:
		return d.Draw(ctx, connID, in.Data)
	}

	return invalid("unknown message type %q", in.Type)
}

func decodeData(in Inbound, v any) error {
	if len(in.Data) == 0 {
		return invalid("%s: missing data", in.Type)
	}
	if err := json.Unmarshal(in.Data, v); err != nil {
		return invalid("%s: decode data: %v", in.Type, err)
	}
	return nil
}

// decodeText accepts either the object form into obj or a bare JSON string
// into text, as older clients send.
func decodeText(in Inbound, text *string, obj any) error {
	if raw := bytes.TrimSpace(in.Data); len(raw) > 0 && raw[0] == '"' {
		return decodeData(in, text)
	}
	return decodeData(in, obj)
}

func nickname(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return anonymous
	}
	return s
}

func invalid(format string, args ...any) error {
	return errors.New(errors.CodeInvalidArgument, errors.WithMessagef(format, args...))
}
