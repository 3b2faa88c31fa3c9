package domain

import "time"

const (
	EventNameRoomCreated  = "room.created"
	EventNameRoomClosed   = "room.closed"
	EventNameRoundEnded   = "round.ended"
	EventNameGameFinished = "game.finished"
)

type EventRoomCreated struct {
	RoomID     string
	Difficulty Difficulty
	Public     bool
}

func (EventRoomCreated) Name() string { return EventNameRoomCreated }

type EventRoomClosed struct {
	RoomID string
}

func (EventRoomClosed) Name() string { return EventNameRoomClosed }

// RoundEndReason tells which trigger won the race to end a round.
type RoundEndReason string

const (
	RoundEndTimeout    RoundEndReason = "timeout"
	RoundEndGuessed    RoundEndReason = "guessed"
	RoundEndSkipped    RoundEndReason = "skipped"
	RoundEndRoomClosed RoundEndReason = "room_closed"
)

type EventRoundEnded struct {
	RoomID string
	Round  int
	Word   string
	Reason RoundEndReason
}

func (EventRoundEnded) Name() string { return EventNameRoundEnded }

// EventGameFinished carries the final scores of the non-spectator players.
type EventGameFinished struct {
	RoomID     string
	Difficulty Difficulty
	Rounds     int
	Scores     []PlayerScore
	Winner     PlayerScore
	FinishTime time.Time
}

func (EventGameFinished) Name() string { return EventNameGameFinished }
