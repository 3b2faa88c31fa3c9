package domain

import "time"

// Difficulty is a word-pool tier. It also scales the points of a correct guess.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
	DifficultyExpert Difficulty = "expert"
	DifficultyInsane Difficulty = "insane"
)

// Difficulties lists the tiers from easiest to hardest.
var Difficulties = []Difficulty{
	DifficultyEasy,
	DifficultyMedium,
	DifficultyHard,
	DifficultyExpert,
	DifficultyInsane,
}

// Valid reports whether d is a known tier.
func (d Difficulty) Valid() bool {
	for _, v := range Difficulties {
		if v == d {
			return true
		}
	}
	return false
}

// PlayerScore is a player's score within one game, in turn order.
type PlayerScore struct {
	ConnID   string `json:"id"`
	Nickname string `json:"nickname"`
	Score    int    `json:"score"`
}

// LeaderboardEntry is a nickname's best score across finished games.
type LeaderboardEntry struct {
	Nickname string `json:"nickname"`
	Score    int    `json:"score"`
}

// RoomSummary is the public projection of a room.
type RoomSummary struct {
	RoomID      string `json:"roomId"`
	PlayerCount int    `json:"playerCount"`
}

// GameRecord is an archived finished game as seen by one of its players.
type GameRecord struct {
	GameID     string     `json:"gameId"`
	RoomID     string     `json:"roomId"`
	Difficulty Difficulty `json:"difficulty"`
	Rounds     int        `json:"rounds"`
	Winner     string     `json:"winner"`
	Score      int        `json:"score"`
	FinishTime time.Time  `json:"finishTime"`
}
