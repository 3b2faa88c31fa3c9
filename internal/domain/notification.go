package domain

// Outbound notification names.
const (
	NotifyMessage          = "message"
	NotifyError            = "error"
	NotifyJoined           = "joined"
	NotifyWordCandidates   = "wordCandidates"
	NotifyTurn             = "turn"
	NotifyCountdown        = "countdown"
	NotifyHint             = "hint"
	NotifyDrawerWarning    = "drawerWarning"
	NotifyScoreUpdate      = "scoreUpdate"
	NotifyGuess            = "guess"
	NotifyDrawing          = "drawing"
	NotifyRoundEnd         = "roundEnd"
	NotifyClearBoard       = "clearBoard"
	NotifyFinalLeaderboard = "finalLeaderboard"
	NotifyWinner           = "winner"
)

// AdminUser is the author of server generated chat lines.
const AdminUser = "admin"

// Notification is a single outbound message, encoded as {"event": ..., "data": ...}.
type Notification struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type ChatMessage struct {
	User string `json:"user"`
	Text string `json:"text"`
}

type GuessMessage struct {
	User  string `json:"user"`
	Guess string `json:"guess"`
}

type Turn struct {
	Drawer      string `json:"drawer"`
	Duration    int    `json:"duration"`
	Round       int    `json:"round"`
	TotalRounds int    `json:"totalRounds"`
}

type Countdown struct {
	Remaining int `json:"remaining"`
}

type Hint struct {
	Hint string `json:"hint"`
}

type RoundEnd struct {
	Round int    `json:"round"`
	Word  string `json:"word"`
}

type Joined struct {
	RoomID   string `json:"roomId"`
	ConnID   string `json:"id"`
	Nickname string `json:"nickname"`
}

func Chat(user, text string) Notification {
	return Notification{Event: NotifyMessage, Data: ChatMessage{User: user, Text: text}}
}

func Admin(text string) Notification {
	return Chat(AdminUser, text)
}
