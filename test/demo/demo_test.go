//go:build integration_test

package demo

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/victornm/sketch/internal/api"
	"github.com/victornm/sketch/internal/domain"
)

const (
	wsAddr   = "ws://localhost:8080/ws"
	grpcAddr = "localhost:8081"
)

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// TestGame plays a one round game between two players against a running server
// and checks the lobby projections afterwards.
func TestGame(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var (
		roomID = "demo-" + uuid.NewString()[:8]
		wg     = new(sync.WaitGroup)
	)

	// Watch the room channel when the server mirrors notifications to Redis.
	subscribeRoom(t, makeRedis(t), wg, roomID)

	drawer, guesser := dial(t), dial(t)

	send(t, drawer, api.TypeCreateRoom, api.CreateRoomData{
		RoomID:     roomID,
		Nickname:   "drawer",
		Difficulty: string(domain.DifficultyMedium),
		Rounds:     1,
		Public:     true,
	})
	readUntil(t, drawer, domain.NotifyJoined)

	send(t, guesser, api.TypeJoinRoom, api.JoinRoomData{RoomID: roomID, Nickname: "guesser"})
	readUntil(t, guesser, domain.NotifyJoined)

	lc := makeLobbyClient(t)
	rooms, err := lc.ListPublicRooms(ctx)
	require.NoError(t, err)
	assert.Contains(t, rooms, domain.RoomSummary{RoomID: roomID, PlayerCount: 2})

	send(t, drawer, api.TypeStartGame, nil)

	var candidates []string
	require.NoError(t, json.Unmarshal(readUntil(t, drawer, domain.NotifyWordCandidates).Data, &candidates))
	require.NotEmpty(t, candidates)
	t.Logf("Drawer picks %q out of %v", candidates[0], candidates)

	send(t, drawer, api.TypeSelectWord, api.SelectWordData{Word: candidates[0]})
	readChat(t, guesser, "drawer has chosen a word.")

	send(t, drawer, api.TypeDrawing, map[string]any{"x": 10, "y": 20})
	readUntil(t, guesser, domain.NotifyDrawing)

	send(t, guesser, api.TypeGuess, api.GuessData{Text: candidates[0]})

	var board []domain.PlayerScore
	require.NoError(t, json.Unmarshal(readUntil(t, guesser, domain.NotifyFinalLeaderboard).Data, &board))
	t.Logf("Final leaderboard:\n%s", formatScores(board))

	var winner domain.PlayerScore
	require.NoError(t, json.Unmarshal(readUntil(t, guesser, domain.NotifyWinner).Data, &winner))
	assert.Equal(t, "guesser", winner.Nickname)

	require.Eventually(t, func() bool {
		entries, err := lc.GetLeaderboard(ctx, 100)
		if err != nil {
			return false
		}
		for _, e := range entries {
			if e.Nickname == "guesser" && e.Score >= winner.Score {
				return true
			}
		}
		return false
	}, 5*time.Second, 100*time.Millisecond)

	drawer.Close()
	guesser.Close()
	wg.Wait()
}

func dial(t *testing.T) *websocket.Conn {
	ws, _, err := websocket.DefaultDialer.Dial(wsAddr, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func send(t *testing.T, ws *websocket.Conn, typ string, data any) {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		require.NoError(t, err)
		raw = b
	}
	require.NoError(t, ws.WriteJSON(api.Inbound{Type: typ, Data: raw}))
}

func readUntil(t *testing.T, ws *websocket.Conn, event string) frame {
	for {
		require.NoError(t, ws.SetReadDeadline(time.Now().Add(10*time.Second)))

		var f frame
		require.NoError(t, ws.ReadJSON(&f))
		if f.Event == domain.NotifyError {
			t.Fatalf("server error: %s", f.Data)
		}
		if f.Event == event {
			return f
		}
	}
}

func readChat(t *testing.T, ws *websocket.Conn, text string) {
	for {
		var msg domain.ChatMessage
		require.NoError(t, json.Unmarshal(readUntil(t, ws, domain.NotifyMessage).Data, &msg))
		if msg.Text == text {
			return
		}
	}
}

func makeLobbyClient(t *testing.T) *api.LobbyClient {
	conn, err := grpc.NewClient(grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return api.NewLobbyClient(conn)
}

func subscribeRoom(t *testing.T, rc redis.UniversalClient, wg *sync.WaitGroup, roomID string) {
	wg.Add(1)
	sub := subscribeRedis(t, rc, fmt.Sprintf("sketch:pubsub:room:%s", roomID))
	go func() {
		defer wg.Done()

		for msg := range sub {
			var m api.PubsubMessage
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				t.Logf("unmarshal notification: %v", err)
				continue
			}

			t.Logf("pubsub %s: %s", roomID, m.Event)
			if m.Event == domain.NotifyWinner {
				return
			}
		}
	}()
}

func subscribeRedis(t *testing.T, rc redis.UniversalClient, pattern string) <-chan *redis.Message {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	t.Cleanup(cancel)

	sub := rc.PSubscribe(ctx, pattern)
	t.Cleanup(func() { sub.Close() })

	c := make(chan *redis.Message)
	go func() {
		defer close(c)

		for {
			msg, err := sub.ReceiveMessage(ctx)
			if err != nil {
				t.Log(err)
				return
			}

			c <- msg
		}
	}()

	return c
}

func makeRedis(t *testing.T) redis.UniversalClient {
	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{"localhost:6379"},
	})
	t.Cleanup(func() { r.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.Ping(ctx).Err(); err != nil {
		t.Fatal(err)
	}

	return r
}

func formatScores(scores []domain.PlayerScore) string {
	var s string
	for _, e := range scores {
		s += fmt.Sprintf("%s: %d\n", e.Nickname, e.Score)
	}
	return s
}
