package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/victornm/sketch/internal/domain"
	"github.com/victornm/sketch/internal/errors"
	"github.com/victornm/sketch/internal/history"
	"github.com/victornm/sketch/internal/leaderboard"
	"github.com/victornm/sketch/internal/room"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
)

type Config struct {
	GRPC        grpc.ServiceRegistrar
	HTTP        gin.IRouter
	Rooms       *room.Registry
	Leaderboard *leaderboard.Service
	// History is optional. Without it the games route is not registered.
	History  *history.Service
	Hub      *Hub
	Director Director
}

// API exposes the lobby projections over HTTP and gRPC, and the game itself
// over WebSocket.
type API struct {
	rooms    *room.Registry
	ls       *leaderboard.Service
	hs       *history.Service
	hub      *Hub
	director Director
}

type (
	ListRoomsResponse struct {
		Rooms []domain.RoomSummary `json:"rooms"`
	}

	LeaderboardResponse struct {
		Entries []domain.LeaderboardEntry `json:"entries"`
	}

	ListGamesResponse struct {
		Games []domain.GameRecord `json:"games"`
	}

	ErrorResponse struct {
		Error string `json:"error"`
	}
)

func New(c Config) *API {
	a := &API{
		rooms:    c.Rooms,
		ls:       c.Leaderboard,
		hs:       c.History,
		hub:      c.Hub,
		director: c.Director,
	}

	if c.GRPC != nil {
		RegisterLobbyServiceServer(c.GRPC, a)
	}

	if c.HTTP != nil {
		c.HTTP.GET("/rooms", a.listRooms)
		c.HTTP.GET("/leaderboard", a.getLeaderboard)
		if a.hs != nil {
			c.HTTP.GET("/players/:nickname/games", a.listGames)
		}
		if a.hub != nil && a.director != nil {
			c.HTTP.GET("/ws", a.serveWS)
		}
	}

	return a
}

func (a *API) ListPublicRooms(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	s, err := toStruct(ListRoomsResponse{Rooms: a.rooms.ListPublic()})
	if err != nil {
		return nil, errors.Internal(err)
	}
	return s, nil
}

func (a *API) GetLeaderboard(ctx context.Context, req *wrapperspb.Int32Value) (*structpb.Struct, error) {
	limit, err := leaderboardLimit(int(req.GetValue()))
	if err != nil {
		return nil, err
	}

	entries, err := a.ls.Snapshot(ctx, leaderboard.SnapshotRequest{Limit: limit})
	if err != nil {
		return nil, errors.Internal(err)
	}

	s, err := toStruct(LeaderboardResponse{Entries: entries})
	if err != nil {
		return nil, errors.Internal(err)
	}
	return s, nil
}

func (a *API) listRooms(c *gin.Context) {
	c.JSON(http.StatusOK, ListRoomsResponse{Rooms: a.rooms.ListPublic()})
}

func (a *API) getLeaderboard(c *gin.Context) {
	var limit int
	if q := c.Query("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil {
			writeError(c, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("limit must be a number")))
			return
		}
		limit = n
	}

	limit, err := leaderboardLimit(limit)
	if err != nil {
		writeError(c, err)
		return
	}

	entries, err := a.ls.Snapshot(c.Request.Context(), leaderboard.SnapshotRequest{Limit: limit})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, LeaderboardResponse{Entries: entries})
}

func (a *API) listGames(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	games, err := a.hs.ListGames(c.Request.Context(), history.ListGamesRequest{
		Nickname: c.Param("nickname"),
		Limit:    limit,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, ListGamesResponse{Games: games})
}

func (a *API) serveWS(c *gin.Context) {
	a.hub.Serve(c.Writer, c.Request, a.director)
}

// leaderboardLimit defaults a zero limit and rejects negative or oversized ones.
func leaderboardLimit(n int) (int, error) {
	switch {
	case n == 0:
		return defaultLeaderboardLimit, nil
	case n < 0 || n > maxLeaderboardLimit:
		return 0, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("limit must be between 1 and %d", maxLeaderboardLimit))
	}
	return n, nil
}

func writeError(c *gin.Context, err error) {
	e := errors.Convert(err)
	if e.Code == errors.CodeInternal {
		slog.ErrorContext(c.Request.Context(), "api: request failed",
			"path", c.FullPath(),
			"error", err,
		)
	}

	c.AbortWithStatusJSON(e.HTTPStatusCode(), ErrorResponse{Error: e.Message})
}
