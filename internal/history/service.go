package history

import (
	"context"
	"embed"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/victornm/sketch/internal/domain"
	"github.com/victornm/sketch/internal/errors"
	"github.com/victornm/sketch/internal/event"
)

//go:embed migrations/*.sql
var migrations embed.FS

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type Config struct {
	DB       *pgxpool.Pool
	EventBus *event.Bus
}

// Service archives finished games. Live room state is never stored.
type Service struct {
	db *pgxpool.Pool
	eb *event.Bus
}

func NewService(c Config) *Service {
	s := &Service{
		db: c.DB,
		eb: c.EventBus,
	}

	s.eb.Subscribe(domain.EventNameGameFinished, func(ctx context.Context, e event.Event) error {
		gf := e.(domain.EventGameFinished)
		id, err := s.Archive(ctx, gf)
		if err != nil {
			slog.ErrorContext(ctx, "history: archive failed", "room", gf.RoomID, "error", err)
			return err
		}
		slog.DebugContext(ctx, "history: game archived", "room", gf.RoomID, "game", id)
		return nil
	})

	return s
}

// Migrate applies the pending archive migrations.
func (s *Service) Migrate(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(s.db)
	defer db.Close()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("migrate history: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("migrate history: %w", err)
	}
	return nil
}

// Archive stores a finished game with its final scores and returns the game ID.
func (s *Service) Archive(ctx context.Context, e domain.EventGameFinished) (_ string, err error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate game ID: %w", err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = stderrors.Join(err, tx.Rollback(ctx))
		}
	}()

	const (
		insGameStmt   = `INSERT INTO games (game_id, room_id, difficulty, rounds, winner, finish_time) VALUES ($1, $2, $3, $4, $5, $6);`
		insPlayerStmt = `INSERT INTO games_players (game_id, position, conn_id, nickname, score) VALUES ($1, $2, $3, $4, $5);`
	)

	_, err = tx.Exec(ctx, insGameStmt, id, e.RoomID, string(e.Difficulty), e.Rounds, e.Winner.Nickname, e.FinishTime)
	if err != nil {
		return "", fmt.Errorf("insert game: %w", err)
	}

	b := &pgx.Batch{}
	for i, sc := range e.Scores {
		b.Queue(insPlayerStmt, id, i, sc.ConnID, sc.Nickname, sc.Score)
	}
	if err = tx.SendBatch(ctx, b).Close(); err != nil {
		return "", fmt.Errorf("insert players: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return id.String(), nil
}

type ListGamesRequest struct {
	Nickname string
	Limit    int
}

// ListGames returns the most recent games the nickname played in, newest first.
func (s *Service) ListGames(ctx context.Context, req ListGamesRequest) ([]domain.GameRecord, error) {
	if req.Nickname == "" {
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("nickname is required"))
	}

	limit := req.Limit
	switch {
	case limit <= 0:
		limit = defaultListLimit
	case limit > maxListLimit:
		limit = maxListLimit
	}

	const stmt = `
SELECT g.game_id::text, g.room_id, g.difficulty, g.rounds, g.winner, p.score, g.finish_time
FROM games_players p
JOIN games g ON g.game_id = p.game_id
WHERE p.nickname = $1
ORDER BY g.finish_time DESC
LIMIT $2;`

	rows, err := s.db.Query(ctx, stmt, req.Nickname, limit)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}

	games, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.GameRecord, error) {
		var g domain.GameRecord
		if err := r.Scan(&g.GameID, &g.RoomID, &g.Difficulty, &g.Rounds, &g.Winner, &g.Score, &g.FinishTime); err != nil {
			return domain.GameRecord{}, err
		}
		return g, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}

	return games, nil
}
