package leaderboard

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/sketch/internal/domain"
	"github.com/victornm/sketch/internal/event"
)

type Config struct {
	EventBus *event.Bus
	Redis    redis.UniversalClient
	Prefix   string
}

// Service is the global leaderboard: the best score ever recorded per
// nickname, across every finished game. Entries only go up.
type Service struct {
	eb     *event.Bus
	redis  redis.UniversalClient
	prefix string
}

func NewService(c Config) *Service {
	s := &Service{
		eb:     c.EventBus,
		redis:  c.Redis,
		prefix: c.Prefix,
	}

	s.eb.Subscribe(domain.EventNameGameFinished, func(ctx context.Context, e event.Event) error {
		gf := e.(domain.EventGameFinished)
		if err := s.Merge(ctx, gf.Scores); err != nil {
			slog.ErrorContext(ctx, "leaderboard: merge failed", "room", gf.RoomID, "error", err)
			return err
		}
		return nil
	})

	return s
}

// Merge keeps, for every nickname, the maximum of its recorded score and the
// given one. ZADD GT makes each entry update atomic, so games finishing in
// different rooms at the same time can merge concurrently.
func (s *Service) Merge(ctx context.Context, scores []domain.PlayerScore) error {
	if len(scores) == 0 {
		return nil
	}

	members := make([]redis.Z, 0, len(scores))
	for _, sc := range scores {
		members = append(members, redis.Z{
			Score:  float64(sc.Score),
			Member: sc.Nickname,
		})
	}

	// TODO: retry on error
	if err := s.redis.ZAddGT(ctx, s.key(), members...).Err(); err != nil {
		return fmt.Errorf("merge leaderboard: %w", err)
	}
	return nil
}

type SnapshotRequest struct {
	// Limit caps the number of entries. Zero or less returns all of them.
	Limit int
}

// Snapshot returns the entries ordered by score, highest first.
func (s *Service) Snapshot(ctx context.Context, req SnapshotRequest) ([]domain.LeaderboardEntry, error) {
	stop := int64(-1)
	if req.Limit > 0 {
		stop = int64(req.Limit) - 1
	}

	res, err := s.redis.ZRevRangeWithScores(ctx, s.key(), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("get leaderboard: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(res))
	for _, z := range res {
		entries = append(entries, domain.LeaderboardEntry{
			Nickname: z.Member.(string),
			Score:    int(z.Score),
		})
	}

	return entries, nil
}

func (s *Service) key() string {
	return fmt.Sprintf("%s:leaderboard", s.prefix)
}
