package telemetry_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/victornm/sketch/internal/domain"
	"github.com/victornm/sketch/internal/event"
	"github.com/victornm/sketch/internal/telemetry"
)

func TestGameMetrics(t *testing.T) {
	ctx := context.Background()
	eb := event.NewBus()
	m := telemetry.NewGameMetrics(prometheus.NewRegistry(), eb)

	eb.Publish(ctx, domain.EventRoomCreated{RoomID: "r1", Difficulty: domain.DifficultyHard})
	eb.Publish(ctx, domain.EventRoomCreated{RoomID: "r2", Difficulty: domain.DifficultyEasy})
	eb.Publish(ctx, domain.EventRoundEnded{RoomID: "r1", Round: 1, Reason: domain.RoundEndGuessed})
	eb.Publish(ctx, domain.EventRoundEnded{RoomID: "r1", Round: 2, Reason: domain.RoundEndTimeout})
	eb.Publish(ctx, domain.EventRoundEnded{RoomID: "r2", Round: 1, Reason: domain.RoundEndGuessed})
	eb.Publish(ctx, domain.EventGameFinished{RoomID: "r1", Difficulty: domain.DifficultyHard})
	eb.Publish(ctx, domain.EventRoomClosed{RoomID: "r2"})
	eb.Stop()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.RoomsOpen))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RoomsCreated.WithLabelValues("hard")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.RoundsEnded.WithLabelValues("guessed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RoundsEnded.WithLabelValues("timeout")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.GamesFinished.WithLabelValues("hard")))
}
