package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/victornm/sketch/internal/domain"
	"github.com/victornm/sketch/internal/event"
)

const namespace = "sketch"

// GameMetrics counts room and round lifecycle events from the event bus.
type GameMetrics struct {
	RoomsOpen     prometheus.Gauge
	RoomsCreated  *prometheus.CounterVec
	RoundsEnded   *prometheus.CounterVec
	GamesFinished *prometheus.CounterVec
	Dropped       *prometheus.CounterVec
}

func NewGameMetrics(reg prometheus.Registerer, eb *event.Bus) *GameMetrics {
	m := &GameMetrics{
		RoomsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms_open",
			Help:      "Rooms currently registered.",
		}),
		RoomsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rooms_created_total",
			Help:      "Rooms created, by difficulty.",
		}, []string{"difficulty"}),
		RoundsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_ended_total",
			Help:      "Rounds ended, by reason.",
		}, []string{"reason"}),
		GamesFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_finished_total",
			Help:      "Games played to the last round, by difficulty.",
		}, []string{"difficulty"}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_dropped_total",
			Help:      "Outbound notifications or inbound frames dropped, by transport.",
		}, []string{"transport"}),
	}

	reg.MustRegister(m.RoomsOpen, m.RoomsCreated, m.RoundsEnded, m.GamesFinished, m.Dropped)

	eb.Subscribe(domain.EventNameRoomCreated, func(_ context.Context, e event.Event) error {
		rc := e.(domain.EventRoomCreated)
		m.RoomsOpen.Inc()
		m.RoomsCreated.WithLabelValues(string(rc.Difficulty)).Inc()
		return nil
	})
	eb.Subscribe(domain.EventNameRoomClosed, func(_ context.Context, _ event.Event) error {
		m.RoomsOpen.Dec()
		return nil
	})
	eb.Subscribe(domain.EventNameRoundEnded, func(_ context.Context, e event.Event) error {
		m.RoundsEnded.WithLabelValues(string(e.(domain.EventRoundEnded).Reason)).Inc()
		return nil
	})
	eb.Subscribe(domain.EventNameGameFinished, func(_ context.Context, e event.Event) error {
		m.GamesFinished.WithLabelValues(string(e.(domain.EventGameFinished).Difficulty)).Inc()
		return nil
	})

	return m
}
