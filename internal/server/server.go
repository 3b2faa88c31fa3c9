package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/victornm/sketch/internal/api"
	"github.com/victornm/sketch/internal/event"
	"github.com/victornm/sketch/internal/game"
	"github.com/victornm/sketch/internal/history"
	"github.com/victornm/sketch/internal/leaderboard"
	"github.com/victornm/sketch/internal/room"
	"github.com/victornm/sketch/internal/telemetry"
	"github.com/victornm/sketch/internal/words"
)

type Config struct {
	HTTP struct {
		Port int32
		// AllowOrigins feeds CORS for browser clients, "*" allows any origin.
		AllowOrigins []string
	}

	GRPC struct {
		Port int32
	}

	Log telemetry.LogConfig

	Redis struct {
		Leaderboard struct {
			Addrs  []string
			Pass   string
			Prefix string
		}

		// Pubsub mirrors outbound notifications for external gateways.
		Pubsub struct {
			Enabled   bool
			Addrs     []string
			Pass      string
			Prefix    string
			QueueSize int
		}
	}

	Postgres struct {
		// History archives finished games. Optional.
		History struct {
			Enabled bool
			Addr    string
			User    string
			Pass    string
			Name    string
		}
	}

	Hub struct {
		SendBuffer int
		RateLimit  float64
		RateBurst  int
	}

	Words struct {
		Candidates int
	}

	Game game.Tuning
}

// DefaultConfig is what Load starts from before the file and the environment.
func DefaultConfig() Config {
	var c Config
	c.HTTP.Port = 8080
	c.HTTP.AllowOrigins = []string{"*"}
	c.GRPC.Port = 8081
	c.Log.Level = "info"
	c.Log.Format = "text"
	c.Redis.Leaderboard.Addrs = []string{"localhost:6379"}
	c.Redis.Leaderboard.Prefix = "sketch"
	c.Redis.Pubsub.Addrs = []string{"localhost:6379"}
	c.Redis.Pubsub.Prefix = "sketch:pubsub"
	c.Words.Candidates = 3
	c.Game = game.DefaultTuning()
	return c
}

type Server struct {
	c Config

	eb      *event.Bus
	metrics *prometheus.Registry

	infra struct {
		redis struct {
			leaderboard redis.UniversalClient
			pubsub      redis.UniversalClient
		}

		postgres struct {
			history *pgxpool.Pool
		}
	}

	service struct {
		rooms       *room.Registry
		words       *words.Bank
		leaderboard *leaderboard.Service
		history     *history.Service
		director    *game.Director
	}

	transport struct {
		hub       *api.Hub
		publisher *api.Publisher
	}

	http *http.Server
	grpc *grpc.Server
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}

	if err := telemetry.SetupLogger(c.Log); err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	if err := c.Game.Validate(); err != nil {
		return nil, fmt.Errorf("server: game tuning: %w", err)
	}

	s.eb = event.NewBus()
	s.metrics = prometheus.NewRegistry()
	s.metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	if err := s.initService(); err != nil {
		return nil, fmt.Errorf("server: init service: %w", err)
	}

	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := s.initPostgres(); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}

	return nil
}

func (s *Server) initRedis() error {
	connect := func(name string, addrs []string, pass string) (redis.UniversalClient, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		r := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    addrs,
			Password: pass,
		})

		if err := telemetry.MonitorRedis(r, name); err != nil {
			return nil, err
		}

		if err := r.Ping(ctx).Err(); err != nil {
			return nil, err
		}

		return r, nil
	}

	var err error
	s.infra.redis.leaderboard, err = connect("leaderboard", s.c.Redis.Leaderboard.Addrs, s.c.Redis.Leaderboard.Pass)
	if err != nil {
		return fmt.Errorf("leaderboard: %w", err)
	}

	if s.c.Redis.Pubsub.Enabled {
		s.infra.redis.pubsub, err = connect("pubsub", s.c.Redis.Pubsub.Addrs, s.c.Redis.Pubsub.Pass)
		if err != nil {
			return fmt.Errorf("pubsub: %w", err)
		}
	}

	return nil
}

func (s *Server) initPostgres() (err error) {
	connect := func(addr, user, pass, name string) (*pgxpool.Pool, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		cc, err := pgxpool.ParseConfig(fmt.Sprintf("postgres://%s:%s@%s/%s", user, pass, addr, name))
		if err != nil {
			return nil, err
		}

		db, err := pgxpool.NewWithConfig(ctx, cc)
		if err != nil {
			return nil, err
		}

		if err := db.Ping(ctx); err != nil {
			return nil, err
		}

		return db, nil
	}

	h := s.c.Postgres.History
	if !h.Enabled {
		return nil
	}

	s.infra.postgres.history, err = connect(h.Addr, h.User, h.Pass, h.Name)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}

	return nil
}

func (s *Server) initService() error {
	gm := telemetry.NewGameMetrics(s.metrics, s.eb)

	s.service.rooms = room.NewRegistry()
	s.service.words = words.NewBank(words.Config{
		Candidates: s.c.Words.Candidates,
	})

	s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
		EventBus: s.eb,
		Redis:    s.infra.redis.leaderboard,
		Prefix:   s.c.Redis.Leaderboard.Prefix,
	})

	if s.infra.postgres.history != nil {
		s.service.history = history.NewService(history.Config{
			DB:       s.infra.postgres.history,
			EventBus: s.eb,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.service.history.Migrate(ctx); err != nil {
			return err
		}
	}

	s.transport.hub = api.NewHub(api.HubConfig{
		SendBuffer: s.c.Hub.SendBuffer,
		RateLimit:  s.c.Hub.RateLimit,
		RateBurst:  s.c.Hub.RateBurst,
		Dropped:    gm.Dropped.WithLabelValues("websocket"),
	})
	transports := game.Fanout{s.transport.hub}

	if s.infra.redis.pubsub != nil {
		s.transport.publisher = api.NewPublisher(api.PublisherConfig{
			Redis:     s.infra.redis.pubsub,
			Prefix:    s.c.Redis.Pubsub.Prefix,
			QueueSize: s.c.Redis.Pubsub.QueueSize,
			Dropped:   gm.Dropped.WithLabelValues("pubsub"),
		})
		transports = append(transports, s.transport.publisher)
	}

	s.service.director = game.NewDirector(game.Config{
		Registry:  s.service.rooms,
		Words:     s.service.words,
		Transport: transports,
		EventBus:  s.eb,
		Tuning:    s.c.Game,
	})

	s.metrics.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "sketch",
			Name:      "connections_open",
			Help:      "Open WebSocket connections.",
		}, func() float64 { return float64(s.transport.hub.Len()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "sketch",
			Name:      "rooms_registered",
			Help:      "Rooms in the registry.",
		}, func() float64 { return float64(s.service.rooms.Len()) }),
	)

	return nil
}

func (s *Server) initAPI() {
	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics, promhttp.HandlerOpts{})))
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery())
	if len(s.c.HTTP.AllowOrigins) > 0 {
		e.Use(cors.New(cors.Config{
			AllowOrigins: s.c.HTTP.AllowOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodOptions},
			AllowHeaders: []string{"Content-Type", "Upgrade", "Connection"},
			MaxAge:       12 * time.Hour,
		}))
	}

	s.grpc = grpc.NewServer(telemetry.GRPCServerInterceptor())

	api.New(api.Config{
		GRPC:        s.grpc,
		HTTP:        e,
		Rooms:       s.service.rooms,
		Leaderboard: s.service.leaderboard,
		History:     s.service.history,
		Hub:         s.transport.hub,
		Director:    s.service.director,
	})

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) Start() {
	ctx := context.TODO()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.c.GRPC.Port))
	if err != nil {
		slog.ErrorContext(ctx, "grpc server: listen failed", "error", err)
		panic(err)
	}

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: gRPC listening on port %d", s.c.GRPC.Port))
		return s.grpc.Serve(lis)
	})

	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if s.transport.publisher != nil {
		eg.Go(func() error {
			return s.transport.publisher.Run(context.WithoutCancel(ctx))
		})
	}

	err = eg.Wait()
	if err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.grpc.GracefulStop()
	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	// hijacked WebSocket connections are not closed by http.Server.Shutdown.
	// Close returns once every room has been left, so no round timer or
	// disconnect publishes on the bus after this point.
	s.transport.hub.Close()
	if s.transport.publisher != nil {
		s.transport.publisher.Close()
	}

	s.eb.Stop()

	if err := s.infra.redis.leaderboard.Close(); err != nil {
		slog.ErrorContext(ctx, "server: close leaderboard redis failed", "error", err)
	}
	if s.infra.redis.pubsub != nil {
		if err := s.infra.redis.pubsub.Close(); err != nil {
			slog.ErrorContext(ctx, "server: close pubsub redis failed", "error", err)
		}
	}
	if s.infra.postgres.history != nil {
		s.infra.postgres.history.Close()
	}

	slog.InfoContext(ctx, "server: shutdown completed")
}
