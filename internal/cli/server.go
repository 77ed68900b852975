package cli

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mitjasha/Qui3zBot/internal/catalog"
	"github.com/mitjasha/Qui3zBot/internal/config"
	"github.com/mitjasha/Qui3zBot/internal/game"
	"github.com/mitjasha/Qui3zBot/internal/infra/memory"
	"github.com/mitjasha/Qui3zBot/internal/infra/postgres"
	redisinfra "github.com/mitjasha/Qui3zBot/internal/infra/redis"
	"github.com/mitjasha/Qui3zBot/internal/transport/ws"
)

// NewServeCmd builds the CLI subcommand to start the game server.
func NewServeCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the trivia game server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	catalogPath := cfg.Quiz.CatalogPath
	if catalogPath == "" {
		catalogPath = "questions"
	}
	cat, err := catalog.Load(catalogPath)
	if err != nil {
		return err
	}
	log.Printf("catalog: %d questions loaded from %s", cat.Len(), catalogPath)

	var states game.StateStore = memory.NewStateStore()
	if cfg.Redis.Addr != "" {
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		states = redisinfra.NewStateStore(client)
	}

	var ledger game.ScoreLedger = memory.NewLedger()
	var sessions game.SessionStore = memory.NewSessionStore()
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		store := postgres.NewStore(pool)
		ledger = store
		sessions = store
	}

	hub := ws.NewHub()
	engine := game.New(game.Config{
		QuestionTTL:  config.DurationOr(cfg.Quiz.QuestionTTL, 0),
		PauseBetween: config.DurationOr(cfg.Quiz.PauseBetween, 0),
		MaxPoints:    cfg.Quiz.MaxPoints,
		MinPoints:    cfg.Quiz.MinPoints,
	}, cat, ledger, sessions, states, hub)

	if err := engine.Init(ctx); err != nil {
		return err
	}
	if cfg.Quiz.Channel != "" && engine.Channel() == "" {
		if err := engine.Bind(ctx, cfg.Quiz.Channel); err != nil {
			return err
		}
	}

	handler := ws.NewHandler(engine, hub)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", handler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	runCtx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return engine.RunHintTicker(gctx) })
	g.Go(func() error { return engine.RunTimeoutTicker(gctx) })
	g.Go(func() error {
		log.Printf("starting trivia server on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}
	return nil
}
