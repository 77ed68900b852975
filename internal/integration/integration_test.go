package integration

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"github.com/mitjasha/Qui3zBot/internal/catalog"
	"github.com/mitjasha/Qui3zBot/internal/game"
	infrapg "github.com/mitjasha/Qui3zBot/internal/infra/postgres"
	pgmigrations "github.com/mitjasha/Qui3zBot/internal/infra/postgres/migrations"
	infraredis "github.com/mitjasha/Qui3zBot/internal/infra/redis"
)

const sampleCatalog = `{"questions": [
	{"id": "q1", "category": "Geo", "question": "Capital of Russia?", "answers": ["Moscow"], "aliases": ["Москва"], "tags": ["capitals"]}
]}`

type recorder struct {
	mu    sync.Mutex
	texts []string
}

func (r *recorder) Publish(_ context.Context, _ string, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
	return nil
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.texts))
	copy(out, r.texts)
	return out
}

func (r *recorder) contains(substr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.texts {
		if strings.Contains(t, substr) {
			return true
		}
	}
	return false
}

func TestGameRoundEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	applyMigrations(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()
	store := infrapg.NewStore(pool)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	states := infraredis.NewStateStore(redisClient)

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "questions.json"), []byte(sampleCatalog), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	cat, err := catalog.Load(dir)
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}

	pub := &recorder{}
	engine := game.New(game.Config{QuestionTTL: time.Minute}, cat, store, store, states, pub)
	if err := engine.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := engine.Bind(ctx, "lobby"); err != nil {
		t.Fatalf("bind: %v", err)
	}

	scope, err := engine.ResolveScope("Geo")
	if err != nil {
		t.Fatalf("resolve scope: %v", err)
	}
	if err := engine.StartGame(ctx, scope, 1); err != nil {
		t.Fatalf("start: %v", err)
	}
	sessionID := engine.State().SessionID

	won, err := engine.Submit(ctx, "lobby", "u1", "Alice", "  МОСКВА! ")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !won {
		t.Fatalf("expected the alias to win")
	}
	if !pub.contains("Alice answered first") {
		t.Fatalf("winner announcement missing: %v", pub.snapshot())
	}

	// All three score scopes must hold the same delta.
	lifetime, err := store.TopLifetime(ctx, "lobby", 10)
	if err != nil {
		t.Fatalf("top lifetime: %v", err)
	}
	if len(lifetime) != 1 || lifetime[0].UserID != "u1" || lifetime[0].Points != 5 {
		t.Fatalf("unexpected lifetime board: %+v", lifetime)
	}
	if lifetime[0].DisplayName != "Alice" {
		t.Fatalf("display name not joined: %+v", lifetime[0])
	}

	session, err := store.TopSession(ctx, sessionID, 10)
	if err != nil {
		t.Fatalf("top session: %v", err)
	}
	if len(session) != 1 || session[0].Points != 5 {
		t.Fatalf("unexpected session board: %+v", session)
	}

	from, to := game.DayRange(time.Now())
	window, err := store.TopWindow(ctx, "lobby", from, to, 10)
	if err != nil {
		t.Fatalf("top window: %v", err)
	}
	if len(window) != 1 || window[0].Points != 5 {
		t.Fatalf("unexpected day board: %+v", window)
	}

	// One round means winning it ends the game after the pause.
	deadline := time.Now().Add(10 * time.Second)
	for engine.State().Active {
		if time.Now().After(deadline) {
			t.Fatalf("game did not finish: %+v", engine.State())
		}
		time.Sleep(20 * time.Millisecond)
	}
	if !pub.contains("Game over") {
		t.Fatalf("final standings missing: %v", pub.snapshot())
	}

	var endedAt *time.Time
	if err := pool.QueryRow(ctx, `SELECT ended_at FROM sessions WHERE id = $1`, sessionID).Scan(&endedAt); err != nil {
		t.Fatalf("query session: %v", err)
	}
	if endedAt == nil {
		t.Fatalf("session not closed")
	}

	// The shared round state in Redis is back to the inactive baseline.
	st, err := states.LoadState(ctx)
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	if st.Active || st.SessionID != "" {
		t.Fatalf("state not reset: %+v", st)
	}
}

func applyMigrations(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
