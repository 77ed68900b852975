package migrations

import (
	"context"
	_ "embed"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

//go:embed 0001_create_score_tables.sql
var createScoreTablesSQL string

var Migrations = migrate.NewMigrations()

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.Exec(createScoreTablesSQL)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.Exec(`
				DROP TABLE IF EXISTS points_events;
				DROP TABLE IF EXISTS session_scores;
				DROP TABLE IF EXISTS sessions;
				DROP TABLE IF EXISTS scores;
				DROP TABLE IF EXISTS users;
			`)
			return err
		},
	)
}
