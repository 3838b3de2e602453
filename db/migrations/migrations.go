package migrations

import (
	"database/sql"
	"log/slog"
	"os"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

// Run applies every migration from ./migrations against POSTGRES_CONN.
func Run() {
	db, err := sql.Open("postgres", os.Getenv("POSTGRES_CONN"))
	if err != nil {
		slog.Error("failed to open db", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		slog.Error("failed to set dialect", "error", err)
		os.Exit(1)
	}

	migrationDir := "./migrations"

	slog.Info("running migrations", "dir", migrationDir)
	if err := goose.Up(db, migrationDir); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
}
