// cmd/migrate/main.go
package main

import (
	"card-rewards/internal/config"
	"database/sql"
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

func main() {
	cfg := config.MustLoad()
	slog.SetDefault(config.NewLogger(cfg))

	// up | down | status
	command := flag.String("command", "up", "goose command: up, down or status")
	flag.Parse()

	db, err := sql.Open("pgx", cfg.DBConn)
	if err != nil {
		slog.Error("Failed to open DB", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	migrationsDir := cfg.MigrationsDir
	if !filepath.IsAbs(migrationsDir) {
		wd, err := os.Getwd()
		if err != nil {
			slog.Error("Failed to get working directory", "error", err)
			os.Exit(1)
		}
		migrationsDir = filepath.Join(wd, migrationsDir)
	}

	if err := goose.SetDialect("postgres"); err != nil {
		slog.Error("Failed to set dialect", "error", err)
		os.Exit(1)
	}

	slog.Info("Running migrations", "dir", migrationsDir, "command", *command)
	if err := goose.Run(*command, db, migrationsDir); err != nil {
		slog.Error("Migrations failed", "error", err)
		os.Exit(1)
	}
	slog.Info("✅ Migrations applied")
}
