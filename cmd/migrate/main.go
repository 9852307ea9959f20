package main

import (
	"context"
	"database/sql"
	"embed"
	"flag"
	"fmt"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"

	"github.com/topup-ng/topup_ng/internal/config"
	"github.com/topup-ng/topup_ng/internal/logging"
)

//go:embed migrations/*.sql
var migrations embed.FS

func main() {
	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command: up|down|status|version")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel)

	if cfg.DatabaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		logger.Error("set goose dialect", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if err := goose.RunContext(ctx, *cmd, db, "migrations"); err != nil {
		logger.Error("migration failed", "cmd", *cmd, "error", err)
		os.Exit(1)
	}

	logger.Info("migration complete", "cmd", *cmd)
}
