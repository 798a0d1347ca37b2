package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"example.com/roomchat/internal/api"
	"example.com/roomchat/pkg/auth"
	"example.com/roomchat/pkg/config"
	"example.com/roomchat/pkg/server"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	serverCtx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)
	defer stop()

	db, err := sql.Open("sqlite3", "file:"+cfg.SQLite.File)
	if err != nil {
		logger.Error("open db", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	goose.SetBaseFS(os.DirFS(cfg.SQLite.Migrations))

	if err := goose.SetDialect("sqlite3"); err != nil {
		logger.Error("goose dialect", slog.Any("error", err))
		os.Exit(1)
	}

	if err := goose.Up(db, "."); err != nil {
		logger.Error("migrate up", slog.Any("error", err))
		os.Exit(1)
	}

	apiConfig := api.ApiConfig{
		TokenOptions: auth.TokenOptions{
			Secret: cfg.Auth.Secret,
			Exp:    cfg.Auth.Exp,
		},
		AllowedOrigins: cfg.AllowedOrigins,
	}
	_api := api.NewApi(serverCtx, db, apiConfig, logger)

	r := chi.NewRouter()
	r.Mount("/api", _api.Mux())

	srv := server.Server{
		Server: &http.Server{
			Handler: r,
			Addr:    cfg.Addr(),
		},
		Logger: logger,
	}

	srv.Start(serverCtx)
}
