package api

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/cors"

	"example.com/roomchat/pkg/auth"
	"example.com/roomchat/pkg/chat"
	"example.com/roomchat/pkg/user"
)

type ApiConfig struct {
	TokenOptions   auth.TokenOptions
	AllowedOrigins []string
}

type Api struct {
	db      *sql.DB
	mux     *ApiMux
	context context.Context
	config  ApiConfig
	logger  *slog.Logger

	registry *chat.Registry
}

func NewApi(ctx context.Context, db *sql.DB, config ApiConfig, logger *slog.Logger) *Api {
	if logger == nil {
		logger = slog.Default()
	}
	api := &Api{
		db:      db,
		mux:     NewApiRouter(),
		context: ctx,
		config:  config,
		logger:  logger,
	}
	api.mountHandlers()
	return api
}

func (a *Api) Mux() http.Handler {
	return a.mux
}

// Registry exposes the presence registry, e.g. for shutdown bookkeeping.
func (a *Api) Registry() *chat.Registry {
	return a.registry
}

func (a *Api) mountHandlers() {
	userStore := user.NewSQLiteUserStore(a.db)
	_auth := auth.NewSimpleAuth(userStore, a.config.TokenOptions)

	messageStore := chat.NewSQLiteMessageStore(a.db)
	registry := chat.NewRegistry()
	broadcaster := chat.NewBroadcaster(registry, a.logger)
	a.registry = registry

	userHandler := NewUserHandler(userStore, _auth)
	chatHandler := NewChatHandler(a.context, registry, messageStore, broadcaster, a.logger)

	allowedOrigins := a.config.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	a.mux.Router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
	}))

	a.mux.Route("/users", func(r *ApiMux) {
		r.Post("/signup", userHandler.SignupHandler)
		r.Post("/signin", userHandler.SigninHandler)

		r.With(JWTMiddleware(_auth)).Get("/me", userHandler.MeHandler)
	})

	a.mux.With(JWTMiddleware(_auth)).Get("/rooms", chatHandler.RoomsHandler)
	a.mux.With(JWTMiddleware(_auth)).Get("/ws/{room}", chatHandler.ServeWSHandler)
}
