package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"example.com/roomchat/pkg/chat"
)

type ChatHandler struct {
	registry    *chat.Registry
	store       chat.MessageStore
	broadcaster *chat.Broadcaster
	upgrader    websocket.Upgrader
	logger      *slog.Logger
	// baseCtx outlives individual requests; sessions use it for store
	// operations because the request context dies with the handler.
	baseCtx context.Context
}

func NewChatHandler(ctx context.Context, registry *chat.Registry, store chat.MessageStore,
	broadcaster *chat.Broadcaster, logger *slog.Logger) *ChatHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatHandler{
		registry:    registry,
		store:       store,
		broadcaster: broadcaster,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger:  logger,
		baseCtx: ctx,
	}
}

type RoomsResponse struct {
	Rooms []string `json:"rooms"`
}

// RoomsHandler lists the rooms that currently have at least one live
// connection. Rooms are emergent from membership; there is no create/delete.
func (h *ChatHandler) RoomsHandler(w http.ResponseWriter, r *http.Request) error {
	return WriteJsonResponse(w, RoomsResponse{Rooms: h.registry.ActiveRooms()})
}

// ServeWSHandler upgrades the request to a websocket connection and runs the
// session loop until the peer disconnects. The username comes from the
// already-verified session token; the chat core trusts it.
func (h *ChatHandler) ServeWSHandler(w http.ResponseWriter, r *http.Request) error {
	session := sessionFromRequest(r)

	room := chi.URLParam(r, "room")
	if room == "" {
		return NewApiError("room is required", http.StatusBadRequest)
	}

	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already written the error response
		h.logger.Error("upgrade", slog.Any("error", err))
		return nil
	}

	conn := chat.NewWSConn(wsConn, h.logger)
	chatSession := chat.NewSession(conn, room, session.Username,
		h.registry, h.store, h.broadcaster, h.logger)
	chatSession.Run(h.baseCtx)

	return nil
}
