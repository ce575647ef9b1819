package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/prettylittleliars/backend/internal/room"
	"github.com/prettylittleliars/backend/internal/ws"
)

func SetupRoutes(rm *room.Room, originPatterns []string, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", Healthz)
	r.Get("/state", StateSnapshot(rm))
	r.Get("/ws", ws.Handler(rm, originPatterns, log))
	return r
}
