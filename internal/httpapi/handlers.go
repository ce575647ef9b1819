package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prettylittleliars/backend/internal/room"
)

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		Status string `json:"status"`
	}{Status: "ok"})
}

// StateSnapshot returns the current session as JSON. Handy for the manager
// console's first paint and for poking at a live show from curl.
func StateSnapshot(rm *room.Room) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reply := make(chan room.View, 1)
		rm.Inbox() <- room.GetView{Reply: reply}

		select {
		case view := <-reply:
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(view.State)
		case <-time.After(2 * time.Second):
			http.Error(w, "state unavailable", http.StatusServiceUnavailable)
		}
	}
}
