// Package ws bridges WebSocket connections to the room: a reader loop
// decoding inbound envelopes into room messages, and a writer goroutine
// draining the room's per-connection outbox.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prettylittleliars/backend/internal/protocol"
	"github.com/prettylittleliars/backend/internal/room"
)

const writeTimeout = 5 * time.Second

func Handler(rm *room.Room, originPatterns []string, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			log.Debug("websocket accept", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		connID := uuid.NewString()
		out := make(chan protocol.Event, 16)

		rm.Inbox() <- room.Connect{ConnID: connID, Outbox: out}
		defer func() { rm.Inbox() <- room.Disconnect{ConnID: connID} }()

		// Writer goroutine. The room closes the outbox when it drops us.
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for evt := range out {
				payload, err := json.Marshal(evt)
				if err != nil {
					continue
				}
				ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
				_ = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
		}()

		// Reader loop. Players sit idle between votes, so reads carry no
		// deadline of their own; the connection ends when the peer goes away.
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				return
			}

			var evt protocol.Event
			if err := json.Unmarshal(data, &evt); err != nil {
				_ = conn.Write(r.Context(), websocket.MessageText,
					[]byte(`{"type":"error","payload":{"message":"bad json"}}`))
				continue
			}

			rm.Inbox() <- room.FromClient{ConnID: connID, Event: evt}
		}
	}
}
