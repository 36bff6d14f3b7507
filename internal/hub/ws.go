package hub

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Romanvolodimer/Dispetcher-progecr/internal/logger"
)

const (
	writeTimeout   = 10 * time.Second
	maxCommandSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The console is served from the same origin; tooling connects directly
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS upgrades a connection and bridges it onto the hub: one goroutine
// drains the subscriber channel to the socket, the request goroutine feeds
// incoming commands to the hub until the peer goes away.
func ServeWS(h *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.WithComponent("ws")

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}

		id := uuid.New().String()
		events := h.Register(id)

		go func() {
			for ev := range events {
				conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteJSON(ev); err != nil {
					log.Debug().Err(err).Str("subscriber", id).Msg("subscriber write failed")
					conn.Close()
					return
				}
			}
			// Channel closed by Unregister
			conn.Close()
		}()

		conn.SetReadLimit(maxCommandSize)
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				break
			}
			h.HandleCommand(r.Context(), id, raw)
		}

		h.Unregister(id)
	}
}
