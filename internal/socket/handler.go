package socket

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// pongWait is how long a client may stay silent before it is dropped.
const pongWait = 60 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler upgrades GET /ws?view={id} and keeps the connection registered
// until the client goes away.
type Handler struct {
	Hub *Hub
	// ViewExists rejects subscriptions to unknown views when set.
	ViewExists func(id string) bool
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	viewID := r.URL.Query().Get("view")
	if viewID == "" {
		http.Error(w, "view is required", http.StatusBadRequest)
		return
	}
	if h.ViewExists != nil && !h.ViewExists(viewID) {
		http.Error(w, "view not found", http.StatusNotFound)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to upgrade connection")
		return
	}

	unregister := h.Hub.Register(viewID, ws)
	defer func() {
		unregister()
		ws.Close()
	}()

	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPingHandler(func(appData string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return ws.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
	})

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("view", viewID).Msg("Unexpected websocket close")
			}
			return
		}
		ws.SetReadDeadline(time.Now().Add(pongWait))
	}
}
