package socket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, srv *httptest.Server, view string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?view=" + view
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readEvent(t *testing.T, ws *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := ws.ReadMessage()
	require.NoError(t, err)
	var ev Event
	require.NoError(t, json.Unmarshal(msg, &ev))
	return ev
}

func TestHubDeliversPerView(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(&Handler{Hub: hub})
	defer srv.Close()

	a := dial(t, srv, "view-a")
	b := dial(t, srv, "view-b")
	require.Eventually(t, func() bool {
		return hub.Subscribers("view-a") == 1 && hub.Subscribers("view-b") == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, hub.Send("view-a", Event{Type: EventFeedUpdated}))
	ev := readEvent(t, a)
	assert.Equal(t, EventFeedUpdated, ev.Type)
	assert.Equal(t, "view-a", ev.View)

	require.NoError(t, hub.Send("view-b", Event{Type: EventCommandOutcome, Data: map[string]any{"id": 7}}))
	ev = readEvent(t, b)
	assert.Equal(t, EventCommandOutcome, ev.Type)
	assert.Equal(t, "view-b", ev.View)

	// view-a saw nothing of view-b's event
	require.NoError(t, a.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := a.ReadMessage()
	assert.Error(t, err)
}

func TestHubUnregistersOnClose(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(&Handler{Hub: hub})
	defer srv.Close()

	ws := dial(t, srv, "v")
	require.Eventually(t, func() bool { return hub.Subscribers("v") == 1 }, time.Second, 5*time.Millisecond)

	ws.Close()
	require.Eventually(t, func() bool { return hub.Subscribers("v") == 0 }, time.Second, 5*time.Millisecond)
	assert.NoError(t, hub.Send("v", Event{Type: EventFeedUpdated}))
}

func TestHandlerRejectsUnknownView(t *testing.T) {
	h := &Handler{Hub: NewHub(), ViewExists: func(string) bool { return false }}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ws?view=nope", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
