package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialLiveSearch(t *testing.T, h *harness) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(h.server.Handler())
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/search"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readReply(t *testing.T, conn *websocket.Conn) searchReply {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var reply searchReply
	require.NoError(t, conn.ReadJSON(&reply))
	return reply
}

func TestLiveSearchDebouncesAndFilters(t *testing.T) {
	h := newHarness(t)
	h.seed()
	conn := dialLiveSearch(t, h)

	for _, q := range []string{"j", "jh", "jha"} {
		require.NoError(t, conn.WriteJSON(searchRequest{Type: "input", Query: q}))
	}

	// "j" is below the minimum and answers with a hint straight away.
	hint := readReply(t, conn)
	assert.Equal(t, "hint", hint.Type)
	assert.Equal(t, "Type at least 2 characters to search", hint.Message)

	// A slow scheduler may let "jh" through first; the final query wins.
	res := readReply(t, conn)
	for res.Type == "results" && res.Query != "jha" {
		res = readReply(t, conn)
	}
	assert.Equal(t, "results", res.Type)
	assert.Equal(t, "jha", res.Query)
	assert.Equal(t, 1, res.Total)
	assert.Contains(t, res.HTML, "Ravi Kumar Jha")
	assert.Equal(t, 1, countCards(res.HTML))
}

func TestLiveSearchCategoryAppliesImmediately(t *testing.T) {
	h := newHarness(t)
	h.seed()
	conn := dialLiveSearch(t, h)

	require.NoError(t, conn.WriteJSON(searchRequest{Type: "category", Category: "Performers"}))
	res := readReply(t, conn)
	assert.Equal(t, "results", res.Type)
	assert.Equal(t, 3, res.Total)

	require.NoError(t, conn.WriteJSON(searchRequest{Type: "input", Query: "maya"}))
	res = readReply(t, conn)
	assert.Equal(t, 1, res.Total)
	assert.Contains(t, res.HTML, "Maya Rana")

	require.NoError(t, conn.WriteJSON(searchRequest{Type: "category", Category: "Poets"}))
	res = readReply(t, conn)
	assert.Zero(t, res.Total)
	assert.Contains(t, res.HTML, `No speakers match "maya".`)

	// Clearing the box restores the whole category.
	require.NoError(t, conn.WriteJSON(searchRequest{Type: "input", Query: ""}))
	res = readReply(t, conn)
	assert.Equal(t, 3, res.Total)
}

func TestLiveSearchRejectsUnknownMessages(t *testing.T) {
	h := newHarness(t)
	conn := dialLiveSearch(t, h)

	require.NoError(t, conn.WriteJSON(searchRequest{Type: "subscribe"}))
	reply := readReply(t, conn)
	assert.Equal(t, "error", reply.Type)
}

func TestLiveSearchRejectsForeignOrigin(t *testing.T) {
	h := newHarness(t)
	srv := httptest.NewServer(h.server.Handler())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/search"
	header := http.Header{"Origin": {"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestWebSocketOriginCheck(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://festival.test/ws/search", nil)
	assert.True(t, isWebSocketOriginAllowed(r))

	r.Header.Set("Origin", "http://festival.test")
	assert.True(t, isWebSocketOriginAllowed(r))

	r.Header.Set("Origin", "http://other.test")
	assert.False(t, isWebSocketOriginAllowed(r))

	r.Header.Set("Origin", "::not a url")
	assert.False(t, isWebSocketOriginAllowed(r))
}

func TestWebsocketSourcesForHost(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://festival.test:8080/", nil)
	assert.Equal(t, "ws://festival.test:8080 wss://festival.test:8080", websocketSourcesForHost(r))

	r.Host = "evil.test; script-src *"
	assert.Empty(t, websocketSourcesForHost(r))
}
