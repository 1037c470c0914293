package web

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/madhesh-litfest/mlf/pkg/collection"
	"github.com/madhesh-litfest/mlf/pkg/content"
	"github.com/madhesh-litfest/mlf/pkg/logging"
	"github.com/madhesh-litfest/mlf/pkg/search"
	"github.com/madhesh-litfest/mlf/pkg/telemetry"
)

const (
	searchWriteWait  = 10 * time.Second
	searchPongWait   = 60 * time.Second
	searchPingPeriod = 54 * time.Second
	searchReadLimit  = 4 << 10
)

var searchUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     isWebSocketOriginAllowed,
}

// searchRequest is a client message: a keystroke ("input") or a category
// chip change ("category").
type searchRequest struct {
	Type     string `json:"type"`
	Query    string `json:"query"`
	Category string `json:"category"`
}

// searchReply carries rendered results, the minimum-length hint, or an error.
type searchReply struct {
	Type    string `json:"type"`
	Query   string `json:"query,omitempty"`
	Total   int    `json:"total"`
	HTML    string `json:"html,omitempty"`
	Message string `json:"message,omitempty"`
}

// liveSearch is one socket. Debounced emissions arrive on timer goroutines,
// so every write goes through writeMu.
type liveSearch struct {
	server    *Server
	conn      *websocket.Conn
	logger    *zap.Logger
	snapshot  collection.Snapshot[content.SpeakerCard]
	lang      content.Language
	debouncer *search.Debouncer

	writeMu sync.Mutex

	mu       sync.Mutex
	category string
}

func (s *Server) handleLiveSearch(w http.ResponseWriter, r *http.Request) {
	conn, err := searchUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("live search upgrade failed", zap.Error(err))
		return
	}
	telemetry.LiveSearchOpened()
	defer telemetry.LiveSearchClosed()

	ls := &liveSearch{
		server:   s,
		conn:     conn,
		logger:   s.logger.Named(logging.ComponentSearch).With(zap.String("request_id", requestIDFromContext(r.Context()))),
		snapshot: collection.Speakers(s.backend.Records, s.logger).Load(r.Context()),
		lang:     prefsFromContext(r.Context()).Lang,
		category: content.AllCategories,
	}
	ls.debouncer = search.New(ls.publish,
		search.WithQuietPeriod(s.cfg.Search.QuietPeriod),
		search.WithMinLength(s.cfg.Search.MinLength),
	)

	done := make(chan struct{})
	go ls.pingLoop(done)
	ls.readLoop()
	ls.debouncer.Stop()
	close(done)

	ls.writeMu.Lock()
	_ = conn.Close()
	ls.writeMu.Unlock()
}

func (ls *liveSearch) readLoop() {
	ls.conn.SetReadLimit(searchReadLimit)
	_ = ls.conn.SetReadDeadline(time.Now().Add(searchPongWait))
	ls.conn.SetPongHandler(func(string) error {
		return ls.conn.SetReadDeadline(time.Now().Add(searchPongWait))
	})

	for {
		var req searchRequest
		if err := ls.conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				ls.logger.Debug("live search closed", zap.Error(err))
			}
			return
		}
		_ = ls.conn.SetReadDeadline(time.Now().Add(searchPongWait))

		switch req.Type {
		case "input":
			if search.BelowMinimum(req.Query, ls.server.cfg.Search.MinLength) {
				ls.write(searchReply{Type: "hint", Message: ls.server.minLengthHint()})
			}
			ls.debouncer.Input(req.Query)
		case "category":
			category := strings.TrimSpace(req.Category)
			if category == "" {
				category = content.AllCategories
			}
			ls.mu.Lock()
			ls.category = category
			ls.mu.Unlock()
			// Category chips apply immediately to the last emitted query.
			ls.publish(ls.debouncer.Last())
		default:
			ls.write(searchReply{Type: "error", Message: "unknown message type"})
		}
	}
}

// publish renders the first page of matches for query.
func (ls *liveSearch) publish(query string) {
	ls.mu.Lock()
	category := ls.category
	ls.mu.Unlock()

	results := ls.server.speakerResults(ls.snapshot, ls.lang, category, query, 1)
	html, err := ls.server.pages.fragment("speaker_results", results)
	if err != nil {
		ls.logger.Error("render live results", zap.Error(err))
		ls.write(searchReply{Type: "error", Message: "Search is unavailable"})
		return
	}
	ls.write(searchReply{Type: "results", Query: query, Total: results.Pager.Total, HTML: html})
}

func (ls *liveSearch) write(reply searchReply) {
	ls.writeMu.Lock()
	defer ls.writeMu.Unlock()
	_ = ls.conn.SetWriteDeadline(time.Now().Add(searchWriteWait))
	if err := ls.conn.WriteJSON(reply); err != nil {
		ls.logger.Debug("live search write failed", zap.Error(err))
	}
}

func (ls *liveSearch) pingLoop(done <-chan struct{}) {
	ticker := time.NewTicker(searchPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			ls.writeMu.Lock()
			_ = ls.conn.SetWriteDeadline(time.Now().Add(searchWriteWait))
			err := ls.conn.WriteMessage(websocket.PingMessage, nil)
			ls.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
