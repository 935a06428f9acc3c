// Package server wires the form engine, catalog store, scan feed and
// feedback tone into the HTTP API.
package server

import (
	"context"
	"log"
	"net/http"
	"sync"

	"orderpad/internal/catalog"
	"orderpad/internal/config"
	"orderpad/internal/feedback"
	"orderpad/internal/form"
	"orderpad/internal/scanfeed"
)

// App owns the long-lived server state: one catalog store, one scan hub,
// and the set of live editing sessions.
type App struct {
	Cfg   config.Config
	Store *catalog.Store
	Hub   *scanfeed.Hub

	beeper *feedback.Beeper

	mu       sync.Mutex
	sessions map[string]*form.Session
}

// New builds the app. player receives the scanner error tone; nil discards.
func New(cfg config.Config, store *catalog.Store, player feedback.Player) *App {
	a := &App{
		Cfg:      cfg,
		Store:    store,
		sessions: make(map[string]*form.Session),
	}
	a.beeper = feedback.NewBeeper(player, feedback.Tone{
		Frequency: cfg.Beep.FrequencyHz,
		Duration:  cfg.BeepDuration(),
	})
	a.Hub = scanfeed.NewHub(a.handleScan)
	return a
}

// notifier pushes session messages to connected scan feed clients and the
// server log.
type notifier struct {
	hub *scanfeed.Hub
}

func (n notifier) Success(msg string) {
	log.Printf("session: %s", msg)
	n.hub.Push(scanfeed.Notice{Level: "success", Message: msg})
}

func (n notifier) Error(msg string) {
	log.Printf("session error: %s", msg)
	n.hub.Push(scanfeed.Notice{Level: "error", Message: msg})
}

func (a *App) newSession(t form.DocType) *form.Session {
	s := form.NewSession(t, form.Deps{
		Catalog:   a.Store,
		Allocator: a.Store,
		Submitter: a.Store,
		Notifier:  notifier{hub: a.Hub},
		Beeper:    a.beeper,
	}, form.Options{
		PreviewTimeout:  a.Cfg.PreviewTimeout(),
		PreviewDebounce: a.Cfg.PreviewDebounce(),
	})
	a.mu.Lock()
	a.sessions[s.ID] = s
	a.mu.Unlock()
	return s
}

func (a *App) session(id string) *form.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sessions[id]
}

func (a *App) dropSession(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.sessions[id]; !ok {
		return false
	}
	delete(a.sessions, id)
	return true
}

// handleScan routes a scanner frame to its session. Unknown sessions get an
// error notice so a misconfigured scanner is visible.
func (a *App) handleScan(sessionID, code string) {
	s := a.session(sessionID)
	if s == nil {
		a.Hub.Push(scanfeed.Notice{Level: "error", Message: "no editing session " + sessionID})
		return
	}
	s.Scan(context.Background(), code)
}

// Routes returns the full handler tree.
func (a *App) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/", a.handleAPI)
	mux.HandleFunc("/ws/scanner", a.Hub.HandleScanner)
	return LoggingMiddleware(GzipMiddleware(mux))
}
