package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"docbot/internal/domain"
)

// SessionCounter reports how many users have a flow open.
type SessionCounter interface {
	Len() int
}

// App serves the ops endpoints.
type App struct {
	Profile   string
	Templates []domain.Template
	Sessions  SessionCounter
	Started   time.Time
	Version   string
}

func NewApp(profile string, templates []domain.Template, sessions SessionCounter) *App {
	return &App{Profile: profile, Templates: templates, Sessions: sessions, Started: time.Now()}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
