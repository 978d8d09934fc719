package handlers

import (
	"maps"
	"net/http"
	"slices"
	"time"

	"docbot/internal/providers/veriftools"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":  "ok",
		"profile": a.Profile,
		"uptime":  time.Since(a.Started).Round(time.Second).String(),
	}
	if a.Sessions != nil {
		body["open_sessions"] = a.Sessions.Len()
	}
	if a.Version != "" {
		body["version"] = a.Version
	}
	a.json(w, http.StatusOK, body)
}

type templateView struct {
	Command       string   `json:"command"`
	Generator     string   `json:"generator"`
	RequiresPhoto bool     `json:"requires_photo"`
	NeedsParams   bool     `json:"needs_params"`
	Fields        []string `json:"fields"`
}

// ListTemplates shows the configured commands without their default values.
func (a *App) ListTemplates(w http.ResponseWriter, r *http.Request) {
	out := make([]templateView, 0, len(a.Templates))
	for _, t := range a.Templates {
		out = append(out, templateView{
			Command:       t.Command,
			Generator:     veriftools.GeneratorSlug(t.Generator),
			RequiresPhoto: t.RequiresPhoto,
			NeedsParams:   t.NeedsParams,
			Fields:        slices.Sorted(maps.Keys(t.Fields)),
		})
	}
	a.json(w, http.StatusOK, map[string]any{"templates": out})
}
