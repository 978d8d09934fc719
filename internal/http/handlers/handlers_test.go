package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"docbot/internal/domain"
)

type countSessions int

func (c countSessions) Len() int { return int(c) }

func TestHealth(t *testing.T) {
	app := NewApp("veriftools", nil, countSessions(2))
	rec := httptest.NewRecorder()
	app.Health(rec, httptest.NewRequest(http.MethodGet, "/v1/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" || body["profile"] != "veriftools" || body["open_sessions"] != float64(2) {
		t.Fatalf("body = %v", body)
	}
}

func TestListTemplatesHidesValues(t *testing.T) {
	app := NewApp("direct", []domain.Template{{
		Command:   "gen",
		Generator: "https://verif.tools/uk_passport/",
		Fields:    map[string]string{"SURNAME": "DOE", "DOB": "02.05.1960"},
	}}, nil)
	rec := httptest.NewRecorder()
	app.ListTemplates(rec, httptest.NewRequest(http.MethodGet, "/v1/templates", nil))

	var body struct {
		Templates []templateView `json:"templates"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Templates) != 1 {
		t.Fatalf("templates = %+v", body.Templates)
	}
	got := body.Templates[0]
	if got.Generator != "uk_passport" || len(got.Fields) != 2 || got.Fields[0] != "DOB" {
		t.Fatalf("template = %+v", got)
	}
}
