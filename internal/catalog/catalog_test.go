package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"docbot/internal/domain"
)

func writeCatalog(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	return path
}

func TestDefaultCatalogIsValid(t *testing.T) {
	cat, err := Load("")
	if err != nil {
		t.Fatalf("load default: %v", err)
	}
	if _, err := cat.Profile("veriftools"); err != nil {
		t.Fatalf("default profile missing: %v", err)
	}
	commands := map[string]domain.Template{}
	for _, tpl := range cat.Templates {
		commands[tpl.Command] = tpl
	}
	gen, ok := commands["gen"]
	if !ok || !gen.RequiresPhoto || gen.Fields["SURNAME"] != "DOE" {
		t.Fatalf("gen template = %+v", gen)
	}
	if test := commands["test"]; test.RequiresPhoto {
		t.Fatalf("test template must not require a photo")
	}
	for _, tpl := range DefaultTemplates() {
		if tpl.ImageField != domain.DefaultImageField || tpl.Caption == "" {
			t.Fatalf("default template %s not normalized: %+v", tpl.Command, tpl)
		}
	}
}

func TestLoadExtendsProfileAndReplacesTemplates(t *testing.T) {
	path := writeCatalog(t, `
profiles:
  staging:
    extends: veriftools
    base_url: https://staging.example.com
    payment_required: false
    ready_tokens: [FINISHED]
templates:
  - command: /Passport
    generator: https://verif.tools/uk_passport/
    requires_photo: true
    fields:
      surname: SMITH
`)
	cat, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	p, err := cat.Profile("staging")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if p.BaseURL != "https://staging.example.com" || p.PaymentRequired {
		t.Fatalf("profile = %+v", p)
	}
	if len(p.ReadyTokens) != 1 || p.ReadyTokens[0] != "FINISHED" {
		t.Fatalf("ready tokens = %v", p.ReadyTokens)
	}
	if p.SubmitPath != "/api/integration/generate/" {
		t.Fatalf("submit path not inherited: %q", p.SubmitPath)
	}
	if len(cat.Templates) != 1 {
		t.Fatalf("templates = %d, want 1", len(cat.Templates))
	}
	tpl := cat.Templates[0]
	if tpl.Command != "passport" || tpl.Fields["SURNAME"] != "SMITH" || tpl.ImageField != domain.DefaultImageField {
		t.Fatalf("template = %+v", tpl)
	}
}

func TestLoadRejectsInvalidCatalogs(t *testing.T) {
	cases := map[string]string{
		"reserved command": `
templates:
  - command: start
    generator: x
`,
		"duplicate command": `
templates:
  - command: a
    generator: x
  - command: a
    generator: y
`,
		"unknown parent": `
profiles:
  p:
    extends: nope
`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeCatalog(t, body)); !errors.Is(err, domain.ErrConfiguration) {
				t.Fatalf("err = %v, want ErrConfiguration", err)
			}
		})
	}
}

func TestProfileUnknown(t *testing.T) {
	if _, err := Default().Profile("missing"); !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("err = %v, want ErrConfiguration", err)
	}
}
