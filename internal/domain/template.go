package domain

import (
	"maps"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultImageField is the multipart part name used for the user photo when a
// template does not name one.
const DefaultImageField = "image1"

// Template binds a chat command to a remote generator and its default form.
type Template struct {
	Command       string            `mapstructure:"command"`
	Generator     string            `mapstructure:"generator"`
	Description   string            `mapstructure:"description"`
	RequiresPhoto bool              `mapstructure:"requires_photo"`
	NeedsParams   bool              `mapstructure:"needs_params"`
	ImageField    string            `mapstructure:"image_field"`
	Caption       string            `mapstructure:"caption"`
	Fields        map[string]string `mapstructure:"fields"`
}

// Normalize trims the command, upper-cases field keys and fills defaults.
func (t Template) Normalize() Template {
	t.Command = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(t.Command)), "/")
	t.Generator = strings.TrimSpace(t.Generator)
	if strings.TrimSpace(t.ImageField) == "" {
		t.ImageField = DefaultImageField
	}
	if t.Caption == "" {
		t.Caption = "Generation successful"
	}
	fields := make(map[string]string, len(t.Fields))
	for k, v := range t.Fields {
		fields[FieldKey(k)] = v
	}
	t.Fields = fields
	return t
}

// DefaultFields returns a copy of the template's fixed field set.
func (t Template) DefaultFields() map[string]string {
	if t.Fields == nil {
		return map[string]string{}
	}
	return maps.Clone(t.Fields)
}

// FieldKey is the canonical form of a form field name: trimmed and
// upper-cased with full Unicode case mapping, so "straße" becomes "STRASSE".
func FieldKey(k string) string {
	// A Caser keeps state and must not be shared between goroutines.
	return cases.Upper(language.Und).String(strings.TrimSpace(k))
}
