package domain

import "testing"

func TestFieldKey(t *testing.T) {
	cases := map[string]string{
		"surname":  "SURNAME",
		" fn ":     "FN",
		"straße":   "STRASSE",
		"ünterort": "ÜNTERORT",
		"":         "",
	}
	for in, want := range cases {
		if got := FieldKey(in); got != want {
			t.Fatalf("FieldKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTemplateNormalize(t *testing.T) {
	tpl := Template{
		Command:   " /Gen ",
		Generator: " uk_passport ",
		Fields:    map[string]string{"surname": "DOE", "straße": "Alt"},
	}.Normalize()

	if tpl.Command != "gen" || tpl.Generator != "uk_passport" {
		t.Fatalf("command = %q, generator = %q", tpl.Command, tpl.Generator)
	}
	if tpl.ImageField != DefaultImageField || tpl.Caption == "" {
		t.Fatalf("defaults not filled: %+v", tpl)
	}
	if tpl.Fields["SURNAME"] != "DOE" || tpl.Fields["STRASSE"] != "Alt" || len(tpl.Fields) != 2 {
		t.Fatalf("fields = %v", tpl.Fields)
	}

	defaults := tpl.DefaultFields()
	defaults["SURNAME"] = "changed"
	if tpl.Fields["SURNAME"] != "DOE" {
		t.Fatalf("DefaultFields shares the template map")
	}
}
