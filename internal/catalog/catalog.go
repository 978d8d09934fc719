// Package catalog holds the deployment profiles and command templates the bot
// serves. Defaults are built in; a YAML file can add profiles and replace the
// template list.
package catalog

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"docbot/internal/domain"
	"docbot/internal/providers/veriftools"
)

// ReservedCommands are handled by the dispatcher itself.
var ReservedCommands = []string{"start", "help", "params", "cancel"}

// Catalog is the resolved set of profiles and templates.
type Catalog struct {
	Profiles  map[string]veriftools.Profile
	Templates []domain.Template
}

type profileEntry struct {
	Extends            string `mapstructure:"extends"`
	veriftools.Profile `mapstructure:",squash"`
}

// Default returns the built-in catalog.
func Default() Catalog {
	return Catalog{
		Profiles:  veriftools.BuiltinProfiles(),
		Templates: DefaultTemplates(),
	}
}

// DefaultTemplates mirrors the commands the bot has always offered.
func DefaultTemplates() []domain.Template {
	passport := map[string]string{
		"SURNAME":   "DOE",
		"GIVENNAME": "JOHN",
		"DOB":       "02.05.1960",
		"POB":       "LONDON",
	}
	templates := []domain.Template{
		{
			Command:       "gen",
			Generator:     "https://verif.tools/uk_passport/",
			Description:   "generate passport image (requires photo)",
			RequiresPhoto: true,
			ImageField:    "image1",
			Caption:       "✅ Generation successful",
			Fields:        passport,
		},
		{
			Command:       "genp",
			Generator:     "https://verif.tools/uk_passport/",
			Description:   "generate passport image with your own fields (requires photo, then /params KEY=value ...)",
			RequiresPhoto: true,
			NeedsParams:   true,
			ImageField:    "image1",
			Caption:       "✅ Generation successful",
			Fields:        passport,
		},
		{
			Command:     "test",
			Generator:   "https://api.veriftools.fans/en/bank_check/",
			Description: "run API test generator",
			Caption:     "✅ Test generation successful",
			Fields: map[string]string{
				"FULLNAME":          "John Doe",
				"ADD1":              "123 Anywhere Street",
				"ADD2":              "Anytown, CA 12345",
				"BANK":              "1",
				"CHEQUENUMBER":      "123456789",
				"MICRCODE":          "12345678912345678",
				"NUMBER":            "00123",
				"BACKGROUND":        "Photo",
				"BACKGROUND_NUMBER": "1",
				"VOID":              "ON",
			},
		},
	}
	for i := range templates {
		templates[i] = templates[i].Normalize()
	}
	return templates
}

// Load reads path on top of the defaults. An empty path returns Default().
func Load(path string) (Catalog, error) {
	cat := Default()
	if strings.TrimSpace(path) == "" {
		return cat, cat.Validate()
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return Catalog{}, fmt.Errorf("%w: catalog: read %s: %v", domain.ErrConfiguration, path, err)
	}

	for name := range v.GetStringMap("profiles") {
		key := "profiles." + name
		var entry profileEntry
		if err := v.UnmarshalKey(key, &entry); err != nil {
			return Catalog{}, fmt.Errorf("%w: catalog: profile %s: %v", domain.ErrConfiguration, name, err)
		}
		base := veriftools.Profile{}
		if entry.Extends != "" {
			parent, ok := cat.Profiles[strings.ToLower(entry.Extends)]
			if !ok {
				return Catalog{}, fmt.Errorf("%w: catalog: profile %s extends unknown profile %s", domain.ErrConfiguration, name, entry.Extends)
			}
			base = parent
		} else if existing, ok := cat.Profiles[name]; ok {
			base = existing
		}
		merged := base.Merge(entry.Profile)
		merged.Name = name
		if v.IsSet(key + ".ready_on_result") {
			merged.ReadyOnResult = entry.ReadyOnResult
		}
		if v.IsSet(key + ".payment_required") {
			merged.PaymentRequired = entry.PaymentRequired
		}
		if v.IsSet(key + ".token_fetch") {
			merged.TokenFetch = entry.TokenFetch
		}
		cat.Profiles[name] = merged
	}

	if v.IsSet("templates") {
		var templates []domain.Template
		if err := v.UnmarshalKey("templates", &templates); err != nil {
			return Catalog{}, fmt.Errorf("%w: catalog: templates: %v", domain.ErrConfiguration, err)
		}
		cat.Templates = cat.Templates[:0:0]
		for _, t := range templates {
			cat.Templates = append(cat.Templates, t.Normalize())
		}
	}

	return cat, cat.Validate()
}

// Validate checks every profile and template.
func (c Catalog) Validate() error {
	var errs []error
	for _, p := range c.Profiles {
		if err := p.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(c.Templates) == 0 {
		errs = append(errs, errors.New("catalog: no templates configured"))
	}
	seen := make(map[string]bool, len(c.Templates))
	for _, t := range c.Templates {
		switch {
		case t.Command == "":
			errs = append(errs, errors.New("catalog: template without command"))
		case slices.Contains(ReservedCommands, t.Command):
			errs = append(errs, fmt.Errorf("catalog: command /%s is reserved", t.Command))
		case seen[t.Command]:
			errs = append(errs, fmt.Errorf("catalog: duplicate command /%s", t.Command))
		}
		seen[t.Command] = true
		if veriftools.GeneratorSlug(t.Generator) == "" {
			errs = append(errs, fmt.Errorf("catalog: command /%s has no generator", t.Command))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}
	return nil
}

// Profile looks up a profile by name.
func (c Catalog) Profile(name string) (veriftools.Profile, error) {
	p, ok := c.Profiles[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return veriftools.Profile{}, fmt.Errorf("%w: unknown profile %q (known: %s)", domain.ErrConfiguration, name, strings.Join(c.ProfileNames(), ", "))
	}
	return p, nil
}

// ProfileNames lists profile names in order.
func (c Catalog) ProfileNames() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
