package domain

import (
	"embed"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

//go:embed templates.json buddies.json
var catalogFS embed.FS

// FallbackLanguage is used when a template has no text for the requested
// language. Missing translations are an authoring defect, not a runtime
// condition to branch on.
const FallbackLanguage = "en"

// WelcomeTemplateID is the special first-run template outside the day index.
const WelcomeTemplateID = "welcome_home"

// Template is one authored message keyed by (day, time of day).
type Template struct {
	ID        string            `json:"id"`
	Day       int               `json:"day"`
	TimeOfDay TimeOfDay         `json:"time_of_day"`
	Category  Category          `json:"category"`
	Messages  map[string]string `json:"messages"`
}

type slotKey struct {
	day int
	tod TimeOfDay
}

// Catalog is the static message table. Immutable after load.
type Catalog struct {
	slots    map[slotKey]*Template
	specials map[string]*Template
	buddies  map[string]map[string]string // buddy id -> language -> name
	maxDay   int
}

type catalogFile struct {
	Templates []*Template `json:"templates"`
	Specials  []*Template `json:"specials"`
}

type buddyEntry struct {
	ID    string            `json:"id"`
	Names map[string]string `json:"names"`
}

// LoadCatalog parses the embedded catalog data.
func LoadCatalog() (*Catalog, error) {
	raw, err := catalogFS.ReadFile("templates.json")
	if err != nil {
		return nil, fmt.Errorf("read templates: %w", err)
	}
	var cf catalogFile
	if err := json.Unmarshal(raw, &cf); err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	c := &Catalog{
		slots:    make(map[slotKey]*Template, len(cf.Templates)),
		specials: make(map[string]*Template, len(cf.Specials)),
		buddies:  make(map[string]map[string]string),
	}
	for _, t := range cf.Templates {
		if _, ok := t.Messages[FallbackLanguage]; !ok {
			return nil, fmt.Errorf("template %s: no %s text", t.ID, FallbackLanguage)
		}
		// Catalog is authored with one template per slot; last one wins.
		c.slots[slotKey{t.Day, t.TimeOfDay}] = t
		if t.Day > c.maxDay {
			c.maxDay = t.Day
		}
	}
	for _, t := range cf.Specials {
		c.specials[t.ID] = t
	}

	raw, err = catalogFS.ReadFile("buddies.json")
	if err != nil {
		return nil, fmt.Errorf("read buddies: %w", err)
	}
	var buddies []buddyEntry
	if err := json.Unmarshal(raw, &buddies); err != nil {
		return nil, fmt.Errorf("parse buddies: %w", err)
	}
	for _, b := range buddies {
		c.buddies[b.ID] = b.Names
	}
	return c, nil
}

// Lookup returns the template authored for a (day, time of day) slot.
func (c *Catalog) Lookup(day int, tod TimeOfDay) (*Template, bool) {
	t, ok := c.slots[slotKey{day, tod}]
	return t, ok
}

// Special returns a template outside the day index, e.g. the welcome message.
func (c *Catalog) Special(id string) (*Template, bool) {
	t, ok := c.specials[id]
	return t, ok
}

// MaxDay is the last authored day, bounding the generation horizon.
func (c *Catalog) MaxDay() int { return c.maxDay }

// BuddyName resolves a buddy id to its display name for a language.
func (c *Catalog) BuddyName(id, lang string) (string, bool) {
	names, ok := c.buddies[id]
	if !ok {
		return "", false
	}
	if n, ok := names[lang]; ok {
		return n, true
	}
	if n, ok := names[FallbackLanguage]; ok {
		return n, true
	}
	return "", false
}

// Render resolves a template into final message text: language selection
// with English fallback, global {{buddy_name}} substitution, then
// language-specific gender forms.
func Render(t *Template, lang, buddyName, gender string) string {
	raw, ok := t.Messages[lang]
	if !ok {
		raw = t.Messages[FallbackLanguage]
	}
	text := strings.ReplaceAll(raw, "{{buddy_name}}", buddyName)
	if gender == GenderLady {
		for _, f := range feminineForms[lang] {
			text = f.re.ReplaceAllString(text, f.repl)
		}
	}
	return text
}

// genderForm rewrites one masculine word form to its feminine counterpart.
// Word edges are matched explicitly because RE2's \b is ASCII-only.
type genderForm struct {
	re   *regexp.Regexp
	repl string
}

func form(masc, fem string) genderForm {
	return genderForm{
		re:   regexp.MustCompile(`(^|[^\p{L}])` + masc + `($|[^\p{L}])`),
		repl: "${1}" + fem + "${2}",
	}
}

// Templates are authored in the masculine default; these dictionaries
// produce the feminine rendering.
var feminineForms = map[string][]genderForm{
	"ru": {
		form("бросил", "бросила"),
		form("продержался", "продержалась"),
		form("смог", "смогла"),
		form("справился", "справилась"),
		form("сделал", "сделала"),
		form("готов", "готова"),
		form("сильным", "сильной"),
		form("сам", "сама"),
		form("горд", "горда"),
	},
	"es": {
		form("orgulloso", "orgullosa"),
		form("listo", "lista"),
		form("fuerte y decidido", "fuerte y decidida"),
		form("libre y sano", "libre y sana"),
	},
}
