// Package i18n renders user-facing error messages per locale.
package i18n

import (
	"strings"
	"sync"
	"text/template"

	"golang.org/x/text/language"
)

// Code is an error code string. It mirrors errors.Code without importing it.
type Code = string

// BaseLocale is the locale every other catalog falls back to.
const BaseLocale = "en-US"

// Catalog holds the parsed message templates for one locale.
type Catalog struct {
	locale   string
	messages map[Code]message
}

type message struct {
	raw  string
	tmpl *template.Template // nil when raw does not parse
}

type registry struct {
	mu       sync.RWMutex
	catalogs map[string]*Catalog
	locales  []string // BaseLocale first; index matches the matcher tags
	matcher  language.Matcher
}

var catalogs = newRegistry(
	NewCatalog(BaseLocale, enUSMessages),
	NewCatalog("pt-BR", ptBRMessages),
)

func newRegistry(initial ...*Catalog) *registry {
	r := &registry{catalogs: make(map[string]*Catalog, len(initial))}
	for _, c := range initial {
		r.catalogs[c.locale] = c
	}
	r.rebuildMatcher()
	return r
}

// rebuildMatcher must be called with mu held for writing.
func (r *registry) rebuildMatcher() {
	r.locales = []string{BaseLocale}
	for locale := range r.catalogs {
		if locale != BaseLocale {
			r.locales = append(r.locales, locale)
		}
	}
	tags := make([]language.Tag, len(r.locales))
	for i, l := range r.locales {
		tags[i] = language.Make(l)
	}
	r.matcher = language.NewMatcher(tags)
}

func (r *registry) lookup(locale string) (*Catalog, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.catalogs[locale]
	return c, ok
}

func (r *registry) match(requested string) *Catalog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, idx, confidence := r.matcher.Match(language.Make(requested))
	if confidence == language.No {
		return r.catalogs[BaseLocale]
	}
	return r.catalogs[r.locales[idx]]
}

// GetCatalog returns the catalog that best matches locale. "pt", "pt-br"
// and "pt-BR" all resolve to pt-BR; unknown locales get en-US.
func GetCatalog(locale string) *Catalog {
	requested := strings.TrimSpace(locale)
	if requested == "" {
		requested = BaseLocale
	}
	if c, ok := catalogs.lookup(requested); ok {
		return c
	}
	return catalogs.match(requested)
}

// RegisterCatalog adds or replaces the catalog for locale. Intended for init
// and tests.
func RegisterCatalog(locale string, cat *Catalog) {
	catalogs.mu.Lock()
	defer catalogs.mu.Unlock()
	catalogs.catalogs[locale] = cat
	catalogs.rebuildMatcher()
}

// NewCatalog parses messages once. Templates that fail to parse are kept
// and rendered verbatim.
func NewCatalog(locale string, messages map[Code]string) *Catalog {
	parsed := make(map[Code]message, len(messages))
	for code, raw := range messages {
		tmpl, err := template.New(code).Option("missingkey=zero").Parse(raw)
		if err != nil {
			tmpl = nil
		}
		parsed[code] = message{raw: raw, tmpl: tmpl}
	}
	return &Catalog{locale: locale, messages: parsed}
}

// Locale returns the locale of this catalog.
func (c *Catalog) Locale() string {
	return c.locale
}

// Format renders the message for code. Codes missing from a regional
// catalog use the en-US text; codes missing everywhere render as the code.
// Metadata keys absent from the map render empty.
func (c *Catalog) Format(code Code, metadata map[string]string) string {
	msg, ok := c.messages[code]
	if !ok {
		if c.locale != BaseLocale {
			if base, found := catalogs.lookup(BaseLocale); found {
				return base.Format(code, metadata)
			}
		}
		return code
	}
	if msg.tmpl == nil {
		return msg.raw
	}
	if metadata == nil {
		metadata = map[string]string{}
	}
	var b strings.Builder
	if err := msg.tmpl.Execute(&b, metadata); err != nil {
		return msg.raw
	}
	return b.String()
}
