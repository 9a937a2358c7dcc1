// Package template resolves and renders message bodies for the
// notification worker. Resolution walks a fallback chain so a message is
// still produced when only a coarser template exists; a miss at every
// level is a configuration failure the worker treats as terminal.
package template

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	texttemplate "text/template"

	"github.com/hireloop/interview-notifier/internal/domain"
)

// ErrTemplateNotFound marks a render miss after the full fallback chain.
var ErrTemplateNotFound = errors.New("template not found")

const defaultLocale = "en"

// Context carries the values a template body may reference.
type Context map[string]any

// Rendered is the resolved message plus the provenance recorded on the
// notification log row.
type Rendered struct {
	Text    string
	Key     string
	Version int
}

// Renderer resolves a message body for a (kind, locale, channel, scope)
// key.
type Renderer interface {
	Render(kind domain.Kind, tctx Context, locale string, channel domain.Channel, scope domain.Scope) (Rendered, error)
}

type entry struct {
	tmpl    *texttemplate.Template
	version int
}

// Catalog is an in-memory template registry. Registration normally
// happens once at startup from the built-in set; Register is safe for
// concurrent use so operators can hot-add templates through an admin
// surface later.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]entry
}

func NewCatalog() *Catalog {
	return &Catalog{entries: make(map[string]entry)}
}

// Register parses and stores a template body under the exact key. Empty
// locale/channel/scope segments register a fallback-level template.
func (c *Catalog) Register(kind domain.Kind, locale string, channel domain.Channel, scope domain.Scope, version int, body string) error {
	key := templateKey(kind, locale, channel, scope)
	tmpl, err := texttemplate.New(key).Parse(body)
	if err != nil {
		return fmt.Errorf("parse template %s: %w", key, err)
	}
	c.mu.Lock()
	c.entries[key] = entry{tmpl: tmpl, version: version}
	c.mu.Unlock()
	return nil
}

// Render resolves the most specific template for the key and executes it.
// Fallback precedence: exact match, then drop scope, then drop channel,
// then the default locale at each of those levels.
func (c *Catalog) Render(kind domain.Kind, tctx Context, locale string, channel domain.Channel, scope domain.Scope) (Rendered, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, key := range resolutionChain(kind, locale, channel, scope) {
		e, ok := c.entries[key]
		if !ok {
			continue
		}
		var sb strings.Builder
		if err := e.tmpl.Execute(&sb, map[string]any(tctx)); err != nil {
			return Rendered{}, fmt.Errorf("execute template %s: %w", key, err)
		}
		return Rendered{Text: sb.String(), Key: key, Version: e.version}, nil
	}
	return Rendered{}, fmt.Errorf("%w: kind=%s locale=%s channel=%s scope=%s",
		ErrTemplateNotFound, kind, locale, channel, scope)
}

func resolutionChain(kind domain.Kind, locale string, channel domain.Channel, scope domain.Scope) []string {
	if locale == "" {
		locale = defaultLocale
	}
	chain := []string{
		templateKey(kind, locale, channel, scope),
		templateKey(kind, locale, channel, ""),
		templateKey(kind, locale, "", ""),
	}
	if locale != defaultLocale {
		chain = append(chain,
			templateKey(kind, defaultLocale, channel, scope),
			templateKey(kind, defaultLocale, channel, ""),
			templateKey(kind, defaultLocale, "", ""),
		)
	}
	return chain
}

func templateKey(kind domain.Kind, locale string, channel domain.Channel, scope domain.Scope) string {
	return strings.Join([]string{string(kind), locale, string(channel), string(scope)}, ".")
}

var _ Renderer = (*Catalog)(nil)
