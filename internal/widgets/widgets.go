// ABOUTME: Resolver for the three fixed widget surfaces served as MCP resources.
// ABOUTME: Markup is loaded once at startup from disk (HTML or Markdown) or embedded defaults.

package widgets

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer/html"
)

//go:embed defaults/*.html
var defaultsFS embed.FS

// ErrUnknownWidget is returned when a URI names no known surface.
var ErrUnknownWidget = errors.New("unknown widget")

// MimeType is the MIME type of widget markup resources.
const MimeType = "text/html+skybridge"

// Surface identifies one of the fixed UI surfaces.
type Surface string

const (
	SearchResults Surface = "search-results"
	Auth          Surface = "auth"
	Basket        Surface = "basket"
)

// Surfaces lists every surface in a stable order.
var Surfaces = []Surface{SearchResults, Auth, Basket}

// URI returns the resource URI of the surface.
func (s Surface) URI() string {
	return "ui://widget/" + string(s) + ".html"
}

// Widget is a loaded surface.
type Widget struct {
	Surface     Surface
	URI         string
	Name        string
	Description string
	MimeType    string
	Markup      string
	Source      string // file path or "embedded"
}

// Meta returns the resource metadata declared for the widget.
func (w *Widget) Meta() map[string]any {
	return map[string]any{
		"openai/widgetAccessible":  true,
		"openai/widgetDescription": w.Description,
	}
}

var descriptions = map[Surface]struct{ name, desc string }{
	SearchResults: {"Menu search results", "Shows matching menu items with add-to-basket buttons."},
	Auth:          {"Phone verification", "Collects a phone number and one-time code before checkout."},
	Basket:        {"Basket", "Shows the current basket, its total and a checkout button."},
}

// Resolver maps widget URIs to loaded markup. It is read-only after Load.
type Resolver struct {
	byURI map[string]*Widget
}

// Load reads every surface. dir may be empty to use only embedded markup.
func Load(dir string, logger *slog.Logger) (*Resolver, error) {
	if logger == nil {
		logger = slog.Default()
	}

	md := goldmark.New(goldmark.WithRendererOptions(html.WithUnsafe()))
	r := &Resolver{byURI: make(map[string]*Widget, len(Surfaces))}

	for _, s := range Surfaces {
		markup, source, err := loadSurface(md, dir, s)
		if err != nil {
			return nil, err
		}
		info := descriptions[s]
		w := &Widget{
			Surface:     s,
			URI:         s.URI(),
			Name:        info.name,
			Description: info.desc,
			MimeType:    MimeType,
			Markup:      markup,
			Source:      source,
		}
		r.byURI[w.URI] = w
		logger.Debug("widget loaded", "uri", w.URI, "source", source, "bytes", len(markup))
	}

	logger.Info("=== WIDGETS LOADED ===", "count", len(r.byURI), "dir", dir)
	return r, nil
}

func loadSurface(md goldmark.Markdown, dir string, s Surface) (markup, source string, err error) {
	if dir != "" {
		htmlPath := filepath.Join(dir, string(s)+".html")
		data, err := os.ReadFile(htmlPath)
		if err == nil {
			return string(data), htmlPath, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", "", fmt.Errorf("reading widget %s: %w", htmlPath, err)
		}

		mdPath := filepath.Join(dir, string(s)+".md")
		data, err = os.ReadFile(mdPath)
		if err == nil {
			var buf bytes.Buffer
			if err := md.Convert(data, &buf); err != nil {
				return "", "", fmt.Errorf("rendering widget %s: %w", mdPath, err)
			}
			return buf.String(), mdPath, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", "", fmt.Errorf("reading widget %s: %w", mdPath, err)
		}
	}

	data, err := defaultsFS.ReadFile("defaults/" + string(s) + ".html")
	if err != nil {
		return "", "", fmt.Errorf("reading embedded widget %s: %w", s, err)
	}
	return string(data), "embedded", nil
}

// Resolve returns the widget for uri.
func (r *Resolver) Resolve(uri string) (*Widget, error) {
	w, ok := r.byURI[uri]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWidget, uri)
	}
	return w, nil
}

// List returns every widget in surface order.
func (r *Resolver) List() []*Widget {
	out := make([]*Widget, 0, len(Surfaces))
	for _, s := range Surfaces {
		out = append(out, r.byURI[s.URI()])
	}
	return out
}
