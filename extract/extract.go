// Package extract finds a product's title and main image on an arbitrary
// retail page.
//
// Title detection queries an ordered list of selectors. Image detection runs
// an ordered list of strategies (alt-text tiers, gallery containers, any
// image) and the first strategy with a hit wins. Both are best-effort
// heuristics: a page may yield no title, no image, or both.
//
// Extraction is read-only; the parsed document is never modified.
package extract

import (
	"bytes"
	"fmt"
	"net/url"

	"golang.org/x/net/html"
)

// Signal is a detected (title, image) pair. An empty ImageRef means no
// image was found.
type Signal struct {
	Title    string `json:"title"`
	ImageRef string `json:"imageRef,omitempty"`
}

// Found reports whether a product title was detected.
func (s Signal) Found() bool { return s.Title != "" }

// Options controls extraction.
type Options struct {
	// BaseURL resolves relative image sources. Empty keeps sources verbatim.
	BaseURL string
	// TitleSelectors overrides DefaultTitleSelectors.
	TitleSelectors []string
	// Containers overrides DefaultContainers for the gallery tier.
	Containers []string
}

func (o *Options) defaults() {
	if len(o.TitleSelectors) == 0 {
		o.TitleSelectors = DefaultTitleSelectors
	}
	if len(o.Containers) == 0 {
		o.Containers = DefaultContainers
	}
}

// Extract resolves the product signal of a parsed document.
func Extract(doc *html.Node, opts Options) Signal {
	opts.defaults()

	var base *url.URL
	if opts.BaseURL != "" {
		if u, err := url.Parse(opts.BaseURL); err == nil {
			base = u
		}
	}

	sig := Signal{Title: findTitle(doc, opts.TitleSelectors)}

	imgs := collectImages(doc, base)
	for _, s := range strategies(opts.Containers) {
		if ref := s.Find(doc, imgs); ref != "" {
			sig.ImageRef = ref
			break
		}
	}
	return sig
}

// ExtractHTML parses raw HTML and resolves its product signal.
func ExtractHTML(raw []byte, opts Options) (Signal, error) {
	doc, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return Signal{}, fmt.Errorf("extract: parse HTML: %w", err)
	}
	return Extract(doc, opts), nil
}
