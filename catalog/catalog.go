// Package catalog is the table of curated products, keyed by exact page
// title. A hit gives the panel a canonical image, a styled outfit image
// and the categories that pair with it.
package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/snse/category"
	"github.com/hazyhaar/snse/outfit"
)

//go:embed catalog.yaml
var defaultYAML []byte

// Entry is one curated product.
type Entry struct {
	ID                   string              `yaml:"id" json:"id"`
	Image                string              `yaml:"image" json:"image,omitempty"`
	OutfitImage          string              `yaml:"outfit_image" json:"outfitImage,omitempty"`
	Category             category.Category   `yaml:"category" json:"category"`
	CompatibleCategories []category.Category `yaml:"compatible_categories" json:"compatibleCategories,omitempty"`
}

// Item builds the wardrobe item for title.
func (e Entry) Item(title string) outfit.Item {
	return outfit.Item{
		ID:                   e.ID,
		Title:                title,
		Image:                e.Image,
		Category:             e.Category,
		CompatibleCategories: e.CompatibleCategories,
		OutfitImage:          e.OutfitImage,
	}
}

// Catalog maps titles to entries. The zero value is an empty catalog.
type Catalog struct {
	products map[string]Entry
}

type file struct {
	Products map[string]Entry `yaml:"products"`
}

// Parse decodes a catalog document and validates every category.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("catalog: parse: %w", err)
	}
	for title, e := range f.Products {
		c, ok := category.Parse(string(e.Category))
		if !ok {
			return nil, fmt.Errorf("catalog: %q: unknown category %q", title, e.Category)
		}
		e.Category = c
		for i, cc := range e.CompatibleCategories {
			c, ok := category.Parse(string(cc))
			if !ok {
				return nil, fmt.Errorf("catalog: %q: unknown compatible category %q", title, cc)
			}
			e.CompatibleCategories[i] = c
		}
		f.Products[title] = e
	}
	return &Catalog{products: f.Products}, nil
}

// Load reads a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return Parse(data)
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := Parse(defaultYAML)
	if err != nil {
		panic(err)
	}
	return c
}

// Lookup finds the entry for an exact title.
func (c *Catalog) Lookup(title string) (Entry, bool) {
	if c == nil {
		return Entry{}, false
	}
	e, ok := c.products[title]
	return e, ok
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.products)
}
