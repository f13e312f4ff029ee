// Package outfit holds the wardrobe and the outfit composition state
// machine. Everything here is a value: transitions take a Session and
// return the next one, and persistence is the caller's concern.
package outfit

import (
	"slices"

	"github.com/hazyhaar/snse/category"
)

// Item is a saved wardrobe entry, or the product currently on screen.
// Image holds an embedded data URL once the item is saved.
type Item struct {
	ID                   string              `json:"id"`
	Title                string              `json:"title"`
	Image                string              `json:"image,omitempty"`
	Category             category.Category   `json:"category"`
	CompatibleCategories []category.Category `json:"compatibleCategories,omitempty"`
	OutfitImage          string              `json:"outfitImage,omitempty"`
	SavedAt              int64               `json:"savedAt,omitempty"`
}

// Same reports whether two items share both title and image, the wardrobe
// identity.
func (it Item) Same(o Item) bool {
	return it.Title == o.Title && it.Image == o.Image
}

// CompatibleWith reports whether c is one of the item's compatible
// categories.
func (it Item) CompatibleWith(c category.Category) bool {
	return slices.Contains(it.CompatibleCategories, c)
}
