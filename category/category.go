// Package category maps free-text product titles to wardrobe categories.
//
// Classification is a keyword scan over ordered, disjoint keyword sets:
// the first set with a substring match wins, and anything unmatched is an
// accessory. It is pure and total: every title maps to exactly one
// Category.
package category

import "strings"

// Category is the closed set of wardrobe categories.
type Category string

const (
	Top       Category = "top"
	Bottom    Category = "bottom"
	Shoes     Category = "shoes"
	Accessory Category = "accessory"
)

// rule pairs a category with the keywords that select it.
type rule struct {
	category Category
	keywords []string
}

// rules are evaluated in order; "tank top short set" is a top.
var rules = []rule{
	{Top, []string{"hoodie", "tee", "t-shirt", "shirt", "sweater", "jacket", "top", "polo", "tank"}},
	{Bottom, []string{"jean", "pant", "short", "jogger", "sweatpant", "bottom", "skirt", "trouser"}},
	{Shoes, []string{"shoe", "sneaker", "boot", "sandal", "slide", "loafer", "loafers", "flats", "flat", "croc"}},
}

// Classify returns the category of a product title.
func Classify(title string) Category {
	if title == "" {
		return Accessory
	}
	lower := strings.ToLower(title)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				return r.category
			}
		}
	}
	return Accessory
}

// Parse converts a stored string back to a Category.
func Parse(s string) (Category, bool) {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case Top, Bottom, Shoes, Accessory:
		return c, true
	}
	return "", false
}

// Slotted returns the categories that occupy an outfit slot, in request order.
func Slotted() []Category {
	return []Category{Top, Bottom, Shoes}
}

// Slotted reports whether c has a slot in an outfit selection.
func (c Category) Slotted() bool {
	return c == Top || c == Bottom || c == Shoes
}

func (c Category) String() string { return string(c) }
