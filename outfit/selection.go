package outfit

import "github.com/hazyhaar/snse/category"

// Selection is the scratch outfit: at most one item per slotted category.
type Selection struct {
	Top    *Item `json:"top"`
	Bottom *Item `json:"bottom"`
	Shoes  *Item `json:"shoes"`
}

// Slot returns the slot for c, or nil for accessory.
func (s *Selection) Slot(c category.Category) **Item {
	switch c {
	case category.Top:
		return &s.Top
	case category.Bottom:
		return &s.Bottom
	case category.Shoes:
		return &s.Shoes
	}
	return nil
}

// Ready reports whether all three slots are filled.
func (s Selection) Ready() bool {
	return s.Top != nil && s.Bottom != nil && s.Shoes != nil
}

// Contains reports whether item occupies any slot.
func (s Selection) Contains(item Item) bool {
	for _, it := range s.Items() {
		if it.Same(item) {
			return true
		}
	}
	return false
}

// Items returns the filled slots in top, bottom, shoes order.
func (s Selection) Items() []Item {
	var out []Item
	for _, p := range []*Item{s.Top, s.Bottom, s.Shoes} {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out
}
