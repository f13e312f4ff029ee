package outfit

import "github.com/hazyhaar/snse/category"

// Wardrobe is the ordered list of saved items. No two items are Same.
type Wardrobe []Item

// Add appends item unless an item with the same title and image exists.
// The bool reports whether it was added.
func (w Wardrobe) Add(item Item) (Wardrobe, bool) {
	if _, ok := w.Find(item.Title, item.Image); ok {
		return w, false
	}
	out := make(Wardrobe, len(w), len(w)+1)
	copy(out, w)
	return append(out, item), true
}

// Remove deletes the item with the given title and image.
func (w Wardrobe) Remove(title, image string) (Wardrobe, Item, bool) {
	for i, it := range w {
		if it.Title == title && it.Image == image {
			out := make(Wardrobe, 0, len(w)-1)
			out = append(out, w[:i]...)
			out = append(out, w[i+1:]...)
			return out, it, true
		}
	}
	return w, Item{}, false
}

// Find returns the item with the given title and image.
func (w Wardrobe) Find(title, image string) (Item, bool) {
	for _, it := range w {
		if it.Title == title && it.Image == image {
			return it, true
		}
	}
	return Item{}, false
}

// ByCategory returns the items of category c in wardrobe order.
func (w Wardrobe) ByCategory(c category.Category) []Item {
	var out []Item
	for _, it := range w {
		if it.Category == c {
			out = append(out, it)
		}
	}
	return out
}

// Matching returns the closet matches: items whose category is in
// compatible.
func (w Wardrobe) Matching(compatible []category.Category) []Item {
	var out []Item
	for _, it := range w {
		for _, c := range compatible {
			if it.Category == c {
				out = append(out, it)
				break
			}
		}
	}
	return out
}
