package outfit

import (
	"errors"

	"github.com/hazyhaar/snse/category"
)

// Mode is the composition mode.
type Mode string

const (
	Idle      Mode = "idle"
	Composing Mode = "composing"
)

var (
	// ErrNoProduct is returned by Start without a current product.
	ErrNoProduct = errors.New("outfit: no current product")
	// ErrNotComposing is returned by Toggle outside composing mode.
	ErrNotComposing = errors.New("outfit: not composing")
	// ErrInertCategory is returned when toggling an item of the current
	// product's category; that slot belongs to the product.
	ErrInertCategory = errors.New("outfit: item shares the current product's category")
	// ErrNoSlot is returned when toggling an item with no slot (accessory).
	ErrNoSlot = errors.New("outfit: category has no outfit slot")
)

// Session is the composition context.
type Session struct {
	Mode      Mode      `json:"mode"`
	Current   *Item     `json:"current,omitempty"`
	Selection Selection `json:"selection"`
}

// Focus sets the current product. The selection is kept.
func Focus(s Session, item Item) Session {
	s.Current = &item
	return s
}

// Start enters composing mode, seeding the current product's slot.
// Accessory products seed nothing.
func Start(s Session) (Session, error) {
	if s.Current == nil {
		return s, ErrNoProduct
	}
	if slot := s.Selection.Slot(s.Current.Category); slot != nil {
		cur := *s.Current
		*slot = &cur
	}
	s.Mode = Composing
	return s, nil
}

// Toggle places item in its slot, or clears the slot when item already
// occupies it.
func Toggle(s Session, item Item) (Session, error) {
	if s.Mode != Composing {
		return s, ErrNotComposing
	}
	if s.Current != nil && item.Category == s.Current.Category {
		return s, ErrInertCategory
	}
	slot := s.Selection.Slot(item.Category)
	if slot == nil {
		return s, ErrNoSlot
	}
	if *slot != nil && (*slot).Same(item) {
		*slot = nil
	} else {
		*slot = &item
	}
	return s, nil
}

// Exit clears every slot and returns to idle.
func Exit(s Session) Session {
	s.Selection = Selection{}
	s.Mode = Idle
	return s
}

// Evict clears any slot occupied by item.
func Evict(s Session, item Item) Session {
	for _, c := range category.Slotted() {
		slot := s.Selection.Slot(c)
		if *slot != nil && (*slot).Same(item) {
			*slot = nil
		}
	}
	return s
}
