package outfit

import (
	"errors"
	"testing"

	"github.com/hazyhaar/snse/category"
)

func item(title string, c category.Category) Item {
	return Item{ID: title, Title: title, Image: "data:image/png;base64," + title, Category: c}
}

var (
	hoodie  = item("Essential Popover Hoodie", category.Top)
	tee     = item("Box Tee", category.Top)
	jean    = item("Ultra Baggy Jean", category.Bottom)
	sneaker = item("City Runner Sneakers", category.Shoes)
	boot    = item("Chelsea Boot", category.Shoes)
	bag     = item("Tote Bag", category.Accessory)
)

func TestWardrobe_AddIdempotent(t *testing.T) {
	var w Wardrobe
	w, added := w.Add(hoodie)
	if !added {
		t.Fatal("first Add: got false, want true")
	}
	dup := hoodie
	dup.ID = "other"
	w, added = w.Add(dup)
	if added {
		t.Fatal("duplicate Add: got true, want false")
	}
	if len(w) != 1 {
		t.Fatalf("len: got %d, want 1", len(w))
	}

	sameTitle := hoodie
	sameTitle.Image = "data:image/png;base64,other"
	if w, added = w.Add(sameTitle); !added || len(w) != 2 {
		t.Fatalf("same title, other image: added=%v len=%d", added, len(w))
	}
}

func TestWardrobe_AddDoesNotAlias(t *testing.T) {
	base := make(Wardrobe, 1, 4)
	base[0] = hoodie
	a, _ := base.Add(jean)
	b, _ := base.Add(sneaker)
	if a[1].Title != jean.Title {
		t.Fatalf("a[1]: got %q, want %q", a[1].Title, jean.Title)
	}
	if b[1].Title != sneaker.Title {
		t.Fatalf("b[1]: got %q, want %q", b[1].Title, sneaker.Title)
	}
}

func TestWardrobe_Remove(t *testing.T) {
	w := Wardrobe{hoodie, jean, sneaker}
	w2, removed, ok := w.Remove(jean.Title, jean.Image)
	if !ok || removed.Title != jean.Title {
		t.Fatalf("Remove: ok=%v removed=%q", ok, removed.Title)
	}
	if len(w2) != 2 || w2[0].Title != hoodie.Title || w2[1].Title != sneaker.Title {
		t.Fatalf("after Remove: got %+v", w2)
	}
	if len(w) != 3 {
		t.Fatal("Remove mutated the receiver length")
	}
	if _, _, ok := w2.Remove("missing", ""); ok {
		t.Fatal("Remove missing: got true")
	}
}

func TestWardrobe_ByCategoryAndMatching(t *testing.T) {
	w := Wardrobe{hoodie, jean, tee, sneaker, bag}
	if got := w.ByCategory(category.Top); len(got) != 2 || got[0].Title != hoodie.Title || got[1].Title != tee.Title {
		t.Errorf("ByCategory(top): got %+v", got)
	}
	got := w.Matching([]category.Category{category.Bottom, category.Shoes})
	if len(got) != 2 || got[0].Title != jean.Title || got[1].Title != sneaker.Title {
		t.Errorf("Matching: got %+v", got)
	}
	if got := w.Matching(nil); len(got) != 0 {
		t.Errorf("Matching(nil): got %d items", len(got))
	}
}

func TestStart_RequiresProduct(t *testing.T) {
	if _, err := Start(Session{}); !errors.Is(err, ErrNoProduct) {
		t.Fatalf("got %v, want ErrNoProduct", err)
	}
}

func TestStart_SeedsCurrentSlot(t *testing.T) {
	s, err := Start(Focus(Session{}, hoodie))
	if err != nil {
		t.Fatal(err)
	}
	if s.Mode != Composing {
		t.Fatalf("mode: got %q, want %q", s.Mode, Composing)
	}
	if s.Selection.Top == nil || s.Selection.Top.Title != hoodie.Title {
		t.Fatalf("top: got %+v", s.Selection.Top)
	}
	if s.Selection.Bottom != nil || s.Selection.Shoes != nil {
		t.Fatal("other slots seeded")
	}
}

func TestStart_AccessorySeedsNothing(t *testing.T) {
	s, err := Start(Focus(Session{}, bag))
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Selection.Items()) != 0 {
		t.Fatalf("selection: got %+v", s.Selection.Items())
	}
}

func TestToggle_NotComposing(t *testing.T) {
	if _, err := Toggle(Focus(Session{}, hoodie), jean); !errors.Is(err, ErrNotComposing) {
		t.Fatalf("got %v, want ErrNotComposing", err)
	}
}

func TestToggle_InertCategory(t *testing.T) {
	s, _ := Start(Focus(Session{}, hoodie))
	next, err := Toggle(s, tee)
	if !errors.Is(err, ErrInertCategory) {
		t.Fatalf("got %v, want ErrInertCategory", err)
	}
	if next.Selection.Top.Title != hoodie.Title {
		t.Fatal("inert toggle changed the top slot")
	}
}

func TestToggle_Accessory(t *testing.T) {
	s, _ := Start(Focus(Session{}, hoodie))
	if _, err := Toggle(s, bag); !errors.Is(err, ErrNoSlot) {
		t.Fatalf("got %v, want ErrNoSlot", err)
	}
}

func TestToggle_ReplaceThenClear(t *testing.T) {
	s, _ := Start(Focus(Session{}, hoodie))

	s, err := Toggle(s, sneaker)
	if err != nil {
		t.Fatal(err)
	}
	s, err = Toggle(s, boot)
	if err != nil {
		t.Fatal(err)
	}
	if s.Selection.Shoes == nil || s.Selection.Shoes.Title != boot.Title {
		t.Fatalf("shoes after replace: got %+v", s.Selection.Shoes)
	}

	s, err = Toggle(s, boot)
	if err != nil {
		t.Fatal(err)
	}
	if s.Selection.Shoes != nil {
		t.Fatalf("shoes after second toggle: got %+v, want nil", s.Selection.Shoes)
	}
}

func TestReadyAndExit(t *testing.T) {
	s, _ := Start(Focus(Session{}, hoodie))
	s, _ = Toggle(s, jean)
	if s.Selection.Ready() {
		t.Fatal("ready with two slots")
	}
	s, _ = Toggle(s, sneaker)
	if !s.Selection.Ready() {
		t.Fatal("not ready with three slots")
	}
	items := s.Selection.Items()
	if len(items) != 3 || items[0].Title != hoodie.Title || items[1].Title != jean.Title || items[2].Title != sneaker.Title {
		t.Fatalf("Items order: got %+v", items)
	}

	s = Exit(s)
	if s.Mode != Idle {
		t.Fatalf("mode: got %q, want idle", s.Mode)
	}
	if s.Selection.Ready() || len(s.Selection.Items()) != 0 {
		t.Fatal("Exit left slots filled")
	}
	if s.Current == nil || s.Current.Title != hoodie.Title {
		t.Fatal("Exit dropped the current product")
	}
}

func TestExitIdempotent(t *testing.T) {
	s := Exit(Exit(Session{}))
	if s.Mode != Idle || len(s.Selection.Items()) != 0 {
		t.Fatalf("got %+v", s)
	}
}

func TestFocusKeepsSelection(t *testing.T) {
	s, _ := Start(Focus(Session{}, hoodie))
	s, _ = Toggle(s, jean)
	s = Focus(s, sneaker)
	if s.Selection.Bottom == nil || s.Selection.Top == nil {
		t.Fatal("Focus cleared the selection")
	}
	if s.Current.Title != sneaker.Title {
		t.Fatalf("current: got %q", s.Current.Title)
	}
}

func TestEvict(t *testing.T) {
	s, _ := Start(Focus(Session{}, hoodie))
	s, _ = Toggle(s, jean)
	s = Evict(s, jean)
	if s.Selection.Bottom != nil {
		t.Fatal("Evict left the bottom slot")
	}
	if !s.Selection.Contains(hoodie) {
		t.Fatal("Evict cleared an unrelated slot")
	}
}

func TestSessionValueSemantics(t *testing.T) {
	s, _ := Start(Focus(Session{}, hoodie))
	before := s
	after, _ := Toggle(s, jean)
	if before.Selection.Bottom != nil {
		t.Fatal("Toggle mutated the input session")
	}
	if after.Selection.Bottom == nil {
		t.Fatal("Toggle result missing bottom")
	}
}

func TestProfile(t *testing.T) {
	var p Profile
	if got := p.AgeOrDefault(); got != "25" {
		t.Errorf("AgeOrDefault: got %q, want 25", got)
	}
	p = Profile{APIKey: "secret", Likeness: "data:image/png;base64,x", Age: "31"}
	if got := p.AgeOrDefault(); got != "31" {
		t.Errorf("AgeOrDefault: got %q, want 31", got)
	}
	r := p.Redacted()
	if r.APIKey != "set" || r.Likeness != "set" {
		t.Errorf("Redacted: got %+v", r)
	}
	if p.APIKey != "secret" {
		t.Error("Redacted mutated the receiver")
	}
}

func TestItemCompatibleWith(t *testing.T) {
	it := Item{CompatibleCategories: []category.Category{category.Bottom, category.Shoes}}
	if !it.CompatibleWith(category.Shoes) || it.CompatibleWith(category.Top) {
		t.Fatalf("CompatibleWith: got wrong result for %+v", it.CompatibleCategories)
	}
}
