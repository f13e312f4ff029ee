package panel

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/snse/category"
	"github.com/hazyhaar/snse/dbopen"
	"github.com/hazyhaar/snse/domwatch/mutation"
	"github.com/hazyhaar/snse/imageembed"
	"github.com/hazyhaar/snse/imagegen"
	"github.com/hazyhaar/snse/lookcache"
	"github.com/hazyhaar/snse/outfit"
	"github.com/hazyhaar/snse/store"
	"github.com/hazyhaar/snse/watch"
)

// fakeEmbedder keeps data URLs and maps anything else to a fixed data URL,
// failing for refs listed in fail.
type fakeEmbedder struct {
	mu    sync.Mutex
	fail  map[string]bool
	calls []string
}

func (e *fakeEmbedder) Embed(_ context.Context, ref string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, ref)
	if e.fail[ref] {
		return "", &imageembed.FetchFailedError{Ref: ref, Cause: errors.New("status 404")}
	}
	if strings.HasPrefix(ref, "data:") {
		return ref, nil
	}
	return "data:image/jpeg;base64," + strings.TrimPrefix(ref, "https://shop.test/"), nil
}

type fakeGenerator struct {
	mu    sync.Mutex
	ref   string
	err   error
	calls int
	last  outfit.Selection
}

func (g *fakeGenerator) Generate(_ context.Context, sel outfit.Selection, _ outfit.Profile) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.last = sel
	if g.err != nil {
		return "", g.err
	}
	return g.ref, nil
}

type fixture struct {
	c   *Controller
	st  *store.Store
	gen *fakeGenerator
	emb *fakeEmbedder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.New(dbopen.OpenMemory(t))
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{
		st:  st,
		gen: &fakeGenerator{ref: "data:image/png;base64,Y29tcG9zaXRl"},
		emb: &fakeEmbedder{fail: map[string]bool{}},
	}
	f.c, err = New(Config{Store: st, Generator: f.gen, Embedder: f.emb})
	if err != nil {
		t.Fatal(err)
	}
	return f
}

const pageURL = "https://shop.test/p/current"

func (f *fixture) detect(t *testing.T, title, image string) outfit.Item {
	t.Helper()
	item, err := f.c.HandleDetection(context.Background(), mutation.Detection{
		Type:     mutation.TypeProductDetected,
		Title:    title,
		ImageRef: image,
		PageURL:  pageURL,
	})
	if err != nil {
		t.Fatalf("HandleDetection(%q): %v", title, err)
	}
	return item
}

func (f *fixture) save(t *testing.T, title, image string) outfit.Item {
	t.Helper()
	f.detect(t, title, image)
	item, added, err := f.c.Save(context.Background())
	if err != nil || !added {
		t.Fatalf("Save(%q): added=%v err=%v", title, added, err)
	}
	return item
}

// ready saves a top and a bottom, then composes them around a shoe product.
func (f *fixture) ready(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	top := f.save(t, "Cozy Hoodie", "https://shop.test/hoodie.jpg")
	bottom := f.save(t, "Slim Jeans", "https://shop.test/jeans.jpg")
	f.detect(t, "Court Sneaker", "https://shop.test/sneaker.jpg")
	if _, err := f.c.StartOutfit(); err != nil {
		t.Fatal(err)
	}
	for _, it := range []outfit.Item{top, bottom} {
		if _, err := f.c.Toggle(ctx, it.Title, it.Image); err != nil {
			t.Fatalf("Toggle(%q): %v", it.Title, err)
		}
	}
	if !f.c.State().Ready {
		t.Fatal("selection not ready")
	}
}

func TestHandleDetection_Classifies(t *testing.T) {
	f := newFixture(t)
	item := f.detect(t, "  <b>Cozy   Hoodie</b> ", "https://shop.test/hoodie.jpg")
	if item.Title != "Cozy Hoodie" {
		t.Errorf("Title: got %q, want %q", item.Title, "Cozy Hoodie")
	}
	if item.Category != category.Top {
		t.Errorf("Category: got %q, want top", item.Category)
	}
	if item.ID != "" || len(item.CompatibleCategories) != 0 {
		t.Errorf("non-catalog item carries catalog data: %+v", item)
	}
	st := f.c.State()
	if st.Current == nil || st.Current.Title != "Cozy Hoodie" || st.PageURL != pageURL {
		t.Errorf("State: got %+v", st)
	}
}

func TestHandleDetection_Entities(t *testing.T) {
	f := newFixture(t)
	item := f.detect(t, "Tee &amp; Shorts Set", "")
	if item.Title != "Tee & Shorts Set" {
		t.Errorf("Title: got %q, want %q", item.Title, "Tee & Shorts Set")
	}
}

func TestHandleDetection_Catalog(t *testing.T) {
	f := newFixture(t)
	item := f.detect(t, "Essential Popover Hoodie", "https://shop.test/scraped.jpg")
	if item.ID != "hoodie_001" || item.Category != category.Top {
		t.Errorf("item: got %+v", item)
	}
	if item.Image != "images/hoodie_solo.png" {
		t.Errorf("Image: got %q, want catalog image", item.Image)
	}
	if d := f.c.Display(context.Background()); d.Source != SourceOutfit || d.Ref != "images/outfit1.png" {
		t.Errorf("Display: got %+v, want catalog outfit image", d)
	}
}

func TestHandleDetection_BadMessage(t *testing.T) {
	f := newFixture(t)
	for _, d := range []mutation.Detection{
		{Type: mutation.TypeProductDetected, Title: "   "},
		{Type: mutation.TypeProductDetected, Title: "<img src=x>"},
		{Type: "ping", Title: "Cozy Hoodie"},
	} {
		if _, err := f.c.HandleDetection(context.Background(), d); !errors.Is(err, ErrBadMessage) {
			t.Errorf("HandleDetection(%+v): got %v, want %v", d, err, ErrBadMessage)
		}
	}
	if f.c.State().Current != nil {
		t.Error("bad message set a current product")
	}
}

func TestSave_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.save(t, "Cozy Hoodie", "https://shop.test/hoodie.jpg")
	if !strings.HasPrefix(first.Image, "data:") || first.ID == "" || first.SavedAt == 0 {
		t.Errorf("saved item: got %+v", first)
	}

	again, added, err := f.c.Save(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if added {
		t.Error("second Save: got added=true, want false")
	}
	if again.ID != first.ID {
		t.Errorf("second Save: got ID %q, want existing %q", again.ID, first.ID)
	}
	w, _ := f.c.Wardrobe(ctx)
	if len(w) != 1 {
		t.Errorf("wardrobe: got %d items, want 1", len(w))
	}
}

func TestSave_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, _, err := f.c.Save(ctx); !errors.Is(err, outfit.ErrNoProduct) {
		t.Errorf("no product: got %v, want %v", err, outfit.ErrNoProduct)
	}

	f.detect(t, "Cozy Hoodie", "")
	if _, _, err := f.c.Save(ctx); !errors.Is(err, ErrNoImage) {
		t.Errorf("no image: got %v, want %v", err, ErrNoImage)
	}

	f.emb.fail["https://shop.test/gone.jpg"] = true
	f.detect(t, "Cozy Hoodie", "https://shop.test/gone.jpg")
	var fetch *imageembed.FetchFailedError
	if _, _, err := f.c.Save(ctx); !errors.As(err, &fetch) {
		t.Errorf("embed failure: got %v, want FetchFailedError", err)
	}
	if w, _ := f.c.Wardrobe(ctx); len(w) != 0 {
		t.Errorf("wardrobe: got %d items, want 0", len(w))
	}
}

func TestSave_KeepsSelection(t *testing.T) {
	f := newFixture(t)
	f.ready(t)
	before := f.c.State().Selection

	f.detect(t, "Canvas Belt", "https://shop.test/belt.jpg")
	if _, _, err := f.c.Save(context.Background()); err != nil {
		t.Fatal(err)
	}
	if after := f.c.State().Selection; after.Top.Title != before.Top.Title || !after.Ready() {
		t.Errorf("Selection changed by Save: got %+v", after)
	}
}

func TestOutfit_ToggleRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	hoodie := f.save(t, "Cozy Hoodie", "https://shop.test/hoodie.jpg")
	belt := f.save(t, "Canvas Belt", "https://shop.test/belt.jpg")

	if _, err := f.c.Toggle(ctx, hoodie.Title, hoodie.Image); !errors.Is(err, outfit.ErrNotComposing) {
		t.Errorf("Toggle idle: got %v, want %v", err, outfit.ErrNotComposing)
	}

	f.detect(t, "Oversized Tee", "https://shop.test/tee.jpg")
	st, err := f.c.StartOutfit()
	if err != nil {
		t.Fatal(err)
	}
	if st.Mode != outfit.Composing || st.Selection.Top == nil || st.Selection.Top.Title != "Oversized Tee" {
		t.Fatalf("StartOutfit: got %+v", st)
	}
	if _, err := f.c.Toggle(ctx, hoodie.Title, hoodie.Image); !errors.Is(err, outfit.ErrInertCategory) {
		t.Errorf("Toggle same category: got %v, want %v", err, outfit.ErrInertCategory)
	}
	if _, err := f.c.Toggle(ctx, belt.Title, belt.Image); !errors.Is(err, outfit.ErrNoSlot) {
		t.Errorf("Toggle accessory: got %v, want %v", err, outfit.ErrNoSlot)
	}
	if _, err := f.c.Toggle(ctx, "Nope", "data:x"); !errors.Is(err, ErrNotInWardrobe) {
		t.Errorf("Toggle unknown: got %v, want %v", err, ErrNotInWardrobe)
	}

	st = f.c.ExitOutfit()
	if st.Mode != outfit.Idle || len(st.Selection.Items()) != 0 {
		t.Errorf("ExitOutfit: got %+v", st)
	}
}

func TestGenerate_Success(t *testing.T) {
	f := newFixture(t)
	f.ready(t)
	ctx := context.Background()

	ref, err := f.c.Generate(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if ref != f.gen.ref {
		t.Errorf("ref: got %q, want %q", ref, f.gen.ref)
	}
	for _, it := range f.gen.last.Items() {
		if !strings.HasPrefix(it.Image, "data:") {
			t.Errorf("slot %s sent unembedded: %q", it.Category, it.Image)
		}
	}
	if d := f.c.Display(ctx); d.Source != SourceGenerated || d.Ref != ref {
		t.Errorf("Display: got %+v, want generated", d)
	}
	if !f.c.State().Generated {
		t.Error("State.Generated: got false")
	}

	cached, ok, err := lookcache.New(f.st, lookcache.Options{}).Get(ctx, pageURL)
	if err != nil || !ok || cached != ref {
		t.Errorf("look cache: got %q ok=%v err=%v", cached, ok, err)
	}
}

func TestGenerate_NotReady(t *testing.T) {
	f := newFixture(t)
	f.detect(t, "Court Sneaker", "https://shop.test/sneaker.jpg")
	if _, err := f.c.Generate(context.Background()); !errors.Is(err, ErrNotReady) {
		t.Errorf("idle: got %v, want %v", err, ErrNotReady)
	}
	f.c.StartOutfit()
	if _, err := f.c.Generate(context.Background()); !errors.Is(err, ErrNotReady) {
		t.Errorf("one slot: got %v, want %v", err, ErrNotReady)
	}
	if f.gen.calls != 0 {
		t.Errorf("gateway calls: got %d, want 0", f.gen.calls)
	}
}

func TestGenerate_FailureLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	f.ready(t)
	ctx := context.Background()
	before := f.c.State()
	wBefore, _ := f.c.Wardrobe(ctx)

	f.gen.err = &imagegen.RemoteRejectedError{Status: 429, Message: "quota exceeded"}
	_, err := f.c.Generate(ctx)
	var rejected *imagegen.RemoteRejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("Generate: got %v, want RemoteRejectedError", err)
	}
	if !strings.Contains(Describe(err), "quota exceeded") {
		t.Errorf("Describe: got %q", Describe(err))
	}

	after := f.c.State()
	if after.Mode != before.Mode || after.Generated || !after.Ready {
		t.Errorf("State: got %+v, want %+v", after, before)
	}
	if wAfter, _ := f.c.Wardrobe(ctx); len(wAfter) != len(wBefore) {
		t.Errorf("wardrobe: got %d items, want %d", len(wAfter), len(wBefore))
	}
	if _, ok, _ := lookcache.New(f.st, lookcache.Options{}).Get(ctx, pageURL); ok {
		t.Error("look cached after failed generation")
	}
	if d := f.c.Display(ctx); d.Source != SourceProduct {
		t.Errorf("Display: got %+v, want product image", d)
	}
}

func TestGenerate_SlotEmbedFailureSkipsGateway(t *testing.T) {
	f := newFixture(t)
	f.ready(t)
	f.emb.fail["https://shop.test/sneaker.jpg"] = true

	var fetch *imageembed.FetchFailedError
	if _, err := f.c.Generate(context.Background()); !errors.As(err, &fetch) {
		t.Fatalf("Generate: got %v, want FetchFailedError", err)
	}
	if f.gen.calls != 0 {
		t.Errorf("gateway calls: got %d, want 0", f.gen.calls)
	}
}

func TestDisplay_Precedence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if d := f.c.Display(ctx); d != (Displayed{}) {
		t.Errorf("empty: got %+v", d)
	}

	f.detect(t, "Cozy Hoodie", "https://shop.test/hoodie.jpg")
	if d := f.c.Display(ctx); d.Source != SourceProduct || d.Ref != "https://shop.test/hoodie.jpg" {
		t.Errorf("product: got %+v", d)
	}

	if err := lookcache.New(f.st, lookcache.Options{}).Put(ctx, pageURL+"#reviews", "data:image/png;base64,b2xk"); err != nil {
		t.Fatal(err)
	}
	// A fresh controller has no generated image but shares the store.
	other, err := New(Config{Store: f.st, Generator: f.gen, Embedder: f.emb})
	if err != nil {
		t.Fatal(err)
	}
	other.HandleDetection(ctx, mutation.Detection{Title: "Cozy Hoodie", ImageRef: "https://shop.test/hoodie.jpg", PageURL: pageURL})
	if d := other.Display(ctx); d.Source != SourceCached || d.Ref != "data:image/png;base64,b2xk" {
		t.Errorf("cached: got %+v", d)
	}
}

func TestHandleDetection_NewPageForgetsGenerated(t *testing.T) {
	f := newFixture(t)
	f.ready(t)
	ctx := context.Background()
	if _, err := f.c.Generate(ctx); err != nil {
		t.Fatal(err)
	}

	// Same page, same product: the composite stays.
	f.detect(t, "Court Sneaker", "https://shop.test/sneaker.jpg")
	if !f.c.State().Generated {
		t.Error("Generated reset by a repeated detection")
	}

	f.c.HandleDetection(ctx, mutation.Detection{Title: "Trail Boot", ImageRef: "https://shop.test/boot.jpg", PageURL: "https://shop.test/p/boot"})
	st := f.c.State()
	if st.Generated {
		t.Error("Generated kept across pages")
	}
	if !st.Ready {
		t.Error("selection lost on navigation")
	}
	if d := f.c.Display(ctx); d.Source != SourceProduct {
		t.Errorf("Display: got %+v, want product image", d)
	}
}

func TestRemove_Evicts(t *testing.T) {
	f := newFixture(t)
	f.ready(t)
	ctx := context.Background()
	top := *f.c.State().Selection.Top

	removed, err := f.c.Remove(ctx, top.Title, top.Image)
	if err != nil {
		t.Fatal(err)
	}
	if removed.Title != "Cozy Hoodie" {
		t.Errorf("removed: got %q", removed.Title)
	}
	st := f.c.State()
	if st.Selection.Top != nil || st.Ready {
		t.Errorf("Selection: got %+v, want top evicted", st.Selection)
	}
	if st.Mode != outfit.Composing {
		t.Errorf("Mode: got %q, want composing", st.Mode)
	}
	if w, _ := f.c.Wardrobe(ctx); len(w) != 1 {
		t.Errorf("wardrobe: got %d items, want 1", len(w))
	}

	if _, err := f.c.Remove(ctx, top.Title, top.Image); !errors.Is(err, ErrNotInWardrobe) {
		t.Errorf("second Remove: got %v, want %v", err, ErrNotInWardrobe)
	}
}

func TestClosetMatches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.save(t, "Slim Jeans", "https://shop.test/jeans.jpg")
	f.save(t, "Oversized Tee", "https://shop.test/tee.jpg")
	f.save(t, "Court Sneaker", "https://shop.test/sneaker.jpg")

	f.detect(t, "Cozy Hoodie", "https://shop.test/hoodie.jpg")
	if got, _ := f.c.ClosetMatches(ctx); len(got) != 0 {
		t.Errorf("non-catalog product: got %d matches, want 0", len(got))
	}

	f.detect(t, "Essential Popover Hoodie", "")
	got, err := f.c.ClosetMatches(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("matches: got %d, want 2", len(got))
	}
	for _, it := range got {
		if it.Category == category.Top {
			t.Errorf("matched a top: %q", it.Title)
		}
	}
}

func TestSync(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.c.Sync(ctx); err != nil {
		t.Fatal(err)
	}
	if f.c.State().Current != nil {
		t.Error("Sync on empty store set a product")
	}

	err := f.st.PutLastDetected(ctx, store.Detected{Title: "Slim Jeans", Image: "https://shop.test/jeans.jpg", URL: pageURL})
	if err != nil {
		t.Fatal(err)
	}
	if err := f.c.Sync(ctx); err != nil {
		t.Fatal(err)
	}
	st := f.c.State()
	if st.Current == nil || st.Current.Category != category.Bottom || st.PageURL != pageURL {
		t.Errorf("State: got %+v", st)
	}
}

// waitFor polls cond until it holds or a second passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSync_UnrelatedWritesKeepMessageProduct(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	err := f.st.PutLastDetected(ctx, store.Detected{Title: "Slim Jeans", Image: "https://shop.test/jeans.jpg", URL: "https://shop.test/p/a"})
	if err != nil {
		t.Fatal(err)
	}
	if err := f.c.Sync(ctx); err != nil {
		t.Fatal(err)
	}

	w := watch.New(f.st.Version, watch.Options{Interval: 5 * time.Millisecond})
	done := make(chan struct{})
	go func() {
		w.OnChange(ctx, f.c.Sync)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()
	waitFor(t, "first version check", func() bool { return w.Stats().Checks > 0 })

	if _, err := f.c.HandleDetection(ctx, mutation.Detection{
		Type: mutation.TypeProductDetected, Title: "Cozy Hoodie",
		ImageRef: "https://shop.test/hoodie.jpg", PageURL: "https://shop.test/p/b",
	}); err != nil {
		t.Fatal(err)
	}
	if _, _, err := f.c.Save(ctx); err != nil {
		t.Fatal(err)
	}
	rev, err := f.st.Version(ctx)
	if err != nil {
		t.Fatal(err)
	}
	waitFor(t, "save revision", func() bool { return w.Version() == rev })

	st := f.c.State()
	if st.Current == nil || st.Current.Title != "Cozy Hoodie" || st.PageURL != "https://shop.test/p/b" {
		t.Fatalf("after save: got current=%+v url=%q, want Cozy Hoodie on /p/b", st.Current, st.PageURL)
	}

	// A new detection from the watcher still applies.
	err = f.st.PutLastDetected(ctx, store.Detected{Title: "Court Sneaker", Image: "https://shop.test/sneaker.jpg", URL: "https://shop.test/p/c"})
	if err != nil {
		t.Fatal(err)
	}
	waitFor(t, "watcher detection", func() bool {
		cur := f.c.State().Current
		return cur != nil && cur.Title == "Court Sneaker"
	})
}

func TestSync_KeepsGeneratedAcrossUnrelatedWrites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	err := f.st.PutLastDetected(ctx, store.Detected{Title: "Slim Jeans", Image: "https://shop.test/jeans.jpg", URL: "https://shop.test/p/a"})
	if err != nil {
		t.Fatal(err)
	}
	if err := f.c.Sync(ctx); err != nil {
		t.Fatal(err)
	}
	f.ready(t)
	if _, err := f.c.Generate(ctx); err != nil {
		t.Fatal(err)
	}
	if err := f.c.Sync(ctx); err != nil {
		t.Fatal(err)
	}
	if d := f.c.Display(ctx); d.Source != SourceGenerated {
		t.Errorf("Display: got %+v, want generated", d)
	}
}

func TestHandleDetection_ReturningPageRereadsLook(t *testing.T) {
	f := newFixture(t)
	f.ready(t)
	ctx := context.Background()
	if _, err := f.c.Generate(ctx); err != nil {
		t.Fatal(err)
	}

	// Another process replaces the look for this page.
	if err := lookcache.New(f.st, lookcache.Options{}).Put(ctx, pageURL, "data:image/png;base64,bmV3"); err != nil {
		t.Fatal(err)
	}

	f.c.HandleDetection(ctx, mutation.Detection{Title: "Trail Boot", ImageRef: "https://shop.test/boot.jpg", PageURL: "https://shop.test/p/boot"})
	f.detect(t, "Court Sneaker", "https://shop.test/sneaker.jpg")
	if d := f.c.Display(ctx); d.Source != SourceCached || d.Ref != "data:image/png;base64,bmV3" {
		t.Errorf("Display: got %+v, want the replaced look", d)
	}
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key, likeness, age := " sk-test ", "https://shop.test/me.jpg", "31"

	p, err := f.c.UpdateProfile(ctx, ProfilePatch{APIKey: &key, Likeness: &likeness, Age: &age})
	if err != nil {
		t.Fatal(err)
	}
	if p.APIKey != "sk-test" || p.Age != "31" {
		t.Errorf("profile: got %+v", p)
	}
	if !strings.HasPrefix(p.Likeness, "data:image/") {
		t.Errorf("Likeness: got %q, want embedded", p.Likeness)
	}

	none := ""
	if _, err := f.c.UpdateProfile(ctx, ProfilePatch{Age: &none}); err != nil {
		t.Fatal(err)
	}
	got, _ := f.c.Profile(ctx)
	if got.Age != "" || got.APIKey != "sk-test" {
		t.Errorf("after clear: got %+v", got)
	}
}
