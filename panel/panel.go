// Package panel is the composition controller: it owns the outfit session,
// reacts to product detections and drives the wardrobe, the look cache and
// the image generation gateway. Every operation is serialized on one mutex,
// so the session is only ever touched by one caller at a time.
//
// The controller is exposed over HTTP (Handler) and MCP (RegisterMCP).
package panel

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/snse/catalog"
	"github.com/hazyhaar/snse/category"
	"github.com/hazyhaar/snse/domwatch/mutation"
	"github.com/hazyhaar/snse/idgen"
	"github.com/hazyhaar/snse/imageembed"
	"github.com/hazyhaar/snse/imagegen"
	"github.com/hazyhaar/snse/lookcache"
	"github.com/hazyhaar/snse/outfit"
	"github.com/hazyhaar/snse/store"
)

// Generator produces a composite image for a selection.
type Generator interface {
	Generate(ctx context.Context, sel outfit.Selection, p outfit.Profile) (string, error)
}

// Embedder turns an image reference into a data URL.
type Embedder interface {
	Embed(ctx context.Context, ref string) (string, error)
}

// Config wires a Controller. Store is required; the rest default.
type Config struct {
	Store     *store.Store
	Catalog   *catalog.Catalog // default: catalog.Default()
	Looks     *lookcache.Cache // default: lookcache over Store
	Generator Generator        // default: imagegen.New()
	Embedder  Embedder         // default: imageembed.New()
	Logger    *slog.Logger
}

// Controller owns the composition context.
type Controller struct {
	st       *store.Store
	cat      *catalog.Catalog
	looks    *lookcache.Cache
	gen      Generator
	embed    Embedder
	sanitize *bluemonday.Policy
	logger   *slog.Logger
	now      func() time.Time
	newID    idgen.Generator

	mu            sync.Mutex
	session       outfit.Session
	pageURL       string
	lastGenerated string
	synced        store.Detected
}

// New creates a Controller.
func New(cfg Config) (*Controller, error) {
	if cfg.Store == nil {
		return nil, errors.New("panel: store is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Catalog == nil {
		cfg.Catalog = catalog.Default()
	}
	if cfg.Looks == nil {
		cfg.Looks = lookcache.New(cfg.Store, lookcache.Options{Logger: cfg.Logger})
	}
	if cfg.Generator == nil {
		cfg.Generator = imagegen.New(imagegen.WithLogger(cfg.Logger))
	}
	if cfg.Embedder == nil {
		cfg.Embedder = imageembed.New(imageembed.WithLogger(cfg.Logger))
	}
	return &Controller{
		st:       cfg.Store,
		cat:      cfg.Catalog,
		looks:    cfg.Looks,
		gen:      cfg.Generator,
		embed:    cfg.Embedder,
		sanitize: bluemonday.StrictPolicy(),
		logger:   cfg.Logger,
		now:      time.Now,
		newID:    idgen.Item,
		session:  outfit.Session{Mode: outfit.Idle},
	}, nil
}

// State is a snapshot of the composition context.
type State struct {
	Mode      outfit.Mode      `json:"mode"`
	Current   *outfit.Item     `json:"current,omitempty"`
	Selection outfit.Selection `json:"selection"`
	Ready     bool             `json:"ready"`
	PageURL   string           `json:"pageUrl,omitempty"`
	Generated bool             `json:"generated"`
}

func (c *Controller) stateLocked() State {
	s := State{
		Mode:      c.session.Mode,
		Selection: c.session.Selection,
		Ready:     c.session.Selection.Ready(),
		PageURL:   c.pageURL,
		Generated: c.lastGenerated != "",
	}
	if c.session.Current != nil {
		cur := *c.session.Current
		s.Current = &cur
	}
	return s
}

// State returns the current composition context.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// HandleDetection applies a product-detected message: the title is looked
// up in the catalog, otherwise classified, and becomes the current product.
// The selection is kept. A new page or title forgets the composite
// generated for the previous product.
func (c *Controller) HandleDetection(ctx context.Context, d mutation.Detection) (outfit.Item, error) {
	if d.Type != "" && d.Type != mutation.TypeProductDetected {
		return outfit.Item{}, fmt.Errorf("%w: type %q", ErrBadMessage, d.Type)
	}
	title := c.cleanTitle(d.Title)
	if title == "" {
		return outfit.Item{}, ErrBadMessage
	}
	imageRef := strings.TrimSpace(d.ImageRef)

	var item outfit.Item
	if e, ok := c.cat.Lookup(title); ok {
		item = e.Item(title)
		if item.Image == "" {
			item.Image = imageRef
		}
	} else {
		item = outfit.Item{
			Title:    title,
			Image:    imageRef,
			Category: category.Classify(title),
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if d.PageURL != c.pageURL || c.session.Current == nil || c.session.Current.Title != title {
		c.lastGenerated = ""
	}
	if d.PageURL != c.pageURL {
		c.looks.Forget(d.PageURL)
	}
	c.pageURL = d.PageURL
	c.session = outfit.Focus(c.session, item)

	c.logger.Info("panel: product detected",
		"title", item.Title, "category", item.Category, "catalog", item.ID != "", "url", d.PageURL)
	return item, nil
}

func (c *Controller) cleanTitle(raw string) string {
	t := html.UnescapeString(c.sanitize.Sanitize(raw))
	return strings.Join(strings.Fields(t), " ")
}

// Sync re-reads the last detection written to the store by a watcher and
// applies it. A stored detection is applied once: Sync is a no-op until the
// watcher writes a different one, so unrelated store writes never replace a
// product that arrived over a message.
func (c *Controller) Sync(ctx context.Context) error {
	d, ok, err := c.st.LastDetected(ctx)
	if err != nil {
		return fmt.Errorf("panel: sync: %w", err)
	}
	if !ok {
		return nil
	}
	c.mu.Lock()
	seen := d == c.synced
	c.synced = d
	c.mu.Unlock()
	if seen {
		return nil
	}
	_, err = c.HandleDetection(ctx, mutation.Detection{
		Type:     mutation.TypeProductDetected,
		Title:    d.Title,
		ImageRef: d.Image,
		PageURL:  d.URL,
	})
	return err
}

// Save adds the current product to the wardrobe with its image embedded.
// The bool is false when an identical item was already saved. The
// selection is never touched.
func (c *Controller) Save(ctx context.Context) (outfit.Item, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.Current == nil {
		return outfit.Item{}, false, outfit.ErrNoProduct
	}
	item := *c.session.Current
	if item.Image == "" {
		return outfit.Item{}, false, ErrNoImage
	}

	data, err := c.embed.Embed(ctx, item.Image)
	if err != nil {
		return outfit.Item{}, false, err
	}
	item.Image = data
	item.SavedAt = c.now().UnixMilli()
	if item.ID == "" {
		item.ID = c.newID()
	}

	var added bool
	err = c.st.UpdateWardrobe(ctx, func(w outfit.Wardrobe) (outfit.Wardrobe, error) {
		next, ok := w.Add(item)
		if !ok {
			item, _ = w.Find(item.Title, item.Image)
			return nil, store.ErrNoChange
		}
		added = true
		return next, nil
	})
	if err != nil {
		return outfit.Item{}, false, fmt.Errorf("panel: save: %w", err)
	}
	if !added {
		c.logger.Info("panel: item already saved", "title", item.Title)
		return item, false, nil
	}
	c.logger.Info("panel: item saved", "title", item.Title, "id", item.ID, "category", item.Category)
	return item, true, nil
}

// Remove deletes a wardrobe item and clears any slot it occupies.
func (c *Controller) Remove(ctx context.Context, title, image string) (outfit.Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var removed outfit.Item
	err := c.st.UpdateWardrobe(ctx, func(w outfit.Wardrobe) (outfit.Wardrobe, error) {
		next, it, ok := w.Remove(title, image)
		if !ok {
			return nil, ErrNotInWardrobe
		}
		removed = it
		return next, nil
	})
	if err != nil {
		return outfit.Item{}, err
	}
	c.session = outfit.Evict(c.session, removed)
	c.logger.Info("panel: item removed", "title", removed.Title, "ready", c.session.Selection.Ready())
	return removed, nil
}

// Wardrobe returns the saved items.
func (c *Controller) Wardrobe(ctx context.Context) (outfit.Wardrobe, error) {
	return c.st.Wardrobe(ctx)
}

// StartOutfit enters composing mode.
func (c *Controller) StartOutfit() (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next, err := outfit.Start(c.session)
	if err != nil {
		return c.stateLocked(), err
	}
	c.session = next
	return c.stateLocked(), nil
}

// Toggle selects or deselects the saved item matching title and image.
func (c *Controller) Toggle(ctx context.Context, title, image string) (State, error) {
	w, err := c.st.Wardrobe(ctx)
	if err != nil {
		return State{}, err
	}
	item, ok := w.Find(title, image)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !ok {
		return c.stateLocked(), ErrNotInWardrobe
	}
	next, err := outfit.Toggle(c.session, item)
	if err != nil {
		return c.stateLocked(), err
	}
	c.session = next
	return c.stateLocked(), nil
}

// ExitOutfit clears the selection and returns to idle.
func (c *Controller) ExitOutfit() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = outfit.Exit(c.session)
	return c.stateLocked()
}

// Generate renders the selection on the user's likeness. Slot images are
// embedded one at a time and the first failure aborts before any request
// is sent. On success the composite becomes this session's display image
// and is cached for the current page; on failure nothing changes.
func (c *Controller) Generate(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.Mode != outfit.Composing || !c.session.Selection.Ready() {
		return "", ErrNotReady
	}
	profile, err := c.st.Profile(ctx)
	if err != nil {
		return "", fmt.Errorf("panel: generate: %w", err)
	}

	sel := c.session.Selection
	var embedded outfit.Selection
	for _, cat := range category.Slotted() {
		it := **sel.Slot(cat)
		data, err := c.embed.Embed(ctx, it.Image)
		if err != nil {
			c.logger.Warn("panel: slot image unusable", "slot", cat, "title", it.Title, "error", err)
			return "", err
		}
		it.Image = data
		*embedded.Slot(cat) = &it
	}

	ref, err := c.gen.Generate(ctx, embedded, profile)
	if err != nil {
		return "", err
	}
	c.lastGenerated = ref

	if c.pageURL != "" {
		if err := c.looks.Put(ctx, c.pageURL, ref); err != nil {
			c.logger.Warn("panel: cache look failed", "url", c.pageURL, "error", err)
		}
	}
	c.logger.Info("panel: outfit generated", "url", c.pageURL, "bytes", len(ref))
	return ref, nil
}

// Display sources, in precedence order.
const (
	SourceGenerated = "generated"
	SourceCached    = "cached"
	SourceOutfit    = "outfit"
	SourceProduct   = "product"
)

// Displayed is the image the panel shows.
type Displayed struct {
	Ref    string `json:"ref,omitempty"`
	Source string `json:"source,omitempty"`
}

// Display picks the image to show: the composite generated this session,
// else the cached look for the current page, else the catalog outfit
// image, else the product image. A look cache failure counts as a miss.
func (c *Controller) Display(ctx context.Context) Displayed {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lastGenerated != "" {
		return Displayed{Ref: c.lastGenerated, Source: SourceGenerated}
	}
	if c.pageURL != "" && c.session.Current != nil {
		ref, ok, err := c.looks.Get(ctx, c.pageURL)
		if err != nil {
			c.logger.Warn("panel: look cache read failed", "url", c.pageURL, "error", err)
		} else if ok {
			return Displayed{Ref: ref, Source: SourceCached}
		}
	}
	cur := c.session.Current
	switch {
	case cur == nil:
		return Displayed{}
	case cur.OutfitImage != "":
		return Displayed{Ref: cur.OutfitImage, Source: SourceOutfit}
	case cur.Image != "":
		return Displayed{Ref: cur.Image, Source: SourceProduct}
	}
	return Displayed{}
}

// ClosetMatches returns the saved items compatible with the current
// catalog product. Products outside the catalog have no matches.
func (c *Controller) ClosetMatches(ctx context.Context) ([]outfit.Item, error) {
	c.mu.Lock()
	var compatible []category.Category
	if c.session.Current != nil {
		compatible = c.session.Current.CompatibleCategories
	}
	c.mu.Unlock()

	if len(compatible) == 0 {
		return nil, nil
	}
	w, err := c.st.Wardrobe(ctx)
	if err != nil {
		return nil, err
	}
	return w.Matching(compatible), nil
}

// Profile returns the stored profile, credential included.
func (c *Controller) Profile(ctx context.Context) (outfit.Profile, error) {
	return c.st.Profile(ctx)
}

// ProfilePatch updates profile fields. Nil leaves a field as is; an empty
// string clears it.
type ProfilePatch struct {
	APIKey    *string `json:"apiKey,omitempty"`
	Likeness  *string `json:"likeness,omitempty"`
	Height    *string `json:"height,omitempty"`
	Ethnicity *string `json:"ethnicity,omitempty"`
	Age       *string `json:"age,omitempty"`
	Fit       *string `json:"fit,omitempty"`
	Gender    *string `json:"gender,omitempty"`
	BodyType  *string `json:"bodyType,omitempty"`
}

// UpdateProfile applies patch. A likeness given as a URL is embedded first.
func (c *Controller) UpdateProfile(ctx context.Context, patch ProfilePatch) (outfit.Profile, error) {
	if patch.Likeness != nil && *patch.Likeness != "" {
		data, err := c.embed.Embed(ctx, *patch.Likeness)
		if err != nil {
			return outfit.Profile{}, err
		}
		patch.Likeness = &data
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	p, err := c.st.Profile(ctx)
	if err != nil {
		return outfit.Profile{}, err
	}
	for dst, src := range map[*string]*string{
		&p.APIKey:    patch.APIKey,
		&p.Likeness:  patch.Likeness,
		&p.Height:    patch.Height,
		&p.Ethnicity: patch.Ethnicity,
		&p.Age:       patch.Age,
		&p.Fit:       patch.Fit,
		&p.Gender:    patch.Gender,
		&p.BodyType:  patch.BodyType,
	} {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	if err := c.st.PutProfile(ctx, p); err != nil {
		return outfit.Profile{}, err
	}
	return p, nil
}
