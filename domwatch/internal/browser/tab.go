package browser

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/snse/domwatch/mutation"
)

//go:embed mutations.js
var mutationsJS string

// bindingName is the window function the injected observer calls.
const bindingName = "__snse_mutations"

// navTimeout bounds navigation and load.
const navTimeout = 30 * time.Second

// Tab wraps a stealth Rod page.
type Tab struct {
	Page    *rod.Page
	PageURL string
	manager *Manager
	stop    context.CancelFunc
}

// OpenTab creates a stealth tab and navigates it to pageURL.
func OpenTab(ctx context.Context, mgr *Manager, pageURL string) (*Tab, error) {
	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	if len(mgr.cfg.ResourceBlocking) > 0 {
		if err := applyResourceBlocking(page, mgr.cfg.ResourceBlocking); err != nil {
			mgr.cfg.Logger.Warn("browser: resource blocking failed", "error", err)
		}
	}

	navCtx, cancel := context.WithTimeout(ctx, navTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		mgr.cfg.Logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}

	return &Tab{Page: page, PageURL: pageURL, manager: mgr}, nil
}

func (t *Tab) URL() string { return t.PageURL }

// HTML serialises the live DOM as outer HTML.
func (t *Tab) HTML(ctx context.Context) ([]byte, error) {
	res, err := t.Page.Context(ctx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return nil, fmt.Errorf("browser: get DOM: %w", err)
	}
	return []byte(res.Value.Str()), nil
}

// Mutations injects a MutationObserver filtered to image-source attributes
// and subtree changes. The channel closes when ctx is done.
func (t *Tab) Mutations(ctx context.Context) (<-chan mutation.Record, error) {
	if err := (proto.RuntimeAddBinding{Name: bindingName}).Call(t.Page); err != nil {
		return nil, fmt.Errorf("browser: add binding: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	out := make(chan mutation.Record, 256)
	log := t.manager.cfg.Logger

	wait := t.Page.Context(ctx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != bindingName {
			return
		}
		recs, err := decodeRecords(e.Payload)
		if err != nil {
			log.Warn("browser: parse binding payload", "error", err)
			return
		}
		for _, r := range recs {
			select {
			case out <- r:
			case <-ctx.Done():
				return
			}
		}
	})
	go func() {
		wait()
		close(out)
	}()

	if _, err := t.Page.Context(ctx).Eval(mutationsJS, bindingName, mutation.ImageSourceAttrs); err != nil {
		cancel()
		return nil, fmt.Errorf("browser: inject observer: %w", err)
	}
	t.stop = cancel

	log.Debug("browser: mutation observer injected", "url", t.PageURL)
	return out, nil
}

// decodeRecords parses one binding payload: a JSON array of records.
func decodeRecords(payload string) ([]mutation.Record, error) {
	var recs []mutation.Record
	if err := json.Unmarshal([]byte(payload), &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// Close closes the tab.
func (t *Tab) Close() error {
	if t.stop != nil {
		t.stop()
	}
	if t.Page != nil {
		return t.Page.Close()
	}
	return nil
}
