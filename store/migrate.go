package store

import (
	"context"
	"database/sql"

	"github.com/hazyhaar/snse/category"
	"github.com/hazyhaar/snse/dbopen"
	"github.com/hazyhaar/snse/outfit"
)

// legacyItem is a wardrobe entry as older builds stored it: "name" instead
// of "title" on scraped items, and no ID on some.
type legacyItem struct {
	outfit.Item
	Name string `json:"name,omitempty"`
}

func fromLegacy(items []legacyItem) outfit.Wardrobe {
	w := make(outfit.Wardrobe, 0, len(items))
	for _, li := range items {
		it := li.Item
		if it.Title == "" {
			it.Title = li.Name
		}
		if it.Category == "" {
			it.Category = category.Classify(it.Title)
		}
		// Re-adding keeps the title+image uniqueness that old builds
		// enforced loosely.
		w, _ = w.Add(it)
	}
	return w
}

// legacyWardrobe reads the first present legacy key.
func (s *Store) legacyWardrobe(ctx context.Context) (outfit.Wardrobe, string, error) {
	for _, key := range LegacyWardrobeKeys {
		var legacy []legacyItem
		found, err := s.Get(ctx, key, &legacy)
		if err != nil {
			return nil, "", err
		}
		if found {
			return fromLegacy(legacy), key, nil
		}
	}
	return nil, "", nil
}

// Migrate copies a legacy wardrobe into KeyWardrobe when KeyWardrobe is
// absent, then deletes every legacy key. It reports whether anything was
// copied. Safe to run on every boot and concurrently with readers, which
// fall back to the legacy keys until it completes.
func (s *Store) Migrate(ctx context.Context) (bool, error) {
	legacy, from, err := s.legacyWardrobe(ctx)
	if err != nil {
		return false, err
	}
	if from == "" {
		return false, nil
	}

	copied := false
	s.mu.Lock()
	err = dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		copied = false
		var current outfit.Wardrobe
		found, err := get(ctx, tx, KeyWardrobe, &current)
		if err != nil {
			return err
		}
		if !found {
			data, err := encode(legacy)
			if err != nil {
				return err
			}
			if err := s.write(ctx, tx, KeyWardrobe, data); err != nil {
				return err
			}
			copied = true
		}
		for _, key := range LegacyWardrobeKeys {
			if err := s.write(ctx, tx, key, nil); err != nil {
				return err
			}
		}
		return bump(ctx, tx)
	})
	s.mu.Unlock()
	if err != nil {
		return false, wrapWrite("migrate", KeyWardrobe, err)
	}

	s.logger.Info("store: migrated legacy wardrobe",
		"from", from, "items", len(legacy), "copied", copied)
	if copied {
		s.notify(Change{Key: KeyWardrobe})
	}
	for _, key := range LegacyWardrobeKeys {
		s.notify(Change{Key: key, Deleted: true})
	}
	return copied, nil
}
