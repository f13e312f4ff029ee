package store

import (
	"context"
	"fmt"

	"github.com/hazyhaar/snse/outfit"
)

// profileFields maps each profile field to its key.
func profileFields(p *outfit.Profile) map[string]*string {
	return map[string]*string{
		KeyAPIKey:    &p.APIKey,
		KeyHeadshot:  &p.Likeness,
		KeyHeight:    &p.Height,
		KeyEthnicity: &p.Ethnicity,
		KeyAge:       &p.Age,
		KeyFit:       &p.Fit,
		KeyGender:    &p.Gender,
		KeyBodyType:  &p.BodyType,
	}
}

// Profile reads the user profile. Absent fields are empty.
func (s *Store) Profile(ctx context.Context) (outfit.Profile, error) {
	var p outfit.Profile
	for key, dst := range profileFields(&p) {
		if _, err := s.Get(ctx, key, dst); err != nil {
			return outfit.Profile{}, err
		}
	}
	return p, nil
}

// PutProfile writes every profile field in one transaction. Empty fields
// delete their key.
func (s *Store) PutProfile(ctx context.Context, p outfit.Profile) error {
	values := make(map[string]any, 8)
	for key, v := range profileFields(&p) {
		if *v == "" {
			values[key] = nil
		} else {
			values[key] = *v
		}
	}
	return s.PutMany(ctx, values)
}

// Wardrobe reads the wardrobe, falling back to the legacy keys when the
// current key is absent.
func (s *Store) Wardrobe(ctx context.Context) (outfit.Wardrobe, error) {
	var w outfit.Wardrobe
	found, err := s.Get(ctx, KeyWardrobe, &w)
	if err != nil || found {
		return w, err
	}
	w, _, err = s.legacyWardrobe(ctx)
	return w, err
}

// UpdateWardrobe applies fn to the wardrobe atomically. fn returning
// ErrNoChange leaves the store untouched.
func (s *Store) UpdateWardrobe(ctx context.Context, fn func(outfit.Wardrobe) (outfit.Wardrobe, error)) error {
	legacy, _, err := s.legacyWardrobe(ctx)
	if err != nil {
		return err
	}
	var w outfit.Wardrobe
	return s.Update(ctx, KeyWardrobe, &w, func(found bool) error {
		cur := w
		if !found {
			cur = legacy
		}
		next, err := fn(cur)
		if err != nil {
			return err
		}
		w = next
		return nil
	})
}

// Detected is the last product signal written by a watcher.
type Detected struct {
	Title string `json:"title"`
	Image string `json:"imageRef,omitempty"`
	URL   string `json:"pageUrl,omitempty"`
}

// LastDetected reads the last detection. false when no title is stored.
func (s *Store) LastDetected(ctx context.Context) (Detected, bool, error) {
	var d Detected
	for key, dst := range map[string]*string{
		KeyLastDetectedTitle: &d.Title,
		KeyLastDetectedImage: &d.Image,
		KeyLastDetectedURL:   &d.URL,
	} {
		var v *string
		if _, err := s.Get(ctx, key, &v); err != nil {
			return Detected{}, false, fmt.Errorf("store: last detected: %w", err)
		}
		if v != nil {
			*dst = *v
		}
	}
	return d, d.Title != "", nil
}

// PutLastDetected writes the three detection keys in one transaction.
// Empty image or URL delete their key.
func (s *Store) PutLastDetected(ctx context.Context, d Detected) error {
	values := map[string]any{
		KeyLastDetectedTitle: d.Title,
		KeyLastDetectedImage: nil,
		KeyLastDetectedURL:   nil,
	}
	if d.Image != "" {
		values[KeyLastDetectedImage] = d.Image
	}
	if d.URL != "" {
		values[KeyLastDetectedURL] = d.URL
	}
	return s.PutMany(ctx, values)
}
