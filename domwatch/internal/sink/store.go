package sink

import (
	"context"

	"github.com/hazyhaar/snse/domwatch/mutation"
	"github.com/hazyhaar/snse/store"
)

// Store records each detection as the last detected product, where a
// panel in another process picks it up.
type Store struct {
	st *store.Store
}

// NewStore creates a Store sink.
func NewStore(st *store.Store) *Store {
	return &Store{st: st}
}

func (s *Store) Send(ctx context.Context, d mutation.Detection) error {
	return s.st.PutLastDetected(ctx, store.Detected{
		Title: d.Title,
		Image: d.ImageRef,
		URL:   d.PageURL,
	})
}

func (s *Store) Close() error { return nil }
