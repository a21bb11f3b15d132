package invoices

import (
	"context"
	"sync"

	"restodash/pkg/models"
)

// Store holds the last loaded invoice table of a query and lets callers
// refresh it or patch a single row after a mutation.
type Store struct {
	lister *Lister
	query  Query

	mu      sync.RWMutex
	result  ListResult
	loading bool
	err     error
}

// StoreState is a consistent snapshot of a Store.
type StoreState struct {
	Items     []ListItem
	Suppliers []SupplierOption
	Loading   bool
	Err       error
}

// NewStore creates an empty store for query. Call Refresh to load it.
func NewStore(lister *Lister, query Query) *Store {
	return &Store{lister: lister, query: query}
}

// Refresh re-runs the whole load. On failure the rows are cleared and the
// error is kept until the next successful refresh.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	result, err := s.lister.Load(ctx, s.query)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.loading = false
	s.err = err
	if err != nil {
		s.result = ListResult{}
		return err
	}
	s.result = *result
	return nil
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() StoreState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return StoreState{
		Items:     append([]ListItem(nil), s.result.Items...),
		Suppliers: append([]SupplierOption(nil), s.result.Suppliers...),
		Loading:   s.loading,
		Err:       s.err,
	}
}

// Apply merges an updated invoice into its row and returns the patched row.
// The boolean is false when no row carries the invoice id.
func (s *Store) Apply(invoice models.Invoice) (ListItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.result.Items {
		if s.result.Items[i].ID == invoice.ID {
			ApplyInvoice(&s.result.Items[i], invoice)
			return s.result.Items[i], true
		}
	}
	return ListItem{}, false
}
