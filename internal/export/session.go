package export

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"restodash/internal/invoices"
)

// State is the state of an export dialog.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateExporting
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateExporting:
		return "exporting"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ErrInvalidTransition is returned when an action is not allowed in the
// current state.
var ErrInvalidTransition = errors.New("export: invalid state transition")

// Filters narrow the invoices of an export.
type Filters struct {
	From      time.Time
	To        time.Time
	Suppliers []string
}

// Session drives an export dialog:
//
//	closed -> open (prefilled filters) -> exporting -> closed
//	                                       exporting -> open on failure
type Session struct {
	exporter *Exporter

	mu        sync.Mutex
	state     State
	filters   Filters
	selection []string
	err       error
}

// NewSession creates a closed session.
func NewSession(exporter *Exporter) *Session {
	return &Session{exporter: exporter}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error of the last failed export, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Filters returns the current filters.
func (s *Session) Filters() Filters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filters
}

// Open opens the dialog prefilled with the filters of the table.
func (s *Session) Open(prefill Filters) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateClosed {
		return s.invalid("open")
	}
	s.state = StateOpen
	s.filters = prefill
	s.selection = nil
	s.err = nil
	return nil
}

// SetFilters replaces the filters while the dialog is open.
func (s *Session) SetFilters(f Filters) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateOpen {
		return s.invalid("set filters")
	}
	s.filters = f
	return nil
}

// Select restricts the export to the given invoice ids. An empty selection
// exports every invoice passing the filters.
func (s *Session) Select(ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateOpen {
		return s.invalid("select")
	}
	s.selection = append([]string(nil), ids...)
	return nil
}

// Close dismisses the dialog.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateOpen {
		return s.invalid("close")
	}
	s.state = StateClosed
	return nil
}

// Run exports the rows of items matching the filters and selection. The
// dialog closes on success and stays open with the error kept on failure.
func (s *Session) Run(ctx context.Context, items []invoices.ListItem, req Request) (*Result, error) {
	s.mu.Lock()
	if s.state != StateOpen {
		defer s.mu.Unlock()
		return nil, s.invalid("export")
	}
	s.state = StateExporting
	filters := s.filters
	selection := s.selection
	s.mu.Unlock()

	req.Invoices = selected(invoices.Filter(items, filters.From, filters.To, filters.Suppliers), selection)
	result, err := s.exporter.Export(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = StateOpen
		s.err = err
		return nil, err
	}
	s.state = StateClosed
	s.err = nil
	return result, nil
}

func (s *Session) invalid(action string) error {
	return fmt.Errorf("%w: cannot %s while %s", ErrInvalidTransition, action, s.state)
}

func selected(items []invoices.ListItem, ids []string) []invoices.ListItem {
	if len(ids) == 0 {
		return items
	}
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	out := make([]invoices.ListItem, 0, len(ids))
	for _, item := range items {
		if wanted[item.ID] {
			out = append(out, item)
		}
	}
	return out
}
