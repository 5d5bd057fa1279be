// Package widget tracks the most recently rendered HTML fragment for each
// dashboard widget. The refresh drivers write after every successful
// render; the dashboard page and the widget API read. Only the latest
// fragment is kept, so a broken integration serves its last good render
// until it recovers.
package widget

import (
	"sync"
	"time"
)

type Rendered struct {
	Integration string
	HTML        string
	UpdatedAt   time.Time
}

type Store struct {
	mu      sync.RWMutex
	widgets map[string]*Rendered
}

func NewStore() *Store {
	return &Store{
		widgets: make(map[string]*Rendered),
	}
}

func (s *Store) Get(integration string) (*Rendered, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.widgets[integration]
	if !ok {
		return nil, false
	}
	copy := *w
	return &copy, true
}

func (s *Store) Put(integration, html string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.widgets[integration] = &Rendered{
		Integration: integration,
		HTML:        html,
		UpdatedAt:   time.Now(),
	}
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.widgets)
}
