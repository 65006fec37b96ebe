package mailstatus

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"dashstat/internal/jsonx"
)

// Snapshot is an immutable published payload. Body holds the encoded JSON so
// readers never re-encode.
type Snapshot struct {
	Entries     []Entry
	Body        []byte
	PublishedAt time.Time
}

// Store holds the current snapshot. It has a single writer (the refresher)
// and any number of readers; publication is one atomic pointer swap.
type Store struct {
	current atomic.Pointer[Snapshot]
	ready   *Gate
}

func NewStore() *Store {
	return &Store{ready: NewGate()}
}

// Publish encodes entries, swaps them in as the current snapshot and opens
// the readiness gate.
func (s *Store) Publish(entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	body, err := jsonx.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	s.current.Store(&Snapshot{
		Entries:     entries,
		Body:        body,
		PublishedAt: time.Now(),
	})
	s.ready.Open()
	return nil
}

// Current returns the latest snapshot without waiting; nil before the first
// publish.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// Wait blocks until the first snapshot has been published.
func (s *Store) Wait(ctx context.Context) (*Snapshot, error) {
	if err := s.ready.Wait(ctx); err != nil {
		return nil, err
	}
	return s.current.Load(), nil
}

func (s *Store) Ready() bool {
	return s.ready.IsOpen()
}
