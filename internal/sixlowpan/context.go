// Package sixlowpan implements a minimal 6LoWPAN compression-context
// store: the contexts an authoritative border router distributes via
// RA context options, and that an ABR's removal cascade releases.
// Header (de)compression itself is out of scope; this only tracks the
// context table.
package sixlowpan

import (
	"errors"
	"net/netip"
	"sync"
)

const maxContexts = 16

// ErrInvalidContext is returned when a context ID is out of range.
var ErrInvalidContext = errors.New("sixlowpan: invalid context id")

// Context is one compression context entry, keyed by its ID (CID).
type Context struct {
	Prefix      netip.Prefix
	CID         uint8
	Compression bool
}

// Store holds up to maxContexts contexts and is safe for concurrent
// use.
type Store struct {
	mu   sync.Mutex
	ctxs [maxContexts]*Context
}

// NewStore returns an empty context store.
func NewStore() *Store {
	return &Store{}
}

// Add installs or replaces the context for cid.
func (s *Store) Add(cid uint8, prefix netip.Prefix, compression bool) error {
	if int(cid) >= maxContexts {
		return ErrInvalidContext
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctxs[cid] = &Context{Prefix: prefix, CID: cid, Compression: compression}
	return nil
}

// Get returns the context for cid, or ok=false if none is set.
func (s *Store) Get(cid uint8) (Context, bool) {
	if int(cid) >= maxContexts {
		return Context{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.ctxs[cid]
	if c == nil {
		return Context{}, false
	}
	return *c, true
}

// RemoveContext releases the context for cid. It satisfies
// nib.ContextRemover so internal/nib's ABR cascade can call into this
// store directly.
func (s *Store) RemoveContext(cid uint8) {
	if int(cid) >= maxContexts {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctxs[cid] = nil
}
