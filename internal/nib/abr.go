package nib

import "net/netip"

// ContextRemover releases a 6LoWPAN compression context. AbrRemove
// calls it for every context bit an authoritative border router owns.
type ContextRemover interface {
	RemoveContext(cid uint8)
}

// AbrAdd records addr as a known authoritative border router: exact
// match by address, else the first free slot.
func (n *NIB) AbrAdd(addr netip.Addr) (*AbrEntry, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.cfg.MultihopP6C {
		return nil, ErrInvalidArgument
	}
	if !addr.IsValid() || addr.IsUnspecified() {
		return nil, ErrInvalidArgument
	}

	var free *AbrEntry
	for i := range n.abrs {
		abr := &n.abrs[i]
		if abr.Addr == addr {
			return abr, nil
		}
		if free == nil && abr.isFree() {
			free = abr
		}
	}
	if free == nil {
		return nil, ErrPoolExhausted
	}
	free.Addr = addr
	return free, nil
}

// AbrRemove forgets the authoritative border router at addr: it
// cascades into PlRemove for every off-link slot this ABR owns, and
// into ctxs.RemoveContext for every context bit it owns.
func (n *NIB) AbrRemove(addr netip.Addr, ctxs ContextRemover) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.cfg.MultihopP6C {
		return
	}
	for i := range n.abrs {
		abr := &n.abrs[i]
		if abr.Addr != addr {
			continue
		}
		for idx := range n.offl {
			if bitIsSet(abr.Pfxs, idx) {
				n.plRemoveLocked(&n.offl[idx])
			}
		}
		if ctxs != nil {
			for word := range abr.Ctxs {
				for bit := 0; bit < 64; bit++ {
					if bitIsSet(abr.Ctxs, word*64+bit) {
						ctxs.RemoveContext(uint8(word*64 + bit))
					}
				}
			}
		}
		*abr = AbrEntry{Pfxs: make([]uint64, (n.cfg.OfflNumof+63)/64)}
	}
}

// AbrIter returns the next occupied ABR slot after prev, or the first
// one if prev is nil.
func (n *NIB) AbrIter(prev *AbrEntry) *AbrEntry {
	n.mu.Lock()
	defer n.mu.Unlock()
	start := 0
	if prev != nil {
		start = n.abrIndex(prev) + 1
	}
	for i := start; i < len(n.abrs); i++ {
		if !n.abrs[i].isFree() {
			return &n.abrs[i]
		}
	}
	return nil
}

func (n *NIB) abrIndex(a *AbrEntry) int {
	for i := range n.abrs {
		if &n.abrs[i] == a {
			return i
		}
	}
	return -1
}

// AbrAddPfx records that offl is an advertised prefix of abr, keyed by
// offl's pool index.
func (n *NIB) AbrAddPfx(abr *AbrEntry, offl *OfflEntry) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if offl.Mode&ModePL == 0 {
		return ErrInvalidArgument
	}
	idx := n.offlIndex(offl)
	if idx < 0 {
		return ErrInvalidArgument
	}
	bitSet(abr.Pfxs, idx)
	return nil
}

// AbrIterPfx returns the next off-link slot after prev that is both
// PL-tagged and indexed by abr's prefix bitmap.
func (n *NIB) AbrIterPfx(abr *AbrEntry, prev *OfflEntry) *OfflEntry {
	n.mu.Lock()
	defer n.mu.Unlock()
	start := 0
	if prev != nil {
		start = n.offlIndex(prev) + 1
	}
	for i := start; i < len(n.offl); i++ {
		e := &n.offl[i]
		if e.Mode&ModePL != 0 && bitIsSet(abr.Pfxs, i) {
			return e
		}
	}
	return nil
}

// AbrAddCtx records that abr owns 6LoWPAN context cid, so AbrRemove's
// cascade will release it.
func (n *NIB) AbrAddCtx(abr *AbrEntry, cid uint8) {
	n.mu.Lock()
	defer n.mu.Unlock()
	needed := int(cid)/64 + 1
	for len(abr.Ctxs) < needed {
		abr.Ctxs = append(abr.Ctxs, 0)
	}
	bitSet(abr.Ctxs, int(cid))
}
