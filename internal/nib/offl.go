package nib

import "net/netip"

// Allocate claims or reuses an off-link slot for (nextHop, iface,
// prefix/pfxLen), without assigning it a mode yet.
func (n *NIB) Allocate(nextHop netip.Addr, iface uint16, prefix netip.Addr, pfxLen int) (*OfflEntry, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.allocateOffl(nextHop, iface, prefix, pfxLen)
}

func (n *NIB) allocateOffl(nextHop netip.Addr, iface uint16, prefix netip.Addr, pfxLen int) (*OfflEntry, error) {
	if !prefix.IsValid() || prefix.IsUnspecified() || pfxLen < 1 || pfxLen > 128 {
		return nil, ErrInvalidArgument
	}

	var free *OfflEntry
	for i := range n.offl {
		e := &n.offl[i]
		if e.isFree() {
			if free == nil {
				free = e
			}
			continue
		}
		node := &n.nodes[e.nextHop]
		if e.Prefix.Bits() == pfxLen &&
			node.Iface == iface && addrEquals(nextHop, node) &&
			matchBits(e.Prefix.Addr(), prefix) >= pfxLen {
			if nextHop.IsValid() {
				node.Addr = nextHop
			}
			node.Mode |= ModeDST
			return e, nil
		}
	}
	if free == nil {
		return nil, ErrPoolExhausted
	}
	node, idx := n.allocate(nextHop, iface)
	if node == nil {
		*free = OfflEntry{nextHop: -1}
		return nil, ErrPoolExhausted
	}
	node.Mode |= ModeDST
	p, err := prefix.Prefix(pfxLen)
	if err != nil {
		return nil, ErrInvalidArgument
	}
	free.nextHop = idx
	free.Prefix = p
	return free, nil
}

// Add allocates (or reuses) an off-link slot and ORs kind into its
// mode.
func (n *NIB) Add(nextHop netip.Addr, iface uint16, prefix netip.Addr, pfxLen int, kind Mode) (*OfflEntry, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	e, err := n.allocateOffl(nextHop, iface, prefix, pfxLen)
	if err != nil {
		return nil, err
	}
	e.Mode |= kind
	return e, nil
}

// PlAdd is the prefix-list specialization of Add: it converts
// preferred/valid lifetimes into absolute deadlines relative to the
// current monotonic millisecond counter, nudging either deadline
// forward by one millisecond if adding now would otherwise collide
// with the math.MaxUint32 "infinite" sentinel, and schedules a
// prefix-timeout event.
func (n *NIB) PlAdd(iface uint16, prefix netip.Addr, pfxLen int, validLtime, prefLtime uint32, firePfxTimeout func()) (*OfflEntry, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if validLtime < prefLtime {
		return nil, ErrInvalidArgument
	}

	dst, err := n.allocateOffl(netip.Addr{}, iface, prefix, pfxLen)
	if err != nil {
		return nil, err
	}
	dst.Mode |= ModePL

	const infinite = ^uint32(0)
	if validLtime != infinite || prefLtime != infinite {
		now := n.nowMillis()
		if prefLtime != infinite {
			n.evtimerAdd(dst, EventPfxTimeout, &dst.PfxTimeout, prefLtime, func() {
				n.expirePrefix(dst)
				if firePfxTimeout != nil {
					firePfxTimeout()
				}
			})
			if prefLtime+now == infinite && now != 0 {
				prefLtime++
			}
			prefLtime += now
		}
		if validLtime != infinite {
			if validLtime+now == infinite {
				validLtime++
			}
			validLtime += now
		}
	}
	dst.ValidUntil = validLtime
	dst.PrefUntil = prefLtime
	return dst, nil
}

// expirePrefix re-checks dst's valid-lifetime deadline when its
// preferred-lifetime timer fires. An infinite deadline needs no further
// action; an elapsed one removes the prefix-list entry; otherwise the
// timer is rearmed for the remaining valid time so the entry is still
// removed once it actually expires.
func (n *NIB) expirePrefix(dst *OfflEntry) {
	n.mu.Lock()
	if dst.isFree() || dst.Mode&ModePL == 0 {
		n.mu.Unlock()
		return
	}
	const infinite = ^uint32(0)
	if dst.ValidUntil == infinite {
		n.mu.Unlock()
		return
	}
	now := n.nowMillis()
	if now >= dst.ValidUntil {
		n.plRemoveLocked(dst)
		n.mu.Unlock()
		return
	}
	remaining := dst.ValidUntil - now
	n.evtimerAdd(dst, EventPfxTimeout, &dst.PfxTimeout, remaining, func() { n.expirePrefix(dst) })
	n.mu.Unlock()
}

// offlClear frees dst. If its next hop is shared with any *other*
// off-link slot, only this slot is zeroed; otherwise the DST mode bit
// is cleared on the underlying node and the node is cleared too if no
// other mode bit remains on it. The
// shared-next-hop scan explicitly excludes dst itself.
func (n *NIB) offlClear(dst *OfflEntry) {
	if dst.isFree() {
		return
	}
	shared := false
	for i := range n.offl {
		other := &n.offl[i]
		if other == dst || other.isFree() {
			continue
		}
		if other.nextHop == dst.nextHop {
			shared = true
			break
		}
	}
	if !shared {
		node := &n.nodes[dst.nextHop]
		node.Mode &^= ModeDST
		n.clearNode(node)
	}
	dst.PfxTimeout.cancelIfScheduled()
	*dst = OfflEntry{nextHop: -1}
}

// Remove clears kind from dst's mode; if no mode bits remain, it frees
// the slot via offlClear.
func (n *NIB) Remove(dst *OfflEntry, kind Mode) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.removeLocked(dst, kind)
}

func (n *NIB) removeLocked(dst *OfflEntry, kind Mode) {
	dst.Mode &^= kind
	if dst.Mode == ModeEmpty {
		n.offlClear(dst)
	}
}

// PlRemove removes the PL mode bit from dst, and when multihop-P6C is
// enabled also clears this slot's index bit from every ABR's prefix
// bitmap.
func (n *NIB) PlRemove(dst *OfflEntry) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.plRemoveLocked(dst)
}

func (n *NIB) plRemoveLocked(dst *OfflEntry) {
	idx := n.offlIndex(dst)
	n.removeLocked(dst, ModePL)
	if n.cfg.MultihopP6C && idx >= 0 {
		for i := range n.abrs {
			bitClear(n.abrs[i].Pfxs, idx)
		}
	}
}

func (n *NIB) offlIndex(e *OfflEntry) int {
	for i := range n.offl {
		if &n.offl[i] == e {
			return i
		}
	}
	return -1
}

// IterateOffl returns the next occupied off-link slot after prev, or
// the first one if prev is nil.
func (n *NIB) IterateOffl(prev *OfflEntry) *OfflEntry {
	n.mu.Lock()
	defer n.mu.Unlock()
	start := 0
	if prev != nil {
		start = n.offlIndex(prev) + 1
	}
	for i := start; i < len(n.offl); i++ {
		if !n.offl[i].isFree() {
			return &n.offl[i]
		}
	}
	return nil
}

// matchBits returns the number of leading bits a and b share, up to
// 128.
func matchBits(a, b netip.Addr) int {
	if !a.IsValid() || !b.IsValid() {
		return 0
	}
	ab, bb := a.As16(), b.As16()
	count := 0
	for i := 0; i < 16; i++ {
		x := ab[i] ^ bb[i]
		if x == 0 {
			count += 8
			continue
		}
		for bit := 7; bit >= 0; bit-- {
			if x&(1<<uint(bit)) == 0 {
				count++
			} else {
				return count
			}
		}
		return count
	}
	return count
}

// longestPrefixMatch linearly scans off-link entries for the best
// match on dst: a candidate qualifies iff matchBits(prefix, dst) is at
// least the prefix length, and the qualifying candidate with the
// largest matchBits wins, ties broken by first-encountered.
func (n *NIB) longestPrefixMatch(dst netip.Addr) *OfflEntry {
	var best *OfflEntry
	bestMatch := -1
	for i := range n.offl {
		e := &n.offl[i]
		if e.isFree() {
			continue
		}
		m := matchBits(e.Prefix.Addr(), dst)
		if m >= e.Prefix.Bits() && m > bestMatch {
			best = e
			bestMatch = m
		}
	}
	return best
}

// FtGetOffl resolves dst to its forwarding entry.
func (n *NIB) FtGetOffl(dst *OfflEntry) ForwardingEntry {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ftGetOfflLocked(dst)
}

func (n *NIB) ftGetOfflLocked(dst *OfflEntry) ForwardingEntry {
	fte := ForwardingEntry{Dst: dst.Prefix, Iface: n.nodes[dst.nextHop].Iface}
	if dst.Mode == ModePL {
		fte.NextHop = netip.IPv6Unspecified()
	} else {
		fte.NextHop = n.nodes[dst.nextHop].Addr
	}
	return fte
}
