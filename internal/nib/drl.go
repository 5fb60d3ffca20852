package nib

import "net/netip"

// AddDR adds routerAddr on iface to the default router list. On exact
// match of an existing entry's underlying node, it ORs in the DRL mode
// bit and returns that entry; otherwise it claims a free slot and a
// node via allocate.
func (n *NIB) AddDR(routerAddr netip.Addr, iface uint16) (*DrEntry, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !routerAddr.IsValid() {
		return nil, ErrInvalidArgument
	}

	var free *DrEntry
	for i := range n.dr {
		dr := &n.dr[i]
		if dr.isFree() {
			if free == nil {
				free = dr
			}
			continue
		}
		node := &n.nodes[dr.nextHop]
		if node.Iface == iface && node.Addr == routerAddr {
			node.Mode |= ModeDRL
			return dr, nil
		}
	}
	if free == nil {
		return nil, ErrPoolExhausted
	}
	node, idx := n.allocate(routerAddr, iface)
	if node == nil {
		return nil, ErrPoolExhausted
	}
	node.Mode |= ModeDRL
	free.nextHop = idx
	return free, nil
}

// RemoveDR removes dr: clears the DRL mode bit on the referenced node,
// clears the node if no other mode bit remains, zeros the slot, and
// resets the prime router if it pointed here.
func (n *NIB) RemoveDR(dr *DrEntry) {
	n.mu.Lock()
	defer n.mu.Unlock()

	wasPrime := n.primeDR >= 0 && &n.dr[n.primeDR] == dr
	if !dr.isFree() {
		node := &n.nodes[dr.nextHop]
		node.Mode &^= ModeDRL
		n.clearNode(node)
		dr.nextHop = -1
	}
	if wasPrime {
		n.primeDR = -1
	}
}

// IterateDR returns the next occupied default-router slot after prev,
// or the first one if prev is nil.
func (n *NIB) IterateDR(prev *DrEntry) *DrEntry {
	n.mu.Lock()
	defer n.mu.Unlock()
	start := 0
	if prev != nil {
		start = n.drIndex(prev) + 1
	}
	for i := start; i < len(n.dr); i++ {
		if !n.dr[i].isFree() {
			return &n.dr[i]
		}
	}
	return nil
}

func (n *NIB) drIndex(dr *DrEntry) int {
	for i := range n.dr {
		if &n.dr[i] == dr {
			return i
		}
	}
	return -1
}

// GetDR looks up the default-router entry for (routerAddr, iface).
func (n *NIB) GetDR(routerAddr netip.Addr, iface uint16) (*DrEntry, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := range n.dr {
		dr := &n.dr[i]
		if dr.isFree() {
			continue
		}
		node := &n.nodes[dr.nextHop]
		if node.Iface == iface && node.Addr == routerAddr {
			return dr, nil
		}
	}
	return nil, ErrNotFound
}

func (n *NIB) nodeUnreachable(node *OnlNode) bool {
	switch node.NUDState() {
	case NUDUnreachable, NUDIncomplete:
		return true
	default:
		return false
	}
}

// SelectDR picks the default router to use next, rotating through the
// list the way RFC 4861 §6.3.6 describes:
//  1. If a prime exists and is reachable, return it.
//  2. Else scan from the beginning for the first reachable DR, prime
//     and return it.
//  3. Else rotate the prime deterministically (advance past the
//     current prime, wrapping to the first), returning the
//     (unreachable) DR so the caller triggers NUD against it.
func (n *NIB) SelectDR() *DrEntry {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.selectDRLocked()
}

func (n *NIB) selectDRLocked() *DrEntry {
	if n.primeDR >= 0 {
		prime := &n.dr[n.primeDR]
		if !prime.isFree() && !n.nodeUnreachable(&n.nodes[prime.nextHop]) {
			return prime
		}
	}

	idx := -1
	for {
		idx = n.iterateDRIndex(idx)
		if idx < 0 {
			break
		}
		if !n.nodeUnreachable(&n.nodes[n.dr[idx].nextHop]) {
			n.primeDR = idx
			return &n.dr[idx]
		}
	}

	// No reachable router: rotate the prime.
	next := n.iterateDRIndex(n.primeDR)
	if n.primeDR < 0 || next < 0 {
		n.primeDR = n.iterateDRIndex(-1)
	} else {
		n.primeDR = next
	}
	if n.primeDR < 0 {
		return nil
	}
	return &n.dr[n.primeDR]
}

// iterateDRIndex returns the index of the next occupied DR slot after
// "after" (-1 meaning "from the start").
func (n *NIB) iterateDRIndex(after int) int {
	for i := after + 1; i < len(n.dr); i++ {
		if !n.dr[i].isFree() {
			return i
		}
	}
	return -1
}

// FtGetDR resolves dr to its forwarding entry.
func (n *NIB) FtGetDR(dr *DrEntry) ForwardingEntry {
	n.mu.Lock()
	defer n.mu.Unlock()
	node := &n.nodes[dr.nextHop]
	primary := n.primeDR >= 0 && &n.dr[n.primeDR] == dr && !n.nodeUnreachable(node)
	return ForwardingEntry{
		Dst:       netip.PrefixFrom(netip.IPv6Unspecified(), 0),
		NextHop:   node.Addr,
		Iface:     node.Iface,
		IsPrimary: primary,
	}
}
