package nib

import "net/netip"

// GetRoute resolves the next hop for dst: the longest-prefix off-link
// entry wins unless it is PL-only (a prefix-list entry carries no
// forwarding meaning) or absent, in which case the default-router
// selection is consulted. Returns ErrNoRoute when neither path yields
// a next hop, after offering pkt to the route-request-protocol hook if
// one is installed.
func (n *NIB) GetRoute(dst netip.Addr, pkt *QueuedPacket) (ForwardingEntry, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !dst.IsValid() {
		return ForwardingEntry{}, ErrInvalidArgument
	}

	offl := n.longestPrefixMatch(dst)
	if offl == nil || offl.Mode == ModePL {
		dr := n.selectDRLocked()
		if dr == nil && offl == nil {
			if n.rrpHook != nil {
				n.rrpHook(pkt)
			}
			if n.noRouteHook != nil {
				n.noRouteHook()
			}
			return ForwardingEntry{}, ErrNoRoute
		}
		if dr != nil {
			node := &n.nodes[dr.nextHop]
			primary := n.primeDR >= 0 && &n.dr[n.primeDR] == dr && !n.nodeUnreachable(node)
			return ForwardingEntry{
				Dst:       netip.PrefixFrom(netip.IPv6Unspecified(), 0),
				NextHop:   node.Addr,
				Iface:     node.Iface,
				IsPrimary: primary,
			}, nil
		}
	}
	return n.ftGetOfflLocked(offl), nil
}
