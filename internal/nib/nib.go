package nib

import (
	"sync"
)

// NIB owns every fixed-size pool behind a single coarse mutex. All
// exported methods lock internally, so callers never need to hold or
// coordinate a mutex of their own.
type NIB struct {
	mu sync.Mutex

	cfg Config

	nodes []OnlNode
	dr    []DrEntry
	offl  []OfflEntry
	ifs   []IfaceRecord
	abrs  []AbrEntry

	fifoHead int // index into nodes, -1 = empty
	fifoTail int

	primeDR int // index into dr, -1 = none

	timers evtimerQueue

	// rrpHook, when set, is offered any packet GetRoute could not find
	// a next hop for, so a route-request-protocol collaborator can try
	// to resolve one on demand. nil by default.
	rrpHook func(*QueuedPacket)

	// releasePkt is invoked for every packet queued against a
	// neighbor-cache entry that gets removed or evicted, with the
	// reason it was released. nil by default.
	releasePkt func(QueuedPacket, error)

	// evictHook is invoked whenever AddNC reclaims a neighbor-cache
	// slot by evicting a garbage-collectible entry. nil by default.
	evictHook func()

	// noRouteHook is invoked whenever GetRoute fails to find a next
	// hop. nil by default.
	noRouteHook func()

	// nowMillis supplies the monotonic millisecond counter prefix-list
	// lifetimes are encoded relative to. Defaults to a wall-clock-free
	// monotonic counter; tests may override it.
	nowMillis func() uint32
}

// New constructs an empty NIB with the given pool capacities and
// compile-time-switch equivalents.
func New(cfg Config) *NIB {
	n := &NIB{
		cfg:      cfg,
		nodes:    make([]OnlNode, cfg.NIBNumof),
		dr:       make([]DrEntry, cfg.DefaultRouterNumof),
		offl:     make([]OfflEntry, cfg.OfflNumof),
		ifs:      make([]IfaceRecord, cfg.NetifNumof),
		fifoHead: -1,
		fifoTail: -1,
		primeDR:  -1,
	}
	for i := range n.dr {
		n.dr[i].nextHop = -1
	}
	for i := range n.offl {
		n.offl[i].nextHop = -1
	}
	for i := range n.nodes {
		n.nodes[i].fifoNext = -1
		n.nodes[i].fifoPrev = -1
	}
	if cfg.MultihopP6C {
		n.abrs = make([]AbrEntry, cfg.AbrNumof)
		pfxWords := (cfg.OfflNumof + 63) / 64
		for i := range n.abrs {
			n.abrs[i].Pfxs = make([]uint64, pfxWords)
		}
	}
	n.nowMillis = monotonicMillis()
	return n
}

// SetRRPHook installs the route-request-protocol hook GetRoute calls
// when it cannot find any next hop. Passing nil removes the hook.
func (n *NIB) SetRRPHook(hook func(*QueuedPacket)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rrpHook = hook
}

// SetPacketReleaseHook installs the callback invoked for every packet
// released from a removed or evicted neighbor-cache entry's queue.
func (n *NIB) SetPacketReleaseHook(hook func(QueuedPacket, error)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.releasePkt = hook
}

// SetEvictionHook installs the callback invoked whenever AddNC reuses
// a neighbor-cache slot by evicting a garbage-collectible entry.
// Passing nil removes the hook.
func (n *NIB) SetEvictionHook(hook func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.evictHook = hook
}

// SetNoRouteHook installs the callback invoked whenever GetRoute fails
// to find a next hop. Passing nil removes the hook.
func (n *NIB) SetNoRouteHook(hook func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.noRouteHook = hook
}

// QueuePacket appends pkt to node's queue, when QueuePkt is enabled.
func (n *NIB) QueuePacket(node *OnlNode, pkt QueuedPacket) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.cfg.QueuePkt {
		return
	}
	node.PktQueue = append(node.PktQueue, pkt)
}

// PoolStats reports the occupied-slot count of each fixed-size pool,
// for periodic export via internal/metrics.
func (n *NIB) PoolStats() map[string]int {
	n.mu.Lock()
	defer n.mu.Unlock()

	stats := map[string]int{"onl": 0, "dr": 0, "offl": 0, "iface": 0, "abr": 0}
	for i := range n.nodes {
		if !n.nodes[i].isEmpty() {
			stats["onl"]++
		}
	}
	for i := range n.dr {
		if !n.dr[i].isFree() {
			stats["dr"]++
		}
	}
	for i := range n.offl {
		if !n.offl[i].isFree() {
			stats["offl"]++
		}
	}
	for i := range n.ifs {
		if !n.ifs[i].isFree() {
			stats["iface"]++
		}
	}
	for i := range n.abrs {
		if !n.abrs[i].isFree() {
			stats["abr"]++
		}
	}
	return stats
}
