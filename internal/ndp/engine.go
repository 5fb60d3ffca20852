// Package ndp also supplies the Engine: an errgroup-supervised
// per-interface packet-capture loop that decodes the full RS/RA/NS/NA
// message set off the wire and feeds it into internal/nib.
package ndp

import (
	"context"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"
	"github.com/hostinger/ipnib/internal/iface"
	"github.com/hostinger/ipnib/internal/logger"
	"github.com/hostinger/ipnib/internal/nib"
	"github.com/hostinger/ipnib/internal/sixlowpan"
	"golang.org/x/sync/errgroup"
)

// Engine owns one packet-capture loop per monitored interface and
// dispatches decoded NDP messages into a NIB, mirroring confirmed
// neighbors into the kernel via an iface.Manager.
type Engine struct {
	nib       *nib.NIB
	ifmgr     *iface.Manager
	sixlowpan *sixlowpan.Store

	mu     sync.Mutex
	active map[string]time.Time
}

// NewEngine builds an Engine bound to n and ifmgr.
func NewEngine(n *nib.NIB, ifmgr *iface.Manager) *Engine {
	return &Engine{nib: n, ifmgr: ifmgr, active: make(map[string]time.Time)}
}

// SetSixLoWPANStore attaches a 6LoWPAN context store the engine feeds
// context options from Authoritative Border Router advertisements
// into. Pass nil to stop processing ABR/context options; RAs without
// one installed otherwise ignore them.
func (e *Engine) SetSixLoWPANStore(s *sixlowpan.Store) {
	e.sixlowpan = s
}

// ActiveInterfaces reports the interfaces currently being monitored
// and when their capture loop started.
func (e *Engine) ActiveInterfaces() map[string]time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	result := make(map[string]time.Time, len(e.active))
	for k, v := range e.active {
		result[k] = v
	}
	return result
}

// Run opens a capture handle on each named interface and processes
// packets until ctx is cancelled or any one loop returns an error. Each
// interface gets its own goroutine, collected under a single errgroup.
func (e *Engine) Run(ctx context.Context, ifaces []string) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, name := range ifaces {
		name := name
		g.Go(func() error {
			return e.runInterface(ctx, name)
		})
	}
	return g.Wait()
}

func (e *Engine) runInterface(ctx context.Context, name string) error {
	for attempt := 0; attempt < 10; attempt++ {
		up, err := e.ifmgr.IsUp(name)
		if err == nil && up {
			break
		}
		logger.Info("[NDP-Engine] Waiting for %s to become UP... (%d/10)", name, attempt+1)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}

	pid, err := e.ifmgr.PID(name)
	if err != nil {
		return err
	}
	if _, err := e.nib.IfaceGet(pid); err != nil {
		return err
	}

	handle, err := pcap.OpenLive(name, 1600, true, pcap.BlockForever)
	if err != nil {
		logger.Error("[NDP-Engine] Error opening interface %s: %v", name, err)
		return err
	}
	defer handle.Close()

	if err := handle.SetBPFFilter("icmp6"); err != nil {
		logger.Error("[NDP-Engine] Error setting BPF filter on %s: %v", name, err)
		return err
	}

	logger.Info("[NDP-Engine] Listening for NDP traffic on %s (pid=%d)", name, pid)
	source := gopacket.NewPacketSource(handle, handle.LinkType())
	packets := source.Packets()

	e.mu.Lock()
	e.active[name] = time.Now()
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.active, name)
		e.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			logger.Info("[NDP-Engine] Stopping NDP engine on %s", name)
			return nil
		case pkt, ok := <-packets:
			if !ok || pkt == nil {
				return nil
			}
			e.dispatch(pkt, pid)
		}
	}
}

func (e *Engine) dispatch(packet gopacket.Packet, pid uint16) {
	if ra, ok := DecodeRA(packet, pid); ok {
		e.handleRA(ra)
		return
	}
	if na, ok := DecodeNA(packet, pid); ok {
		e.handleNA(na)
		return
	}
	if ns, ok := DecodeNS(packet, pid); ok {
		e.handleNS(ns)
		return
	}
}

// handleRA processes a Router Advertisement: a fresh or refreshed
// default-router entry, a reachable-time update for the arriving
// interface, an OFFL prefix-list entry per on-link PIO, and -- when a
// 6LoWPAN context store is attached -- the ABR/context options a
// 6LoWPAN border router uses to distribute compression contexts.
func (e *Engine) handleRA(ra *RouterAdvertisement) {
	if ra.RouterLifetimeSec > 0 {
		if _, err := e.nib.AddDR(ra.RouterAddr, ra.Iface); err != nil {
			logger.Debug("[NDP-Engine] AddDR(%s): %v", ra.RouterAddr, err)
		}
	}

	if ra.ReachableTimeMs > 0 {
		if ifr, err := e.nib.IfaceGet(ra.Iface); err == nil {
			ifr.ReachTimeBase = ra.ReachableTimeMs
			e.nib.RecalcReachTime(ifr, func() {
				logger.Debug("[NDP-Engine] recalculated reachable time on iface %d", ra.Iface)
			})
		}
	}

	var abr *nib.AbrEntry
	if ra.ABR != nil && e.sixlowpan != nil {
		if ra.ABR.ValidLifetimeMin == 0 {
			// RFC 6775 §4.1: a Valid Lifetime of 0 invalidates this ABR
			// and everything it owns.
			e.nib.AbrRemove(ra.ABR.BorderRouterAddr, e.sixlowpan)
		} else {
			var err error
			abr, err = e.nib.AbrAdd(ra.ABR.BorderRouterAddr)
			if err != nil {
				logger.Debug("[NDP-Engine] AbrAdd(%s): %v", ra.ABR.BorderRouterAddr, err)
				abr = nil
			} else {
				for _, ctx := range ra.Contexts {
					if err := e.sixlowpan.Add(ctx.CID, ctx.Prefix, ctx.Compression); err != nil {
						logger.Debug("[NDP-Engine] sixlowpan.Add(%d): %v", ctx.CID, err)
						continue
					}
					e.nib.AbrAddCtx(abr, ctx.CID)
				}
			}
		}
	}

	for _, pfx := range ra.Prefixes {
		if !pfx.OnLink {
			continue
		}
		addr := pfx.Prefix.Addr()
		bits := pfx.Prefix.Bits()
		offl, err := e.nib.PlAdd(ra.Iface, addr, bits, pfx.ValidLifetime, pfx.PrefLifetime, func() {
			logger.Debug("[NDP-Engine] prefix %s expired", pfx.Prefix)
		})
		if err != nil {
			logger.Debug("[NDP-Engine] PlAdd(%s): %v", pfx.Prefix, err)
			continue
		}
		if abr != nil {
			if err := e.nib.AbrAddPfx(abr, offl); err != nil {
				logger.Debug("[NDP-Engine] AbrAddPfx(%s): %v", pfx.Prefix, err)
			}
		}
	}

	if len(ra.SourceLLAddr) > 0 {
		if node, err := e.nib.Get(ra.RouterAddr, ra.Iface); err == nil {
			e.nib.SetL2Addr(node, ra.SourceLLAddr)
			e.nib.SetReachable(node, func() {
				logger.Debug("[NDP-Engine] router %s fell out of REACHABLE", ra.RouterAddr)
			})
			e.mirror(node.Iface, node)
		}
	}
}

// handleNA processes a Neighbor Advertisement: it confirms the
// target's link-layer address and, when solicited, marks the entry
// REACHABLE.
func (e *Engine) handleNA(na *NeighborAdvertisement) {
	node, err := e.nib.Get(na.TargetAddr, na.Iface)
	if err != nil {
		node, err = e.nib.AddNC(na.TargetAddr, na.Iface, nib.NUDStale)
		if err != nil {
			logger.Debug("[NDP-Engine] AddNC(%s): %v", na.TargetAddr, err)
			return
		}
	}
	if len(na.TargetLLAddr) > 0 {
		e.nib.SetL2Addr(node, na.TargetLLAddr)
	}
	if na.Solicited {
		e.nib.SetReachable(node, func() {
			logger.Debug("[NDP-Engine] neighbor %s fell out of REACHABLE", na.TargetAddr)
		})
	}
	e.mirror(na.Iface, node)
}

// handleNS processes a Neighbor Solicitation that carries a source
// link-layer address option, whatever its target: it learns the
// solicitor's link-layer address as a STALE neighbor-cache entry.
func (e *Engine) handleNS(ns *NeighborSolicitation) {
	if len(ns.SourceLLAddr) == 0 {
		return
	}
	node, err := e.nib.Get(ns.SrcAddr, ns.Iface)
	if err != nil {
		node, err = e.nib.AddNC(ns.SrcAddr, ns.Iface, nib.NUDStale)
		if err != nil {
			logger.Debug("[NDP-Engine] AddNC(%s): %v", ns.SrcAddr, err)
			return
		}
	}
	e.nib.SetL2Addr(node, ns.SourceLLAddr)
	e.mirror(ns.Iface, node)
}

func (e *Engine) mirror(pid uint16, node *nib.OnlNode) {
	rec := e.nib.NCGet(node)
	if rec.L2AddrLen == 0 {
		return
	}
	if err := e.ifmgr.MirrorNeighbor(pid, rec.Addr, rec.L2Addr[:rec.L2AddrLen]); err != nil {
		logger.Error("[NDP-Engine] Mirroring %s: %v", rec.Addr, err)
	}
}
