package nib

import (
	"errors"
	"net/netip"
	"testing"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.NIBNumof = 4
	cfg.OfflNumof = 4
	cfg.DefaultRouterNumof = 2
	cfg.NetifNumof = 2
	return cfg
}

func mustAddr(t *testing.T, s string) netip.Addr {
	t.Helper()
	a, err := netip.ParseAddr(s)
	if err != nil {
		t.Fatalf("ParseAddr(%q): %v", s, err)
	}
	return a
}

// Scenario 1: Empty NIB route lookup.
func TestGetRoute_Empty(t *testing.T) {
	n := New(testConfig())
	_, err := n.GetRoute(mustAddr(t, "2001:db8::1"), nil)
	if !errors.Is(err, ErrNoRoute) {
		t.Fatalf("expected ErrNoRoute, got %v", err)
	}
}

// Scenario 2: Default router fallback.
func TestGetRoute_DefaultRouterFallback(t *testing.T) {
	n := New(testConfig())
	if _, err := n.AddDR(mustAddr(t, "fe80::1"), 1); err != nil {
		t.Fatalf("AddDR: %v", err)
	}
	fte, err := n.GetRoute(mustAddr(t, "2001:db8::1"), nil)
	if err != nil {
		t.Fatalf("GetRoute: %v", err)
	}
	if fte.Dst.Bits() != 0 {
		t.Errorf("expected ::/0, got %v", fte.Dst)
	}
	if fte.NextHop != mustAddr(t, "fe80::1") {
		t.Errorf("expected fe80::1, got %v", fte.NextHop)
	}
	if fte.Iface != 1 {
		t.Errorf("expected iface 1, got %d", fte.Iface)
	}
	if !fte.IsPrimary {
		t.Errorf("expected primary=true")
	}
}

// Scenario 3: Longest-prefix wins over DR.
func TestGetRoute_LongestPrefixWinsOverDR(t *testing.T) {
	n := New(testConfig())
	if _, err := n.AddDR(mustAddr(t, "fe80::1"), 1); err != nil {
		t.Fatalf("AddDR: %v", err)
	}
	if _, err := n.Add(mustAddr(t, "fe80::2"), 1, mustAddr(t, "2001:db8::"), 32, ModeFT); err != nil {
		t.Fatalf("Add: %v", err)
	}
	fte, err := n.GetRoute(mustAddr(t, "2001:db8::5"), nil)
	if err != nil {
		t.Fatalf("GetRoute: %v", err)
	}
	if fte.Dst.Bits() != 32 {
		t.Errorf("expected /32, got %v", fte.Dst)
	}
	if fte.NextHop != mustAddr(t, "fe80::2") {
		t.Errorf("expected fe80::2, got %v", fte.NextHop)
	}
	if fte.IsPrimary {
		t.Errorf("expected primary=false")
	}
}

// Scenario 4: PL-only OFFL yields to DR.
func TestGetRoute_PLOnlyYieldsToDR(t *testing.T) {
	n := New(testConfig())
	if _, err := n.AddDR(mustAddr(t, "fe80::1"), 1); err != nil {
		t.Fatalf("AddDR: %v", err)
	}
	if _, err := n.PlAdd(1, mustAddr(t, "2001:db8::"), 32, ^uint32(0), ^uint32(0), func() {}); err != nil {
		t.Fatalf("PlAdd: %v", err)
	}
	fte, err := n.GetRoute(mustAddr(t, "2001:db8::5"), nil)
	if err != nil {
		t.Fatalf("GetRoute: %v", err)
	}
	if fte.NextHop != mustAddr(t, "fe80::1") {
		t.Errorf("expected DR fe80::1, got %v", fte.NextHop)
	}
}

// Scenario 5: NC eviction under pressure.
func TestAddNC_EvictsGCEntry(t *testing.T) {
	cfg := testConfig()
	cfg.NIBNumof = 2
	n := New(cfg)

	a1 := mustAddr(t, "fe80::1")
	a2 := mustAddr(t, "fe80::2")
	a3 := mustAddr(t, "fe80::3")

	n1, err := n.AddNC(a1, 1, NUDStale)
	if err != nil {
		t.Fatalf("AddNC a1: %v", err)
	}
	n1.info = n1.info.withAR(ARStateGC)
	n2, err := n.AddNC(a2, 1, NUDStale)
	if err != nil {
		t.Fatalf("AddNC a2: %v", err)
	}
	n2.info = n2.info.withAR(ARStateGC)

	victim, err := n.AddNC(a3, 1, NUDStale)
	if err != nil {
		t.Fatalf("AddNC a3 (eviction expected): %v", err)
	}
	if victim.Addr != a3 {
		t.Errorf("expected reused node to carry a3, got %v", victim.Addr)
	}
	// a1 should have been evicted (FIFO order), a2 should survive.
	if got, err := n.Get(a1, 1); err == nil {
		t.Errorf("expected a1 to be evicted, found %v", got.Addr)
	}
	if _, err := n.Get(a2, 1); err != nil {
		t.Errorf("expected a2 to survive eviction: %v", err)
	}
}

func TestAddNC_PoolExhaustedNoVictim(t *testing.T) {
	cfg := testConfig()
	cfg.NIBNumof = 1
	n := New(cfg)

	n1, err := n.AddNC(mustAddr(t, "fe80::1"), 1, NUDStale)
	if err != nil {
		t.Fatalf("AddNC: %v", err)
	}
	// Make it non-collectible: add a second mode bit.
	n1.Mode |= ModeDST

	_, err = n.AddNC(mustAddr(t, "fe80::2"), 1, NUDStale)
	if !errors.Is(err, ErrPoolExhausted) {
		t.Fatalf("expected ErrPoolExhausted, got %v", err)
	}
}

// Scenario 6: DR rotation with no reachable router.
func TestSelectDR_RotatesWhenAllUnreachable(t *testing.T) {
	n := New(testConfig())
	drA, err := n.AddDR(mustAddr(t, "fe80::1"), 1)
	if err != nil {
		t.Fatalf("AddDR a: %v", err)
	}
	drB, err := n.AddDR(mustAddr(t, "fe80::2"), 1)
	if err != nil {
		t.Fatalf("AddDR b: %v", err)
	}
	// Both default to NUDUnmanaged, which is not in {UNREACHABLE,
	// INCOMPLETE}, so force them explicitly unreachable.
	n.nodes[drA.nextHop].info = n.nodes[drA.nextHop].info.withNUD(NUDUnreachable)
	n.nodes[drB.nextHop].info = n.nodes[drB.nextHop].info.withNUD(NUDUnreachable)

	got := []netip.Addr{}
	for i := 0; i < 4; i++ {
		dr := n.SelectDR()
		if dr == nil {
			t.Fatalf("SelectDR returned nil at iteration %d", i)
		}
		got = append(got, n.nodes[dr.nextHop].Addr)
	}
	want := []netip.Addr{
		mustAddr(t, "fe80::1"), mustAddr(t, "fe80::2"),
		mustAddr(t, "fe80::1"), mustAddr(t, "fe80::2"),
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("rotation[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestNCAddRemoveIdempotence(t *testing.T) {
	n := New(testConfig())
	addr := mustAddr(t, "fe80::1")

	node1, err := n.AddNC(addr, 1, NUDStale)
	if err != nil {
		t.Fatalf("first AddNC: %v", err)
	}
	n.RemoveNC(node1)
	if _, err := n.Get(addr, 1); err == nil {
		t.Fatalf("expected node freed after RemoveNC")
	}

	node2, err := n.AddNC(addr, 1, NUDStale)
	if err != nil {
		t.Fatalf("second AddNC: %v", err)
	}
	if node2.Mode != ModeNC {
		t.Errorf("expected fresh insert mode=NC, got %v", node2.Mode)
	}
	if node2.NUDState() != NUDStale {
		t.Errorf("expected NUDStale, got %v", node2.NUDState())
	}
}

func TestOfflClear_SharedNextHopKeepsNode(t *testing.T) {
	n := New(testConfig())
	nh := mustAddr(t, "fe80::1")
	e1, err := n.Add(nh, 1, mustAddr(t, "2001:db8::"), 32, ModeFT)
	if err != nil {
		t.Fatalf("Add e1: %v", err)
	}
	e2, err := n.Add(nh, 1, mustAddr(t, "2001:db9::"), 32, ModeFT)
	if err != nil {
		t.Fatalf("Add e2: %v", err)
	}
	if e1.nextHop != e2.nextHop {
		t.Fatalf("expected e1 and e2 to share a next hop")
	}
	n.Remove(e1, ModeFT)
	if _, err := n.Get(nh, 1); err != nil {
		t.Errorf("expected shared next hop to survive e1's removal: %v", err)
	}
	n.Remove(e2, ModeFT)
	if _, err := n.Get(nh, 1); err == nil {
		t.Errorf("expected next hop to be freed once both entries are gone")
	}
}

func TestPlAdd_PreservesInfiniteSentinel(t *testing.T) {
	n := New(testConfig())
	dst, err := n.PlAdd(1, mustAddr(t, "2001:db8::"), 32, ^uint32(0), ^uint32(0), func() {})
	if err != nil {
		t.Fatalf("PlAdd: %v", err)
	}
	if dst.ValidUntil != ^uint32(0) || dst.PrefUntil != ^uint32(0) {
		t.Errorf("expected infinite sentinel preserved, got valid=%d pref=%d", dst.ValidUntil, dst.PrefUntil)
	}
}

func TestAbrRemove_CascadesPrefixesAndContexts(t *testing.T) {
	cfg := testConfig()
	cfg.MultihopP6C = true
	cfg.AbrNumof = 2
	n := New(cfg)

	abrAddr := mustAddr(t, "2001:db8::abc")
	abr, err := n.AbrAdd(abrAddr)
	if err != nil {
		t.Fatalf("AbrAdd: %v", err)
	}
	pfx, err := n.PlAdd(1, mustAddr(t, "2001:db8:1::"), 48, ^uint32(0), ^uint32(0), func() {})
	if err != nil {
		t.Fatalf("PlAdd: %v", err)
	}
	if err := n.AbrAddPfx(abr, pfx); err != nil {
		t.Fatalf("AbrAddPfx: %v", err)
	}
	n.AbrAddCtx(abr, 3)

	remover := &fakeContextRemover{}
	n.AbrRemove(abrAddr, remover)

	if pfx.Mode&ModePL != 0 {
		t.Errorf("expected PL bit cleared after AbrRemove")
	}
	if len(remover.removed) != 1 || remover.removed[0] != 3 {
		t.Errorf("expected context 3 removed, got %v", remover.removed)
	}
}

type fakeContextRemover struct{ removed []uint8 }

func (f *fakeContextRemover) RemoveContext(cid uint8) { f.removed = append(f.removed, cid) }
