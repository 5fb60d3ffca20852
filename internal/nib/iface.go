package nib

import "math/rand"

// IfaceGet returns the interface record for pid, initializing the
// first free slot if none exists yet.
func (n *NIB) IfaceGet(pid uint16) (*IfaceRecord, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if pid == 0 || pid > n.cfg.IfMax {
		return nil, ErrInvalidArgument
	}
	r := n.ifaceGetLocked(pid)
	if r == nil {
		return nil, ErrPoolExhausted
	}
	return r, nil
}

func (n *NIB) ifaceGetLocked(pid uint16) *IfaceRecord {
	var free *IfaceRecord
	for i := range n.ifs {
		r := &n.ifs[i]
		if r.PID == pid {
			return r
		}
		if free == nil && r.isFree() {
			free = r
		}
	}
	if free != nil {
		*free = IfaceRecord{PID: pid}
	}
	return free
}

// RecalcReachTime redraws iface's reachable time from ReachTimeBase,
// scaled by a random factor in [MinRandomFactor, MaxRandomFactor]
// (thousandths, RFC 4861 §6.3.2's jitter), and reschedules itself at
// the configured fixed offset so the value keeps being re-randomized
// for as long as the interface stays up.
func (n *NIB) RecalcReachTime(iface *IfaceRecord, fireRecalc func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	lo, hi := n.cfg.MinRandomFactor, n.cfg.MaxRandomFactor
	factor := lo
	if hi > lo {
		factor = lo + uint32(rand.Intn(int(hi-lo+1)))
	}
	iface.ReachTime = (iface.ReachTimeBase * factor) / 1000
	n.evtimerAdd(iface, EventRecalcReachTime, &iface.RecalcReach, n.cfg.ReachTimeResetMs, func() {
		n.RecalcReachTime(iface, fireRecalc)
		if fireRecalc != nil {
			fireRecalc()
		}
	})
}
