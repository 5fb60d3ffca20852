package nib

import (
	"container/list"
	"time"
)

// EventKind identifies which of the NIB's recurring timer events a
// scheduled callback belongs to.
type EventKind uint8

const (
	EventNUDTimeout EventKind = iota
	EventSndNA
	EventAddrRegTimeout
	EventPfxTimeout
	EventRecalcReachTime
)

type evtimerEntry struct {
	kind   EventKind
	ctx    any
	handle *TimerHandle
	// offset is the delta, in milliseconds, from the previous entry in
	// the list -- mirroring the original delta-ordered evtimer queue,
	// where _evtimer_lookup sums offsets while walking.
	offset uint32
}

// evtimerQueue is an in-process delta-ordered event list backing every
// recurring NIB timeout. Firing is driven by time.AfterFunc, which
// re-enters the NIB under its mutex only long enough to unlink the
// fired entry before invoking the callback.
type evtimerQueue struct {
	entries list.List // of *evtimerEntry, in ascending absolute-time order
}

// evtimerAdd enqueues an event keyed by (kind, ctx) after offsetMs of
// accumulated delta and arms handle so it can be cancelled later. fire
// is invoked (outside the NIB's mutex) when the timer elapses.
func (n *NIB) evtimerAdd(ctx any, kind EventKind, handle *TimerHandle, offsetMs uint32, fire func()) {
	handle.cancelIfScheduled()

	entry := &evtimerEntry{kind: kind, ctx: ctx, handle: handle, offset: offsetMs}
	el := n.timers.entries.PushBack(entry)

	t := time.AfterFunc(time.Duration(offsetMs)*time.Millisecond, func() {
		n.mu.Lock()
		n.timers.entries.Remove(el)
		n.mu.Unlock()
		fire()
	})
	handle.scheduled = true
	handle.cancel = func() {
		t.Stop()
		n.timers.entries.Remove(el)
	}
}

// evtimerLookup walks the delta list summing offsets, mirroring
// _evtimer_lookup: it returns the accumulated offset at which an event
// of the given kind (and, if ctx is non-nil, matching context) would
// fire, or ok=false if none is queued.
func (n *NIB) evtimerLookup(ctx any, kind EventKind) (offset uint32, ok bool) {
	var acc uint32
	for e := n.timers.entries.Front(); e != nil; e = e.Next() {
		entry := e.Value.(*evtimerEntry)
		acc += entry.offset
		if entry.kind == kind && (ctx == nil || entry.ctx == ctx) {
			return acc, true
		}
	}
	return 0, false
}

// monotonicMillis returns a function producing a free-running
// millisecond counter anchored at process start, used by prefix-list
// lifetime encoding instead of wall-clock time so it never jumps
// backwards under clock adjustment.
func monotonicMillis() func() uint32 {
	start := time.Now()
	return func() uint32 {
		return uint32(time.Since(start).Milliseconds())
	}
}
