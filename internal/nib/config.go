package nib

// Config holds the NIB's pool capacities and feature switches as
// runtime fields. It is supplied once at construction time and never
// mutated afterwards.
type Config struct {
	// Pool capacities.
	NIBNumof           int
	OfflNumof          int
	DefaultRouterNumof int
	AbrNumof           int
	NetifNumof         int
	IfMax              uint16

	// MultihopP6C enables the ABR table and 6LoWPAN context bitmaps.
	MultihopP6C bool
	// ARSM enables the address-resolution state machine: link-layer
	// address storage, NUD timers, recalculated reachable time.
	ARSM bool
	// SixLN marks this node as a 6LoWPAN node, affecting how NCGet
	// derives link-layer addresses for link-local peers when ARSM is
	// enabled (without ARSM, NCGet always derives them).
	SixLN bool
	// SixLR enables 6LoWPAN router behavior: address-registration
	// timers and AR-state tracking on neighbor-cache entries.
	SixLR bool
	// QueuePkt enables per-entry packet queuing against incomplete
	// neighbor-cache entries.
	QueuePkt bool

	// MinRandomFactor/MaxRandomFactor bound the randomized reachable
	// time factor, expressed in thousandths.
	MinRandomFactor uint32
	MaxRandomFactor uint32
	// ReachTimeResetMs is the fixed offset at which reachable-time
	// recalculation re-schedules itself.
	ReachTimeResetMs uint32
}

// DefaultConfig returns sane defaults: NDP's recommended random factor
// bounds (0.5x-1.5x, expressed as thousandths) and a one-hour
// reachable-time reset window.
func DefaultConfig() Config {
	return Config{
		NIBNumof:           16,
		OfflNumof:          16,
		DefaultRouterNumof: 4,
		AbrNumof:           4,
		NetifNumof:         4,
		IfMax:              ^uint16(0),
		MultihopP6C:        false,
		ARSM:               true,
		SixLN:              false,
		SixLR:              false,
		QueuePkt:           true,
		MinRandomFactor:    500,
		MaxRandomFactor:    1500,
		ReachTimeResetMs:   3_600_000,
	}
}
