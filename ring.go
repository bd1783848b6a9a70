package sevnup

// NodeID identifies a physical node in the ring, as returned by Whoami and
// Lookup. Its shape is ring-specific; the coordinator treats it as opaque
// and only ever compares it for equality.
type NodeID string

// Ring is the capability the coordinator consumes from the hash-ring
// collaborator. It deliberately does not expose membership management,
// gossip, or failure detection — those remain the ring's concern.
//
// Per the decorator design: the coordinator never mutates a Ring. It wraps
// Lookup with its own key-observing behavior and hands callers the wrapped
// version; internal callers that need the unwrapped mapping (the ownership
// tracker, in particular) call Lookup directly on the injected Ring.
type Ring interface {
	// Lookup resolves the current owner of a vnode. It is a total function
	// over vnode ids in [0, TotalVNodes).
	Lookup(vnode int) (NodeID, error)

	// Whoami returns this process's own node identity.
	Whoami() NodeID

	// Ready is closed exactly once, when the ring has a usable view of
	// membership.
	Ready() <-chan struct{}

	// Changed fires (need not be exactly once per event; bursts may
	// coalesce) whenever ring membership or topology changes.
	Changed() <-chan struct{}
}
