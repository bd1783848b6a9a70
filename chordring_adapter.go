package sevnup

import (
	"fmt"
	"strconv"

	"github.com/Kryndex/sevnup/internal/chordring"
)

// ringDelegate bridges chord's four membership callbacks into the single
// "changed" signal the Ring capability exposes. The send is non-blocking:
// the reconciler only ever cares that a change happened since it last
// looked, not how many, so a full channel is left alone rather than
// blocking the chord stabilization goroutine that invokes the delegate.
type ringDelegate struct {
	changed chan struct{}
}

func (d *ringDelegate) signal() {
	select {
	case d.changed <- struct{}{}:
	default:
	}
}

func (d *ringDelegate) NewSuccessor(local, remoteNew, remotePrev *chordring.Vnode) { d.signal() }
func (d *ringDelegate) NewPredecessor(local, remoteNew, remotePrev *chordring.Vnode) {
	d.signal()
}
func (d *ringDelegate) PredecessorLeaving(local, remote *chordring.Vnode) { d.signal() }
func (d *ringDelegate) SuccessorLeaving(local, remote *chordring.Vnode)   { d.signal() }

// ChordRing adapts an internal/chordring.Ring to the sevnup.Ring
// capability. Vnode ids in [0, TotalVNodes) are mapped onto chord's own
// key space by using their decimal string form as the lookup key; chord's
// consistent hash then resolves the owning physical node exactly as it
// would for any other key.
type ChordRing struct {
	ring  *chordring.Ring
	self  string
	ready chan struct{}
	event *ringDelegate
}

// NewChordRing creates a chord ring configured to report membership
// changes through the returned ChordRing's Changed channel, and adapts it
// to the sevnup.Ring capability the Coordinator consumes.
func NewChordRing(conf *chordring.Config, trans chordring.Transport) (*ChordRing, error) {
	delegate := &ringDelegate{changed: make(chan struct{}, 1)}
	conf.Delegate = delegate

	r, err := chordring.Create(conf, trans)
	if err != nil {
		return nil, fmt.Errorf("sevnup: create chord ring: %w", err)
	}

	ready := make(chan struct{})
	close(ready)

	return &ChordRing{
		ring:  r,
		self:  conf.Hostname,
		ready: ready,
		event: delegate,
	}, nil
}

// Lookup resolves the current owner of vnode via the chord ring.
func (c *ChordRing) Lookup(vnode int) (NodeID, error) {
	key := []byte(strconv.Itoa(vnode))
	successors, err := c.ring.Lookup(1, key)
	if err != nil {
		return "", fmt.Errorf("sevnup: chord lookup for vnode %d: %w", vnode, err)
	}
	if len(successors) == 0 {
		return "", fmt.Errorf("sevnup: chord lookup for vnode %d returned no successor", vnode)
	}
	return NodeID(successors[0].Host), nil
}

// Whoami returns this process's chord hostname.
func (c *ChordRing) Whoami() NodeID {
	return NodeID(c.self)
}

// Ready is closed immediately: Create returns only once the local ring is
// initialized, so by the time a ChordRing exists it already has a usable
// view of membership.
func (c *ChordRing) Ready() <-chan struct{} {
	return c.ready
}

// Changed fires whenever chord reports a new or departed successor or
// predecessor for any local vnode.
func (c *ChordRing) Changed() <-chan struct{} {
	return c.event.changed
}

// Shutdown stops the underlying chord ring's background maintenance.
func (c *ChordRing) Shutdown() error {
	return c.ring.Shutdown()
}
