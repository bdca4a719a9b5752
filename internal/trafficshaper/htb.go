// Package trafficshaper simulates two independent packet-scheduling
// disciplines: a hierarchical token-bucket (HTB) class tree for rate/ceil
// shaping, and an ETF (earliest-transmission-first) deadline-ordered packet
// queue. Neither sub-scheduler depends on the other; both are driven
// synchronously by the caller (spec.md §5: "single-threaded per shaper
// instance").
//
// Grounded on the OCI cpu-shaper load-test harness (token/ceil-bucket pool
// with a quantum-driven duty cycle) for the token-bucket update loop shape,
// and on the teacher's USE-metric style (model/health.go's
// utilization/saturation framing) for how a class's CanSend/MayBorrow/
// CantSend state is derived from its buckets.
package trafficshaper

import (
	"time"

	"github.com/dmitriimaksimovdevelop/kernsim/internal/simerr"
)

const component = "trafficshaper"

// MaxClasses bounds the number of HTB classes a Shaper may hold.
const MaxClasses = 256

// TrafficClass is an HtbClass's traffic type.
type TrafficClass int

const (
	BestEffort TrafficClass = iota
	Interactive
	Bulk
	RealTimeTraffic
	System
)

// ClassState is an HtbClass's send-eligibility state.
type ClassState int

const (
	CanSend ClassState = iota
	CantSend
	MayBorrow
)

func (s ClassState) String() string {
	switch s {
	case CanSend:
		return "CanSend"
	case CantSend:
		return "CantSend"
	case MayBorrow:
		return "MayBorrow"
	default:
		return "Unknown"
	}
}

// HtbClass is one node in the hierarchy. Parent is a non-owning back
// reference (resolved only while the owning tree is alive); Children is the
// owning collection, per spec.md §9's ownership note.
type HtbClass struct {
	ID       int
	Parent   *HtbClass
	Children []*HtbClass

	Rate  float64 // bytes/sec, guaranteed
	Ceil  float64 // bytes/sec, borrowing ceiling
	Burst float64 // token bucket capacity = Rate/8
	CBurst float64 // ctoken bucket capacity = Ceil/8

	Tokens      float64
	CTokens     float64
	LastUpdate  time.Duration
	State       ClassState
	Traffic     TrafficClass

	bytesSent uint64
	overlimit uint64
	drops     uint64
}

// HtbTree owns the root class and every descendant, indexed by ID for O(1)
// lookup. The root has no parent, traffic type System, and its own
// configured rate/ceil.
type HtbTree struct {
	classes  map[int]*HtbClass
	root     *HtbClass
	nextID   int
}

// NewHtbTree constructs the root class with the given rate/ceil.
func NewHtbTree(rootRate, rootCeil float64, now time.Duration) (*HtbTree, error) {
	if rootRate <= 0 || rootCeil < rootRate {
		return nil, simerr.New(simerr.InvalidArgument, component, "NewHtbTree", nil)
	}
	root := &HtbClass{
		ID: 0, Rate: rootRate, Ceil: rootCeil,
		Burst: rootRate / 8, CBurst: rootCeil / 8,
		Tokens: rootRate / 8, CTokens: rootCeil / 8,
		LastUpdate: now, State: CanSend, Traffic: System,
	}
	return &HtbTree{classes: map[int]*HtbClass{0: root}, root: root, nextID: 1}, nil
}

// Root returns the tree's root class.
func (t *HtbTree) Root() *HtbClass { return t.root }

// AddChild creates a child of parentID with the given rate/ceil/traffic
// class. Fails with InvalidArgument if rate exceeds the parent's ceil (spec
// §9's corrected validation, absent from the source sample), and with
// CapacityExceeded once MaxClasses is reached.
func (t *HtbTree) AddChild(parentID int, rate, ceil float64, traffic TrafficClass, now time.Duration) (*HtbClass, error) {
	parent, ok := t.classes[parentID]
	if !ok {
		return nil, simerr.New(simerr.InvalidArgument, component, "AddChild", nil)
	}
	if len(t.classes) >= MaxClasses {
		return nil, simerr.New(simerr.CapacityExceeded, component, "AddChild", nil)
	}
	if rate <= 0 || ceil < rate || rate > parent.Ceil {
		return nil, simerr.New(simerr.InvalidArgument, component, "AddChild", nil)
	}

	child := &HtbClass{
		ID: t.nextID, Parent: parent,
		Rate: rate, Ceil: ceil,
		Burst: rate / 8, CBurst: ceil / 8,
		Tokens: rate / 8, CTokens: ceil / 8,
		LastUpdate: now, State: CanSend, Traffic: traffic,
	}
	t.nextID++
	t.classes[child.ID] = child
	parent.Children = append(parent.Children, child)
	return child, nil
}

// Class looks up a class by ID.
func (t *HtbTree) Class(id int) (*HtbClass, bool) {
	c, ok := t.classes[id]
	return c, ok
}

// Update refills c's token/ctoken buckets for the elapsed delta and
// re-derives its state (spec.md §4.3's token dynamics).
func (c *HtbClass) Update(now time.Duration) {
	dt := (now - c.LastUpdate).Seconds()
	if dt < 0 {
		dt = 0
	}
	c.Tokens = min(c.Burst, c.Tokens+dt*c.Rate)
	c.CTokens = min(c.CBurst, c.CTokens+dt*c.Ceil)
	c.LastUpdate = now
	c.deriveState()
}

func (c *HtbClass) deriveState() {
	switch {
	case c.Tokens > 0:
		c.State = CanSend
	case c.CTokens > 0:
		c.State = MayBorrow
	default:
		c.State = CantSend
	}
}

// CanSendSize reports whether a packet of the given size can be sent given
// the class's current buckets and state.
func (c *HtbClass) CanSendSize(size float64) bool {
	if c.Tokens >= size {
		return true
	}
	return c.State == MayBorrow && c.CTokens >= size
}

// Charge deducts size bytes for a packet send, preferring the guaranteed
// token bucket, falling back to borrowing from ctokens (counted as
// overlimit), or dropping (counted) if neither bucket covers it.
func (c *HtbClass) Charge(now time.Duration, size float64) bool {
	c.Update(now)
	switch {
	case c.Tokens >= size:
		c.Tokens -= size
		c.bytesSent += uint64(size)
	case c.State == MayBorrow && c.CTokens >= size:
		c.CTokens -= size
		c.bytesSent += uint64(size)
		c.overlimit++
	default:
		c.drops++
		c.deriveState()
		return false
	}
	c.deriveState()
	return true
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// HtbClassStats is a per-class snapshot for reporting.
type HtbClassStats struct {
	ID        int
	Traffic   TrafficClass
	State     ClassState
	Tokens    float64
	CTokens   float64
	BytesSent uint64
	Overlimit uint64
	Drops     uint64
}

func (c *HtbClass) Snapshot() HtbClassStats {
	return HtbClassStats{
		ID: c.ID, Traffic: c.Traffic, State: c.State,
		Tokens: c.Tokens, CTokens: c.CTokens,
		BytesSent: c.bytesSent, Overlimit: c.overlimit, Drops: c.drops,
	}
}

// AllClasses returns every class in the tree in ID order, for reporting.
func (t *HtbTree) AllClasses() []*HtbClass {
	out := make([]*HtbClass, 0, len(t.classes))
	for i := 0; i < t.nextID; i++ {
		if c, ok := t.classes[i]; ok {
			out = append(out, c)
		}
	}
	return out
}
