package congestion

import (
	"time"

	"github.com/dmitriimaksimovdevelop/kernsim/internal/simerr"
)

// Controller is one connection's congestion-window state machine. It holds
// no collaborators: per spec.md §4.4's contract, Update takes every input
// it needs (event, acked, rtt) and is driven entirely by the caller.
type Controller struct {
	algo Algorithm

	cwnd        uint32
	ssthresh    uint32
	lastMaxCwnd uint32

	fastConvergence bool

	// CUBIC congestion-avoidance epoch state.
	epochStarted bool
	epoch        time.Duration
	origin       uint32
	k            int64
	ackCnt       uint32
	tcpAckCnt    uint32
	tcpCwnd      uint32

	// BIC target-tracking state.
	bicTarget uint32

	// HyStart detector state (CUBIC only).
	hystartFound bool
	delayMin     time.Duration
	roundStart   time.Duration
	lastAckTime  time.Duration
	roundMinRTT  time.Duration
	roundSamples int

	losses       uint64
	timeouts     uint64
	hystartExits uint64
}

// New constructs a Controller seeded at MinWindow cwnd and MaxWindow
// ssthresh (the conventional starting point before the first loss).
func New(algo Algorithm) *Controller {
	return &Controller{
		algo:     algo,
		cwnd:     MinWindow,
		ssthresh: MaxWindow,
	}
}

func (c *Controller) beta() int64 {
	if c.algo == Bic {
		return BicBetaNumerator
	}
	return CubicBetaNumerator
}

// Update applies one event and returns the resulting cwnd. acked and rtt are
// only meaningful for Ack events.
func (c *Controller) Update(event Event, acked uint32, rtt time.Duration) (uint32, error) {
	switch event {
	case Ack:
		c.onAck(acked, rtt)
	case Loss:
		c.onLoss()
	case Timeout:
		c.onTimeout()
	default:
		return 0, simerr.New(simerr.InvalidArgument, component, "Update", nil)
	}
	c.clamp()
	return c.cwnd, nil
}

func (c *Controller) onAck(acked uint32, rtt time.Duration) {
	if acked == 0 {
		acked = 1
	}
	if c.cwnd < c.ssthresh {
		c.cwnd += acked
		if c.cwnd >= c.ssthresh {
			c.cwnd = c.ssthresh
		}
		c.epoch += rtt
		if c.algo == Cubic && c.cwnd >= HystartLowWindow {
			c.hystartCheck(rtt)
			if c.hystartFound {
				c.hystartExits++
			}
		}
		return
	}

	c.epoch += rtt
	if c.algo == Bic {
		c.bicAvoidance()
	} else {
		c.cubicAvoidance(acked)
	}
}

func (c *Controller) onLoss() {
	beta := c.beta()
	if c.fastConvergence && c.cwnd < c.lastMaxCwnd {
		c.lastMaxCwnd = uint32((int64(c.cwnd) * (Scale + beta)) / (2 * Scale))
	} else {
		c.lastMaxCwnd = c.cwnd
	}
	c.cwnd = uint32(int64(c.cwnd) * beta / Scale)
	c.ssthresh = c.cwnd
	c.resetEpoch()
	c.losses++
}

func (c *Controller) onTimeout() {
	c.cwnd = MinWindow
	c.ssthresh = c.cwnd
	c.resetEpoch()
	c.timeouts++
}

func (c *Controller) resetEpoch() {
	c.epochStarted = false
	c.epoch = 0
	c.ackCnt = 0
	c.tcpAckCnt = 0
	c.tcpCwnd = 0
	c.bicTarget = 0
	c.hystartFound = false
	c.delayMin = 0
	c.roundStart = 0
	c.lastAckTime = 0
	c.roundMinRTT = 0
	c.roundSamples = 0
}

func (c *Controller) clamp() {
	if c.cwnd < MinWindow {
		c.cwnd = MinWindow
	}
	if c.cwnd > MaxWindow {
		c.cwnd = MaxWindow
	}
}

// Snapshot returns a reporting-only view of the controller's state.
func (c *Controller) Snapshot() Stats {
	return Stats{
		Algorithm:    c.algo,
		Cwnd:         c.cwnd,
		Ssthresh:     c.ssthresh,
		LastMaxCwnd:  c.lastMaxCwnd,
		InSlowStart:  c.cwnd < c.ssthresh,
		Losses:       c.losses,
		Timeouts:     c.timeouts,
		HystartExits: c.hystartExits,
	}
}
