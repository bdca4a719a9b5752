package congestion

import "time"

// cubicScaleC is the curve-steepness constant (the kernel's "C"), expressed
// in the same Scale=1024 fixed-point as everything else.
const cubicScaleC = 410

// cubicAvoidance runs one ACK through the CUBIC congestion-avoidance curve
// (cwnd >= ssthresh). c.epoch is the simulated time since the current
// loss epoch began.
func (c *Controller) cubicAvoidance(acked uint32) {
	if !c.epochStarted {
		c.epochStarted = true
		c.epoch = 0
		c.ackCnt = 0
		c.tcpAckCnt = 0
		c.tcpCwnd = c.cwnd
		if c.lastMaxCwnd <= c.cwnd {
			c.k = 0
			c.origin = c.cwnd
		} else {
			diff := int64(c.lastMaxCwnd-c.cwnd) * Scale / cubicScaleC
			c.k = icbrt(diff)
			c.origin = c.lastMaxCwnd
		}
	}

	elapsedMs := int64(c.epoch / time.Millisecond)
	delta := elapsedMs - c.k
	cube := delta * delta * delta
	target := int64(c.origin) + cubicScaleC*cube/Scale
	if target < MinWindow {
		target = MinWindow
	}

	if uint32(target) > c.cwnd {
		cnt := int64(c.cwnd) / (target - int64(c.cwnd))
		if cnt < 1 {
			cnt = 1
		}
		c.ackCnt++
		if c.ackCnt >= uint32(cnt) {
			c.cwnd++
			c.ackCnt = 0
		}
	}

	// TCP-friendliness: a shadow Reno-equivalent window that grows +1 every
	// β·cwnd acks, clamped to never push cwnd below it.
	thresh := uint32(int64(c.cwnd) * CubicBetaNumerator / Scale)
	if thresh < 1 {
		thresh = 1
	}
	c.tcpAckCnt++
	if c.tcpAckCnt >= thresh {
		c.tcpCwnd++
		c.tcpAckCnt = 0
	}
	if c.tcpCwnd > c.cwnd {
		c.cwnd = c.tcpCwnd
	}
}

// hystartCheck runs CUBIC's HyStart slow-start exit detectors. Called only
// while cwnd < ssthresh and cwnd >= HystartLowWindow.
func (c *Controller) hystartCheck(rtt time.Duration) {
	if c.hystartFound {
		return
	}
	if c.delayMin == 0 || rtt < c.delayMin {
		c.delayMin = rtt
	}

	// ACK-train detector: successive ACK spacings within HystartAckDelta,
	// sustained for longer than max(delay_min/2, 4ms).
	now := c.epoch
	if c.lastAckTime != 0 {
		spacing := now - c.lastAckTime
		if spacing <= HystartAckDelta {
			threshold := c.delayMin / 2
			if threshold < HystartDelayMin {
				threshold = HystartDelayMin
			}
			if now-c.roundStart > threshold {
				c.hystartFound = true
				c.ssthresh = c.cwnd
				return
			}
		} else {
			c.roundStart = now
		}
	} else {
		c.roundStart = now
	}
	c.lastAckTime = now

	// Delay-increase detector: after >= HystartMinSamples RTT samples in the
	// round, the round-minimum RTT has grown past delay_min+HystartDelayMin.
	c.roundSamples++
	if c.roundMinRTT == 0 || rtt < c.roundMinRTT {
		c.roundMinRTT = rtt
	}
	if c.roundSamples >= HystartMinSamples && c.roundMinRTT > c.delayMin+HystartDelayMin {
		c.hystartFound = true
		c.ssthresh = c.cwnd
	}
}
