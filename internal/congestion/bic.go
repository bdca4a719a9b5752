package congestion

// bicAvoidance runs one ACK through BIC's binary-search-plus-max-probing
// growth (spec.md §4.4). Unlike CUBIC, BIC tracks its target window
// directly rather than deriving it from elapsed time.
func (c *Controller) bicAvoidance() {
	if !c.epochStarted {
		c.epochStarted = true
		if c.bicTarget < c.cwnd {
			c.bicTarget = c.lastMaxCwnd
		}
		if c.bicTarget < c.cwnd {
			c.bicTarget = c.cwnd
		}
		c.ackCnt = 0
	}

	var inc uint32
	if c.cwnd < c.bicTarget {
		inc = (c.bicTarget - c.cwnd) / 2
		if inc > BicMaxIncrement {
			inc = BicMaxIncrement
		}
		if inc == 0 {
			inc = 1
		}
		c.ackCnt++
		if c.ackCnt >= bicCnt(c.cwnd) {
			c.cwnd += inc
			c.ackCnt = 0
		}
	} else {
		inc = c.cwnd / BicLowWindow
		if inc > BicMaxIncrement {
			inc = BicMaxIncrement
		}
		if inc == 0 {
			inc = 1
		}
		c.ackCnt++
		if c.ackCnt >= bicCnt(c.cwnd) {
			c.cwnd += inc
			c.bicTarget = c.cwnd + BicScale
			c.ackCnt = 0
		}
	}
}

// bicCnt is how many ACKs must accumulate before the next single increment
// step, scaled down as cwnd grows so throughput keeps climbing.
func bicCnt(cwnd uint32) uint32 {
	n := cwnd / BicScale
	if n < 1 {
		n = 1
	}
	return n
}
