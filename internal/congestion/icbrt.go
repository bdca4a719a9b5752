package congestion

// icbrt returns floor(cbrt(v)) via integer Newton refinement, avoiding
// floating point in the congestion-avoidance fast path (spec.md §4.4).
func icbrt(v int64) int64 {
	if v <= 0 {
		return 0
	}
	x := v
	for i := 0; i < 40; i++ {
		if x == 0 {
			x = 1
		}
		nx := (2*x + v/(x*x)) / 3
		if nx == x {
			break
		}
		x = nx
	}
	for x > 0 && x*x*x > v {
		x--
	}
	for (x+1)*(x+1)*(x+1) <= v {
		x++
	}
	return x
}
