package panel

// quadrature decodes encoder edges: direction is read from DT on each
// rising CLK edge.
type quadrature struct {
	clk, dt int
}

// edge records a level change and returns the step it completes, or 0.
func (q *quadrature) edge(isCLK bool, level int) int {
	if !isCLK {
		q.dt = level
		return 0
	}
	rising := q.clk == 0 && level == 1
	q.clk = level
	if !rising {
		return 0
	}
	if q.dt == 0 {
		return 1
	}
	return -1
}
