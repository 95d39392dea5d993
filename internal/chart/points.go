package chart

// Point is a drawable coordinate pair inside a fixed pixel box. Y grows
// downward, matching screen coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NormalizePoints maps a series of y-values onto (x, y) pairs within a
// width×height box. X runs from 0 to width proportional to index; values are
// linearly mapped from [min, max] to [height, 0]. A single-sample series
// yields one point at x=0, and a flat series sits on the vertical midpoint.
// An empty series yields nil.
func NormalizePoints(series []float64, width, height float64) []Point {
	n := len(series)
	if n == 0 {
		return nil
	}

	lo, hi := series[0], series[0]
	for _, v := range series[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	pts := make([]Point, n)
	for i, v := range series {
		var x float64
		if n > 1 {
			x = float64(i) / float64(n-1) * width
		}
		y := height / 2
		if hi > lo {
			y = height - (v-lo)/(hi-lo)*height
		}
		pts[i] = Point{X: x, Y: y}
	}
	return pts
}
