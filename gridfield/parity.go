package gridfield

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

// crossings records, for every (i, j) column of the grid, where the surface
// crosses the Z axis line through the column's nodes. Crossings are stored as
// the index of the first node at or above them so a node is inside the surface
// when an odd number of crossings lie at or below it.
type crossings struct {
	size int
	cols [][]int32
}

// newCrossings rasterizes triangles given in grid index coordinates onto the
// XY lattice. Rays through shared edges and vertices are counted exactly once
// using simulation of simplicity tie breaking.
func newCrossings(size int, tris []r3.Triangle) *crossings {
	c := &crossings{size: size, cols: make([][]int32, size*size)}
	last := float64(size - 1)
	for _, t := range tris {
		x0, x1, x2 := t[0].X, t[1].X, t[2].X
		y0, y1, y2 := t[0].Y, t[1].Y, t[2].Y
		i0 := clampInt(math.Ceil(min3(x0, x1, x2)), 0, last)
		i1 := clampInt(math.Floor(max3(x0, x1, x2)), 0, last)
		j0 := clampInt(math.Ceil(min3(y0, y1, y2)), 0, last)
		j1 := clampInt(math.Floor(max3(y0, y1, y2)), 0, last)
		for i := i0; i <= i1; i++ {
			for j := j0; j <= j1; j++ {
				a, b, w, ok := pointInTriangle2D(float64(i), float64(j), x0, y0, x1, y1, x2, y2)
				if !ok {
					continue
				}
				z := a*t[0].Z + b*t[1].Z + w*t[2].Z
				interval := math.Ceil(z)
				switch {
				case interval < 0:
					interval = 0
				case interval > last:
					continue // Above every node of the column.
				}
				col := i*size + j
				c.cols[col] = append(c.cols[col], int32(interval))
			}
		}
	}
	for _, col := range c.cols {
		sort.Slice(col, func(a, b int) bool { return col[a] < col[b] })
	}
	return c
}

// column returns the sorted crossing intervals of column (i, j).
func (c *crossings) column(i, j int) []int32 { return c.cols[i*c.size+j] }

// orientation returns the sign of the signed area of the triangle formed by
// the origin and the two points, breaking exact zeros with simulation of
// simplicity so that only coincident points return zero.
func orientation(x1, y1, x2, y2 float64) (twiceSignedArea float64, sign int) {
	twiceSignedArea = y1*x2 - x1*y2
	switch {
	case twiceSignedArea > 0:
		return twiceSignedArea, 1
	case twiceSignedArea < 0:
		return twiceSignedArea, -1
	case y2 > y1:
		return twiceSignedArea, 1
	case y2 < y1:
		return twiceSignedArea, -1
	case x1 > x2:
		return twiceSignedArea, 1
	case x1 < x2:
		return twiceSignedArea, -1
	}
	return twiceSignedArea, 0
}

// pointInTriangle2D reports whether (x0, y0) lies in the projected triangle and
// returns its barycentric coordinates if so.
func pointInTriangle2D(x0, y0, x1, y1, x2, y2, x3, y3 float64) (a, b, c float64, ok bool) {
	x1, x2, x3 = x1-x0, x2-x0, x3-x0
	y1, y2, y3 = y1-y0, y2-y0, y3-y0
	a, signa := orientation(x2, y2, x3, y3)
	if signa == 0 {
		return 0, 0, 0, false
	}
	b, signb := orientation(x3, y3, x1, y1)
	if signb != signa {
		return 0, 0, 0, false
	}
	c, signc := orientation(x1, y1, x2, y2)
	if signc != signa {
		return 0, 0, 0, false
	}
	sum := a + b + c
	if sum == 0 {
		return 0, 0, 0, false
	}
	return a / sum, b / sum, c / sum, true
}

func clampInt(v, lo, hi float64) int {
	return int(math.Max(lo, math.Min(hi, v)))
}

func min3(a, b, c float64) float64 { return math.Min(a, math.Min(b, c)) }

func max3(a, b, c float64) float64 { return math.Max(a, math.Max(b, c)) }
