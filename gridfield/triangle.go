package gridfield

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// face is a mesh triangle prepared for repeated distance queries.
type face struct {
	a, e0, e1  r3.Vec // Origin vertex and edges to the other two vertices.
	a00, a01   float64
	a11        float64
	degenerate bool
}

func newFace(t r3.Triangle) face {
	f := face{a: t[0], e0: r3.Sub(t[1], t[0]), e1: r3.Sub(t[2], t[0])}
	f.a00 = r3.Dot(f.e0, f.e0)
	f.a01 = r3.Dot(f.e0, f.e1)
	f.a11 = r3.Dot(f.e1, f.e1)
	det := f.a00*f.a11 - f.a01*f.a01
	// Zero area or nearly so relative to the edge lengths.
	f.degenerate = det <= 1e-14*f.a00*f.a11 || f.a00 == 0 || f.a11 == 0
	return f
}

// dist2 returns the squared distance from p to the closest point of the face.
func (f *face) dist2(p r3.Vec) float64 {
	if f.degenerate {
		b, c := r3.Add(f.a, f.e0), r3.Add(f.a, f.e1)
		return math.Min(segmentDist2(p, f.a, b), math.Min(segmentDist2(p, b, c), segmentDist2(p, c, f.a)))
	}
	s, t := f.closestParams(p)
	closest := r3.Add(f.a, r3.Add(r3.Scale(s, f.e0), r3.Scale(t, f.e1)))
	return r3.Norm2(r3.Sub(p, closest))
}

// closestParams returns the barycentric parameters (s, t) of the closest point
// a + s*e0 + t*e1 on the solid triangle. Based on Geometric Tools' algorithm for
// distance between a point and a solid triangle, licensed under the Boost
// Software License.
func (f *face) closestParams(target r3.Vec) (s, t float64) {
	diff := r3.Sub(target, f.a)
	a00, a01, a11 := f.a00, f.a01, f.a11
	b0 := -r3.Dot(diff, f.e0)
	b1 := -r3.Dot(diff, f.e1)

	f00 := b0
	f10 := b0 + a00
	f01 := b0 + a01

	var p, p0, p1 [2]float64
	var dt1, h0, h1 float64
	switch {
	case f00 >= 0 && f01 >= 0:
		p = minEdge02(a11, b1)
	case f00 >= 0:
		p0 = [2]float64{0, f00 / (f00 - f01)}
		p1[0] = f01 / (f01 - f10)
		p1[1] = 1 - p1[0]
		dt1 = p1[1] - p0[1]
		h0 = dt1 * (a11*p0[1] + b1)
		if h0 >= 0 {
			p = minEdge02(a11, b1)
		} else if h1 = dt1 * (a01*p1[0] + a11*p1[1] + b1); h1 <= 0 {
			p = minEdge12(a01, a11, b1, f10, f01)
		} else {
			p = minInterior(p0, h0, p1, h1)
		}
	case f01 <= 0 && f10 <= 0:
		p = minEdge12(a01, a11, b1, f10, f01)
	case f01 <= 0:
		p0 = [2]float64{f00 / (f00 - f10), 0}
		p1[0] = f01 / (f01 - f10)
		p1[1] = 1 - p1[0]
		h0 = p1[1] * (a01*p0[0] + b1)
		if h0 >= 0 {
			p = p0
		} else if h1 = p1[1] * (a01*p1[0] + a11*p1[1] + b1); h1 <= 0 {
			p = minEdge12(a01, a11, b1, f10, f01)
		} else {
			p = minInterior(p0, h0, p1, h1)
		}
	case f10 <= 0:
		p0 = [2]float64{0, f00 / (f00 - f01)}
		p1[0] = f01 / (f01 - f10)
		p1[1] = 1 - p1[0]
		dt1 = p1[1] - p0[1]
		h0 = dt1 * (a11*p0[1] + b1)
		if h0 >= 0 {
			p = minEdge02(a11, b1)
		} else if h1 = dt1 * (a01*p1[0] + a11*p1[1] + b1); h1 <= 0 {
			p = minEdge12(a01, a11, b1, f10, f01)
		} else {
			p = minInterior(p0, h0, p1, h1)
		}
	default:
		p0 = [2]float64{f00 / (f00 - f10), 0}
		p1 = [2]float64{0, f00 / (f00 - f01)}
		h0 = p1[1] * (a01*p0[0] + b1)
		if h0 >= 0 {
			p = p0
		} else if h1 = p1[1] * (a11*p1[1] + b1); h1 <= 0 {
			p = minEdge02(a11, b1)
		} else {
			p = minInterior(p0, h0, p1, h1)
		}
	}
	return p[0], p[1]
}

func minEdge02(a11, b1 float64) (p [2]float64) {
	switch {
	case b1 >= 0:
		p[1] = 0
	case a11+b1 <= 0:
		p[1] = 1
	default:
		p[1] = -b1 / a11
	}
	return p
}

func minEdge12(a01, a11, b1, f10, f01 float64) (p [2]float64) {
	h0 := a01 + b1 - f10
	if h0 >= 0 {
		p[1] = 0
	} else if h1 := a11 + b1 - f01; h1 <= 0 {
		p[1] = 1
	} else {
		p[1] = h0 / (h0 - h1)
	}
	p[0] = 1 - p[1]
	return p
}

func minInterior(p0 [2]float64, h0 float64, p1 [2]float64, h1 float64) (p [2]float64) {
	z := h0 / (h0 - h1)
	omz := 1 - z
	p[0] = omz*p0[0] + z*p1[0]
	p[1] = omz*p0[1] + z*p1[1]
	return p
}

// segmentDist2 returns the squared distance from p to segment ab.
func segmentDist2(p, a, b r3.Vec) float64 {
	ab := r3.Sub(b, a)
	l2 := r3.Norm2(ab)
	if l2 == 0 {
		return r3.Norm2(r3.Sub(p, a))
	}
	t := r3.Dot(r3.Sub(p, a), ab) / l2
	t = math.Max(0, math.Min(1, t))
	return r3.Norm2(r3.Sub(p, r3.Add(a, r3.Scale(t, ab))))
}
