package d3

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// d3.Box is a 3d axis aligned bounding box.
type Box r3.Box

// EmptyBox returns an inverted box that any call to Include
// will replace with the argument.
func EmptyBox() Box {
	return Box{
		Min: Elem(math.Inf(1)),
		Max: Elem(math.Inf(-1)),
	}
}

// BoxOf returns the smallest box containing all points. An empty set
// returns EmptyBox.
func BoxOf(pts []r3.Vec) Box {
	bb := EmptyBox()
	for _, p := range pts {
		bb = bb.Include(p)
	}
	return bb
}

// IsEmpty reports whether the box is inverted on any axis.
func (a Box) IsEmpty() bool {
	return a.Min.X > a.Max.X || a.Min.Y > a.Max.Y || a.Min.Z > a.Max.Z
}

// Equals test the equality of 3d boxes.
func (a Box) Equals(b Box, tol float64) bool {
	return EqualWithin(a.Min, b.Min, tol) && EqualWithin(a.Max, b.Max, tol)
}

// Include enlarges a 3d box to include a point.
func (a Box) Include(v r3.Vec) Box {
	return Box{
		Min: MinElem(a.Min, v),
		Max: MaxElem(a.Max, v),
	}
}

// Size returns the size of a 3d box.
func (a Box) Size() r3.Vec {
	return r3.Sub(a.Max, a.Min)
}

// Center returns the center of a 3d box.
func (a Box) Center() r3.Vec {
	return r3.Add(a.Min, r3.Scale(0.5, a.Size()))
}

// Diagonal returns the length of the box's main diagonal.
func (a Box) Diagonal() float64 {
	if a.IsEmpty() {
		return 0
	}
	return r3.Norm(a.Size())
}

// Contains checks if the 3d box contains the given vector (considering bounds as inside).
func (a Box) Contains(v r3.Vec) bool {
	return a.Min.X <= v.X && a.Min.Y <= v.Y && a.Min.Z <= v.Z &&
		v.X <= a.Max.X && v.Y <= a.Max.Y && v.Z <= a.Max.Z
}

// ContainsBox checks if b lies within a on every axis. Bounds are considered
// inside and a is grown by tol on every side before the comparison.
func (a Box) ContainsBox(b Box, tol float64) bool {
	grown := Box{Min: r3.Sub(a.Min, Elem(tol)), Max: r3.Add(a.Max, Elem(tol))}
	return grown.Contains(b.Min) && grown.Contains(b.Max)
}

// Dist2 returns the squared distance from p to the closest point of the box.
// Points within the box have distance zero.
func (a Box) Dist2(p r3.Vec) float64 {
	// https://math.stackexchange.com/questions/2133217/minimal-distance-to-a-cube-in-2d-and-3d-from-a-point-lying-outside
	dx := math.Max(0, math.Max(p.X-a.Max.X, a.Min.X-p.X))
	dy := math.Max(0, math.Max(p.Y-a.Max.Y, a.Min.Y-p.Y))
	dz := math.Max(0, math.Max(p.Z-a.Max.Z, a.Min.Z-p.Z))
	return dx*dx + dy*dy + dz*dz
}
