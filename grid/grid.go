// Package grid implements the cubic scalar field sampled on a regular lattice
// spanning [-1, 1]³ that the distance field pipeline produces and consumes.
//
// Node (i, j, k) sits at world position (-1 + i·h, -1 + j·h, -1 + k·h) with
// spacing h = 2/(size-1). Samples are laid out in C order with i varying
// slowest, so node (i, j, k) is stored at (i*size+j)*size+k.
package grid

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrSize is returned when a grid with fewer than two nodes per axis is requested.
var ErrSize = errors.New("grid size must be at least 2")

// maxSize keeps size³ samples addressable as bytes on 64 bit platforms.
const maxSize = 1 << 16

// Field is a size³ scalar field over the [-1, 1]³ cube. A Field must be
// closed once it is no longer needed so backing storage is released.
type Field struct {
	size    int
	data    []float64
	release func() error
}

// New allocates a zeroed field in memory.
func New(size int) (*Field, error) {
	if err := checkSize(size); err != nil {
		return nil, err
	}
	return &Field{size: size, data: make([]float64, size*size*size)}, nil
}

func checkSize(size int) error {
	if size < 2 {
		return fmt.Errorf("size %d: %w", size, ErrSize)
	}
	if size > maxSize {
		return fmt.Errorf("size %d exceeds maximum %d", size, maxSize)
	}
	return nil
}

// Close releases the field's storage. Subsequent calls are no-ops.
func (f *Field) Close() error {
	f.data = nil
	if f.release == nil {
		return nil
	}
	release := f.release
	f.release = nil
	return release()
}

// Size returns the number of nodes along each axis.
func (f *Field) Size() int { return f.size }

// Len returns the total number of samples, size³.
func (f *Field) Len() int { return f.size * f.size * f.size }

// Bytes returns the storage footprint of the samples.
func (f *Field) Bytes() int64 { return Bytes(f.size) }

// Bytes returns the number of bytes occupied by a field of the given size.
func Bytes(size int) int64 {
	n := int64(size)
	return n * n * n * 8
}

// Spacing returns the world distance between adjacent nodes.
func (f *Field) Spacing() float64 { return Spacing(f.size) }

// Spacing returns the world distance between adjacent nodes of a grid of the given size.
func Spacing(size int) float64 { return 2 / float64(size-1) }

// Index returns the storage offset of node (i, j, k).
func (f *Field) Index(i, j, k int) int { return (i*f.size+j)*f.size + k }

// At returns the sample at node (i, j, k).
func (f *Field) At(i, j, k int) float64 { return f.data[f.Index(i, j, k)] }

// Set stores v at node (i, j, k).
func (f *Field) Set(i, j, k int, v float64) { f.data[f.Index(i, j, k)] = v }

// Data returns the underlying samples in C order. Modifying the returned
// slice modifies the field. It is invalid after Close.
func (f *Field) Data() []float64 { return f.data }

// Position returns the world coordinate of node (i, j, k).
func (f *Field) Position(i, j, k int) r3.Vec {
	return IndexToWorld(f.size, r3.Vec{X: float64(i), Y: float64(j), Z: float64(k)})
}

// MinMax returns the smallest and largest samples of the field.
func (f *Field) MinMax() (min, max float64) {
	return floats.Min(f.data), floats.Max(f.data)
}

// Abs replaces every sample with its absolute value in place.
func (f *Field) Abs() {
	for i, v := range f.data {
		f.data[i] = math.Abs(v)
	}
}

// Sample returns the trilinear interpolation of the field at world position p.
// Positions outside the cube are clamped onto its boundary.
func (f *Field) Sample(p r3.Vec) float64 {
	last := float64(f.size - 1)
	q := WorldToIndex(f.size, p)
	x, y, z := clamp(q.X, 0, last), clamp(q.Y, 0, last), clamp(q.Z, 0, last)
	// Lower corner is kept one node from the upper boundary so the cell is valid.
	i, j, k := lowerNode(x, f.size), lowerNode(y, f.size), lowerNode(z, f.size)
	tx, ty, tz := x-float64(i), y-float64(j), z-float64(k)

	c00 := lerp(f.At(i, j, k), f.At(i+1, j, k), tx)
	c10 := lerp(f.At(i, j+1, k), f.At(i+1, j+1, k), tx)
	c01 := lerp(f.At(i, j, k+1), f.At(i+1, j, k+1), tx)
	c11 := lerp(f.At(i, j+1, k+1), f.At(i+1, j+1, k+1), tx)
	c0 := lerp(c00, c10, ty)
	c1 := lerp(c01, c11, ty)
	return lerp(c0, c1, tz)
}

func lowerNode(x float64, size int) int {
	n := int(x)
	if n > size-2 {
		n = size - 2
	}
	return n
}

func lerp(a, b, t float64) float64 { return a + t*(b-a) }

func clamp(v, lo, hi float64) float64 { return math.Max(lo, math.Min(hi, v)) }

// IndexToWorld maps a point in grid index units [0, size-1]³ onto the world
// cube [-1, 1]³ with v·2/(size-1) - 1 on each axis.
func IndexToWorld(size int, v r3.Vec) r3.Vec {
	s := 2 / float64(size-1)
	return r3.Vec{X: v.X*s - 1, Y: v.Y*s - 1, Z: v.Z*s - 1}
}

// WorldToIndex is the inverse of IndexToWorld.
func WorldToIndex(size int, v r3.Vec) r3.Vec {
	s := float64(size-1) / 2
	return r3.Vec{X: (v.X + 1) * s, Y: (v.Y + 1) * s, Z: (v.Z + 1) * s}
}
