// Package gridfield samples the signed distance to a triangle mesh on a
// regular grid spanning [-1, 1]³.
//
// Magnitudes are exact Euclidean distances to the closest point of the
// closest triangle. Signs come from ray parity along the Z axis of every grid
// column, so nodes enclosed by an odd number of surface layers are negative.
// For meshes with holes the sign is only meaningful near closed regions; the
// caller repairs such meshes by extracting an offset surface of the unsigned
// field.
package gridfield

import (
	"errors"
	"fmt"
	"math"
	"runtime"

	"github.com/soypat/meshsdf/grid"
	"github.com/soypat/meshsdf/mesh"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrSize is returned for grids with fewer than two nodes per axis.
	ErrSize = grid.ErrSize
	// ErrEmptyMesh is returned when the mesh has no faces.
	ErrEmptyMesh = errors.New("mesh has no faces")
	// ErrOutOfDomain is returned when a vertex lies outside [-1, 1]³.
	ErrOutOfDomain = errors.New("vertex outside [-1, 1] cube")
)

// domainTol is the slack allowed on the [-1, 1] vertex range.
const domainTol = 1e-9

// Sampler computes signed distance fields. The zero value is ready to use.
type Sampler struct {
	// Workers bounds the number of goroutines sampling grid slabs.
	// Zero or negative uses runtime.GOMAXPROCS.
	Workers int
	// Alloc allocates the output field. Nil allocates in memory with grid.New.
	Alloc func(size int) (*grid.Field, error)
}

// Compute samples the signed distance to m with a default Sampler.
func Compute(m *mesh.Mesh, size int) (*grid.Field, error) {
	return Sampler{}.Compute(m, size)
}

// Compute samples the signed distance to m on a size³ grid over [-1, 1]³.
// The result is deterministic for a given mesh and size regardless of the
// number of workers.
func (s Sampler) Compute(m *mesh.Mesh, size int) (*grid.Field, error) {
	if size < 2 {
		return nil, fmt.Errorf("size %d: %w", size, ErrSize)
	}
	if err := CheckDomain(m); err != nil {
		return nil, err
	}
	alloc := s.Alloc
	if alloc == nil {
		alloc = grid.New
	}
	workers := s.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	tris := m.Triangles()
	tree := newBVH(tris)
	indexTris := make([]r3.Triangle, len(tris))
	for i, t := range tris {
		for j := range t {
			indexTris[i][j] = grid.WorldToIndex(size, t[j])
		}
	}
	cross := newCrossings(size, indexTris)

	field, err := alloc(size)
	if err != nil {
		return nil, err
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for i := 0; i < size; i++ {
		i := i
		g.Go(func() error {
			sampleSlab(field, tree, cross, i)
			return nil
		})
	}
	g.Wait()
	return field, nil
}

// sampleSlab fills the nodes of the X slab i. Each query is seeded with the
// closest face of the previous node, which is usually the answer or close to
// it, so the hierarchy is pruned to a few leaves.
func sampleSlab(field *grid.Field, tree *bvh, cross *crossings, i int) {
	size := field.Size()
	data := field.Data()
	rowSeed := -1
	for j := 0; j < size; j++ {
		col := cross.column(i, j)
		below := 0 // Crossings at or below the current node.
		seed := rowSeed
		for k := 0; k < size; k++ {
			for below < len(col) && int(col[below]) <= k {
				below++
			}
			d2, closest := tree.nearest(field.Position(i, j, k), seed)
			seed = closest
			if k == 0 {
				rowSeed = closest
			}
			d := math.Sqrt(d2)
			if below%2 == 1 {
				d = -d
			}
			data[field.Index(i, j, k)] = d
		}
	}
}

// CheckDomain validates m and checks it has faces and every vertex lies in
// [-1, 1]³ up to a small tolerance.
func CheckDomain(m *mesh.Mesh) error {
	if len(m.Faces) == 0 {
		return ErrEmptyMesh
	}
	if err := m.Validate(); err != nil {
		return err
	}
	const lim = 1 + domainTol
	for i, v := range m.Vertices {
		if math.Abs(v.X) > lim || math.Abs(v.Y) > lim || math.Abs(v.Z) > lim {
			return fmt.Errorf("vertex %d %v: %w", i, v, ErrOutOfDomain)
		}
	}
	return nil
}
