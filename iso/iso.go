// Package iso polygonizes level sets of scalar fields sampled on a grid.
//
// Every grid cell is split into the six tetrahedra of the Freudenthal
// decomposition, which neighbouring cells share face for face. Surfaces are
// therefore closed wherever the level set does not reach the grid boundary and
// vertices on shared lattice edges are emitted once.
package iso

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/soypat/meshsdf/grid"
	"github.com/soypat/meshsdf/mesh"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrLevelOutOfRange is returned when the level does not lie strictly
	// between the field's minimum and maximum.
	ErrLevelOutOfRange = errors.New("level outside field range")
	// ErrNoSurface is returned when polygonization yields no faces.
	ErrNoSurface = errors.New("level set has no surface")
)

// snapTol snaps edge vertices closer than this fraction of the edge to the node.
const snapTol = 1e-9

// tetrahedra lists the corners of the six Freudenthal tetrahedra of a cell.
// Corner bit 0 selects +X, bit 1 +Y and bit 2 +Z. Each tetrahedron walks from
// corner 0 to corner 7 along one permutation of the axes.
var tetrahedra = func() (tets [6][4]int) {
	perms := [6][3]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}
	for i, p := range perms {
		a := 1 << p[0]
		b := a | 1<<p[1]
		tets[i] = [4]int{0, a, b, 7}
	}
	return tets
}()

// Extractor polygonizes fields. The zero value is ready to use.
type Extractor struct {
	// Workers bounds the number of goroutines polygonizing slabs.
	// Zero or negative uses runtime.GOMAXPROCS.
	Workers int
}

// Extract polygonizes the level set of f with a default Extractor.
func Extract(f *grid.Field, level float64) (*mesh.Mesh, error) {
	return Extractor{}.Extract(f, level)
}

// Extract returns a triangle mesh approximating the surface where f equals
// level. Vertex positions are in grid index units [0, size-1]³. Triangle
// normals point towards increasing field values.
func (e Extractor) Extract(f *grid.Field, level float64) (*mesh.Mesh, error) {
	min, max := f.MinMax()
	if !(min < level && level < max) {
		return nil, fmt.Errorf("level %g with field range [%g, %g]: %w", level, min, max, ErrLevelOutOfRange)
	}
	workers := e.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	size := f.Size()
	slabs := make([]slab, size-1)
	var g errgroup.Group
	g.SetLimit(workers)
	for i := range slabs {
		i := i
		g.Go(func() error {
			slabs[i] = polygonizeSlab(f, level, i)
			return nil
		})
	}
	g.Wait()

	// Merge in slab order so output does not depend on scheduling.
	out := &mesh.Mesh{}
	global := make(map[int64]int)
	for _, s := range slabs {
		remap := make([]int, len(s.keys))
		for li, key := range s.keys {
			gi, ok := global[key]
			if !ok {
				gi = len(out.Vertices)
				global[key] = gi
				out.Vertices = append(out.Vertices, s.verts[li])
			}
			remap[li] = gi
		}
		for _, face := range s.faces {
			out.Faces = append(out.Faces, [3]int{remap[face[0]], remap[face[1]], remap[face[2]]})
		}
	}
	if len(out.Faces) == 0 {
		return nil, ErrNoSurface
	}
	return out, nil
}

// slab holds the polygonization of the cells between X nodes i and i+1.
type slab struct {
	keys  []int64
	verts []r3.Vec
	faces [][3]int
	index map[int64]int
}

// vertex returns the slab-local index of the surface vertex on the lattice
// edge from node a to node b.
func (s *slab) vertex(f *grid.Field, level float64, a, b [3]int, va, vb float64) int {
	t := (level - va) / (vb - va)
	dir := (b[0]-a[0]) | (b[1]-a[1])<<1 | (b[2]-a[2])<<2
	node := a
	switch {
	case t <= snapTol:
		dir = 0
	case t >= 1-snapTol:
		node, dir = b, 0
	}
	key := int64(f.Index(node[0], node[1], node[2]))*8 + int64(dir)
	if idx, ok := s.index[key]; ok {
		return idx
	}
	var p r3.Vec
	if dir == 0 {
		p = r3.Vec{X: float64(node[0]), Y: float64(node[1]), Z: float64(node[2])}
	} else {
		p = r3.Vec{
			X: float64(a[0]) + t*float64(b[0]-a[0]),
			Y: float64(a[1]) + t*float64(b[1]-a[1]),
			Z: float64(a[2]) + t*float64(b[2]-a[2]),
		}
	}
	idx := len(s.verts)
	s.index[key] = idx
	s.keys = append(s.keys, key)
	s.verts = append(s.verts, p)
	return idx
}

func polygonizeSlab(f *grid.Field, level float64, i int) slab {
	s := slab{index: make(map[int64]int)}
	n := f.Size()
	var corner [8][3]int
	var value [8]float64
	for j := 0; j < n-1; j++ {
		for k := 0; k < n-1; k++ {
			for c := range corner {
				corner[c] = [3]int{i + c&1, j + (c>>1)&1, k + (c>>2)&1}
				value[c] = f.At(corner[c][0], corner[c][1], corner[c][2])
			}
			for _, tet := range tetrahedra {
				s.tetrahedron(f, level, tet, &corner, &value)
			}
		}
	}
	s.index = nil
	return s
}

func (s *slab) tetrahedron(f *grid.Field, level float64, tet [4]int, corner *[8][3]int, value *[8]float64) {
	var inBuf, outBuf [4]int
	in, out := inBuf[:0], outBuf[:0]
	for _, c := range tet {
		if value[c] < level {
			in = append(in, c)
		} else {
			out = append(out, c)
		}
	}
	if len(in) == 0 || len(out) == 0 {
		return
	}
	edge := func(a, b int) int {
		// Lattice edges always run from the corner with fewer bits set.
		if a > b {
			a, b = b, a
		}
		return s.vertex(f, level, corner[a], corner[b], value[a], value[b])
	}
	// gradient points from the inside corners towards the outside corners.
	var gradient r3.Vec
	for _, c := range out {
		gradient = r3.Add(gradient, r3.Scale(1/float64(len(out)), cornerVec(corner[c])))
	}
	for _, c := range in {
		gradient = r3.Sub(gradient, r3.Scale(1/float64(len(in)), cornerVec(corner[c])))
	}
	switch len(in) {
	case 1:
		a := in[0]
		s.triangle(gradient, edge(a, out[0]), edge(a, out[1]), edge(a, out[2]))
	case 3:
		a := out[0]
		s.triangle(gradient, edge(a, in[0]), edge(a, in[1]), edge(a, in[2]))
	case 2:
		a, b, c, d := in[0], in[1], out[0], out[1]
		ac, ad, bd, bc := edge(a, c), edge(a, d), edge(b, d), edge(b, c)
		s.triangle(gradient, ac, ad, bd)
		s.triangle(gradient, ac, bd, bc)
	}
}

// triangle appends a face oriented so its normal agrees with gradient.
// Faces collapsed by vertex snapping are dropped.
func (s *slab) triangle(gradient r3.Vec, v0, v1, v2 int) {
	if v0 == v1 || v1 == v2 || v0 == v2 {
		return
	}
	p0, p1, p2 := s.verts[v0], s.verts[v1], s.verts[v2]
	normal := r3.Cross(r3.Sub(p1, p0), r3.Sub(p2, p0))
	if r3.Dot(normal, gradient) < 0 {
		v1, v2 = v2, v1
	}
	s.faces = append(s.faces, [3]int{v0, v1, v2})
}

func cornerVec(c [3]int) r3.Vec {
	return r3.Vec{X: float64(c[0]), Y: float64(c[1]), Z: float64(c[2])}
}
