// Package mesh implements an indexed triangle mesh together with the generic
// utilities the distance field pipeline relies on: validation, bounding boxes,
// connected component splitting, concatenation of disjoint pieces and
// vertex welding of triangle soups.
//
// A Mesh need not be watertight, manifold or free of self intersection.
package mesh

import (
	"errors"
	"fmt"

	"github.com/soypat/meshsdf/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrFaceIndex is returned when a face references a vertex out of bounds.
	ErrFaceIndex = errors.New("face index out of vertex bounds")
	// ErrNonFinite is returned when a vertex has a NaN or infinite coordinate.
	ErrNonFinite = errors.New("non-finite vertex coordinate")
)

// Mesh is an ordered sequence of vertex positions and an ordered sequence of
// triangular faces indexing into them.
type Mesh struct {
	Vertices []r3.Vec
	Faces    [][3]int
}

// New returns a mesh over vertices and faces after validating it.
// The slices are not copied.
func New(vertices []r3.Vec, faces [][3]int) (*Mesh, error) {
	m := &Mesh{Vertices: vertices, Faces: faces}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks every face index is within vertex count bounds and every
// vertex is finite.
func (m *Mesh) Validate() error {
	for i, v := range m.Vertices {
		if !d3.IsFinite(v) {
			return fmt.Errorf("vertex %d %v: %w", i, v, ErrNonFinite)
		}
	}
	nv := len(m.Vertices)
	for i, f := range m.Faces {
		if f[0] < 0 || f[1] < 0 || f[2] < 0 || f[0] >= nv || f[1] >= nv || f[2] >= nv {
			return fmt.Errorf("face %d %v with %d vertices: %w", i, f, nv, ErrFaceIndex)
		}
	}
	return nil
}

// Bounds returns the axis aligned bounding box of the vertices referenced or
// not by faces. An empty mesh returns an inverted box.
func (m *Mesh) Bounds() r3.Box {
	return r3.Box(d3.BoxOf(m.Vertices))
}

// Diagonal returns the length of the bounding box diagonal.
func (m *Mesh) Diagonal() float64 {
	return d3.BoxOf(m.Vertices).Diagonal()
}

// Triangle returns the vertex positions of the ith face.
func (m *Mesh) Triangle(i int) r3.Triangle {
	f := m.Faces[i]
	return r3.Triangle{m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]}
}

// Triangles returns the mesh as a triangle soup.
func (m *Mesh) Triangles() []r3.Triangle {
	tris := make([]r3.Triangle, len(m.Faces))
	for i := range m.Faces {
		tris[i] = m.Triangle(i)
	}
	return tris
}

// Clone returns a deep copy of the mesh.
func (m *Mesh) Clone() *Mesh {
	return &Mesh{
		Vertices: append([]r3.Vec(nil), m.Vertices...),
		Faces:    append([][3]int(nil), m.Faces...),
	}
}

// Transform returns a copy of the mesh with every vertex mapped through f.
// Faces are shared with the receiver's copy, not the receiver.
func (m *Mesh) Transform(f func(r3.Vec) r3.Vec) *Mesh {
	out := &Mesh{
		Vertices: make([]r3.Vec, len(m.Vertices)),
		Faces:    append([][3]int(nil), m.Faces...),
	}
	for i, v := range m.Vertices {
		out.Vertices[i] = f(v)
	}
	return out
}

// Concatenate merges disjoint pieces into a single mesh. Face indices of each
// piece are offset by the number of vertices preceding it.
func Concatenate(parts ...*Mesh) *Mesh {
	var nv, nf int
	for _, p := range parts {
		nv += len(p.Vertices)
		nf += len(p.Faces)
	}
	out := &Mesh{
		Vertices: make([]r3.Vec, 0, nv),
		Faces:    make([][3]int, 0, nf),
	}
	for _, p := range parts {
		offset := len(out.Vertices)
		out.Vertices = append(out.Vertices, p.Vertices...)
		for _, f := range p.Faces {
			out.Faces = append(out.Faces, [3]int{f[0] + offset, f[1] + offset, f[2] + offset})
		}
	}
	return out
}
