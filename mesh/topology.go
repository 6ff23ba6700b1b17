package mesh

import "gonum.org/v1/gonum/spatial/r3"

// edgeUse counts how many faces use each undirected edge.
func (m *Mesh) edgeUse() map[[2]int]int {
	edges := make(map[[2]int]int, 3*len(m.Faces)/2)
	for _, f := range m.Faces {
		for j := range f {
			e := [2]int{f[j], f[(j+1)%3]}
			if e[0] > e[1] {
				e[0], e[1] = e[1], e[0]
			}
			edges[e]++
		}
	}
	return edges
}

// BoundaryEdges returns the number of edges used by a single face.
func (m *Mesh) BoundaryEdges() int {
	n := 0
	for _, uses := range m.edgeUse() {
		if uses == 1 {
			n++
		}
	}
	return n
}

// IsWatertight reports whether every edge of the mesh is shared by exactly
// two faces. Empty meshes are not watertight.
func (m *Mesh) IsWatertight() bool {
	if len(m.Faces) == 0 {
		return false
	}
	for _, uses := range m.edgeUse() {
		if uses != 2 {
			return false
		}
	}
	return true
}

// Volume returns the signed volume enclosed by the mesh. It is positive for
// closed meshes with outward facing counter-clockwise faces and meaningless
// for open meshes.
func (m *Mesh) Volume() float64 {
	var vol float64
	for _, f := range m.Faces {
		a, b, c := m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]
		vol += r3.Dot(a, r3.Cross(b, c))
	}
	return vol / 6
}
