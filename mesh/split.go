package mesh

// Split partitions the mesh into maximal sets of faces connected through
// shared vertices. Components are ordered by the lowest face index they
// contain and each component keeps the relative order of its faces.
// Vertices not referenced by any face are dropped.
func (m *Mesh) Split() []*Mesh {
	if len(m.Faces) == 0 {
		return nil
	}
	uf := newUnionFind(len(m.Vertices))
	for _, f := range m.Faces {
		uf.union(f[0], f[1])
		uf.union(f[0], f[2])
	}
	componentOf := make(map[int]int) // union-find root to component index.
	var faceGroups [][]int
	for i, f := range m.Faces {
		root := uf.find(f[0])
		c, ok := componentOf[root]
		if !ok {
			c = len(faceGroups)
			componentOf[root] = c
			faceGroups = append(faceGroups, nil)
		}
		faceGroups[c] = append(faceGroups[c], i)
	}

	components := make([]*Mesh, len(faceGroups))
	remap := make([]int, len(m.Vertices))
	for i := range remap {
		remap[i] = -1
	}
	for c, group := range faceGroups {
		comp := &Mesh{Faces: make([][3]int, len(group))}
		for j, iface := range group {
			f := m.Faces[iface]
			for k, vi := range f {
				if remap[vi] < 0 {
					remap[vi] = len(comp.Vertices)
					comp.Vertices = append(comp.Vertices, m.Vertices[vi])
				}
				comp.Faces[j][k] = remap[vi]
			}
		}
		// Components do not share vertices so resetting only what was used is enough.
		for _, iface := range group {
			for _, vi := range m.Faces[iface] {
				remap[vi] = -1
			}
		}
		components[c] = comp
	}
	return components
}

// unionFind is a disjoint set forest with path halving and union by size.
type unionFind struct {
	parent []int
	size   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), size: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
		uf.size[i] = 1
	}
	return uf
}

func (uf *unionFind) find(i int) int {
	for uf.parent[i] != i {
		uf.parent[i] = uf.parent[uf.parent[i]]
		i = uf.parent[i]
	}
	return i
}

func (uf *unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	if uf.size[ra] < uf.size[rb] {
		ra, rb = rb, ra
	}
	uf.parent[rb] = ra
	uf.size[ra] += uf.size[rb]
}
