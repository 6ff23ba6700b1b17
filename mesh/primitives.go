package mesh

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Icosahedron returns a closed icosahedron with outward facing
// counter-clockwise faces inscribed in a sphere of the given radius.
func Icosahedron(radius float64, center r3.Vec) *Mesh {
	phi := (1 + math.Sqrt(5)) / 2
	base := []r3.Vec{
		{X: -1, Y: phi}, {X: 1, Y: phi}, {X: -1, Y: -phi}, {X: 1, Y: -phi},
		{Y: -1, Z: phi}, {Y: 1, Z: phi}, {Y: -1, Z: -phi}, {Y: 1, Z: -phi},
		{X: phi, Z: -1}, {X: phi, Z: 1}, {X: -phi, Z: -1}, {X: -phi, Z: 1},
	}
	s := radius / math.Sqrt(1+phi*phi)
	m := &Mesh{
		Vertices: make([]r3.Vec, len(base)),
		Faces: [][3]int{
			{0, 11, 5}, {0, 5, 1}, {0, 1, 7}, {0, 7, 10}, {0, 10, 11},
			{1, 5, 9}, {5, 11, 4}, {11, 10, 2}, {10, 7, 6}, {7, 1, 8},
			{3, 9, 4}, {3, 4, 2}, {3, 2, 6}, {3, 6, 8}, {3, 8, 9},
			{4, 9, 5}, {2, 4, 11}, {6, 2, 10}, {8, 6, 7}, {9, 8, 1},
		},
	}
	for i, v := range base {
		m.Vertices[i] = r3.Add(center, r3.Scale(s, v))
	}
	return m
}

// Box returns a closed axis aligned box with outward facing
// counter-clockwise faces spanning min to max.
func Box(min, max r3.Vec) *Mesh {
	m := &Mesh{Vertices: make([]r3.Vec, 8)}
	// Vertex i has bit 0 set for max X, bit 1 for max Y, bit 2 for max Z.
	for i := range m.Vertices {
		v := min
		if i&1 != 0 {
			v.X = max.X
		}
		if i&2 != 0 {
			v.Y = max.Y
		}
		if i&4 != 0 {
			v.Z = max.Z
		}
		m.Vertices[i] = v
	}
	m.Faces = [][3]int{
		{0, 4, 6}, {0, 6, 2}, // -X
		{1, 3, 7}, {1, 7, 5}, // +X
		{0, 1, 5}, {0, 5, 4}, // -Y
		{2, 6, 7}, {2, 7, 3}, // +Y
		{0, 2, 3}, {0, 3, 1}, // -Z
		{4, 5, 7}, {4, 7, 6}, // +Z
	}
	return m
}
