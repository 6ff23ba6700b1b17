package mesh

import (
	"errors"
	"math"

	"github.com/soypat/meshsdf/internal/d3"
	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"
)

// FromTriangles welds a triangle soup into an indexed mesh. Corners closer
// than tol are merged into a single vertex placed at the first corner of the
// cluster in input order. A tol of zero merges only exact duplicates.
// Triangles that collapse after welding are dropped.
func FromTriangles(tris []r3.Triangle, tol float64) (*Mesh, error) {
	if tol < 0 || math.IsNaN(tol) {
		return nil, errors.New("negative or NaN weld tolerance")
	}
	// Exact duplicates are resolved by hashing before touching the tree.
	exact := make(map[r3.Vec]int, len(tris))
	var distinct weldPoints
	corner := make([]int, 3*len(tris))
	for i, tri := range tris {
		for j, v := range tri {
			if !d3.IsFinite(v) {
				return nil, ErrNonFinite
			}
			idx, ok := exact[v]
			if !ok {
				idx = len(distinct)
				exact[v] = idx
				distinct = append(distinct, weldPoint{V: v, idx: idx})
			}
			corner[3*i+j] = idx
		}
	}

	// representative maps a distinct point to its output vertex index.
	representative := make([]int, len(distinct))
	out := &Mesh{}
	if tol == 0 {
		out.Vertices = make([]r3.Vec, len(distinct))
		for i, p := range distinct {
			representative[i] = i
			out.Vertices[i] = p.V
		}
	} else if len(distinct) > 0 {
		for i := range representative {
			representative[i] = -1
		}
		ordered := append(weldPoints(nil), distinct...)
		tree := kdtree.New(distinct, false) // Reorders distinct.
		tol2 := tol * tol
		for _, p := range ordered {
			if representative[p.idx] >= 0 {
				continue
			}
			vi := len(out.Vertices)
			out.Vertices = append(out.Vertices, p.V)
			representative[p.idx] = vi
			keep := kdtree.NewDistKeeper(tol2)
			tree.NearestSet(keep, p)
			for _, c := range keep.Heap {
				if c.Comparable == nil {
					continue // Sentinel.
				}
				q := c.Comparable.(weldPoint)
				if representative[q.idx] < 0 {
					representative[q.idx] = vi
				}
			}
		}
	}

	out.Faces = make([][3]int, 0, len(tris))
	for i := range tris {
		f := [3]int{
			representative[corner[3*i]],
			representative[corner[3*i+1]],
			representative[corner[3*i+2]],
		}
		if f[0] == f[1] || f[1] == f[2] || f[0] == f[2] {
			continue
		}
		out.Faces = append(out.Faces, f)
	}
	return out, nil
}

// weldPoint is a distinct triangle corner stored in the welding kd-tree.
type weldPoint struct {
	V   r3.Vec
	idx int
}

// Compare returns the signed distance of p from the plane passing through c and
// perpendicular to the dimension d.
func (p weldPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(weldPoint)
	return d3.Elem3(p.V, int(d)) - d3.Elem3(q.V, int(d))
}

// Dims returns the number of dimensions described by the receiver.
func (p weldPoint) Dims() int { return 3 }

// Distance returns the squared Euclidean distance between c and the receiver.
func (p weldPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(weldPoint)
	return r3.Norm2(r3.Sub(p.V, q.V))
}

type weldPoints []weldPoint

// Index returns the ith element of the list of points.
func (p weldPoints) Index(i int) kdtree.Comparable { return p[i] }

// Len returns the length of the list.
func (p weldPoints) Len() int { return len(p) }

// Pivot partitions the list based on the dimension specified.
func (p weldPoints) Pivot(d kdtree.Dim) int {
	plane := weldPlane{dim: int(d), points: p}
	return kdtree.Partition(plane, kdtree.MedianOfMedians(plane))
}

// Slice returns a slice of the list using zero-based half
// open indexing equivalent to built-in slice indexing.
func (p weldPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

type weldPlane struct {
	dim    int
	points weldPoints
}

func (p weldPlane) Less(i, j int) bool {
	return p.points[i].Compare(p.points[j], kdtree.Dim(p.dim)) < 0
}
func (p weldPlane) Swap(i, j int) { p.points[i], p.points[j] = p.points[j], p.points[i] }
func (p weldPlane) Len() int      { return len(p.points) }
func (p weldPlane) Slice(start, end int) kdtree.SortSlicer {
	p.points = p.points[start:end]
	return p
}
