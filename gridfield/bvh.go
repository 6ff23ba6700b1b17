package gridfield

import (
	"math"

	"github.com/soypat/meshsdf/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// leafFaces is the maximum number of faces stored in a BVH leaf.
const leafFaces = 4

// boxPad grows node boxes so rounding in Box.Dist2 never prunes a face
// whose computed distance is smaller.
const boxPad = 1e-12

// bvhNode is a node of a bounding volume hierarchy. Every node stores the
// tight box of the faces below it.
type bvhNode struct {
	box d3.Box
	// Internal nodes: index of left child, right child is child+1.
	// Leaves: index of first face.
	child int
	// Number of faces in a leaf. Zero for internal nodes.
	n int
}

// bvh answers nearest face distance queries over a triangle mesh.
type bvh struct {
	nodes []bvhNode
	faces []face
}

type bvhItem struct {
	tri      r3.Triangle
	centroid r3.Vec
	idx      int
}

func newBVH(tris []r3.Triangle) *bvh {
	items := make([]bvhItem, len(tris))
	for i, t := range tris {
		items[i] = bvhItem{tri: t, centroid: r3.Scale(1./3, r3.Add(t[0], r3.Add(t[1], t[2]))), idx: i}
	}
	b := &bvh{nodes: make([]bvhNode, 1, 2*len(tris)/leafFaces+2)}
	if len(items) > 0 {
		b.subdivide(0, 0, items)
	}
	b.faces = make([]face, len(items))
	for i, it := range items {
		b.faces[i] = newFace(it.tri)
	}
	return b
}

func (b *bvh) subdivide(node, offset int, items []bvhItem) {
	bb := d3.EmptyBox()
	cb := d3.EmptyBox()
	for _, it := range items {
		bb = bb.Include(it.tri[0]).Include(it.tri[1]).Include(it.tri[2])
		cb = cb.Include(it.centroid)
	}
	bb = d3.Box{Min: r3.Sub(bb.Min, d3.Elem(boxPad)), Max: r3.Add(bb.Max, d3.Elem(boxPad))}
	if len(items) <= leafFaces {
		b.nodes[node] = bvhNode{box: bb, child: offset, n: len(items)}
		return
	}
	// Split the longest centroid axis at the median.
	dims := cb.Size()
	axis := 2
	if dims.X >= dims.Y && dims.X >= dims.Z {
		axis = 0
	} else if dims.Y >= dims.Z {
		axis = 1
	}
	half := len(items) / 2
	selectNth(items, half, axis)
	child := len(b.nodes)
	b.nodes = append(b.nodes, bvhNode{}, bvhNode{})
	b.subdivide(child, offset, items[:half])
	b.subdivide(child+1, offset+half, items[half:])
	b.nodes[node] = bvhNode{box: bb, child: child}
}

// bvhLess orders items by centroid along axis, then by input order.
func bvhLess(a, b *bvhItem, axis int) bool {
	ca, cb := d3.Elem3(a.centroid, axis), d3.Elem3(b.centroid, axis)
	if ca != cb {
		return ca < cb
	}
	return a.idx < b.idx
}

// selectNth partially orders items so that items[n] is the element a full
// sort would place there, with no greater element before it and no smaller
// after it.
func selectNth(items []bvhItem, n, axis int) {
	lo, hi := 0, len(items)-1
	for lo < hi {
		// Median of three pivot moved to hi.
		mid := lo + (hi-lo)/2
		if bvhLess(&items[mid], &items[lo], axis) {
			items[mid], items[lo] = items[lo], items[mid]
		}
		if bvhLess(&items[hi], &items[lo], axis) {
			items[hi], items[lo] = items[lo], items[hi]
		}
		if bvhLess(&items[mid], &items[hi], axis) {
			items[mid], items[hi] = items[hi], items[mid]
		}
		pivot := items[hi]
		store := lo
		for i := lo; i < hi; i++ {
			if bvhLess(&items[i], &pivot, axis) {
				items[i], items[store] = items[store], items[i]
				store++
			}
		}
		items[store], items[hi] = items[hi], items[store]
		switch {
		case n < store:
			hi = store - 1
		case n > store:
			lo = store + 1
		default:
			return
		}
	}
}

// nearest returns the squared distance from p to the closest face and the
// index of that face. A non-negative seed names a face whose distance bounds
// the search, usually the closest face of a neighbouring query point.
// The distance returned does not depend on seed.
func (b *bvh) nearest(p r3.Vec, seed int) (dist2 float64, closest int) {
	if len(b.faces) == 0 {
		return math.Inf(1), -1
	}
	best, bestFace := math.Inf(1), -1
	if seed >= 0 && seed < len(b.faces) {
		best, bestFace = b.faces[seed].dist2(p), seed
	}
	type entry struct {
		node int
		d2   float64
	}
	// Depth of a median split tree is logarithmic in the face count.
	var stack [64]entry
	stack[0] = entry{node: 0, d2: b.nodes[0].box.Dist2(p)}
	sp := 1
	for sp > 0 {
		sp--
		e := stack[sp]
		if e.d2 >= best {
			continue
		}
		node := &b.nodes[e.node]
		if node.n > 0 {
			for i := node.child; i < node.child+node.n; i++ {
				if d := b.faces[i].dist2(p); d < best {
					best, bestFace = d, i
				}
			}
			continue
		}
		l, r := node.child, node.child+1
		dl, dr := b.nodes[l].box.Dist2(p), b.nodes[r].box.Dist2(p)
		if dl < dr {
			// Push the farther child first so the closer one is popped next.
			l, r, dl, dr = r, l, dr, dl
		}
		if dl < best {
			stack[sp] = entry{node: l, d2: dl}
			sp++
		}
		if dr < best {
			stack[sp] = entry{node: r, d2: dr}
			sp++
		}
	}
	return best, bestFace
}
