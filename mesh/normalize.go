package mesh

import (
	"errors"
	"math"

	"github.com/soypat/meshsdf/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// Normalization is a uniform scale about a center point. It maps a mesh
// into the [-1, 1]³ cube and back.
type Normalization struct {
	Center r3.Vec
	Scale  float64
}

// Apply maps a point from the original frame into the normalized cube.
func (n Normalization) Apply(p r3.Vec) r3.Vec {
	return r3.Scale(n.Scale, r3.Sub(p, n.Center))
}

// Invert maps a point from the normalized cube back into the original frame.
func (n Normalization) Invert(p r3.Vec) r3.Vec {
	return r3.Add(r3.Scale(1/n.Scale, p), n.Center)
}

// Normalize returns a copy of the mesh centered on the origin and uniformly
// scaled so its longest bounding box side spans [-1+margin, 1-margin].
// Aspect ratio is preserved. margin must be in [0, 1).
func (m *Mesh) Normalize(margin float64) (*Mesh, Normalization, error) {
	if margin < 0 || margin >= 1 || math.IsNaN(margin) {
		return nil, Normalization{}, errors.New("normalization margin must be in [0, 1)")
	}
	bb := d3.BoxOf(m.Vertices)
	if bb.IsEmpty() {
		return nil, Normalization{}, errors.New("cannot normalize mesh without vertices")
	}
	halfSide := d3.Max(bb.Size()) / 2
	if halfSide == 0 {
		return nil, Normalization{}, errors.New("cannot normalize mesh with zero extent")
	}
	n := Normalization{
		Center: bb.Center(),
		Scale:  (1 - margin) / halfSide,
	}
	return m.Transform(n.Apply), n, nil
}
