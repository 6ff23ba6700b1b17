package meshsdf

import (
	"fmt"
	"strings"

	"github.com/soypat/meshsdf/grid"
	"github.com/soypat/meshsdf/internal/d3"
	"github.com/soypat/meshsdf/mesh"
	"gonum.org/v1/gonum/spatial/r3"
)

// ShellPolicy selects how repair keeps components of the extracted surface.
type ShellPolicy int

const (
	// ShellContainment keeps every component whose bounding box is not
	// contained in another component's bounding box.
	ShellContainment ShellPolicy = iota
	// ShellLargest keeps only the component with the largest bounding box diagonal.
	ShellLargest
)

// DefaultContainmentTol is the slack in grid index units applied to bounding
// box containment tests.
const DefaultContainmentTol = 1e-6

func (p ShellPolicy) String() string {
	switch p {
	case ShellContainment:
		return "containment"
	case ShellLargest:
		return "largest"
	}
	return fmt.Sprintf("ShellPolicy(%d)", int(p))
}

// ParseShellPolicy returns the policy named s, case insensitively.
func ParseShellPolicy(s string) (ShellPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "containment", "":
		return ShellContainment, nil
	case "largest":
		return ShellLargest, nil
	}
	return 0, fmt.Errorf("unknown shell policy %q", s)
}

// SelectShells returns the indices, in ascending order, of the components to
// keep as the outer boundary of the shape.
//
// With ShellContainment a component is discarded when another component's
// bounding box contains its own on every axis, bounds included, after growing
// the containing box by tol. Components with equal boxes keep only the lowest
// index. With ShellLargest the single component with the largest bounding box
// diagonal is kept, the lowest index winning ties.
func SelectShells(components []*mesh.Mesh, policy ShellPolicy, tol float64) ([]int, error) {
	if len(components) == 0 {
		return nil, ErrEmptyComponentSet
	}
	boxes := make([]d3.Box, len(components))
	for i, c := range components {
		boxes[i] = d3.BoxOf(c.Vertices)
	}
	var kept []int
	switch policy {
	case ShellContainment:
		for c := range boxes {
			if !containedByOther(boxes, c, tol) {
				kept = append(kept, c)
			}
		}
	case ShellLargest:
		best := -1
		bestDiag := -1.0
		for c, bb := range boxes {
			if bb.IsEmpty() {
				continue
			}
			if diag := bb.Diagonal(); diag > bestDiag {
				best, bestDiag = c, diag
			}
		}
		if best >= 0 {
			kept = []int{best}
		}
	default:
		return nil, fmt.Errorf("unknown shell policy %v", policy)
	}
	if len(kept) == 0 {
		return nil, ErrNoSurvivingComponent
	}
	return kept, nil
}

func containedByOther(boxes []d3.Box, c int, tol float64) bool {
	if boxes[c].IsEmpty() {
		return true
	}
	for other, bb := range boxes {
		if other == c || bb.IsEmpty() || !bb.ContainsBox(boxes[c], tol) {
			continue
		}
		// Mutually containing boxes are equal within tol. Lowest index survives.
		if boxes[c].ContainsBox(bb, tol) && c < other {
			continue
		}
		return true
	}
	return false
}

// Renormalize maps a mesh from grid index units [0, size-1]³ onto the
// [-1, 1]³ cube the distance sampler expects. It is the exact inverse of the
// sampler's node placement.
func Renormalize(m *mesh.Mesh, size int) *mesh.Mesh {
	return m.Transform(func(v r3.Vec) r3.Vec { return grid.IndexToWorld(size, v) })
}
