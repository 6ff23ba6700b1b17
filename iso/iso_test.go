package iso

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/soypat/meshsdf/grid"
	"go.uber.org/goleak"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func fieldOf(t *testing.T, size int, fn func(p r3.Vec) float64) *grid.Field {
	t.Helper()
	f, err := grid.New(size)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			for k := 0; k < size; k++ {
				f.Set(i, j, k, fn(f.Position(i, j, k)))
			}
		}
	}
	return f
}

func sphere(r float64) func(r3.Vec) float64 {
	return func(p r3.Vec) float64 { return r3.Norm(p) - r }
}

func TestExtractLevelRange(t *testing.T) {
	f := fieldOf(t, 8, sphere(0.5))
	min, max := f.MinMax()
	for _, level := range []float64{min, max, min - 1, max + 1, math.NaN()} {
		_, err := Extract(f, level)
		if !errors.Is(err, ErrLevelOutOfRange) {
			t.Errorf("level %g: got error %v. want %v", level, err, ErrLevelOutOfRange)
		}
	}
}

func TestExtractSphere(t *testing.T) {
	const (
		size   = 24
		radius = 0.5
	)
	f := fieldOf(t, size, sphere(radius))
	m, err := Extract(f, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Validate(); err != nil {
		t.Fatal(err)
	}
	if !m.IsWatertight() {
		t.Errorf("sphere surface not watertight: %d boundary edges", m.BoundaryEdges())
	}
	if len(m.Split()) != 1 {
		t.Errorf("sphere surface should be a single component")
	}
	world := m.Transform(func(v r3.Vec) r3.Vec { return grid.IndexToWorld(size, v) })
	h := grid.Spacing(size)
	for _, v := range world.Vertices {
		if d := math.Abs(r3.Norm(v) - radius); d > h/4 {
			t.Fatalf("vertex %v off sphere by %g", v, d)
		}
	}
	want := 4. / 3 * math.Pi * radius * radius * radius
	if got := world.Volume(); math.Abs(got-want)/want > 0.05 {
		t.Errorf("enclosed volume got %g. want %g", got, want)
	}
}

func TestExtractDeterministic(t *testing.T) {
	f := fieldOf(t, 19, func(p r3.Vec) float64 {
		return math.Min(r3.Norm(r3.Sub(p, r3.Vec{X: 0.3})) - 0.4, r3.Norm(r3.Sub(p, r3.Vec{Y: -0.4})) - 0.3)
	})
	want, err := Extractor{Workers: 1}.Extract(f, 0)
	if err != nil {
		t.Fatal(err)
	}
	for _, workers := range []int{2, 7, 32} {
		got, err := Extractor{Workers: workers}.Extract(f, 0)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("workers %d output differs (-want +got):\n%s", workers, diff)
		}
	}
}

func TestExtractPlaneOpen(t *testing.T) {
	const size = 9
	f := fieldOf(t, size, func(p r3.Vec) float64 { return p.X - 0.1 })
	m, err := Extract(f, 0)
	if err != nil {
		t.Fatal(err)
	}
	if m.IsWatertight() {
		t.Error("plane clipped by the grid should not be watertight")
	}
	wantX := grid.WorldToIndex(size, r3.Vec{X: 0.1}).X
	for _, v := range m.Vertices {
		if math.Abs(v.X-wantX) > 1e-12 {
			t.Fatalf("vertex %v not on plane x=%g", v, wantX)
		}
	}
	// Normals point towards increasing X.
	for i := range m.Faces {
		tri := m.Triangle(i)
		n := r3.Cross(r3.Sub(tri[1], tri[0]), r3.Sub(tri[2], tri[0]))
		if n.X <= 0 {
			t.Fatalf("face %d normal %v points against the gradient", i, n)
		}
	}
}

func TestExtractSnapsToNodes(t *testing.T) {
	// Level set passes exactly through a plane of nodes.
	const size = 7
	f, _ := grid.New(size)
	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			for k := 0; k < size; k++ {
				f.Set(i, j, k, float64(k-3))
			}
		}
	}
	m, err := Extract(f, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Validate(); err != nil {
		t.Fatal(err)
	}
	for i, face := range m.Faces {
		if face[0] == face[1] || face[1] == face[2] || face[0] == face[2] {
			t.Fatalf("face %d %v is degenerate", i, face)
		}
	}
	seen := make(map[r3.Vec]bool)
	for _, v := range m.Vertices {
		if v.Z != 3 {
			t.Fatalf("vertex %v not on node plane", v)
		}
		if seen[v] {
			t.Fatalf("vertex %v emitted twice", v)
		}
		seen[v] = true
	}
	if len(m.Vertices) != size*size {
		t.Errorf("got %d vertices. want one per node %d", len(m.Vertices), size*size)
	}
}
