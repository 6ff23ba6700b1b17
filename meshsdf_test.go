package meshsdf

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/soypat/meshsdf/grid"
	"github.com/soypat/meshsdf/mesh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recorder is a Reporter keeping every report.
type recorder struct {
	stages    []Stage
	allocated []int64
	large     int
	kept      []int
	total     int
	onStage   func(Stage)
}

func (r *recorder) EnterStage(s Stage) {
	r.stages = append(r.stages, s)
	if r.onStage != nil {
		r.onStage(s)
	}
}
func (r *recorder) FieldAllocated(size int, bytes int64) { r.allocated = append(r.allocated, bytes) }
func (r *recorder) LargeField(size int, bytes, limit int64) { r.large++ }
func (r *recorder) ComponentsSelected(total int, kept []int, policy ShellPolicy) {
	r.total, r.kept = total, kept
}

var fullChain = []Stage{
	StageRaw, StageField1, StageAbs, StageIso, StageSplit, StageSelected,
	StageMerged, StageRenormalized, StageField2, StageDone,
}

func unitIcosahedron() *mesh.Mesh { return mesh.Icosahedron(1, r3.Vec{}) }

func TestComputeWatertightNoFix(t *testing.T) {
	const size = 32
	m := unitIcosahedron()
	rec := &recorder{}
	res, err := Compute(context.Background(), m, Options{Size: size, ReturnMesh: true, Reporter: rec})
	require.NoError(t, err)
	defer res.Field.Close()

	require.Equal(t, size, res.Field.Size())
	require.Equal(t, size*size*size, len(res.Field.Data()))
	assert.Less(t, res.Field.At(size/2, size/2, size/2), 0.0, "centroid should be inside")
	last := size - 1
	for _, c := range [][3]int{{0, 0, 0}, {last, 0, 0}, {0, last, 0}, {0, 0, last}, {last, last, last}} {
		assert.Greater(t, res.Field.At(c[0], c[1], c[2]), 0.0, "corner %v should be outside", c)
	}
	assert.Equal(t, []Stage{StageRaw, StageField1, StageDone}, res.Stages)
	assert.Equal(t, res.Stages, rec.stages)
	assert.Same(t, m, res.Mesh)
	assert.Zero(t, res.Components)
	assert.Nil(t, res.Kept)
}

func TestComputeRepairOpenMesh(t *testing.T) {
	const size = 32
	m := unitIcosahedron()
	m.Faces = m.Faces[1:]
	require.False(t, m.IsWatertight())
	rec := &recorder{}
	res, err := Compute(context.Background(), m, Options{
		Size:       size,
		Fix:        true,
		Level:      0.06,
		ReturnMesh: true,
		Reporter:   rec,
	})
	require.NoError(t, err)
	defer res.Field.Close()

	assert.Equal(t, fullChain, res.Stages)
	assert.Equal(t, fullChain, rec.stages)
	require.Len(t, res.Kept, 1)
	assert.Equal(t, res.Kept, rec.kept)
	require.NotNil(t, res.Mesh)
	assert.True(t, res.Mesh.IsWatertight(), "repaired mesh should be watertight")
	assert.NoError(t, res.Mesh.Validate())
	for _, v := range res.Mesh.Vertices {
		require.True(t, math.Abs(v.X) <= 1 && math.Abs(v.Y) <= 1 && math.Abs(v.Z) <= 1, "vertex %v outside cube", v)
	}

	// The repaired field is negative only within the thickened shell around
	// the original surface. A column through two intact faces changes sign
	// once on each side of each face.
	mid := size / 2
	changes := 0
	for k := 1; k < size; k++ {
		if (res.Field.At(mid, mid, k) < 0) != (res.Field.At(mid, mid, k-1) < 0) {
			changes++
		}
	}
	assert.Equal(t, 4, changes)
	assert.Greater(t, res.Field.At(mid, mid, mid), 0.0, "cavity is outside the shell")
	assert.Greater(t, res.Field.At(0, 0, 0), 0.0)
	assert.Len(t, rec.allocated, 2)
}

func TestComputeTwoCubes(t *testing.T) {
	m := mesh.Concatenate(
		mesh.Box(r3.Vec{X: -0.9, Y: -0.9, Z: -0.9}, r3.Vec{X: -0.3, Y: -0.3, Z: -0.3}),
		mesh.Box(r3.Vec{X: 0.3, Y: 0.3, Z: 0.3}, r3.Vec{X: 0.9, Y: 0.9, Z: 0.9}),
	)
	for _, test := range []struct {
		policy ShellPolicy
		kept   int
	}{
		{policy: ShellContainment, kept: 2},
		{policy: ShellLargest, kept: 1},
	} {
		res, err := Compute(context.Background(), m, Options{
			Size:        32,
			Fix:         true,
			Level:       0.06,
			ShellPolicy: test.policy,
			ReturnMesh:  true,
		})
		require.NoError(t, err, test.policy)
		// Each cube yields an outer and an inner offset shell.
		assert.Equal(t, 4, res.Components, test.policy)
		assert.Len(t, res.Kept, test.kept, test.policy)
		assert.Len(t, res.Mesh.Split(), test.kept, test.policy)
		res.Field.Close()
	}
}

func TestComputeLevelAboveMax(t *testing.T) {
	rec := &recorder{}
	_, err := Compute(context.Background(), unitIcosahedron(), Options{Size: 16, Fix: true, Level: 10, Reporter: rec})
	require.ErrorIs(t, err, ErrDegenerateLevelSet)
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageAbs, stageErr.Stage)
	assert.NotContains(t, rec.stages, StageSplit)
	assert.NotContains(t, rec.stages, StageIso)

	_, err = Compute(context.Background(), unitIcosahedron(), Options{Size: 16, Fix: true, Level: -0.1})
	require.ErrorIs(t, err, ErrDegenerateLevelSet)
}

func TestComputeInvalidInput(t *testing.T) {
	ctx := context.Background()
	for _, test := range []struct {
		name string
		m    *mesh.Mesh
		opts Options
		want error
	}{
		{name: "out of range", m: mesh.Icosahedron(1.5, r3.Vec{}), opts: Options{Size: 8}, want: ErrInvalidInputRange},
		{name: "size", m: unitIcosahedron(), opts: Options{Size: 1}, want: ErrInvalidSize},
		{name: "no faces", m: &mesh.Mesh{Vertices: []r3.Vec{{}}}, opts: Options{Size: 8}, want: ErrInvalidMesh},
		{name: "bad face", m: &mesh.Mesh{Vertices: []r3.Vec{{}}, Faces: [][3]int{{0, 0, 1}}}, opts: Options{Size: 8}, want: mesh.ErrFaceIndex},
		{name: "nan level", m: unitIcosahedron(), opts: Options{Size: 8, Fix: true, Level: math.NaN()}, want: ErrDegenerateLevelSet},
	} {
		res, err := Compute(ctx, test.m, test.opts)
		assert.Nil(t, res, test.name)
		require.ErrorIs(t, err, test.want, test.name)
		var stageErr *StageError
		require.ErrorAs(t, err, &stageErr, test.name)
		assert.Equal(t, StageRaw, stageErr.Stage, test.name)
	}
}

func TestComputeRepairIdempotentOnWatertight(t *testing.T) {
	const size = 24
	m := mesh.Icosahedron(0.8, r3.Vec{})
	level := RecommendedLevel(size)
	plain, err := Compute(context.Background(), m, Options{Size: size})
	require.NoError(t, err)
	defer plain.Field.Close()
	fixed, err := Compute(context.Background(), m, Options{Size: size, Fix: true, Level: level})
	require.NoError(t, err)
	defer fixed.Field.Close()

	// Inner offset shell is discarded in favour of the outer one.
	assert.Equal(t, 2, fixed.Components)
	assert.Len(t, fixed.Kept, 1)
	tol := level + grid.Spacing(size)
	for i, want := range plain.Field.Data() {
		got := fixed.Field.Data()[i]
		require.InDelta(t, want, got, tol, "sample %d", i)
		if want < -tol {
			require.Less(t, got, 0.0, "sample %d changed sign", i)
		}
	}
}

func TestComputeDeterministic(t *testing.T) {
	m := unitIcosahedron()
	m.Faces = m.Faces[2:]
	opts := Options{Size: 20, Fix: true, Level: 0.1, ReturnMesh: true}
	a, err := Compute(context.Background(), m, opts)
	require.NoError(t, err)
	defer a.Field.Close()
	opts.Workers = 1
	b, err := Compute(context.Background(), m, opts)
	require.NoError(t, err)
	defer b.Field.Close()
	require.Equal(t, a.Mesh, b.Mesh)
	require.Equal(t, a.Field.Data(), b.Field.Data())
}

func TestComputeCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Compute(ctx, unitIcosahedron(), Options{Size: 8})
	require.ErrorIs(t, err, context.Canceled)
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageRaw, stageErr.Stage)

	// Cancelling while a stage runs lets the stage finish and stops at the
	// following transition.
	ctx, cancel = context.WithCancel(context.Background())
	defer cancel()
	rec := &recorder{onStage: func(s Stage) {
		if s == StageIso {
			cancel()
		}
	}}
	_, err = Compute(ctx, unitIcosahedron(), Options{Size: 16, Fix: true, Level: 0.15, Reporter: rec})
	require.ErrorIs(t, err, context.Canceled)
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageSplit, stageErr.Stage)
	assert.Equal(t, fullChain[:4], rec.stages)
}

func TestComputeMemoryReports(t *testing.T) {
	for _, size := range []int{8, 16} {
		rec := &recorder{}
		res, err := Compute(context.Background(), unitIcosahedron(), Options{Size: size, Reporter: rec, LargeFieldBytes: 10000})
		require.NoError(t, err)
		want := int64(size * size * size * 8)
		assert.Equal(t, []int64{want}, rec.allocated)
		assert.Equal(t, want, res.Field.Bytes())
		if want > 10000 {
			assert.Equal(t, 1, rec.large, "size %d", size)
		} else {
			assert.Zero(t, rec.large, "size %d", size)
		}
		res.Field.Close()
	}
	assert.Equal(t, int64(8), grid.Bytes(32)/grid.Bytes(16))
}

func TestComputeDefaults(t *testing.T) {
	opts := Options{}.withDefaults()
	assert.Equal(t, DefaultSize, opts.Size)
	assert.Equal(t, DefaultLevel, opts.Level)
	assert.Equal(t, DefaultContainmentTol, opts.ContainmentTol)
	assert.Equal(t, int64(DefaultLargeFieldBytes), opts.LargeFieldBytes)
	assert.Equal(t, NopReporter{}, opts.Reporter)
	assert.Equal(t, 0.0, Options{ContainmentTol: -1}.withDefaults().ContainmentTol)
	assert.InDelta(t, 0.015, RecommendedLevel(128), 1e-3)
}

func TestComputeExplicitInvalidSizeAndLevel(t *testing.T) {
	m := unitIcosahedron()
	m.Faces = m.Faces[1:]
	_, err := Compute(context.Background(), m, Options{Size: 8, Fix: true, Level: -0.01})
	require.ErrorIs(t, err, ErrDegenerateLevelSet)
	var serr *StageError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, StageAbs, serr.Stage)

	for _, size := range []int{-4, 1} {
		_, err = Compute(context.Background(), m, Options{Size: size})
		require.ErrorIs(t, err, ErrInvalidSize, "size %d", size)
	}
}

func TestComputeRepairDefaultSize(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping full resolution repair in short mode")
	}
	m := unitIcosahedron()
	m.Faces = m.Faces[1:]
	start := time.Now()
	res, err := Compute(context.Background(), m, Options{Fix: true, Workers: 1})
	require.NoError(t, err)
	defer res.Field.Close()
	elapsed := time.Since(start)
	assert.Equal(t, DefaultSize, res.Field.Size())
	assert.Len(t, res.Kept, 1)
	assert.Less(t, elapsed, 2*time.Minute, "repair at default size took %s", elapsed)
}

func TestZapReporter(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	rep := NewZapReporter(zap.New(core))
	m := unitIcosahedron()
	m.Faces = m.Faces[1:]
	res, err := Compute(context.Background(), m, Options{Size: 16, Fix: true, Level: 0.15, Reporter: rep})
	require.NoError(t, err)
	res.Field.Close()

	require.Equal(t, 1, logs.FilterMessage("Starting mesh to distance field pipeline").Len())
	require.Equal(t, len(fullChain), logs.FilterMessage("Entering stage").Len())
	require.Equal(t, 2, logs.FilterMessage("Allocating distance field").Len())
	selected := logs.FilterMessage("Selected shell components").All()
	require.Len(t, selected, 1)
	fields := selected[0].ContextMap()
	assert.Equal(t, "containment", fields["policy"])
}

func TestStageErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := error(&StageError{Stage: StageIso, Err: inner})
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "ISO")
	assert.Equal(t, "Stage(42)", Stage(42).String())
}
