package preview

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/soypat/meshsdf/grid"
	"github.com/soypat/meshsdf/mesh"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/plot/cmpimg"
)

func TestRenderMesh(t *testing.T) {
	view := DefaultView()
	view.Width, view.Height = 160, 120
	m := mesh.Icosahedron(1, r3.Vec{})
	var b1, b2 bytes.Buffer
	if err := RenderMesh(&b1, m, view); err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(bytes.NewReader(b1.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if got := img.Bounds().Size(); got.X != 160 || got.Y != 120 {
		t.Fatalf("got image size %v. want 160x120", got)
	}
	// The mesh occupies the image center and the background the corner.
	cr, cg, cb, _ := img.At(80, 60).RGBA()
	br, bg, bb, _ := img.At(0, 0).RGBA()
	if cr == br && cg == bg && cb == bb {
		t.Error("image center has the background color")
	}

	if err := RenderMesh(&b2, m, view); err != nil {
		t.Fatal(err)
	}
	equal, err := cmpimg.EqualApprox("png", b1.Bytes(), b2.Bytes(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if !equal {
		t.Error("rendering is not deterministic")
	}
}

func TestRenderMeshErrors(t *testing.T) {
	var b bytes.Buffer
	if err := RenderMesh(&b, &mesh.Mesh{}, DefaultView()); err == nil {
		t.Error("expected error for empty mesh")
	}
	view := DefaultView()
	view.Width = 0
	if err := RenderMesh(&b, mesh.Icosahedron(1, r3.Vec{}), view); err == nil {
		t.Error("expected error for zero width")
	}
}

func sphereField(t *testing.T, size int) *grid.Field {
	t.Helper()
	f, err := grid.New(size)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			for k := 0; k < size; k++ {
				f.Set(i, j, k, r3.Norm(f.Position(i, j, k))-0.5)
			}
		}
	}
	return f
}

func TestFieldSlice(t *testing.T) {
	f, err := grid.New(4)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	for i := range f.Data() {
		f.Data()[i] = float64(i)
	}
	for _, test := range []struct {
		axis Axis
		c, r int
		want float64
	}{
		{axis: AxisX, c: 1, r: 2, want: float64(f.Index(3, 1, 2))},
		{axis: AxisY, c: 1, r: 2, want: float64(f.Index(1, 3, 2))},
		{axis: AxisZ, c: 1, r: 2, want: float64(f.Index(1, 2, 3))},
	} {
		s := fieldSlice{f: f, axis: test.axis, layer: 3}
		if got := s.Z(test.c, test.r); got != test.want {
			t.Errorf("axis %v: got %g. want %g", test.axis, got, test.want)
		}
	}
	s := fieldSlice{f: f}
	if s.X(0) != -1 || s.Y(3) != 1 {
		t.Errorf("got slice extent [%g, %g]. want [-1, 1]", s.X(0), s.Y(3))
	}
}

func TestPlotSlice(t *testing.T) {
	f := sphereField(t, 17)
	defer f.Close()
	for _, axis := range []Axis{AxisX, AxisY, AxisZ} {
		var b bytes.Buffer
		if err := PlotSlice(&b, f, axis, 8, 300, 300); err != nil {
			t.Fatal(err)
		}
		img, err := png.Decode(&b)
		if err != nil {
			t.Fatal(err)
		}
		if sz := img.Bounds().Size(); sz.X < 299 || sz.X > 301 || sz.Y < 299 || sz.Y > 301 {
			t.Errorf("axis %v: got image size %v. want 300x300", axis, sz)
		}
	}
	var b bytes.Buffer
	if err := PlotSlice(&b, f, AxisZ, 17, 100, 100); err == nil {
		t.Error("expected error for slice outside grid")
	}
	if err := PlotSlice(&b, f, Axis(5), 0, 100, 100); err == nil {
		t.Error("expected error for invalid axis")
	}
	if err := PlotSlice(&b, f, AxisZ, 0, 0, 100); err == nil {
		t.Error("expected error for zero width")
	}
}

func TestParseAxis(t *testing.T) {
	for _, a := range []Axis{AxisX, AxisY, AxisZ} {
		got, err := ParseAxis(a.String())
		if err != nil || got != a {
			t.Errorf("got %v, %v. want %v", got, err, a)
		}
	}
	if _, err := ParseAxis("w"); err == nil {
		t.Error("expected error for unknown axis")
	}
}
