package meshio

import (
	"bytes"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/soypat/meshsdf/mesh"
	"gonum.org/v1/gonum/spatial/r3"
)

func unitBox() *mesh.Mesh {
	return mesh.Box(r3.Vec{}, r3.Vec{X: 1, Y: 2, Z: 0.5})
}

func TestSTLWriteReadback(t *testing.T) {
	box := unitBox()
	var b bytes.Buffer
	err := WriteSTL(&b, box.Triangles())
	if err != nil {
		t.Fatal(err)
	}
	if b.Len() != stlHeaderSize+stlTriangleSize*len(box.Faces) {
		t.Fatalf("got %d bytes. want %d", b.Len(), stlHeaderSize+stlTriangleSize*len(box.Faces))
	}
	// Binary headers starting with "solid" must not be taken for ASCII.
	copy(b.Bytes(), "solid binary")
	got, err := ReadSTL(&b)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(box.Triangles(), got); diff != "" {
		t.Error(diff)
	}
}

func TestSTLNormals(t *testing.T) {
	tri := r3.Triangle{{}, {X: 1}, {Y: 1}}
	var b bytes.Buffer
	if err := WriteSTL(&b, []r3.Triangle{tri, {{}, {}, {}}}); err != nil {
		t.Fatal(err)
	}
	var d stlTriangle
	d.get(b.Bytes()[stlHeaderSize:])
	if d.Normal != [3]float32{0, 0, 1} {
		t.Errorf("got normal %v. want +Z", d.Normal)
	}
	d.get(b.Bytes()[stlHeaderSize+stlTriangleSize:])
	if d.Normal != [3]float32{} {
		t.Errorf("degenerate triangle normal %v. want zero", d.Normal)
	}
	if err := WriteSTL(&b, nil); err == nil {
		t.Error("expected error writing empty model")
	}
}

const asciiSTL = `solid part
  facet normal 0 0 -1
    outer loop
      vertex 0 0 0
      vertex 0 1 0
      vertex 1 0 0
    endloop
  endfacet
  facet normal 0 0 1
    outer loop
      vertex 0 0 1
      vertex 1 0 1
      vertex 1 1 1
      vertex 0 1 1e0
    endloop
  endfacet
endsolid part
`

func TestSTLReadASCII(t *testing.T) {
	got, err := ReadSTL(strings.NewReader(asciiSTL))
	if err != nil {
		t.Fatal(err)
	}
	want := []r3.Triangle{
		{{}, {Y: 1}, {X: 1}},
		{{Z: 1}, {X: 1, Z: 1}, {X: 1, Y: 1, Z: 1}},
		{{Z: 1}, {X: 1, Y: 1, Z: 1}, {Y: 1, Z: 1}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Error(diff)
	}
}

func TestSTLMalformed(t *testing.T) {
	var valid bytes.Buffer
	if err := WriteSTL(&valid, unitBox().Triangles()); err != nil {
		t.Fatal(err)
	}
	nan := append([]byte(nil), valid.Bytes()...)
	put3F32(nan[stlHeaderSize+12:], [3]float32{float32(math.NaN()), 0, 0})

	for name, data := range map[string][]byte{
		"truncated":      valid.Bytes()[:valid.Len()-10],
		"short header":   valid.Bytes()[:40],
		"zero count":     make([]byte, stlHeaderSize),
		"nan vertex":     nan,
		"empty ascii":    []byte("solid x\nendsolid x\n"),
		"bad float":      []byte("solid x\nfacet normal 0 0 0\nouter loop\nvertex 0 a 0\n"),
		"short loop":     []byte("solid x\nfacet\nouter loop\nvertex 0 0 0\nvertex 1 0 0\nendloop\nendfacet\n"),
		"unterminated":   []byte("solid x\nfacet\nouter loop\nvertex 0 0 0\n"),
		"inf ascii":      []byte("solid x\nfacet\nouter loop\nvertex 0 0 0\nvertex 1e300 0 0\nvertex 0 1 0\nendloop\n"),
		"vertex no loop": []byte("solid x\nvertex 0 0 0\n"),
	} {
		_, err := ReadSTL(bytes.NewReader(data))
		if !errors.Is(err, ErrFormat) {
			t.Errorf("%s: got error %v. want ErrFormat", name, err)
		}
	}
}

const objData = `# a unit square pyramid
o pyramid
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
v 0.5 0.5 1 # apex
vt 0 0
vn 0 0 -1
f 4/1/1 3/1/1 2/1/1 1/1/1
f 1//1 2//1 5//1
f -4 -3 -1
f 3 4 5
f 4 1 5
`

func TestOBJRead(t *testing.T) {
	m, err := ReadOBJ(strings.NewReader(objData))
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Vertices) != 5 {
		t.Fatalf("got %d vertices. want 5", len(m.Vertices))
	}
	want := [][3]int{{3, 2, 1}, {3, 1, 0}, {0, 1, 4}, {1, 2, 4}, {2, 3, 4}, {3, 0, 4}}
	if diff := cmp.Diff(want, m.Faces); diff != "" {
		t.Error(diff)
	}
	if !m.IsWatertight() {
		t.Error("pyramid should be watertight")
	}
	if v := m.Volume(); math.Abs(v-1.0/3) > 1e-12 {
		t.Errorf("got volume %g. want 1/3", v)
	}
}

func TestOBJMalformed(t *testing.T) {
	for _, data := range []string{
		"v 0 0\n",
		"v 0 0 x\n",
		"v 0 0 0\nf 1 2\n",
		"v 0 0 0\nf 1 1 2\n",
		"v 0 0 0\nf 1 1 -2\n",
		"v 0 0 0\nf 1 1 0\n",
		"v 0 0 0\nf 1 1 a\n",
	} {
		_, err := ReadOBJ(strings.NewReader(data))
		if !errors.Is(err, ErrFormat) {
			t.Errorf("%q: got error %v. want ErrFormat", data, err)
		}
	}
	_, err := ReadOBJ(strings.NewReader("v 0 0 NaN\n"))
	if !errors.Is(err, mesh.ErrNonFinite) {
		t.Errorf("got error %v. want ErrNonFinite", err)
	}
}

func TestOBJWriteReadback(t *testing.T) {
	m := mesh.Icosahedron(0.7, r3.Vec{X: 0.1, Y: -0.2, Z: 1.0 / 3})
	var b bytes.Buffer
	if err := WriteOBJ(&b, m); err != nil {
		t.Fatal(err)
	}
	got, err := ReadOBJ(&b)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(m, got); diff != "" {
		t.Error(diff)
	}
}

func TestLoadSave(t *testing.T) {
	dir := t.TempDir()
	box := unitBox()
	for _, name := range []string{"box.stl", "box.OBJ"} {
		path := filepath.Join(dir, name)
		if err := Save(path, box); err != nil {
			t.Fatal(err)
		}
		got, err := Load(path, 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(got.Vertices) != 8 || len(got.Faces) != 12 {
			t.Errorf("%s: got %d vertices %d faces. want 8 and 12", name, len(got.Vertices), len(got.Faces))
		}
		if !got.IsWatertight() {
			t.Errorf("%s: not watertight after reload", name)
		}
		if diff := cmp.Diff(box.Triangles(), got.Triangles()); diff != "" {
			t.Errorf("%s: %s", name, diff)
		}
	}
	if err := Save(filepath.Join(dir, "box.ply"), box); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("got error %v. want ErrUnknownFormat", err)
	}
	if _, err := Load(filepath.Join(dir, "missing.stl"), 0); err == nil {
		t.Error("expected error loading missing file")
	}
}

func TestReadWeld(t *testing.T) {
	// Two triangles sharing an edge up to float noise.
	tris := []r3.Triangle{
		{{}, {X: 1}, {Y: 1}},
		{{X: 1 + 1e-7}, {X: 1, Y: 1}, {Y: 1 - 1e-7}},
	}
	var b bytes.Buffer
	if err := WriteSTL(&b, tris); err != nil {
		t.Fatal(err)
	}
	data := b.Bytes()
	exact, err := Read(bytes.NewReader(data), FormatSTL, 0)
	if err != nil {
		t.Fatal(err)
	}
	welded, err := Read(bytes.NewReader(data), FormatSTL, 1e-5)
	if err != nil {
		t.Fatal(err)
	}
	if len(exact.Vertices) != 6 || len(welded.Vertices) != 4 {
		t.Errorf("got %d exact and %d welded vertices. want 6 and 4", len(exact.Vertices), len(welded.Vertices))
	}
}
