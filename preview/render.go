// Package preview renders diagnostic images of meshes and distance fields.
package preview

import (
	"errors"
	"image/png"
	"io"

	"github.com/fogleman/fauxgl"
	"github.com/nfnt/resize"
	"github.com/soypat/meshsdf/internal/d3"
	"github.com/soypat/meshsdf/mesh"
	"gonum.org/v1/gonum/spatial/r3"
)

// View configures the camera of RenderMesh.
type View struct {
	// Output width and height in pixels.
	Width, Height int
	// Supersampling factor, 1 disables antialiasing.
	Scale int
	// What position (point) to look at.
	LookAt r3.Vec
	// Which way is up (direction).
	Up r3.Vec
	// Where the camera/eye is located (point).
	Eye       r3.Vec
	Near, Far float64
	// Vertical field of view in degrees.
	FOVY float64
	// Object and background colors as hex strings.
	Color, Background string
}

// DefaultView is an isometric view of the bi-unit cube.
func DefaultView() View {
	return View{
		Width:      800,
		Height:     600,
		Scale:      2,
		Up:         r3.Vec{Z: 1},
		Eye:        d3.Elem(2.4),
		Near:       1,
		Far:        10,
		FOVY:       30,
		Color:      "#468966",
		Background: "#FFF8E3",
	}
}

// RenderMesh draws m shaded with a phong shader and writes it to w as PNG.
// The mesh is fitted in a bi-unit cube centered at the origin first.
func RenderMesh(w io.Writer, m *mesh.Mesh, view View) error {
	if len(m.Faces) == 0 {
		return errors.New("preview: mesh has no faces")
	}
	if view.Width <= 0 || view.Height <= 0 {
		return errors.New("preview: non-positive image dimensions")
	}
	if view.Scale < 1 {
		view.Scale = 1
	}
	tris := make([]*fauxgl.Triangle, len(m.Faces))
	for i, t := range m.Triangles() {
		tris[i] = fauxgl.NewTriangleForPoints(fauxV(t[0]), fauxV(t[1]), fauxV(t[2]))
	}
	fm := fauxgl.NewTriangleMesh(tris)
	fm.BiUnitCube()

	var (
		eye    = fauxV(view.Eye)
		center = fauxV(view.LookAt)
		up     = fauxV(view.Up)
		light  = fauxgl.V(-0.75, 1, 0.25).Normalize() // light direction
	)
	context := fauxgl.NewContext(view.Width*view.Scale, view.Height*view.Scale)
	context.ClearColorBufferWith(fauxgl.HexColor(view.Background))
	aspect := float64(view.Width) / float64(view.Height)
	matrix := fauxgl.LookAt(eye, center, up).Perspective(view.FOVY, aspect, view.Near, view.Far)
	shader := fauxgl.NewPhongShader(matrix, light, eye)
	shader.ObjectColor = fauxgl.HexColor(view.Color)
	context.Shader = shader
	context.DrawMesh(fm)
	// downsample image for antialiasing
	img := context.Image()
	if view.Scale > 1 {
		img = resize.Resize(uint(view.Width), uint(view.Height), img, resize.Bilinear)
	}
	return png.Encode(w, img)
}

func fauxV(v r3.Vec) fauxgl.Vector { return fauxgl.V(v.X, v.Y, v.Z) }
