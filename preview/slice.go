package preview

import (
	"fmt"
	"image/color"
	"io"

	"github.com/soypat/meshsdf/grid"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Axis is the grid axis normal to a field slice.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "X"
	case AxisY:
		return "Y"
	case AxisZ:
		return "Z"
	}
	return fmt.Sprintf("Axis(%d)", int(a))
}

// ParseAxis returns the axis named s ("x", "y" or "z").
func ParseAxis(s string) (Axis, error) {
	switch s {
	case "x", "X":
		return AxisX, nil
	case "y", "Y":
		return AxisY, nil
	case "z", "Z":
		return AxisZ, nil
	}
	return 0, fmt.Errorf("preview: unknown axis %q", s)
}

// fieldSlice is the plotter.GridXYZ of one grid layer. Columns and rows run
// along the two remaining axes in X, Y, Z order.
type fieldSlice struct {
	f     *grid.Field
	axis  Axis
	layer int
}

func (s fieldSlice) Dims() (c, r int) { return s.f.Size(), s.f.Size() }

func (s fieldSlice) Z(c, r int) float64 {
	switch s.axis {
	case AxisX:
		return s.f.At(s.layer, c, r)
	case AxisY:
		return s.f.At(c, s.layer, r)
	}
	return s.f.At(c, r, s.layer)
}

func (s fieldSlice) X(c int) float64 { return -1 + float64(c)*s.f.Spacing() }
func (s fieldSlice) Y(r int) float64 { return -1 + float64(r)*s.f.Spacing() }

// singleColor colors every contour line the same.
type singleColor []color.Color

func (p singleColor) Colors() []color.Color { return p }

const pngDPI = 96

// PlotSlice writes a PNG heat map of the field layer at index along axis with
// the zero level set overlaid. width and height are in pixels.
func PlotSlice(w io.Writer, f *grid.Field, axis Axis, index, width, height int) error {
	if axis < AxisX || axis > AxisZ {
		return fmt.Errorf("preview: invalid axis %v", axis)
	}
	if index < 0 || index >= f.Size() {
		return fmt.Errorf("preview: slice %d outside grid of size %d", index, f.Size())
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("preview: non-positive image dimensions %dx%d", width, height)
	}
	s := fieldSlice{f: f, axis: axis, layer: index}
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%v = %.4g", axis, s.X(index))
	switch axis {
	case AxisX:
		p.X.Label.Text, p.Y.Label.Text = "Y", "Z"
	case AxisY:
		p.X.Label.Text, p.Y.Label.Text = "X", "Z"
	default:
		p.X.Label.Text, p.Y.Label.Text = "X", "Y"
	}
	p.Add(plotter.NewHeatMap(s, palette.Heat(32, 1)))
	p.Add(plotter.NewContour(s, []float64{0}, singleColor{color.Black}))

	wt, err := p.WriterTo(vg.Length(width)*vg.Inch/pngDPI, vg.Length(height)*vg.Inch/pngDPI, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}
