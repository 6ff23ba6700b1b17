package meshio

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/soypat/meshsdf/mesh"
	"gonum.org/v1/gonum/spatial/r3"
)

// ReadOBJ reads vertices and faces of a Wavefront OBJ stream. Texture and
// normal references are ignored, negative indices count back from the last
// vertex read and polygons are fan triangulated.
func ReadOBJ(r io.Reader) (*mesh.Mesh, error) {
	var m mesh.Mesh
	sc := bufio.NewScanner(r)
	lineno := 0
	var poly []int
	for sc.Scan() {
		lineno++
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "v":
			if len(fields) < 4 {
				return nil, fmt.Errorf("line %d: vertex needs 3 coordinates: %w", lineno, ErrFormat)
			}
			var c [3]float64
			for k := range c {
				f, err := strconv.ParseFloat(fields[k+1], 64)
				if err != nil {
					return nil, fmt.Errorf("line %d: %w: %v", lineno, ErrFormat, err)
				}
				c[k] = f
			}
			m.Vertices = append(m.Vertices, r3.Vec{X: c[0], Y: c[1], Z: c[2]})
		case "f":
			if len(fields) < 4 {
				return nil, fmt.Errorf("line %d: face needs 3 vertices: %w", lineno, ErrFormat)
			}
			poly = poly[:0]
			for _, ref := range fields[1:] {
				idx, err := objIndex(ref, len(m.Vertices))
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", lineno, err)
				}
				poly = append(poly, idx)
			}
			for k := 1; k+1 < len(poly); k++ {
				m.Faces = append(m.Faces, [3]int{poly[0], poly[k], poly[k+1]})
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// objIndex resolves a "v/vt/vn" reference to a zero based vertex index.
func objIndex(ref string, nv int) (int, error) {
	if i := strings.IndexByte(ref, '/'); i >= 0 {
		ref = ref[:i]
	}
	idx, err := strconv.Atoi(ref)
	switch {
	case err != nil:
		return 0, fmt.Errorf("%w: %v", ErrFormat, err)
	case idx > 0 && idx <= nv:
		return idx - 1, nil
	case idx < 0 && -idx <= nv:
		return nv + idx, nil
	}
	return 0, fmt.Errorf("vertex reference %s with %d vertices: %w", ref, nv, ErrFormat)
}

// WriteOBJ writes m to w as a Wavefront OBJ with one based indices.
func WriteOBJ(w io.Writer, m *mesh.Mesh) error {
	bw := bufio.NewWriter(w)
	var buf []byte
	for _, v := range m.Vertices {
		buf = append(buf[:0], 'v')
		for _, c := range [3]float64{v.X, v.Y, v.Z} {
			buf = append(buf, ' ')
			buf = strconv.AppendFloat(buf, c, 'g', -1, 64)
		}
		buf = append(buf, '\n')
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	for _, f := range m.Faces {
		if _, err := fmt.Fprintf(bw, "f %d %d %d\n", f[0]+1, f[1]+1, f[2]+1); err != nil {
			return err
		}
	}
	return bw.Flush()
}
