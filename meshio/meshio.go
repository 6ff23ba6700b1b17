// Package meshio reads and writes triangle meshes as STL (binary and ASCII)
// and Wavefront OBJ files.
package meshio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/soypat/meshsdf/mesh"
)

var (
	ErrFormat        = errors.New("meshio: malformed mesh file")
	ErrUnknownFormat = errors.New("meshio: unknown mesh file extension")
)

// Format is a mesh file format.
type Format int

const (
	FormatSTL Format = iota
	FormatOBJ
)

func (f Format) String() string {
	switch f {
	case FormatSTL:
		return "stl"
	case FormatOBJ:
		return "obj"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// FormatOf returns the format matching the extension of path.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".stl":
		return FormatSTL, nil
	case ".obj":
		return FormatOBJ, nil
	}
	return 0, fmt.Errorf("%q: %w", path, ErrUnknownFormat)
}

// Read decodes a mesh of format f. STL triangles are welded with tolerance
// weldTol. OBJ meshes are already indexed and only welded for positive weldTol.
func Read(r io.Reader, f Format, weldTol float64) (*mesh.Mesh, error) {
	switch f {
	case FormatSTL:
		tris, err := ReadSTL(r)
		if err != nil {
			return nil, err
		}
		return mesh.FromTriangles(tris, weldTol)
	case FormatOBJ:
		m, err := ReadOBJ(r)
		if err != nil || weldTol <= 0 {
			return m, err
		}
		return mesh.FromTriangles(m.Triangles(), weldTol)
	}
	return nil, fmt.Errorf("read %v: %w", f, ErrUnknownFormat)
}

// Write encodes m in format f.
func Write(w io.Writer, f Format, m *mesh.Mesh) error {
	switch f {
	case FormatSTL:
		return WriteSTL(w, m.Triangles())
	case FormatOBJ:
		return WriteOBJ(w, m)
	}
	return fmt.Errorf("write %v: %w", f, ErrUnknownFormat)
}

// Load reads the mesh file at path, choosing the format by extension.
func Load(path string, weldTol float64) (*mesh.Mesh, error) {
	f, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	fp, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	m, err := Read(fp, f, weldTol)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Save writes m to path, choosing the format by extension.
func Save(path string, m *mesh.Mesh) error {
	f, err := FormatOf(path)
	if err != nil {
		return err
	}
	fp, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(fp, f, m); err != nil {
		fp.Close()
		return err
	}
	return fp.Close()
}
