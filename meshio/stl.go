package meshio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/chewxy/math32"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	stlHeaderSize   = 84
	stlTriangleSize = 50
)

// stlHeader defines the STL file header.
type stlHeader struct {
	_     [80]uint8 // Header
	Count uint32    // Number of triangles
}

// WriteSTL writes triangles to w in binary STL format. Normals are computed
// from the counter-clockwise vertex order.
func WriteSTL(w io.Writer, model []r3.Triangle) error {
	if len(model) == 0 {
		return errors.New("empty triangle slice")
	}
	bw := bufio.NewWriter(w)
	header := stlHeader{Count: uint32(len(model))}
	if err := binary.Write(bw, binary.LittleEndian, &header); err != nil {
		return err
	}
	var (
		d stlTriangle
		b [stlTriangleSize]byte
	)
	for _, triangle := range model {
		d.Normal = [3]float32{}
		if n := r3.Cross(r3.Sub(triangle[1], triangle[0]), r3.Sub(triangle[2], triangle[0])); r3.Norm(n) > 0 {
			d.Normal = to3F32(r3.Unit(n))
		}
		d.Vertex1 = to3F32(triangle[0])
		d.Vertex2 = to3F32(triangle[1])
		d.Vertex3 = to3F32(triangle[2])
		d.put(b[:])
		if _, err := bw.Write(b[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadSTL reads all triangles of a binary or ASCII STL stream. Binary files
// are recognized by their triangle count matching the stream length, since
// binary headers may also start with "solid".
func ReadSTL(r io.Reader) ([]r3.Triangle, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(data) >= stlHeaderSize {
		count := binary.LittleEndian.Uint32(data[80:stlHeaderSize])
		if int64(len(data)) == stlHeaderSize+int64(count)*stlTriangleSize {
			return readBinarySTL(bytes.NewReader(data))
		}
	}
	if bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n"), []byte("solid")) {
		return readASCIISTL(bytes.NewReader(data))
	}
	return readBinarySTL(bytes.NewReader(data))
}

func readBinarySTL(r io.Reader) (output []r3.Triangle, readErr error) {
	var header stlHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("encountered EOF while reading STL header: %w", ErrFormat)
		}
		return nil, errors.New("STL header read failed: " + err.Error())
	}
	if header.Count == 0 {
		return nil, fmt.Errorf("STL header indicates 0 triangles present: %w", ErrFormat)
	}
	var (
		buf [stlTriangleSize]byte
		d   stlTriangle
		i   int
	)
	defer func() {
		if readErr != nil {
			readErr = fmt.Errorf("%d/%d STL triangles read: %w", i+1, header.Count, readErr)
		}
	}()
	output = make([]r3.Triangle, 0, header.Count)
	for i = 0; i < int(header.Count); i++ {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("truncated triangle: %w", ErrFormat)
			}
			return nil, err
		}
		d.get(buf[:])
		if err := d.validate(); err != nil {
			return nil, err
		}
		output = append(output, d.toTriangle())
	}
	return output, nil
}

// readASCIISTL parses "solid" files. Facets with more than three vertices
// are fan triangulated.
func readASCIISTL(r io.Reader) ([]r3.Triangle, error) {
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)
	var (
		output []r3.Triangle
		loop   []r3.Vec
		inLoop bool
		line   int // Facet number for error messages.
	)
	next := func() (float64, error) {
		if !sc.Scan() {
			return 0, fmt.Errorf("facet %d: unexpected end of vertex: %w", line, ErrFormat)
		}
		v, err := strconv.ParseFloat(sc.Text(), 64)
		if err != nil {
			return 0, fmt.Errorf("facet %d: %w: %v", line, ErrFormat, err)
		}
		return v, nil
	}
	for sc.Scan() {
		switch sc.Text() {
		case "facet":
			line++
		case "loop":
			inLoop = true
			loop = loop[:0]
		case "vertex":
			if !inLoop {
				return nil, fmt.Errorf("facet %d: vertex outside loop: %w", line, ErrFormat)
			}
			var v [3]float64
			for k := range v {
				f, err := next()
				if err != nil {
					return nil, err
				}
				v[k] = f
			}
			p := r3.Vec{X: v[0], Y: v[1], Z: v[2]}
			if bad3F32(to3F32(p)) {
				return nil, fmt.Errorf("facet %d: inf/NaN STL triangle vertex: %w", line, ErrFormat)
			}
			loop = append(loop, p)
		case "endloop":
			if len(loop) < 3 {
				return nil, fmt.Errorf("facet %d: loop with %d vertices: %w", line, len(loop), ErrFormat)
			}
			for k := 1; k+1 < len(loop); k++ {
				output = append(output, r3.Triangle{loop[0], loop[k], loop[k+1]})
			}
			inLoop = false
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if inLoop {
		return nil, fmt.Errorf("unterminated loop in facet %d: %w", line, ErrFormat)
	}
	if len(output) == 0 {
		return nil, fmt.Errorf("no facets in ASCII STL: %w", ErrFormat)
	}
	return output, nil
}

// stlTriangle defines the triangle data within an STL file.
type stlTriangle struct {
	Normal  [3]float32
	Vertex1 [3]float32
	Vertex2 [3]float32
	Vertex3 [3]float32
	_       uint16 // Attribute byte count
}

func (t stlTriangle) put(b []byte) {
	if len(b) < stlTriangleSize {
		panic("need length 50 to marshal stlTriangle")
	}
	put3F32(b, t.Normal)
	put3F32(b[12:], t.Vertex1)
	put3F32(b[24:], t.Vertex2)
	put3F32(b[36:], t.Vertex3)
	binary.LittleEndian.PutUint16(b[48:], 0)
}

func (t *stlTriangle) get(b []byte) {
	if len(b) < stlTriangleSize {
		panic("need length 50 to unmarshal stlTriangle")
	}
	get3F32(b, &t.Normal)
	get3F32(b[12:], &t.Vertex1)
	get3F32(b[24:], &t.Vertex2)
	get3F32(b[36:], &t.Vertex3)
}

// validate rejects non-finite vertices. Stored normals are not checked
// against the vertices since broken meshes are expected input.
func (t stlTriangle) validate() error {
	if bad3F32(t.Vertex1) || bad3F32(t.Vertex2) || bad3F32(t.Vertex3) {
		return fmt.Errorf("inf/NaN STL triangle vertex: %w", ErrFormat)
	}
	return nil
}

func (t stlTriangle) toTriangle() r3.Triangle {
	return r3.Triangle{
		r3From3F32(t.Vertex1),
		r3From3F32(t.Vertex2),
		r3From3F32(t.Vertex3),
	}
}

func put3F32(b []byte, f [3]float32) {
	_ = b[11] // early bounds check
	binary.LittleEndian.PutUint32(b, math.Float32bits(f[0]))
	binary.LittleEndian.PutUint32(b[4:], math.Float32bits(f[1]))
	binary.LittleEndian.PutUint32(b[8:], math.Float32bits(f[2]))
}

func get3F32(b []byte, f *[3]float32) {
	_ = b[11] // early bounds check
	f[0] = math.Float32frombits(binary.LittleEndian.Uint32(b))
	f[1] = math.Float32frombits(binary.LittleEndian.Uint32(b[4:]))
	f[2] = math.Float32frombits(binary.LittleEndian.Uint32(b[8:]))
}

func bad3F32(f [3]float32) bool {
	return math32.IsNaN(f[0]) || math32.IsInf(f[0], 0) ||
		math32.IsNaN(f[1]) || math32.IsInf(f[1], 0) ||
		math32.IsNaN(f[2]) || math32.IsInf(f[2], 0)
}

func to3F32(v r3.Vec) [3]float32 {
	return [3]float32{float32(v.X), float32(v.Y), float32(v.Z)}
}

func r3From3F32(f [3]float32) r3.Vec {
	return r3.Vec{X: float64(f[0]), Y: float64(f[1]), Z: float64(f[2])}
}
