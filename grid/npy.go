package grid

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"reflect"
	"unsafe"

	"github.com/sbinet/npyio"
)

// DType is a NumPy little endian floating point array type.
type DType string

const (
	Float64 DType = "<f8"
	Float32 DType = "<f4"
)

func (d DType) width() int {
	switch d {
	case Float64:
		return 8
	case Float32:
		return 4
	}
	return 0
}

// ErrNPYFormat is returned when reading data that is not a supported NPY array.
var ErrNPYFormat = errors.New("unsupported npy data")

// MaxNPYBytes bounds the sample data ReadNPY allocates for a single array.
const MaxNPYBytes = 1 << 34

// minNPYPreamble is the smallest magic, version and header length prefix.
const minNPYPreamble = 10

// WriteNPY writes the field as a NumPy array of shape (size, size, size) in
// C order. Samples are narrowed when dtype is Float32.
func (f *Field) WriteNPY(w io.Writer, dtype DType) error {
	var val any
	switch dtype {
	case Float64:
		val = cube(f.size, f.data)
	case Float32:
		narrow := make([]float32, len(f.data))
		for i, v := range f.data {
			narrow[i] = float32(v)
		}
		val = cube(f.size, narrow)
	default:
		return fmt.Errorf("dtype %q: %w", dtype, ErrNPYFormat)
	}
	bw := bufio.NewWriter(w)
	if err := npyio.Write(bw, val); err != nil {
		return err
	}
	return bw.Flush()
}

// cube returns data as a [n][n][n]T array value so it is written with a
// three dimensional shape. The returned value holds a copy of data.
func cube[T float32 | float64](n int, data []T) any {
	elem := reflect.TypeOf(data).Elem()
	typ := reflect.ArrayOf(n, reflect.ArrayOf(n, reflect.ArrayOf(n, elem)))
	return reflect.NewAt(typ, unsafe.Pointer(unsafe.SliceData(data))).Elem().Interface()
}

// ReadNPY reads a cubic NumPy array of float64 or float32 samples in C order
// into a new in memory field. Arrays whose samples would exceed MaxNPYBytes,
// or the bytes left in r when r is an io.Seeker, are rejected before any
// sample storage is allocated.
func ReadNPY(r io.Reader) (*Field, error) {
	remaining := int64(-1)
	if s, ok := r.(io.Seeker); ok {
		var err error
		if remaining, err = seekRemaining(s); err != nil {
			return nil, err
		}
	}
	nr, err := npyio.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNPYFormat, err)
	}
	descr := nr.Header.Descr
	dtype := DType(descr.Type)
	width := dtype.width()
	switch {
	case width == 0:
		return nil, fmt.Errorf("dtype %q: %w", descr.Type, ErrNPYFormat)
	case descr.Fortran:
		return nil, fmt.Errorf("fortran order: %w", ErrNPYFormat)
	}
	shape := descr.Shape
	if len(shape) != 3 || shape[0] != shape[1] || shape[1] != shape[2] {
		return nil, fmt.Errorf("shape %v not cubic: %w", shape, ErrNPYFormat)
	}
	n := shape[0]
	if err := checkSize(n); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNPYFormat, err)
	}
	need := int64(n) * int64(n) * int64(n) * int64(width)
	switch {
	case need > MaxNPYBytes:
		return nil, fmt.Errorf("shape %v needs %d bytes, limit is %d: %w", shape, need, int64(MaxNPYBytes), ErrNPYFormat)
	case remaining >= 0 && need > remaining-minNPYPreamble:
		return nil, fmt.Errorf("shape %v needs %d bytes, %d remain: %w", shape, need, remaining, ErrNPYFormat)
	}

	if dtype == Float64 {
		data := make([]float64, n*n*n)
		if err := nr.Read(&data); err != nil {
			return nil, fmt.Errorf("reading samples: %w", err)
		}
		return &Field{size: n, data: data}, nil
	}
	narrow := make([]float32, n*n*n)
	if err := nr.Read(&narrow); err != nil {
		return nil, fmt.Errorf("reading samples: %w", err)
	}
	f := &Field{size: n, data: make([]float64, len(narrow))}
	for i, v := range narrow {
		f.data[i] = float64(v)
	}
	return f, nil
}

// seekRemaining returns the number of bytes between the current offset of s
// and its end, leaving the offset unchanged.
func seekRemaining(s io.Seeker) (int64, error) {
	cur, err := s.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	end, err := s.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if _, err := s.Seek(cur, io.SeekStart); err != nil {
		return 0, err
	}
	return end - cur, nil
}
