//go:build unix

package grid

import (
	"fmt"
	"os"
	"path/filepath"
	"unsafe"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

// NewOnDisk allocates a zeroed field backed by a memory mapped temporary file
// in dir, or the system temporary directory if dir is empty. The file is named
// after the process id and a random UUID and is removed on Close.
func NewOnDisk(dir string, size int) (*Field, error) {
	if err := checkSize(size); err != nil {
		return nil, err
	}
	if dir == "" {
		dir = os.TempDir()
	}
	name := filepath.Join(dir, fmt.Sprintf("field_%d_%s", os.Getpid(), uuid.New().String()))
	fp, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, err
	}
	nbytes := Bytes(size)
	cleanup := func() {
		fp.Close()
		os.Remove(name)
	}
	if err := fp.Truncate(nbytes); err != nil {
		cleanup()
		return nil, fmt.Errorf("sizing field file: %w", err)
	}
	mem, err := unix.Mmap(int(fp.Fd()), 0, int(nbytes), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("mapping field file: %w", err)
	}
	n := size * size * size
	f := &Field{
		size: size,
		data: unsafe.Slice((*float64)(unsafe.Pointer(&mem[0])), n),
	}
	f.release = func() error {
		errMap := unix.Munmap(mem)
		errClose := fp.Close()
		errRemove := os.Remove(name)
		switch {
		case errMap != nil:
			return errMap
		case errClose != nil:
			return errClose
		}
		return errRemove
	}
	return f, nil
}
