//go:build !unix

package grid

import "errors"

// NewOnDisk is only supported on unix platforms.
func NewOnDisk(dir string, size int) (*Field, error) {
	return nil, errors.New("disk backed fields unsupported on this platform")
}
