package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/soypat/meshsdf/grid"
	"github.com/soypat/meshsdf/gridfield"
	"github.com/soypat/meshsdf/meshio"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/spatial/r3"
)

func newInspectCmd(a *app) *cobra.Command {
	var at []float64
	cmd := &cobra.Command{
		Use:   "inspect <mesh|field.npy>",
		Short: "Report mesh topology or distance field statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("at") && len(at) != 3 {
				return fmt.Errorf("--at needs three coordinates, got %d", len(at))
			}
			if strings.EqualFold(filepath.Ext(args[0]), ".npy") {
				return a.inspectField(args[0], at)
			}
			return a.inspectMesh(args[0])
		},
	}
	cmd.Flags().Float64SliceVar(&at, "at", nil, "Report the interpolated field value at world position x,y,z")
	return cmd
}

func (a *app) inspectMesh(path string) error {
	m, err := meshio.Load(path, a.cfg.Input.WeldTolerance)
	if err != nil {
		return err
	}
	bb := m.Bounds()
	boundary := m.BoundaryEdges()
	fmt.Fprintf(a.out, "mesh:           %s\n", path)
	fmt.Fprintf(a.out, "vertices:       %d\n", len(m.Vertices))
	fmt.Fprintf(a.out, "faces:          %d\n", len(m.Faces))
	fmt.Fprintf(a.out, "components:     %d\n", len(m.Split()))
	fmt.Fprintf(a.out, "boundary edges: %d\n", boundary)
	fmt.Fprintf(a.out, "bounds:         [%g %g %g] to [%g %g %g]\n", bb.Min.X, bb.Min.Y, bb.Min.Z, bb.Max.X, bb.Max.Y, bb.Max.Z)
	fmt.Fprintf(a.out, "diagonal:       %g\n", m.Diagonal())
	watertight := m.IsWatertight()
	fmt.Fprintf(a.out, "watertight:     %t\n", watertight)
	if watertight {
		fmt.Fprintf(a.out, "volume:         %g\n", m.Volume())
	} else {
		fmt.Fprintln(a.out, "hint: compute with --fix to repair before sampling")
	}
	switch err := gridfield.CheckDomain(m); {
	case errors.Is(err, gridfield.ErrOutOfDomain):
		fmt.Fprintln(a.out, "hint: vertices lie outside [-1, 1]³, compute with --normalize")
	case err != nil:
		return err
	}
	return nil
}

func (a *app) inspectField(path string, at []float64) error {
	fp, err := os.Open(path)
	if err != nil {
		return err
	}
	defer fp.Close()
	f, err := grid.ReadNPY(fp)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	defer f.Close()
	lo, hi := f.MinMax()
	inside := 0
	for _, v := range f.Data() {
		if v < 0 {
			inside++
		}
	}
	fmt.Fprintf(a.out, "field:   %s\n", path)
	fmt.Fprintf(a.out, "size:    %d³ (%d bytes)\n", f.Size(), f.Bytes())
	fmt.Fprintf(a.out, "spacing: %g\n", f.Spacing())
	fmt.Fprintf(a.out, "range:   [%g, %g]\n", lo, hi)
	fmt.Fprintf(a.out, "inside:  %d of %d samples\n", inside, f.Len())
	if len(at) == 3 {
		p := r3.Vec{X: at[0], Y: at[1], Z: at[2]}
		fmt.Fprintf(a.out, "sample:  %g at [%g %g %g]\n", f.Sample(p), p.X, p.Y, p.Z)
	}
	return nil
}
