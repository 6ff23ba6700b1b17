package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/soypat/meshsdf/grid"
	"github.com/soypat/meshsdf/meshio"
	"github.com/soypat/meshsdf/preview"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newPreviewCmd(a *app) *cobra.Command {
	var (
		output   string
		axisName string
		index    int
	)
	cmd := &cobra.Command{
		Use:   "preview <mesh|field.npy>",
		Short: "Render a mesh or plot a distance field slice as PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := args[0]
			if output == "" {
				output = strings.TrimSuffix(input, filepath.Ext(input)) + ".png"
			}
			if !cmd.Flags().Changed("axis") {
				axisName = a.cfg.Preview.SliceAxis
			}
			var err error
			if strings.EqualFold(filepath.Ext(input), ".npy") {
				err = a.previewField(input, output, axisName, index)
			} else {
				err = a.previewMesh(input, output)
			}
			if err != nil {
				return err
			}
			a.logger.Info("Wrote preview", zap.String("path", output))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output PNG path (default: input name with .png extension)")
	cmd.Flags().StringVar(&axisName, "axis", "z", "Field slice normal axis: x, y or z")
	cmd.Flags().IntVar(&index, "index", -1, "Field slice index (default: middle)")
	return cmd
}

func (a *app) previewMesh(input, output string) error {
	m, err := meshio.Load(input, a.cfg.Input.WeldTolerance)
	if err != nil {
		return err
	}
	view := preview.DefaultView()
	view.Width, view.Height = a.cfg.Preview.Width, a.cfg.Preview.Height
	return writeFile(output, func(fp *os.File) error {
		return preview.RenderMesh(fp, m, view)
	})
}

func (a *app) previewField(input, output, axisName string, index int) error {
	axis, err := preview.ParseAxis(axisName)
	if err != nil {
		return err
	}
	fp, err := os.Open(input)
	if err != nil {
		return err
	}
	f, err := grid.ReadNPY(fp)
	fp.Close()
	if err != nil {
		return fmt.Errorf("%s: %w", input, err)
	}
	defer f.Close()
	if index < 0 {
		index = f.Size() / 2
	}
	return writeFile(output, func(out *os.File) error {
		return preview.PlotSlice(out, f, axis, index, a.cfg.Preview.Width, a.cfg.Preview.Height)
	})
}
