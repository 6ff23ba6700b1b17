package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/soypat/meshsdf"
	"github.com/soypat/meshsdf/config"
	"github.com/soypat/meshsdf/grid"
	"github.com/soypat/meshsdf/mesh"
	"github.com/soypat/meshsdf/meshio"
	"github.com/soypat/meshsdf/preview"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// computeFlags override configuration values when set on the command line.
type computeFlags struct {
	output      string
	size        int
	level       float64
	fix         bool
	policy      string
	workers     int
	storage     string
	storageDir  string
	dtype       string
	meshOut     string
	meshPNG     string
	slicePNG    string
	normalize   bool
	margin      float64
	weldTol     float64
	recommended bool
}

func newComputeCmd(a *app) *cobra.Command {
	var fl computeFlags
	cmd := &cobra.Command{
		Use:   "compute <mesh>",
		Short: "Sample the signed distance field of a mesh into a .npy file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fl.apply(cmd, a.cfg)
			return a.runCompute(args[0], fl.output)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&fl.output, "output", "o", "", "Output .npy path (default: input name with .npy extension)")
	f.IntVarP(&fl.size, "size", "s", meshsdf.DefaultSize, "Grid nodes per axis")
	f.Float64Var(&fl.level, "level", meshsdf.DefaultLevel, "Offset level used by --fix")
	f.BoolVar(&fl.recommended, "auto-level", false, "Use a level of about one grid spacing")
	f.BoolVar(&fl.fix, "fix", false, "Repair meshes that are not watertight")
	f.StringVar(&fl.policy, "shell-policy", "containment", "Components kept by --fix: containment or largest")
	f.IntVar(&fl.workers, "workers", 0, "Worker goroutines (0 uses GOMAXPROCS)")
	f.StringVar(&fl.storage, "storage", "memory", "Field storage: memory or disk")
	f.StringVar(&fl.storageDir, "storage-dir", "", "Directory for disk backed fields")
	f.StringVar(&fl.dtype, "dtype", "float64", "Output array type: float64 or float32")
	f.StringVar(&fl.meshOut, "mesh-out", "", "Write the sampled mesh to this .stl or .obj path")
	f.StringVar(&fl.meshPNG, "mesh-png", "", "Render the sampled mesh to this PNG path")
	f.StringVar(&fl.slicePNG, "slice-png", "", "Plot the middle field slice to this PNG path")
	f.BoolVar(&fl.normalize, "normalize", false, "Fit the input mesh in the [-1, 1] cube")
	f.Float64Var(&fl.margin, "margin", 0.05, "Margin left by --normalize")
	f.Float64Var(&fl.weldTol, "weld", 0, "Merge vertices closer than this distance")
	return cmd
}

// apply copies flags explicitly set by the user into cfg.
func (fl *computeFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	set := cmd.Flags().Changed
	if set("size") {
		cfg.Grid.Size = fl.size
	}
	if set("level") {
		cfg.Grid.Level = fl.level
	}
	if set("fix") {
		cfg.Grid.Fix = fl.fix
	}
	if set("shell-policy") {
		cfg.Grid.ShellPolicy = fl.policy
	}
	if set("workers") {
		cfg.Grid.Workers = fl.workers
	}
	if set("storage") {
		cfg.Storage.Kind = fl.storage
	}
	if set("storage-dir") {
		cfg.Storage.Dir = fl.storageDir
	}
	if set("dtype") {
		cfg.Output.DType = fl.dtype
	}
	if set("mesh-out") {
		cfg.Output.Mesh = fl.meshOut
	}
	if set("mesh-png") {
		cfg.Preview.MeshPNG = fl.meshPNG
	}
	if set("slice-png") {
		cfg.Preview.SlicePNG = fl.slicePNG
	}
	if set("normalize") {
		cfg.Input.Normalize = fl.normalize
	}
	if set("margin") {
		cfg.Input.Margin = fl.margin
	}
	if set("weld") {
		cfg.Input.WeldTolerance = fl.weldTol
	}
	if fl.recommended {
		cfg.Grid.Level = meshsdf.RecommendedLevel(cfg.Grid.Size)
	}
}

func (a *app) runCompute(input, output string) error {
	cfg := a.cfg
	if output == "" {
		output = strings.TrimSuffix(input, filepath.Ext(input)) + ".npy"
	}
	opts, err := cfg.Options(meshsdf.NewZapReporter(a.logger))
	if err != nil {
		return err
	}
	dtype, _ := cfg.Output.NPYType()

	m, err := meshio.Load(input, cfg.Input.WeldTolerance)
	if err != nil {
		return err
	}
	a.logger.Info("Loaded mesh",
		zap.String("path", input),
		zap.Int("vertices", len(m.Vertices)),
		zap.Int("faces", len(m.Faces)))
	var norm *mesh.Normalization
	if cfg.Input.Normalize {
		var n mesh.Normalization
		m, n, err = m.Normalize(cfg.Input.Margin)
		if err != nil {
			return err
		}
		norm = &n
		a.logger.Debug("Normalized mesh",
			zap.Float64("scale", n.Scale),
			zap.Float64s("center", []float64{n.Center.X, n.Center.Y, n.Center.Z}))
	}
	if !cfg.Grid.Fix && !m.IsWatertight() {
		a.logger.Warn("Mesh is not watertight, signs may be wrong. Consider --fix",
			zap.Int("boundary_edges", m.BoundaryEdges()))
	}

	ctx, cancel := a.context()
	defer cancel()
	res, err := meshsdf.Compute(ctx, m, opts)
	if err != nil {
		if errors.Is(err, meshsdf.ErrInvalidInputRange) {
			return fmt.Errorf("%w (use --normalize to fit the mesh in the cube)", err)
		}
		return err
	}
	defer res.Field.Close()

	if err := writeNPY(output, res, dtype); err != nil {
		return err
	}
	lo, hi := res.Field.MinMax()
	a.logger.Info("Wrote distance field",
		zap.String("path", output),
		zap.Int("size", res.Field.Size()),
		zap.String("dtype", string(dtype)),
		zap.Float64("min", lo),
		zap.Float64("max", hi))

	if cfg.Output.Mesh != "" {
		out := res.Mesh
		if norm != nil {
			// Written in the frame of the input mesh.
			out = out.Transform(norm.Invert)
		}
		if err := meshio.Save(cfg.Output.Mesh, out); err != nil {
			return err
		}
		a.logger.Info("Wrote mesh", zap.String("path", cfg.Output.Mesh), zap.Int("faces", len(res.Mesh.Faces)))
	}
	if cfg.Preview.MeshPNG != "" {
		view := preview.DefaultView()
		view.Width, view.Height = cfg.Preview.Width, cfg.Preview.Height
		if err := writeFile(cfg.Preview.MeshPNG, func(fp *os.File) error {
			return preview.RenderMesh(fp, res.Mesh, view)
		}); err != nil {
			return err
		}
	}
	if cfg.Preview.SlicePNG != "" {
		axis, _ := preview.ParseAxis(cfg.Preview.SliceAxis)
		if err := writeFile(cfg.Preview.SlicePNG, func(fp *os.File) error {
			return preview.PlotSlice(fp, res.Field, axis, res.Field.Size()/2, cfg.Preview.Width, cfg.Preview.Height)
		}); err != nil {
			return err
		}
	}
	fmt.Fprintf(a.out, "%s: %d³ field written to %s\n", input, res.Field.Size(), output)
	return nil
}

func writeNPY(path string, res *meshsdf.Result, dtype grid.DType) error {
	return writeFile(path, func(fp *os.File) error {
		return res.Field.WriteNPY(fp, dtype)
	})
}

// writeFile creates path and calls write with it, closing it afterwards.
func writeFile(path string, write func(*os.File) error) error {
	fp, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(fp); err != nil {
		fp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return fp.Close()
}
