// Package meshsdf converts triangle meshes into signed distance fields sampled
// on a regular grid over the [-1, 1]³ cube and optionally repairs meshes that
// are not watertight.
//
// Repair strips the sign of the first field, polygonizes the offset surface at
// a small positive level, keeps the components forming the outer shell of the
// shape, maps them back onto the cube and samples the distance field again on
// this watertight geometry.
package meshsdf

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime/debug"

	"github.com/soypat/meshsdf/grid"
	"github.com/soypat/meshsdf/gridfield"
	"github.com/soypat/meshsdf/iso"
	"github.com/soypat/meshsdf/mesh"
)

// Stage is a state of the Compute pipeline.
type Stage int

const (
	StageRaw Stage = iota
	StageField1
	StageAbs
	StageIso
	StageSplit
	StageSelected
	StageMerged
	StageRenormalized
	StageField2
	StageDone
)

var stageNames = [...]string{
	StageRaw:          "RAW",
	StageField1:       "FIELD1",
	StageAbs:          "ABS",
	StageIso:          "ISO",
	StageSplit:        "SPLIT",
	StageSelected:     "SELECTED",
	StageMerged:       "MERGED",
	StageRenormalized: "RENORMALIZED",
	StageField2:       "FIELD2",
	StageDone:         "DONE",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

// Storage selects where distance fields are allocated.
type Storage int

const (
	// StorageMemory allocates fields on the heap.
	StorageMemory Storage = iota
	// StorageDisk backs fields with memory mapped temporary files.
	StorageDisk
)

func (s Storage) String() string {
	switch s {
	case StorageMemory:
		return "memory"
	case StorageDisk:
		return "disk"
	}
	return fmt.Sprintf("Storage(%d)", int(s))
}

const (
	DefaultSize            = 128
	DefaultLevel           = 0.015
	DefaultLargeFieldBytes = 1 << 30
)

// RecommendedLevel returns an extraction level of about one grid spacing.
func RecommendedLevel(size int) float64 { return 2 / float64(size) }

// Options configures Compute. Zero valued fields take the documented defaults.
type Options struct {
	// Size is the number of grid nodes per axis. Zero selects DefaultSize,
	// any other value below 2 fails with ErrInvalidSize.
	Size int
	// Fix enables mesh repair and a second sampling pass.
	Fix bool
	// Level is the value of the absolute field at which the repaired surface
	// is extracted. Must lie strictly between zero and the largest absolute
	// field value. Zero is indistinguishable from unset and selects
	// DefaultLevel, negative values fail with ErrDegenerateLevelSet.
	Level float64
	// ReturnMesh sets Result.Mesh to the mesh the final field was sampled from.
	ReturnMesh bool
	// ShellPolicy selects which extracted components repair keeps.
	ShellPolicy ShellPolicy
	// ContainmentTol is the bounding box containment slack in grid units.
	// Defaults to DefaultContainmentTol. Negative values compare exactly.
	ContainmentTol float64
	// Workers bounds goroutines used by sampling and extraction.
	// Zero uses runtime.GOMAXPROCS.
	Workers int
	// Storage selects field storage. StorageDisk places files in StorageDir
	// or the system temporary directory.
	Storage    Storage
	StorageDir string
	// LargeFieldBytes is the field size above which Reporter.LargeField is
	// called. Defaults to DefaultLargeFieldBytes.
	LargeFieldBytes int64
	// Reporter receives diagnostics. Defaults to NopReporter.
	Reporter Reporter
}

func (o Options) withDefaults() Options {
	if o.Size == 0 {
		o.Size = DefaultSize
	}
	if o.Level == 0 {
		o.Level = DefaultLevel
	}
	switch {
	case o.ContainmentTol == 0:
		o.ContainmentTol = DefaultContainmentTol
	case o.ContainmentTol < 0:
		o.ContainmentTol = 0
	}
	if o.LargeFieldBytes == 0 {
		o.LargeFieldBytes = DefaultLargeFieldBytes
	}
	if o.Reporter == nil {
		o.Reporter = NopReporter{}
	}
	return o
}

// Result is the output of Compute.
type Result struct {
	// Field is the final distance field. Callers must Close it.
	Field *grid.Field
	// Mesh is the mesh Field was sampled from when Options.ReturnMesh is set.
	// It is the input mesh without repair and the repaired mesh otherwise.
	Mesh *mesh.Mesh
	// Stages lists the stages visited in order, ending with StageDone.
	Stages []Stage
	// Components is the number of components of the extracted surface and
	// Kept the indices of those retained. Both are zero without repair.
	Components int
	Kept       []int
}

// Compute samples the signed distance field of m on an opts.Size³ grid and,
// with opts.Fix, repairs the mesh and samples it again.
//
// Vertices of m must lie within [-1, 1]³. Cancellation of ctx is observed
// between stages only. Every error is a *StageError naming the stage that
// failed and no field is returned alongside an error. Compute may be called
// concurrently.
func Compute(ctx context.Context, m *mesh.Mesh, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	p := &pipeline{ctx: ctx, opts: opts, result: &Result{}}
	res, err := p.run(m)
	if err != nil {
		p.release()
		return nil, err
	}
	return res, nil
}

type pipeline struct {
	ctx    context.Context
	opts   Options
	result *Result
	stage  Stage
	// field is the single live field owned by the pipeline.
	field *grid.Field
}

// enter transitions to stage s unless the context is done.
func (p *pipeline) enter(s Stage) error {
	if err := p.ctx.Err(); err != nil {
		return &StageError{Stage: s, Err: err}
	}
	p.stage = s
	p.result.Stages = append(p.result.Stages, s)
	p.opts.Reporter.EnterStage(s)
	return nil
}

func (p *pipeline) fail(err error) error {
	return &StageError{Stage: p.stage, Err: err}
}

func (p *pipeline) release() {
	if p.field != nil {
		p.field.Close()
		p.field = nil
	}
}

func (p *pipeline) run(m *mesh.Mesh) (res *Result, err error) {
	defer func() {
		if a := recover(); a != nil {
			err = p.fail(&panicErr{panicObj: a, stack: string(debug.Stack())})
		}
	}()
	opts := p.opts
	if err := p.enter(StageRaw); err != nil {
		return nil, err
	}
	if err := p.validate(m); err != nil {
		return nil, p.fail(err)
	}

	if err := p.enter(StageField1); err != nil {
		return nil, err
	}
	if err := p.sample(m); err != nil {
		return nil, p.fail(err)
	}
	if !opts.Fix {
		if err := p.enter(StageDone); err != nil {
			return nil, err
		}
		return p.finish(m), nil
	}

	repaired, err := p.repair()
	if err != nil {
		return nil, err
	}

	if err := p.enter(StageField2); err != nil {
		return nil, err
	}
	if err := p.sample(repaired); err != nil {
		return nil, p.fail(err)
	}
	if err := p.enter(StageDone); err != nil {
		return nil, err
	}
	return p.finish(repaired), nil
}

// repair runs the stages from ABS to RENORMALIZED on the live field and
// returns the repaired mesh in [-1, 1]³. The field is released once the
// surface is extracted.
func (p *pipeline) repair() (*mesh.Mesh, error) {
	opts := p.opts
	if err := p.enter(StageAbs); err != nil {
		return nil, err
	}
	p.field.Abs()
	if _, max := p.field.MinMax(); !(opts.Level > 0 && opts.Level < max) {
		return nil, p.fail(fmt.Errorf("level %g outside (0, %g): %w", opts.Level, max, ErrDegenerateLevelSet))
	}

	if err := p.enter(StageIso); err != nil {
		return nil, err
	}
	soup, err := iso.Extractor{Workers: opts.Workers}.Extract(p.field, opts.Level)
	p.release()
	if errors.Is(err, iso.ErrLevelOutOfRange) || errors.Is(err, iso.ErrNoSurface) {
		return nil, p.fail(fmt.Errorf("%w: %w", ErrDegenerateLevelSet, err))
	} else if err != nil {
		return nil, p.fail(err)
	}

	if err := p.enter(StageSplit); err != nil {
		return nil, err
	}
	components := soup.Split()
	p.result.Components = len(components)
	if len(components) == 0 {
		return nil, p.fail(ErrEmptyComponentSet)
	}

	if err := p.enter(StageSelected); err != nil {
		return nil, err
	}
	kept, err := SelectShells(components, opts.ShellPolicy, opts.ContainmentTol)
	if err != nil {
		return nil, p.fail(err)
	}
	p.result.Kept = kept
	opts.Reporter.ComponentsSelected(len(components), kept, opts.ShellPolicy)

	if err := p.enter(StageMerged); err != nil {
		return nil, err
	}
	shells := make([]*mesh.Mesh, len(kept))
	for i, c := range kept {
		shells[i] = components[c]
	}
	merged := mesh.Concatenate(shells...)

	if err := p.enter(StageRenormalized); err != nil {
		return nil, err
	}
	return Renormalize(merged, opts.Size), nil
}

func (p *pipeline) validate(m *mesh.Mesh) error {
	if p.opts.Size < 2 {
		return fmt.Errorf("size %d: %w", p.opts.Size, ErrInvalidSize)
	}
	if math.IsNaN(p.opts.Level) {
		return fmt.Errorf("level is NaN: %w", ErrDegenerateLevelSet)
	}
	err := gridfield.CheckDomain(m)
	switch {
	case err == nil, errors.Is(err, ErrInvalidInputRange):
		return err
	case errors.Is(err, gridfield.ErrEmptyMesh), errors.Is(err, mesh.ErrFaceIndex), errors.Is(err, mesh.ErrNonFinite):
		return fmt.Errorf("%w: %w", ErrInvalidMesh, err)
	}
	return err
}

// sample replaces the pipeline's field with the distance field of m.
func (p *pipeline) sample(m *mesh.Mesh) error {
	p.release()
	opts := p.opts
	sampler := gridfield.Sampler{
		Workers: opts.Workers,
		Alloc: func(size int) (*grid.Field, error) {
			bytes := grid.Bytes(size)
			opts.Reporter.FieldAllocated(size, bytes)
			if bytes > opts.LargeFieldBytes {
				opts.Reporter.LargeField(size, bytes, opts.LargeFieldBytes)
			}
			if opts.Storage == StorageDisk {
				return grid.NewOnDisk(opts.StorageDir, size)
			}
			return grid.New(size)
		},
	}
	field, err := sampler.Compute(m, opts.Size)
	if err != nil {
		return err
	}
	p.field = field
	return nil
}

func (p *pipeline) finish(m *mesh.Mesh) *Result {
	p.result.Field = p.field
	p.field = nil
	if p.opts.ReturnMesh {
		p.result.Mesh = m
	}
	return p.result
}
