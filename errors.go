package meshsdf

import (
	"errors"
	"fmt"

	"github.com/soypat/meshsdf/grid"
	"github.com/soypat/meshsdf/gridfield"
)

var (
	// ErrInvalidInputRange is returned when a mesh vertex lies outside [-1, 1]³.
	ErrInvalidInputRange = gridfield.ErrOutOfDomain
	// ErrInvalidSize is returned when the grid size is less than 2.
	ErrInvalidSize = grid.ErrSize
	// ErrInvalidMesh is returned for meshes without faces, with out of range
	// face indices or with non-finite vertices.
	ErrInvalidMesh = errors.New("invalid mesh")
	// ErrDegenerateLevelSet is returned when the extraction level does not
	// produce a surface of the absolute valued field.
	ErrDegenerateLevelSet = errors.New("degenerate level set")
	// ErrEmptyComponentSet is returned when the extracted surface has no components.
	ErrEmptyComponentSet = errors.New("no components to select from")
	// ErrNoSurvivingComponent is returned when shell selection discards every component.
	ErrNoSurvivingComponent = errors.New("shell selection discarded every component")
)

// StageError annotates a pipeline failure with the stage it aborted.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("meshsdf: stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// panicErr holds a panic recovered from a pipeline stage.
type panicErr struct {
	panicObj interface{}
	stack    string
}

func (p *panicErr) Error() string {
	return fmt.Sprintf("panic: %v", p.panicObj)
}
