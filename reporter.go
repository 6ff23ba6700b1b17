package meshsdf

import (
	"os"

	"go.uber.org/zap"
)

// Reporter receives diagnostics from Compute. Reports are informational and
// never affect the result. Implementations must be safe for use by the
// goroutine calling Compute.
type Reporter interface {
	// EnterStage is called on every stage transition, before the stage runs.
	EnterStage(s Stage)
	// FieldAllocated is called before a size³ field occupying bytes is allocated.
	FieldAllocated(size int, bytes int64)
	// LargeField is called when a field exceeds the configured byte limit.
	LargeField(size int, bytes, limit int64)
	// ComponentsSelected reports which of total components survived selection.
	ComponentsSelected(total int, kept []int, policy ShellPolicy)
}

// NopReporter discards all diagnostics.
type NopReporter struct{}

func (NopReporter) EnterStage(Stage) {}
func (NopReporter) FieldAllocated(int, int64) {}
func (NopReporter) LargeField(int, int64, int64) {}
func (NopReporter) ComponentsSelected(int, []int, ShellPolicy) {}

// NewZapReporter returns a Reporter writing structured logs to logger.
// Stage transitions and the process id are logged at debug level.
func NewZapReporter(logger *zap.Logger) Reporter {
	return &zapReporter{log: logger}
}

type zapReporter struct {
	log *zap.Logger
}

func (z *zapReporter) EnterStage(s Stage) {
	if s == StageRaw {
		z.log.Debug("Starting mesh to distance field pipeline", zap.Int("pid", os.Getpid()))
	}
	z.log.Debug("Entering stage", zap.Stringer("stage", s))
}

func (z *zapReporter) FieldAllocated(size int, bytes int64) {
	z.log.Info("Allocating distance field",
		zap.Int("size", size),
		zap.Int64("bytes", bytes),
		zap.Float64("megabytes", float64(bytes)/(1<<20)))
}

func (z *zapReporter) LargeField(size int, bytes, limit int64) {
	z.log.Warn("Distance field exceeds memory limit",
		zap.Int("size", size),
		zap.Int64("bytes", bytes),
		zap.Int64("limit", limit))
}

func (z *zapReporter) ComponentsSelected(total int, kept []int, policy ShellPolicy) {
	z.log.Info("Selected shell components",
		zap.Int("components", total),
		zap.Ints("kept", kept),
		zap.Stringer("policy", policy))
}
