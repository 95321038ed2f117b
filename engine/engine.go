// Package engine interprets operation plans against the document-mutation
// API. Execution is strictly sequential: operation i+1 never starts before
// operation i's effects — including any generated id — are observable,
// because later operations may reference ids minted earlier in the same
// plan. The first error aborts the remainder; applied mutations are not
// rolled back.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/atelierink/sketchd/plan"
	"github.com/atelierink/sketchd/resolve"
	"github.com/atelierink/sketchd/scene"
)

// Progress is called after each operation completes, with 1-based current.
// Calls are synchronous and never concurrent with operations.
type Progress func(current, total int, op plan.Op)

// Summary accumulates the observable effects of one plan execution.
type Summary struct {
	Executed    int           `json:"executed"`
	Failed      int           `json:"failed"`
	FailedIndex int           `json:"failed_index"` // -1 when no failure
	Created     []string      `json:"created,omitempty"`
	Modified    []string      `json:"modified,omitempty"`
	Deleted     []string      `json:"deleted,omitempty"`
	Queries     []string      `json:"queries,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// Interpreter executes plans against a Mutator.
type Interpreter struct {
	mut    scene.Mutator
	logger *slog.Logger
}

// New creates an Interpreter. logger may be nil.
func New(mut scene.Mutator, logger *slog.Logger) *Interpreter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Interpreter{mut: mut, logger: logger}
}

// Execute runs the operations in order. progress may be nil. The returned
// Summary is always non-nil; on error it reflects the work done before the
// failing operation, whose index it records.
func (in *Interpreter) Execute(ctx context.Context, ops []plan.Op, progress Progress) (*Summary, error) {
	start := time.Now()
	sum := &Summary{FailedIndex: -1}
	total := len(ops)

	for i, op := range ops {
		if err := ctx.Err(); err != nil {
			sum.Failed = 1
			sum.FailedIndex = i
			sum.Duration = time.Since(start)
			return sum, fmt.Errorf("operation %d (%s): %w", i, op.Kind(), err)
		}
		if err := in.apply(ctx, op, sum); err != nil {
			sum.Failed = 1
			sum.FailedIndex = i
			sum.Duration = time.Since(start)
			return sum, fmt.Errorf("operation %d (%s): %w", i, op.Kind(), err)
		}
		sum.Executed++
		if progress != nil {
			progress(i+1, total, op)
		}
	}

	sum.Duration = time.Since(start)
	return sum, nil
}

// apply dispatches one operation. The switch is exhaustive over the closed
// operation set; a new kind that reaches the default is a programming error.
func (in *Interpreter) apply(ctx context.Context, op plan.Op, sum *Summary) error {
	switch o := op.(type) {
	case *plan.CreateShape:
		return in.applyCreateShape(ctx, o, sum)
	case *plan.Move:
		return in.applyMove(ctx, o, sum)
	case *plan.Resize:
		return in.applyResize(ctx, o, sum)
	case *plan.Rotate:
		return in.applyRotate(ctx, o, sum)
	case *plan.UpdateStyle:
		return in.applyUpdateStyle(ctx, o, sum)
	case *plan.Arrange:
		return in.applyArrange(ctx, o, sum)
	case *plan.CreateGrid:
		return in.applyCreateGrid(ctx, o, sum)
	case *plan.BringToFront:
		return in.applyLayer(ctx, o.Target, in.mut.BringToFront, sum)
	case *plan.SendToBack:
		return in.applyLayer(ctx, o.Target, in.mut.SendToBack, sum)
	case *plan.Delete:
		return in.applyDelete(ctx, o, sum)
	case *plan.DeleteMultiple:
		return in.applyDeleteMultiple(ctx, o, sum)
	case *plan.QueryState:
		return in.applyQueryState(ctx, sum)
	default:
		return fmt.Errorf("unhandled operation kind %q", op.Kind())
	}
}

// resolveTarget maps an identifier to a shape id against a fresh snapshot,
// so ids created earlier in the same plan are visible. Ambiguity is
// non-fatal and logged.
func (in *Interpreter) resolveTarget(ctx context.Context, identifier string) (string, error) {
	doc, err := in.mut.Snapshot(ctx)
	if err != nil {
		return "", fmt.Errorf("snapshot: %w", err)
	}
	res, err := resolve.Resolve(identifier, doc)
	if err != nil {
		return "", err
	}
	if res.Ambiguous {
		in.logger.Warn("ambiguous shape reference, using first in document order",
			"identifier", identifier, "chosen", res.ID, "candidates", len(res.Candidates))
	}
	return res.ID, nil
}
