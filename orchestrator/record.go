package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atelierink/sketchd/engine"
	"github.com/atelierink/sketchd/history"
	"github.com/atelierink/sketchd/layers"
	"github.com/atelierink/sketchd/plan"
	"github.com/atelierink/sketchd/planner"
	"github.com/atelierink/sketchd/resolve"
)

// fail records a failure entry, returns to Idle, and passes the error
// through for the caller.
func (o *Orchestrator) fail(ctx context.Context, prompt string, p *plan.Plan, sum *engine.Summary, start time.Time, err error) error {
	entry := entryFor(prompt, p, modeOf(p), sum, start)
	entry.Success = false
	entry.ErrMessage = err.Error()
	entry.ErrCode = classify(err)
	entry.Detail = detailOf(err)
	o.finish(ctx, entry)
	o.logger.Error("command failed", "code", entry.ErrCode, "error", err)
	return err
}

// finish appends the terminal history entry and resets the state machine.
func (o *Orchestrator) finish(ctx context.Context, entry *history.Entry) {
	if o.hist != nil {
		if err := o.hist.Append(ctx, entry); err != nil {
			o.logger.Error("append history entry", "error", err)
		}
	}
	o.mu.Lock()
	o.pending = nil
	o.state = StateIdle
	o.mu.Unlock()
}

func entryFor(prompt string, p *plan.Plan, mode ExecMode, sum *engine.Summary, start time.Time) *history.Entry {
	entry := &history.Entry{
		Prompt:      prompt,
		Mode:        string(mode),
		FailedIndex: -1,
		DurationMS:  time.Since(start).Milliseconds(),
	}
	if p != nil {
		if raw, err := json.Marshal(p); err == nil {
			entry.Plan = raw
		}
	}
	if sum != nil {
		entry.OpsExecuted = sum.Executed
		entry.OpsFailed = sum.Failed
		entry.FailedIndex = sum.FailedIndex
		entry.Created = sum.Created
		entry.Modified = sum.Modified
		entry.Deleted = sum.Deleted
	}
	return entry
}

func modeOf(p *plan.Plan) ExecMode {
	if p == nil {
		return ModeClient
	}
	return chooseMode(p)
}

// classify maps an error to the stable code stored with history entries.
func classify(err error) string {
	var sErr *planner.ServiceError
	if errors.As(err, &sErr) {
		return string(sErr.Code)
	}
	var vErr *plan.ValidationError
	if errors.As(err, &vErr) {
		return "validation"
	}
	var rErr *resolve.ResolutionError
	if errors.As(err, &rErr) {
		return "resolution"
	}
	var lErr *layers.LayerIndexError
	if errors.As(err, &lErr) {
		return "layer_index"
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	return "execution"
}

// detailOf expands resolution failures with their candidate list so a later
// reader of the history can see what the document offered at the time.
func detailOf(err error) string {
	var rErr *resolve.ResolutionError
	if !errors.As(err, &rErr) {
		return ""
	}
	if len(rErr.Candidates) == 0 {
		return fmt.Sprintf("no shape matched %q", rErr.Identifier)
	}
	return fmt.Sprintf("candidates for %q: %s", rErr.Identifier, strings.Join(rErr.Candidates, ", "))
}

// touchColors records the colors a successful plan used, feeding the
// recent-colors palette.
func (o *Orchestrator) touchColors(ctx context.Context, p *plan.Plan) {
	if o.hist == nil {
		return
	}
	for _, op := range p.Operations {
		var hex string
		switch v := op.(type) {
		case *plan.CreateShape:
			hex = v.Color
		case *plan.CreateGrid:
			hex = v.Color
		case *plan.UpdateStyle:
			if v.Color != nil {
				hex = *v.Color
			}
		}
		if hex == "" {
			continue
		}
		if err := o.hist.TouchColor(ctx, hex); err != nil {
			o.logger.Warn("record recent color", "color", hex, "error", err)
		}
	}
}
