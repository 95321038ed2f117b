// Package layers maintains the integer z-order of shapes. All functions are
// pure: they take a snapshot slice and return the minimal set of z-index
// changes to apply through the mutation API, leaving every untouched shape's
// value alone.
package layers

import (
	"errors"
	"fmt"
	"sort"

	"github.com/atelierink/sketchd/scene"
)

// Change assigns a new z-index to one shape.
type Change struct {
	ID string
	Z  int
}

// ErrUnknownShape is returned when the target id is not in the snapshot.
var ErrUnknownShape = errors.New("unknown shape")

// LayerIndexError reports an invalid explicit z-index (below 1).
type LayerIndexError struct {
	Z int
}

func (e *LayerIndexError) Error() string {
	return fmt.Sprintf("z-index must be >= 1, got %d", e.Z)
}

// PromoteToFront raises the shape above every other shape: a no-op when its
// z-index already equals the document maximum, otherwise max+1. No other
// shape moves, so gaps left by deletions persist (see Validate).
func PromoteToFront(shapes []scene.Shape, id string) ([]Change, error) {
	target, ok := find(shapes, id)
	if !ok {
		return nil, fmt.Errorf("promote %q: %w", id, ErrUnknownShape)
	}
	max := 0
	for _, s := range shapes {
		if s.ZIndex > max {
			max = s.ZIndex
		}
	}
	if target.ZIndex == max {
		return nil, nil
	}
	return []Change{{ID: id, Z: max + 1}}, nil
}

// SetExplicit moves the shape to exactly newZ, shifting the shapes in
// between by one so that the total order is preserved with at most one
// shape per affected integer. Moving forward decrements (old, newZ];
// moving backward increments [newZ, old). Equal z is a no-op.
func SetExplicit(shapes []scene.Shape, id string, newZ int) ([]Change, error) {
	if newZ < 1 {
		return nil, &LayerIndexError{Z: newZ}
	}
	target, ok := find(shapes, id)
	if !ok {
		return nil, fmt.Errorf("set z-index of %q: %w", id, ErrUnknownShape)
	}
	old := target.ZIndex
	if newZ == old {
		return nil, nil
	}

	var changes []Change
	for _, s := range shapes {
		if s.ID == id {
			continue
		}
		switch {
		case newZ > old && s.ZIndex > old && s.ZIndex <= newZ:
			changes = append(changes, Change{ID: s.ID, Z: s.ZIndex - 1})
		case newZ < old && s.ZIndex >= newZ && s.ZIndex < old:
			changes = append(changes, Change{ID: s.ID, Z: s.ZIndex + 1})
		}
	}
	// Target last, after the range shift.
	changes = append(changes, Change{ID: id, Z: newZ})
	return changes, nil
}

// SendToBack moves the shape to the bottom of the stack. Implemented as an
// explicit move to z=1, which shifts the shapes underneath up by one.
func SendToBack(shapes []scene.Shape, id string) ([]Change, error) {
	return SetExplicit(shapes, id, 1)
}

// Report is the diagnostic output of Validate.
type Report struct {
	// Duplicates lists z values held by more than one shape.
	Duplicates []int
	// Missing lists integers absent from the contiguous range [1, count].
	Missing []int
}

// Clean reports whether the ordering satisfies the dense-range invariant.
func (r Report) Clean() bool {
	return len(r.Duplicates) == 0 && len(r.Missing) == 0
}

// Validate checks the dense-range invariant: every z in [1, count] held by
// exactly one shape. Diagnostic only — nothing is renumbered automatically.
func Validate(shapes []scene.Shape) Report {
	seen := map[int]int{}
	for _, s := range shapes {
		seen[s.ZIndex]++
	}
	var rep Report
	for z, n := range seen {
		if n > 1 {
			rep.Duplicates = append(rep.Duplicates, z)
		}
	}
	for z := 1; z <= len(shapes); z++ {
		if seen[z] == 0 {
			rep.Missing = append(rep.Missing, z)
		}
	}
	sort.Ints(rep.Duplicates)
	sort.Ints(rep.Missing)
	return rep
}

func find(shapes []scene.Shape, id string) (scene.Shape, bool) {
	for _, s := range shapes {
		if s.ID == id {
			return s, true
		}
	}
	return scene.Shape{}, false
}
