package layers_test

import (
	"errors"
	"testing"

	"github.com/atelierink/sketchd/layers"
	"github.com/atelierink/sketchd/scene"
)

func stack(zs ...int) []scene.Shape {
	shapes := make([]scene.Shape, len(zs))
	for i, z := range zs {
		shapes[i] = scene.Shape{ID: ids[i], ZIndex: z}
	}
	return shapes
}

var ids = []string{"a", "b", "c", "d", "e"}

// apply folds changes back into the snapshot for multi-step tests.
func apply(shapes []scene.Shape, changes []layers.Change) []scene.Shape {
	out := append([]scene.Shape(nil), shapes...)
	for _, ch := range changes {
		for i := range out {
			if out[i].ID == ch.ID {
				out[i].ZIndex = ch.Z
			}
		}
	}
	return out
}

func zOf(shapes []scene.Shape, id string) int {
	for _, s := range shapes {
		if s.ID == id {
			return s.ZIndex
		}
	}
	return -1
}

func TestPromoteToFront(t *testing.T) {
	shapes := stack(1, 2, 3)
	changes, err := layers.PromoteToFront(shapes, "a")
	if err != nil {
		t.Fatal(err)
	}
	if len(changes) != 1 {
		t.Fatalf("changes: got %d, want 1", len(changes))
	}
	if changes[0].ID != "a" || changes[0].Z != 4 {
		t.Fatalf("got %+v", changes[0])
	}
}

func TestPromoteToFront_AlreadyTop(t *testing.T) {
	shapes := stack(1, 2, 3)
	changes, err := layers.PromoteToFront(shapes, "c")
	if err != nil {
		t.Fatal(err)
	}
	if changes != nil {
		t.Fatalf("expected no-op, got %+v", changes)
	}
}

func TestPromoteToFront_Idempotent(t *testing.T) {
	shapes := stack(1, 2, 3)
	changes, err := layers.PromoteToFront(shapes, "b")
	if err != nil {
		t.Fatal(err)
	}
	shapes = apply(shapes, changes)

	// A second promotion of the now-top shape changes nothing.
	changes, err = layers.PromoteToFront(shapes, "b")
	if err != nil {
		t.Fatal(err)
	}
	if changes != nil {
		t.Fatalf("second promote should be a no-op, got %+v", changes)
	}
}

func TestPromoteToFront_Unknown(t *testing.T) {
	_, err := layers.PromoteToFront(stack(1), "zz")
	if !errors.Is(err, layers.ErrUnknownShape) {
		t.Fatalf("error: got %v", err)
	}
}

func TestSetExplicit_Forward(t *testing.T) {
	// a=1 b=2 c=3 d=4; move a to 3: b and c step down, d untouched.
	shapes := stack(1, 2, 3, 4)
	changes, err := layers.SetExplicit(shapes, "a", 3)
	if err != nil {
		t.Fatal(err)
	}
	shapes = apply(shapes, changes)

	want := map[string]int{"a": 3, "b": 1, "c": 2, "d": 4}
	for id, z := range want {
		if got := zOf(shapes, id); got != z {
			t.Errorf("%s: got z=%d, want %d", id, got, z)
		}
	}
}

func TestSetExplicit_Backward(t *testing.T) {
	// a=1 b=2 c=3 d=4; move d to 2: b and c step up, a untouched.
	shapes := stack(1, 2, 3, 4)
	changes, err := layers.SetExplicit(shapes, "d", 2)
	if err != nil {
		t.Fatal(err)
	}
	shapes = apply(shapes, changes)

	want := map[string]int{"a": 1, "b": 3, "c": 4, "d": 2}
	for id, z := range want {
		if got := zOf(shapes, id); got != z {
			t.Errorf("%s: got z=%d, want %d", id, got, z)
		}
	}
}

func TestSetExplicit_RoundTrip(t *testing.T) {
	// Moving p → q and back restores the original assignment.
	orig := stack(1, 2, 3, 4, 5)
	shapes := append([]scene.Shape(nil), orig...)

	changes, err := layers.SetExplicit(shapes, "b", 5)
	if err != nil {
		t.Fatal(err)
	}
	shapes = apply(shapes, changes)

	changes, err = layers.SetExplicit(shapes, "b", 2)
	if err != nil {
		t.Fatal(err)
	}
	shapes = apply(shapes, changes)

	for _, s := range orig {
		if got := zOf(shapes, s.ID); got != s.ZIndex {
			t.Errorf("%s: got z=%d, want %d", s.ID, got, s.ZIndex)
		}
	}
}

func TestSetExplicit_SameZ(t *testing.T) {
	changes, err := layers.SetExplicit(stack(1, 2, 3), "b", 2)
	if err != nil {
		t.Fatal(err)
	}
	if changes != nil {
		t.Fatalf("expected no-op, got %+v", changes)
	}
}

func TestSetExplicit_BelowOne(t *testing.T) {
	_, err := layers.SetExplicit(stack(1, 2), "a", 0)
	var lErr *layers.LayerIndexError
	if !errors.As(err, &lErr) {
		t.Fatalf("error: got %v", err)
	}
	if lErr.Z != 0 {
		t.Fatalf("z: got %d", lErr.Z)
	}
}

func TestSendToBack(t *testing.T) {
	shapes := stack(1, 2, 3)
	changes, err := layers.SendToBack(shapes, "c")
	if err != nil {
		t.Fatal(err)
	}
	shapes = apply(shapes, changes)

	want := map[string]int{"a": 2, "b": 3, "c": 1}
	for id, z := range want {
		if got := zOf(shapes, id); got != z {
			t.Errorf("%s: got z=%d, want %d", id, got, z)
		}
	}
}

func TestValidate_Clean(t *testing.T) {
	rep := layers.Validate(stack(1, 2, 3))
	if !rep.Clean() {
		t.Fatalf("expected clean, got %+v", rep)
	}
}

func TestValidate_GapAfterPromote(t *testing.T) {
	// Promote leaves a gap at the old position; Validate reports it and
	// nothing renumbers automatically.
	shapes := stack(1, 2, 3)
	changes, err := layers.PromoteToFront(shapes, "a")
	if err != nil {
		t.Fatal(err)
	}
	shapes = apply(shapes, changes) // a=4 b=2 c=3

	rep := layers.Validate(shapes)
	if rep.Clean() {
		t.Fatal("expected gap report")
	}
	if len(rep.Missing) != 1 || rep.Missing[0] != 1 {
		t.Fatalf("missing: got %v, want [1]", rep.Missing)
	}
}

func TestValidate_Duplicates(t *testing.T) {
	shapes := []scene.Shape{
		{ID: "a", ZIndex: 1},
		{ID: "b", ZIndex: 1},
		{ID: "c", ZIndex: 3},
	}
	rep := layers.Validate(shapes)
	if len(rep.Duplicates) != 1 || rep.Duplicates[0] != 1 {
		t.Fatalf("duplicates: got %v, want [1]", rep.Duplicates)
	}
	if len(rep.Missing) != 1 || rep.Missing[0] != 2 {
		t.Fatalf("missing: got %v, want [2]", rep.Missing)
	}
}
