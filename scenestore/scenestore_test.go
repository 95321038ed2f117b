package scenestore_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/atelierink/sketchd/dbopen"
	"github.com/atelierink/sketchd/layers"
	"github.com/atelierink/sketchd/scene"
	"github.com/atelierink/sketchd/scenestore"
)

func newStore(t *testing.T) *scenestore.Store {
	t.Helper()
	db := dbopen.OpenMemory(t)
	s := scenestore.New(db, scenestore.Options{})
	if err := s.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	return s
}

func TestCreateRectangle_Defaults(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	id, err := s.CreateRectangle(ctx, scene.RectParams{X: 10, Y: 20, Width: 100, Height: 50})
	if err != nil {
		t.Fatalf("CreateRectangle: %v", err)
	}
	if !strings.HasPrefix(id, "shp_") {
		t.Fatalf("id = %q, want shp_ prefix", id)
	}

	doc, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	sh, ok := doc.Get(id)
	if !ok {
		t.Fatal("shape missing from snapshot")
	}
	if sh.Kind != scene.KindRectangle || sh.Width != 100 {
		t.Fatalf("shape = %+v", sh)
	}
	if sh.Color != "#000000" {
		t.Fatalf("color = %q, want default #000000", sh.Color)
	}
	if sh.Opacity != 1 || !sh.Visible || sh.Locked {
		t.Fatalf("defaults = %+v", sh)
	}
	if sh.Seq != 1 || sh.ZIndex != 1 {
		t.Fatalf("seq = %d, z = %d, want 1, 1", sh.Seq, sh.ZIndex)
	}
}

func TestCreate_SequenceAndZ(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	a, _ := s.CreateRectangle(ctx, scene.RectParams{Width: 10, Height: 10})
	b, _ := s.CreateCircle(ctx, scene.CircleParams{Radius: 5})
	c, _ := s.CreateTriangle(ctx, scene.RectParams{Width: 10, Height: 10})

	doc, _ := s.Snapshot(ctx)
	for i, id := range []string{a, b, c} {
		sh, _ := doc.Get(id)
		if sh.Seq != int64(i+1) {
			t.Fatalf("shape %d seq = %d, want %d", i, sh.Seq, i+1)
		}
		if sh.ZIndex != i+1 {
			t.Fatalf("shape %d z = %d, want %d", i, sh.ZIndex, i+1)
		}
	}

	order := doc.InOrder()
	if order[0].ID != a || order[1].ID != b || order[2].ID != c {
		t.Fatalf("document order = %v", []string{order[0].ID, order[1].ID, order[2].ID})
	}
}

func TestCreateText_FontSizeDefault(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	id, err := s.CreateText(ctx, scene.TextParams{X: 5, Y: 5, Text: "hello"})
	if err != nil {
		t.Fatalf("CreateText: %v", err)
	}
	doc, _ := s.Snapshot(ctx)
	sh, _ := doc.Get(id)
	if sh.FontSize != 16 {
		t.Fatalf("font size = %v, want 16", sh.FontSize)
	}
	if sh.Text != "hello" {
		t.Fatalf("text = %q", sh.Text)
	}
}

func TestCreateLine_Endpoints(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	id, _ := s.CreateLine(ctx, scene.LineParams{X1: 1, Y1: 2, X2: 3, Y2: 4, Style: scene.Style{Color: "#ff0000"}})
	doc, _ := s.Snapshot(ctx)
	sh, _ := doc.Get(id)
	if sh.X != 1 || sh.Y != 2 || sh.X2 != 3 || sh.Y2 != 4 {
		t.Fatalf("endpoints = %+v", sh)
	}
	if sh.Color != "#ff0000" {
		t.Fatalf("color = %q", sh.Color)
	}
}

func TestUpdateShape(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	id, _ := s.CreateRectangle(ctx, scene.RectParams{X: 0, Y: 0, Width: 10, Height: 10})

	name := "box"
	x := 42.0
	op := 0.25
	rot := 90.0
	if err := s.UpdateShape(ctx, id, scene.Patch{Name: &name, X: &x, Opacity: &op, Rotation: &rot}); err != nil {
		t.Fatalf("UpdateShape: %v", err)
	}

	doc, _ := s.Snapshot(ctx)
	sh, _ := doc.Get(id)
	if sh.Name != "box" || sh.X != 42 || sh.Opacity != 0.25 || sh.Rotation != 90 {
		t.Fatalf("shape = %+v", sh)
	}
	// Untouched fields keep their values.
	if sh.Y != 0 || sh.Width != 10 {
		t.Fatalf("patch bled into other fields: %+v", sh)
	}
}

func TestUpdateShape_NotFound(t *testing.T) {
	s := newStore(t)
	name := "x"
	err := s.UpdateShape(context.Background(), "shp_missing", scene.Patch{Name: &name})
	if !errors.Is(err, scenestore.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateShape_EmptyPatch(t *testing.T) {
	s := newStore(t)
	// A zero patch is a no-op even for unknown ids.
	if err := s.UpdateShape(context.Background(), "shp_missing", scene.Patch{}); err != nil {
		t.Fatalf("UpdateShape: %v", err)
	}
}

func TestDeleteShape(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	id, _ := s.CreateRectangle(ctx, scene.RectParams{Width: 10, Height: 10})
	if err := s.DeleteShape(ctx, id); err != nil {
		t.Fatalf("DeleteShape: %v", err)
	}
	doc, _ := s.Snapshot(ctx)
	if len(doc.Shapes) != 0 {
		t.Fatalf("snapshot has %d shapes", len(doc.Shapes))
	}
	if err := s.DeleteShape(ctx, id); !errors.Is(err, scenestore.ErrNotFound) {
		t.Fatalf("second delete = %v, want ErrNotFound", err)
	}
}

func TestBulkDelete_SkipsUnknown(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	a, _ := s.CreateRectangle(ctx, scene.RectParams{Width: 10, Height: 10})
	b, _ := s.CreateCircle(ctx, scene.CircleParams{Radius: 5})

	if err := s.BulkDelete(ctx, []string{a, "shp_missing", b}); err != nil {
		t.Fatalf("BulkDelete: %v", err)
	}
	doc, _ := s.Snapshot(ctx)
	if len(doc.Shapes) != 0 {
		t.Fatalf("snapshot has %d shapes", len(doc.Shapes))
	}
}

func TestBringToFront(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	a, _ := s.CreateRectangle(ctx, scene.RectParams{Width: 10, Height: 10})
	b, _ := s.CreateRectangle(ctx, scene.RectParams{Width: 10, Height: 10})
	c, _ := s.CreateRectangle(ctx, scene.RectParams{Width: 10, Height: 10})

	if err := s.BringToFront(ctx, a); err != nil {
		t.Fatalf("BringToFront: %v", err)
	}
	doc, _ := s.Snapshot(ctx)
	za, zb, zc := zOf(t, doc, a), zOf(t, doc, b), zOf(t, doc, c)
	if za <= zb || za <= zc {
		t.Fatalf("z = a:%d b:%d c:%d; a should be highest", za, zb, zc)
	}
}

func TestSendToBack(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	a, _ := s.CreateRectangle(ctx, scene.RectParams{Width: 10, Height: 10})
	b, _ := s.CreateRectangle(ctx, scene.RectParams{Width: 10, Height: 10})
	c, _ := s.CreateRectangle(ctx, scene.RectParams{Width: 10, Height: 10})

	if err := s.SendToBack(ctx, c); err != nil {
		t.Fatalf("SendToBack: %v", err)
	}
	doc, _ := s.Snapshot(ctx)
	za, zb, zc := zOf(t, doc, a), zOf(t, doc, b), zOf(t, doc, c)
	if zc >= za || zc >= zb {
		t.Fatalf("z = a:%d b:%d c:%d; c should be lowest", za, zb, zc)
	}
	// The layer set stays dense after the shuffle.
	if rep := layers.Validate(doc.InOrder()); !rep.Clean() {
		t.Fatalf("layer validation: %+v", rep)
	}
}

func TestSetZIndex(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	a, _ := s.CreateRectangle(ctx, scene.RectParams{Width: 10, Height: 10})
	b, _ := s.CreateRectangle(ctx, scene.RectParams{Width: 10, Height: 10})
	c, _ := s.CreateRectangle(ctx, scene.RectParams{Width: 10, Height: 10})

	if err := s.SetZIndex(ctx, a, 3); err != nil {
		t.Fatalf("SetZIndex: %v", err)
	}
	doc, _ := s.Snapshot(ctx)
	if got := zOf(t, doc, a); got != 3 {
		t.Fatalf("a z = %d, want 3", got)
	}
	// b and c shift down to fill the hole.
	if zOf(t, doc, b) != 1 || zOf(t, doc, c) != 2 {
		t.Fatalf("b z = %d, c z = %d, want 1, 2", zOf(t, doc, b), zOf(t, doc, c))
	}
}

func TestSetZIndex_BelowOne(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	a, _ := s.CreateRectangle(ctx, scene.RectParams{Width: 10, Height: 10})
	err := s.SetZIndex(ctx, a, 0)
	var lErr *layers.LayerIndexError
	if !errors.As(err, &lErr) {
		t.Fatalf("err = %v, want *layers.LayerIndexError", err)
	}
}

func TestLayerOps_NotFound(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	s.CreateRectangle(ctx, scene.RectParams{Width: 10, Height: 10})
	if err := s.BringToFront(ctx, "shp_missing"); !errors.Is(err, scenestore.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSelection(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	a, _ := s.CreateRectangle(ctx, scene.RectParams{Width: 10, Height: 10})
	b, _ := s.CreateCircle(ctx, scene.CircleParams{Radius: 5})

	if err := s.SelectShape(ctx, b); err != nil {
		t.Fatalf("SelectShape: %v", err)
	}
	if err := s.SelectShape(ctx, a); err != nil {
		t.Fatalf("SelectShape: %v", err)
	}
	// Selecting twice is a no-op, not an error.
	if err := s.SelectShape(ctx, a); err != nil {
		t.Fatalf("re-select: %v", err)
	}
	if err := s.SelectShape(ctx, "shp_missing"); !errors.Is(err, scenestore.ErrNotFound) {
		t.Fatalf("select unknown = %v, want ErrNotFound", err)
	}

	doc, _ := s.Snapshot(ctx)
	// Selection comes back in document order, not selection order.
	if len(doc.Selection) != 2 || doc.Selection[0] != a || doc.Selection[1] != b {
		t.Fatalf("selection = %v, want [%s %s]", doc.Selection, a, b)
	}

	if err := s.DeselectAll(ctx); err != nil {
		t.Fatalf("DeselectAll: %v", err)
	}
	doc, _ = s.Snapshot(ctx)
	if len(doc.Selection) != 0 {
		t.Fatalf("selection = %v after deselect", doc.Selection)
	}
}

func TestSelection_CascadesOnDelete(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	a, _ := s.CreateRectangle(ctx, scene.RectParams{Width: 10, Height: 10})
	s.SelectShape(ctx, a)
	s.DeleteShape(ctx, a)

	doc, _ := s.Snapshot(ctx)
	if len(doc.Selection) != 0 {
		t.Fatalf("selection = %v after shape delete", doc.Selection)
	}
}

func TestSnapshot_ViewportAndBounds(t *testing.T) {
	db := dbopen.OpenMemory(t)
	s := scenestore.New(db, scenestore.Options{Bounds: scene.Bounds{Width: 800, Height: 600}})
	ctx := context.Background()
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}

	doc, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if doc.Bounds.Width != 800 || doc.Bounds.Height != 600 {
		t.Fatalf("bounds = %+v", doc.Bounds)
	}
	if doc.Viewport.Scale != 1 {
		t.Fatalf("scale = %v, want 1", doc.Viewport.Scale)
	}

	if err := s.SetViewport(ctx, scene.Viewport{PanX: 10, PanY: -5, Scale: 2}); err != nil {
		t.Fatalf("SetViewport: %v", err)
	}
	doc, _ = s.Snapshot(ctx)
	if doc.Viewport.PanX != 10 || doc.Viewport.PanY != -5 || doc.Viewport.Scale != 2 {
		t.Fatalf("viewport = %+v", doc.Viewport)
	}

	if err := s.SetViewport(ctx, scene.Viewport{Scale: 0}); err == nil {
		t.Fatal("expected error for zero scale")
	}
}

func zOf(t *testing.T, doc *scene.Document, id string) int {
	t.Helper()
	sh, ok := doc.Get(id)
	if !ok {
		t.Fatalf("shape %s missing", id)
	}
	return sh.ZIndex
}
