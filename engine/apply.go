package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/atelierink/sketchd/plan"
	"github.com/atelierink/sketchd/scene"
)

func (in *Interpreter) applyCreateShape(ctx context.Context, o *plan.CreateShape, sum *Summary) error {
	id, err := in.create(ctx, o)
	if err != nil {
		return err
	}
	sum.Created = append(sum.Created, id)

	// Name and opacity are not part of the create calls; one follow-up
	// metadata update covers both.
	patch := scene.Patch{}
	if o.Name != "" {
		patch.Name = &o.Name
	}
	if o.Opacity != nil {
		patch.Opacity = o.Opacity
	}
	if !patch.IsZero() {
		if err := in.mut.UpdateShape(ctx, id, patch); err != nil {
			return fmt.Errorf("set metadata on %s: %w", id, err)
		}
	}
	return nil
}

func (in *Interpreter) create(ctx context.Context, o *plan.CreateShape) (string, error) {
	style := o.Style()
	switch o.ShapeKind {
	case scene.KindRectangle:
		return in.mut.CreateRectangle(ctx, scene.RectParams{X: o.X, Y: o.Y, Width: o.Width, Height: o.Height, Style: style})
	case scene.KindCircle:
		return in.mut.CreateCircle(ctx, scene.CircleParams{X: o.X, Y: o.Y, Radius: o.Radius, Style: style})
	case scene.KindTriangle:
		return in.mut.CreateTriangle(ctx, scene.RectParams{X: o.X, Y: o.Y, Width: o.Width, Height: o.Height, Style: style})
	case scene.KindLine:
		return in.mut.CreateLine(ctx, scene.LineParams{X1: o.X, Y1: o.Y, X2: o.X2, Y2: o.Y2, Style: style})
	case scene.KindText:
		return in.mut.CreateText(ctx, scene.TextParams{X: o.X, Y: o.Y, Text: o.Text, FontSize: o.FontSize, Style: style})
	default:
		return "", fmt.Errorf("unhandled shape kind %q", o.ShapeKind)
	}
}

func (in *Interpreter) applyMove(ctx context.Context, o *plan.Move, sum *Summary) error {
	id, err := in.resolveTarget(ctx, o.Target)
	if err != nil {
		return err
	}
	patch := scene.Patch{X: &o.X, Y: &o.Y}

	// Lines move as a whole: carry the second endpoint along.
	doc, err := in.mut.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	if s, ok := doc.Get(id); ok && s.Kind == scene.KindLine {
		x2 := s.X2 + (o.X - s.X)
		y2 := s.Y2 + (o.Y - s.Y)
		patch.X2, patch.Y2 = &x2, &y2
	}

	if err := in.mut.UpdateShape(ctx, id, patch); err != nil {
		return err
	}
	sum.Modified = append(sum.Modified, id)
	return nil
}

func (in *Interpreter) applyResize(ctx context.Context, o *plan.Resize, sum *Summary) error {
	id, err := in.resolveTarget(ctx, o.Target)
	if err != nil {
		return err
	}
	doc, err := in.mut.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	s, ok := doc.Get(id)
	if !ok {
		return fmt.Errorf("resize: shape %s vanished", id)
	}

	patch := scene.Patch{}
	if s.Kind == scene.KindCircle {
		r := o.Radius
		if r == 0 && o.Width > 0 {
			r = o.Width / 2
		}
		if r <= 0 {
			return fmt.Errorf("resize circle %s: radius required", id)
		}
		patch.Radius = &r
	} else {
		if o.Width > 0 {
			patch.Width = &o.Width
		}
		if o.Height > 0 {
			patch.Height = &o.Height
		}
	}
	if err := in.mut.UpdateShape(ctx, id, patch); err != nil {
		return err
	}
	sum.Modified = append(sum.Modified, id)
	return nil
}

func (in *Interpreter) applyRotate(ctx context.Context, o *plan.Rotate, sum *Summary) error {
	id, err := in.resolveTarget(ctx, o.Target)
	if err != nil {
		return err
	}
	if err := in.mut.UpdateShape(ctx, id, scene.Patch{Rotation: &o.Degrees}); err != nil {
		return err
	}
	sum.Modified = append(sum.Modified, id)
	return nil
}

func (in *Interpreter) applyUpdateStyle(ctx context.Context, o *plan.UpdateStyle, sum *Summary) error {
	id, err := in.resolveTarget(ctx, o.Target)
	if err != nil {
		return err
	}
	patch := scene.Patch{
		Color:       o.Color,
		StrokeColor: o.StrokeColor,
		StrokeWidth: o.StrokeWidth,
		Opacity:     o.Opacity,
	}
	if err := in.mut.UpdateShape(ctx, id, patch); err != nil {
		return err
	}
	sum.Modified = append(sum.Modified, id)
	return nil
}

// applyArrange lays the targets out along one axis. The first shape anchors
// the run and is never moved; every subsequent shape's leading coordinate is
// the previous shape's coordinate plus its extent plus the spacing.
func (in *Interpreter) applyArrange(ctx context.Context, o *plan.Arrange, sum *Summary) error {
	ids := make([]string, len(o.Targets))
	for i, t := range o.Targets {
		id, err := in.resolveTarget(ctx, t)
		if err != nil {
			return err
		}
		ids[i] = id
	}

	doc, err := in.mut.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}

	horizontal := o.Direction == plan.DirHorizontal
	prev, ok := doc.Get(ids[0])
	if !ok {
		return fmt.Errorf("arrange: shape %s vanished", ids[0])
	}
	lead := prev.X
	extent := prev.ExtentX()
	if !horizontal {
		lead = prev.Y
		extent = prev.ExtentY()
	}

	for _, id := range ids[1:] {
		s, ok := doc.Get(id)
		if !ok {
			return fmt.Errorf("arrange: shape %s vanished", id)
		}
		lead += extent + o.Spacing

		pos := lead
		patch := scene.Patch{}
		if horizontal {
			patch.X = &pos
			extent = s.ExtentX()
		} else {
			patch.Y = &pos
			extent = s.ExtentY()
		}
		if err := in.mut.UpdateShape(ctx, id, patch); err != nil {
			return err
		}
		sum.Modified = append(sum.Modified, id)
	}
	return nil
}

// applyCreateGrid creates rows×cols shapes, row-major, named
// "{prefix} {row+1}-{col+1}".
func (in *Interpreter) applyCreateGrid(ctx context.Context, o *plan.CreateGrid, sum *Summary) error {
	style := scene.Style{Color: o.Color}
	for row := 0; row < o.Rows; row++ {
		for col := 0; col < o.Cols; col++ {
			x := o.StartX + float64(col)*(o.CellWidth+o.Spacing)
			y := o.StartY + float64(row)*(o.CellHeight+o.Spacing)

			var (
				id  string
				err error
			)
			switch o.ShapeKind {
			case scene.KindCircle:
				id, err = in.mut.CreateCircle(ctx, scene.CircleParams{X: x, Y: y, Radius: o.CellWidth / 2, Style: style})
			case scene.KindTriangle:
				id, err = in.mut.CreateTriangle(ctx, scene.RectParams{X: x, Y: y, Width: o.CellWidth, Height: o.CellHeight, Style: style})
			default:
				id, err = in.mut.CreateRectangle(ctx, scene.RectParams{X: x, Y: y, Width: o.CellWidth, Height: o.CellHeight, Style: style})
			}
			if err != nil {
				return fmt.Errorf("grid cell %d-%d: %w", row+1, col+1, err)
			}

			name := fmt.Sprintf("%s %d-%d", o.Prefix(), row+1, col+1)
			if err := in.mut.UpdateShape(ctx, id, scene.Patch{Name: &name}); err != nil {
				return fmt.Errorf("name grid cell %d-%d: %w", row+1, col+1, err)
			}
			sum.Created = append(sum.Created, id)
		}
	}
	return nil
}

func (in *Interpreter) applyLayer(ctx context.Context, target string, call func(context.Context, string) error, sum *Summary) error {
	id, err := in.resolveTarget(ctx, target)
	if err != nil {
		return err
	}
	if err := call(ctx, id); err != nil {
		return err
	}
	sum.Modified = append(sum.Modified, id)
	return nil
}

func (in *Interpreter) applyDelete(ctx context.Context, o *plan.Delete, sum *Summary) error {
	id, err := in.resolveTarget(ctx, o.Target)
	if err != nil {
		return err
	}
	if err := in.mut.DeleteShape(ctx, id); err != nil {
		return err
	}
	sum.Deleted = append(sum.Deleted, id)
	return nil
}

// applyDeleteMultiple clears the selection, selects exactly the resolved
// targets, then issues a single bulk-delete carrying the full id list. The
// call order is a contract with document stores whose deletion primitive
// still acts on the current selection.
func (in *Interpreter) applyDeleteMultiple(ctx context.Context, o *plan.DeleteMultiple, sum *Summary) error {
	ids := make([]string, len(o.Targets))
	for i, t := range o.Targets {
		id, err := in.resolveTarget(ctx, t)
		if err != nil {
			return err
		}
		ids[i] = id
	}

	if err := in.mut.DeselectAll(ctx); err != nil {
		return fmt.Errorf("clear selection: %w", err)
	}
	for _, id := range ids {
		if err := in.mut.SelectShape(ctx, id); err != nil {
			return fmt.Errorf("select %s: %w", id, err)
		}
	}
	if err := in.mut.BulkDelete(ctx, ids); err != nil {
		return err
	}
	sum.Deleted = append(sum.Deleted, ids...)
	return nil
}

func (in *Interpreter) applyQueryState(ctx context.Context, sum *Summary) error {
	doc, err := in.mut.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	counts := map[scene.Kind]int{}
	for _, s := range doc.Shapes {
		counts[s.Kind]++
	}
	parts := make([]string, 0, len(counts))
	for _, k := range []scene.Kind{scene.KindRectangle, scene.KindCircle, scene.KindTriangle, scene.KindLine, scene.KindText} {
		if counts[k] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", counts[k], k))
		}
	}
	desc := fmt.Sprintf("%d shapes", len(doc.Shapes))
	if len(parts) > 0 {
		desc += " (" + strings.Join(parts, ", ") + ")"
	}
	if len(doc.Selection) > 0 {
		desc += fmt.Sprintf(", %d selected", len(doc.Selection))
	}
	sum.Queries = append(sum.Queries, desc)
	return nil
}
