// Package scene defines the 2-D scene graph model shared by every sketchd
// component: shape snapshots, the document snapshot, and the Mutator
// interface through which all mutations flow.
//
// The core never writes to the document directly. It reads snapshots for
// resolution and layout math and applies changes through a Mutator, which in
// production is the external document store and in tests (or local mode) the
// scenestore package.
package scene

import "sort"

// Kind identifies a shape type. The set is closed.
type Kind string

const (
	KindRectangle Kind = "rectangle"
	KindCircle    Kind = "circle"
	KindTriangle  Kind = "triangle"
	KindLine      Kind = "line"
	KindText      Kind = "text"
)

// ValidKind reports whether k is one of the known shape kinds.
func ValidKind(k Kind) bool {
	switch k {
	case KindRectangle, KindCircle, KindTriangle, KindLine, KindText:
		return true
	}
	return false
}

// Shape is a read-only snapshot of one shape.
//
// Geometry is kind-dependent: rectangles, triangles and text use X/Y plus
// Width/Height; circles use X/Y (center) plus Radius; lines use the two
// endpoints X/Y and X2/Y2. Unused fields are zero.
type Shape struct {
	ID          string  `json:"id"`
	Kind        Kind    `json:"kind"`
	Name        string  `json:"name,omitempty"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Width       float64 `json:"width,omitempty"`
	Height      float64 `json:"height,omitempty"`
	Radius      float64 `json:"radius,omitempty"`
	X2          float64 `json:"x2,omitempty"`
	Y2          float64 `json:"y2,omitempty"`
	Text        string  `json:"text,omitempty"`
	FontSize    float64 `json:"font_size,omitempty"`
	Color       string  `json:"color"`
	StrokeColor string  `json:"stroke_color,omitempty"`
	StrokeWidth float64 `json:"stroke_width,omitempty"`
	Opacity     float64 `json:"opacity"`
	Rotation    float64 `json:"rotation"`
	ZIndex      int     `json:"z_index"`
	Visible     bool    `json:"visible"`
	Locked      bool    `json:"locked"`

	// Seq is the creation sequence number. It defines stable document
	// order, independent of z-index churn.
	Seq int64 `json:"seq"`
}

// ExtentX returns the shape's horizontal extent: the distance from its
// leading X coordinate to its trailing edge. Circles span twice their
// radius; lines span their bounding box.
func (s Shape) ExtentX() float64 {
	switch s.Kind {
	case KindCircle:
		return 2 * s.Radius
	case KindLine:
		return abs(s.X2 - s.X)
	default:
		return s.Width
	}
}

// ExtentY returns the shape's vertical extent.
func (s Shape) ExtentY() float64 {
	switch s.Kind {
	case KindCircle:
		return 2 * s.Radius
	case KindLine:
		return abs(s.Y2 - s.Y)
	default:
		return s.Height
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// Viewport is the visible window onto the canvas.
type Viewport struct {
	PanX  float64 `json:"pan_x"`
	PanY  float64 `json:"pan_y"`
	Scale float64 `json:"scale"` // always > 0
}

// Bounds is the canvas size in document units.
type Bounds struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Document is a read-only snapshot of the whole scene at one instant.
type Document struct {
	Shapes    map[string]Shape `json:"shapes"`
	Viewport  Viewport         `json:"viewport"`
	Bounds    Bounds           `json:"bounds"`
	Selection []string         `json:"selection,omitempty"`
}

// Get returns the shape with the given id.
func (d *Document) Get(id string) (Shape, bool) {
	s, ok := d.Shapes[id]
	return s, ok
}

// InOrder returns all shapes in stable document order (creation sequence,
// ties broken by id).
func (d *Document) InOrder() []Shape {
	out := make([]Shape, 0, len(d.Shapes))
	for _, s := range d.Shapes {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Seq != out[j].Seq {
			return out[i].Seq < out[j].Seq
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// MaxZ returns the highest z-index in the document, or 0 when empty.
func (d *Document) MaxZ() int {
	max := 0
	for _, s := range d.Shapes {
		if s.ZIndex > max {
			max = s.ZIndex
		}
	}
	return max
}
