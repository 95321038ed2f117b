package plan

import (
	"fmt"

	"github.com/atelierink/sketchd/scene"
)

// OpKind names an operation type on the wire.
type OpKind string

const (
	KindCreateShape    OpKind = "create_shape"
	KindMove           OpKind = "move"
	KindResize         OpKind = "resize"
	KindRotate         OpKind = "rotate"
	KindUpdateStyle    OpKind = "update_style"
	KindArrange        OpKind = "arrange"
	KindCreateGrid     OpKind = "create_grid"
	KindBringToFront   OpKind = "bring_to_front"
	KindSendToBack     OpKind = "send_to_back"
	KindDelete         OpKind = "delete"
	KindDeleteMultiple OpKind = "delete_multiple"
	KindQueryState     OpKind = "query_state"
)

// Op is one typed mutation request with validated arguments.
type Op interface {
	Kind() OpKind
	Validate() error
}

// Directions accepted by Arrange.
const (
	DirHorizontal = "horizontal"
	DirVertical   = "vertical"
)

// CreateShape creates one shape. Geometry fields are kind-dependent;
// the validator enforces the fields the kind requires.
type CreateShape struct {
	ShapeKind scene.Kind `json:"kind"`
	X         float64    `json:"x"`
	Y         float64    `json:"y"`
	Width     float64    `json:"width,omitempty"`
	Height    float64    `json:"height,omitempty"`
	Radius    float64    `json:"radius,omitempty"`
	X2        float64    `json:"x2,omitempty"`
	Y2        float64    `json:"y2,omitempty"`
	Text      string     `json:"text,omitempty"`
	FontSize  float64    `json:"font_size,omitempty"`

	Color       string  `json:"color,omitempty"`
	StrokeColor string  `json:"stroke_color,omitempty"`
	StrokeWidth float64 `json:"stroke_width,omitempty"`

	Name    string   `json:"name,omitempty"`
	Opacity *float64 `json:"opacity,omitempty"`
}

func (o *CreateShape) Kind() OpKind { return KindCreateShape }

func (o *CreateShape) Validate() error {
	if !scene.ValidKind(o.ShapeKind) {
		return &ValidationError{Field: "kind", Msg: fmt.Sprintf("unknown shape kind %q", o.ShapeKind)}
	}
	switch o.ShapeKind {
	case scene.KindRectangle, scene.KindTriangle:
		if o.Width <= 0 || o.Height <= 0 {
			return &ValidationError{Field: "width/height", Msg: "must be > 0"}
		}
	case scene.KindCircle:
		if o.Radius <= 0 {
			return &ValidationError{Field: "radius", Msg: "must be > 0"}
		}
	case scene.KindText:
		if o.Text == "" {
			return &ValidationError{Field: "text", Msg: "required for text shapes"}
		}
	}
	if o.Opacity != nil && (*o.Opacity < 0 || *o.Opacity > 1) {
		return &ValidationError{Field: "opacity", Msg: "must be within [0,1]"}
	}
	return nil
}

// Style returns the paint attributes for the create call.
func (o *CreateShape) Style() scene.Style {
	return scene.Style{Color: o.Color, StrokeColor: o.StrokeColor, StrokeWidth: o.StrokeWidth}
}

// Move repositions a shape.
type Move struct {
	Target string  `json:"target"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

func (o *Move) Kind() OpKind { return KindMove }
func (o *Move) Validate() error {
	return requireTarget(o.Target)
}

// Resize changes a shape's extent. Width/Height for box-like shapes,
// Radius for circles; the interpreter applies whichever the shape uses.
type Resize struct {
	Target string  `json:"target"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
	Radius float64 `json:"radius,omitempty"`
}

func (o *Resize) Kind() OpKind { return KindResize }
func (o *Resize) Validate() error {
	if err := requireTarget(o.Target); err != nil {
		return err
	}
	if o.Width < 0 || o.Height < 0 || o.Radius < 0 {
		return &ValidationError{Field: "dimensions", Msg: "must be >= 0"}
	}
	if o.Width == 0 && o.Height == 0 && o.Radius == 0 {
		return &ValidationError{Field: "dimensions", Msg: "at least one of width, height, radius required"}
	}
	return nil
}

// Rotate sets a shape's rotation in degrees.
type Rotate struct {
	Target  string  `json:"target"`
	Degrees float64 `json:"degrees"`
}

func (o *Rotate) Kind() OpKind    { return KindRotate }
func (o *Rotate) Validate() error { return requireTarget(o.Target) }

// UpdateStyle changes paint attributes. Nil fields are untouched.
type UpdateStyle struct {
	Target      string   `json:"target"`
	Color       *string  `json:"color,omitempty"`
	StrokeColor *string  `json:"stroke_color,omitempty"`
	StrokeWidth *float64 `json:"stroke_width,omitempty"`
	Opacity     *float64 `json:"opacity,omitempty"`
}

func (o *UpdateStyle) Kind() OpKind { return KindUpdateStyle }
func (o *UpdateStyle) Validate() error {
	if err := requireTarget(o.Target); err != nil {
		return err
	}
	if o.Color == nil && o.StrokeColor == nil && o.StrokeWidth == nil && o.Opacity == nil {
		return &ValidationError{Field: "style", Msg: "no fields to update"}
	}
	if o.Opacity != nil && (*o.Opacity < 0 || *o.Opacity > 1) {
		return &ValidationError{Field: "opacity", Msg: "must be within [0,1]"}
	}
	return nil
}

// Arrange lays shapes out along one axis. The first shape never moves; each
// subsequent shape is placed at the previous shape's coordinate plus its
// extent plus the spacing.
type Arrange struct {
	Targets   []string `json:"targets"`
	Direction string   `json:"direction"`
	Spacing   float64  `json:"spacing"`
}

func (o *Arrange) Kind() OpKind { return KindArrange }
func (o *Arrange) Validate() error {
	if len(o.Targets) < 2 {
		return &ValidationError{Field: "targets", Msg: "need at least two shapes"}
	}
	if o.Direction != DirHorizontal && o.Direction != DirVertical {
		return &ValidationError{Field: "direction", Msg: fmt.Sprintf("unknown direction %q", o.Direction)}
	}
	if o.Spacing < 0 {
		return &ValidationError{Field: "spacing", Msg: "must be >= 0"}
	}
	return nil
}

// CreateGrid places rows×cols shapes on a regular grid, named
// "{prefix} {row+1}-{col+1}", returning ids in row-major order.
type CreateGrid struct {
	Rows       int        `json:"rows"`
	Cols       int        `json:"cols"`
	CellWidth  float64    `json:"cell_width"`
	CellHeight float64    `json:"cell_height"`
	Spacing    float64    `json:"spacing"`
	StartX     float64    `json:"start_x"`
	StartY     float64    `json:"start_y"`
	ShapeKind  scene.Kind `json:"kind"`
	Color      string     `json:"color,omitempty"`
	NamePrefix string     `json:"name_prefix,omitempty"`
}

func (o *CreateGrid) Kind() OpKind { return KindCreateGrid }
func (o *CreateGrid) Validate() error {
	if o.Rows < 1 || o.Cols < 1 {
		return &ValidationError{Field: "rows/cols", Msg: "must be >= 1"}
	}
	if o.CellWidth <= 0 || o.CellHeight <= 0 {
		return &ValidationError{Field: "cell_width/cell_height", Msg: "must be > 0"}
	}
	if o.Spacing < 0 {
		return &ValidationError{Field: "spacing", Msg: "must be >= 0"}
	}
	switch o.ShapeKind {
	case scene.KindRectangle, scene.KindCircle, scene.KindTriangle:
	default:
		return &ValidationError{Field: "kind", Msg: fmt.Sprintf("grids support rectangle, circle, triangle; got %q", o.ShapeKind)}
	}
	return nil
}

// Prefix returns the shape name prefix, defaulting to "Grid".
func (o *CreateGrid) Prefix() string {
	if o.NamePrefix != "" {
		return o.NamePrefix
	}
	return "Grid"
}

// BringToFront raises a shape above every other shape.
type BringToFront struct {
	Target string `json:"target"`
}

func (o *BringToFront) Kind() OpKind    { return KindBringToFront }
func (o *BringToFront) Validate() error { return requireTarget(o.Target) }

// SendToBack lowers a shape below every other shape.
type SendToBack struct {
	Target string `json:"target"`
}

func (o *SendToBack) Kind() OpKind    { return KindSendToBack }
func (o *SendToBack) Validate() error { return requireTarget(o.Target) }

// Delete removes one shape.
type Delete struct {
	Target string `json:"target"`
}

func (o *Delete) Kind() OpKind    { return KindDelete }
func (o *Delete) Validate() error { return requireTarget(o.Target) }

// DeleteMultiple removes several shapes through one bulk-delete call.
type DeleteMultiple struct {
	Targets []string `json:"targets"`
}

func (o *DeleteMultiple) Kind() OpKind { return KindDeleteMultiple }
func (o *DeleteMultiple) Validate() error {
	if len(o.Targets) == 0 {
		return &ValidationError{Field: "targets", Msg: "need at least one shape"}
	}
	return nil
}

// QueryState reads the document and reports a summary; it mutates nothing.
type QueryState struct{}

func (o *QueryState) Kind() OpKind    { return KindQueryState }
func (o *QueryState) Validate() error { return nil }

func requireTarget(t string) error {
	if t == "" {
		return &ValidationError{Field: "target", Msg: "required"}
	}
	return nil
}
