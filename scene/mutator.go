package scene

import "context"

// Style holds the optional paint attributes shared by all create calls.
type Style struct {
	Color       string  `json:"color,omitempty"`
	StrokeColor string  `json:"stroke_color,omitempty"`
	StrokeWidth float64 `json:"stroke_width,omitempty"`
}

// RectParams are the arguments for CreateRectangle and CreateTriangle.
type RectParams struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Style
}

// CircleParams are the arguments for CreateCircle. X/Y is the center.
type CircleParams struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
	Style
}

// LineParams are the arguments for CreateLine.
type LineParams struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
	Style
}

// TextParams are the arguments for CreateText.
type TextParams struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Text     string  `json:"text"`
	FontSize float64 `json:"font_size,omitempty"`
	Style
}

// Patch is a partial shape update. Nil fields are left untouched.
type Patch struct {
	Name        *string  `json:"name,omitempty"`
	X           *float64 `json:"x,omitempty"`
	Y           *float64 `json:"y,omitempty"`
	Width       *float64 `json:"width,omitempty"`
	Height      *float64 `json:"height,omitempty"`
	Radius      *float64 `json:"radius,omitempty"`
	X2          *float64 `json:"x2,omitempty"`
	Y2          *float64 `json:"y2,omitempty"`
	Text        *string  `json:"text,omitempty"`
	FontSize    *float64 `json:"font_size,omitempty"`
	Color       *string  `json:"color,omitempty"`
	StrokeColor *string  `json:"stroke_color,omitempty"`
	StrokeWidth *float64 `json:"stroke_width,omitempty"`
	Opacity     *float64 `json:"opacity,omitempty"`
	Rotation    *float64 `json:"rotation,omitempty"`
	Visible     *bool    `json:"visible,omitempty"`
	Locked      *bool    `json:"locked,omitempty"`
}

// IsZero reports whether the patch carries no changes.
func (p Patch) IsZero() bool {
	return p == Patch{}
}

// Mutator is the document-mutation API. Every create call returns the
// committed shape id synchronously — callers may use it immediately, there
// is no settling delay. BulkDelete takes the explicit id list; the current
// selection is an input to the call, never a hidden channel.
type Mutator interface {
	CreateRectangle(ctx context.Context, p RectParams) (string, error)
	CreateCircle(ctx context.Context, p CircleParams) (string, error)
	CreateTriangle(ctx context.Context, p RectParams) (string, error)
	CreateLine(ctx context.Context, p LineParams) (string, error)
	CreateText(ctx context.Context, p TextParams) (string, error)

	UpdateShape(ctx context.Context, id string, patch Patch) error
	DeleteShape(ctx context.Context, id string) error
	BulkDelete(ctx context.Context, ids []string) error

	BringToFront(ctx context.Context, id string) error
	SendToBack(ctx context.Context, id string) error
	SetZIndex(ctx context.Context, id string, z int) error

	SelectShape(ctx context.Context, id string) error
	DeselectAll(ctx context.Context) error

	Snapshot(ctx context.Context) (*Document, error)
}
