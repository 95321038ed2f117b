package resolve_test

import (
	"errors"
	"testing"

	"github.com/atelierink/sketchd/resolve"
	"github.com/atelierink/sketchd/scene"
)

func doc(shapes ...scene.Shape) *scene.Document {
	d := &scene.Document{Shapes: make(map[string]scene.Shape)}
	for i, s := range shapes {
		if s.Seq == 0 {
			s.Seq = int64(i + 1)
		}
		d.Shapes[s.ID] = s
	}
	return d
}

func TestResolve_ByID(t *testing.T) {
	d := doc(scene.Shape{ID: "shp_1", Kind: scene.KindCircle, Color: "#ff0000"})
	res, err := resolve.Resolve("shp_1", d)
	if err != nil {
		t.Fatal(err)
	}
	if res.ID != "shp_1" || res.Strategy != resolve.ByID {
		t.Fatalf("got %+v", res)
	}
}

func TestResolve_ByName(t *testing.T) {
	d := doc(
		scene.Shape{ID: "shp_1", Kind: scene.KindCircle, Name: "Sun", Color: "#ffff00"},
		scene.Shape{ID: "shp_2", Kind: scene.KindCircle, Name: "sun", Color: "#ffaa00"},
	)

	// Exact match beats case-insensitive.
	res, err := resolve.Resolve("sun", d)
	if err != nil {
		t.Fatal(err)
	}
	if res.ID != "shp_2" || res.Strategy != resolve.ByName {
		t.Fatalf("got %+v", res)
	}

	// Case fold reaches the other one.
	res, err = resolve.Resolve("SUN", d)
	if err != nil {
		t.Fatal(err)
	}
	if res.Strategy != resolve.ByNameFold {
		t.Fatalf("strategy: got %q", res.Strategy)
	}
	if res.ID != "shp_1" {
		t.Fatalf("fold should pick the first in document order, got %s", res.ID)
	}
}

func TestResolve_ColorKind(t *testing.T) {
	d := doc(
		scene.Shape{ID: "shp_1", Kind: scene.KindCircle, Color: "#ff0000"},
		scene.Shape{ID: "shp_2", Kind: scene.KindRectangle, Color: "#ff0000"},
		scene.Shape{ID: "shp_3", Kind: scene.KindCircle, Color: "#0000ff"},
	)
	res, err := resolve.Resolve("the red circle", d)
	if err != nil {
		t.Fatal(err)
	}
	if res.ID != "shp_1" || res.Strategy != resolve.ByColorKind {
		t.Fatalf("got %+v", res)
	}
	if res.Ambiguous {
		t.Fatal("unique match flagged ambiguous")
	}
}

func TestResolve_ColorKind_Ambiguous(t *testing.T) {
	d := doc(
		scene.Shape{ID: "shp_1", Kind: scene.KindCircle, Color: "#cc0000"},
		scene.Shape{ID: "shp_2", Kind: scene.KindCircle, Color: "#ff1111"},
	)
	res, err := resolve.Resolve("red circle", d)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Ambiguous {
		t.Fatal("expected ambiguous result")
	}
	if res.ID != "shp_1" {
		t.Fatalf("should pick first in document order, got %s", res.ID)
	}
	if len(res.Candidates) != 2 {
		t.Fatalf("candidates: got %d", len(res.Candidates))
	}
}

func TestResolve_ColorKind_NotFound(t *testing.T) {
	d := doc(scene.Shape{ID: "shp_1", Kind: scene.KindCircle, Color: "#0000ff"})
	_, err := resolve.Resolve("the green triangle", d)
	var rErr *resolve.ResolutionError
	if !errors.As(err, &rErr) {
		t.Fatalf("error: got %v", err)
	}
	if rErr.Reason != resolve.NotFound {
		t.Fatalf("reason: got %q", rErr.Reason)
	}
	if rErr.ColorFamily != resolve.FamGreen || rErr.ShapeKind != scene.KindTriangle {
		t.Fatalf("got family %q kind %q", rErr.ColorFamily, rErr.ShapeKind)
	}
}

func TestResolve_ColorAlone_Unique(t *testing.T) {
	d := doc(
		scene.Shape{ID: "shp_1", Kind: scene.KindCircle, Color: "#0000ff"},
		scene.Shape{ID: "shp_2", Kind: scene.KindRectangle, Color: "#ff0000"},
	)
	res, err := resolve.Resolve("the blue one", d)
	if err != nil {
		t.Fatal(err)
	}
	if res.ID != "shp_1" || res.Strategy != resolve.ByColor {
		t.Fatalf("got %+v", res)
	}
}

func TestResolve_ColorAlone_NotUnique(t *testing.T) {
	d := doc(
		scene.Shape{ID: "shp_1", Kind: scene.KindCircle, Color: "#0000ff"},
		scene.Shape{ID: "shp_2", Kind: scene.KindRectangle, Color: "#2222ee"},
	)
	_, err := resolve.Resolve("the blue thing", d)
	var rErr *resolve.ResolutionError
	if !errors.As(err, &rErr) {
		t.Fatalf("error: got %v", err)
	}
	if rErr.Reason != resolve.NotResolvable {
		t.Fatalf("reason: got %q", rErr.Reason)
	}
}

func TestResolve_KindAlone_Unique(t *testing.T) {
	d := doc(
		scene.Shape{ID: "shp_1", Kind: scene.KindTriangle, Color: "#123456"},
		scene.Shape{ID: "shp_2", Kind: scene.KindCircle, Color: "#654321"},
	)
	res, err := resolve.Resolve("the triangle", d)
	if err != nil {
		t.Fatal(err)
	}
	if res.ID != "shp_1" || res.Strategy != resolve.ByKind {
		t.Fatalf("got %+v", res)
	}
}

func TestResolve_SquareMeansRectangle(t *testing.T) {
	d := doc(scene.Shape{ID: "shp_1", Kind: scene.KindRectangle, Color: "#00ff00"})
	res, err := resolve.Resolve("the green square", d)
	if err != nil {
		t.Fatal(err)
	}
	if res.ID != "shp_1" {
		t.Fatalf("got %+v", res)
	}
}

func TestResolve_GreySpelling(t *testing.T) {
	d := doc(
		scene.Shape{ID: "shp_1", Kind: scene.KindRectangle, Color: "#808080"},
		scene.Shape{ID: "shp_2", Kind: scene.KindRectangle, Color: "#ff0000"},
	)
	res, err := resolve.Resolve("the grey rectangle", d)
	if err != nil {
		t.Fatal(err)
	}
	if res.ID != "shp_1" {
		t.Fatalf("got %+v", res)
	}
}

func TestResolve_NotResolvable_Candidates(t *testing.T) {
	d := doc(
		scene.Shape{ID: "shp_1", Kind: scene.KindCircle, Color: "#ff0000", Name: "Sun"},
		scene.Shape{ID: "shp_2", Kind: scene.KindLine, Color: "#000000"},
	)
	_, err := resolve.Resolve("the thingy", d)
	var rErr *resolve.ResolutionError
	if !errors.As(err, &rErr) {
		t.Fatalf("error: got %v", err)
	}
	if len(rErr.Candidates) != 2 {
		t.Fatalf("candidates should describe the whole document, got %d", len(rErr.Candidates))
	}
}

func TestClassifyHex(t *testing.T) {
	cases := []struct {
		hex  string
		want resolve.Family
	}{
		{"#ff0000", resolve.FamRed},
		{"#cc1111", resolve.FamRed},
		{"#00ff00", resolve.FamGreen},
		{"#0000ff", resolve.FamBlue},
		{"#ffff00", resolve.FamYellow},
		{"#ffa500", resolve.FamOrange},
		{"#ffc0cb", resolve.FamPink},
		{"#800080", resolve.FamPurple},
		{"#ffffff", resolve.FamWhite},
		{"#000000", resolve.FamBlack},
		{"#808080", resolve.FamGray},
		{"#fff", resolve.FamWhite},
		{"#f00", resolve.FamRed},
		{"", resolve.FamUnknown},
		{"#zzzzzz", resolve.FamUnknown},
		{"#12345", resolve.FamUnknown},
	}
	for _, tc := range cases {
		if got := resolve.ClassifyHex(tc.hex); got != tc.want {
			t.Errorf("ClassifyHex(%q): got %q, want %q", tc.hex, got, tc.want)
		}
	}
}
