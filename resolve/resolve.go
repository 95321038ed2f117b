// Package resolve maps symbolic shape references — an id, a display name, or
// a fuzzy phrase like "the blue circle" — to a canonical shape id against a
// document snapshot.
//
// Strategies are tried in a fixed order and the first success wins:
//
//  1. exact id
//  2. exact (case-sensitive) name
//  3. case-insensitive name
//  4. color family + shape kind (both tokens present in the phrase)
//  5. color family alone, accepted only on a unique match
//  6. shape kind alone, accepted only on a unique match
//
// Multiple matches at strategy 4 resolve to the first shape in stable
// document order and are flagged ambiguous — a non-fatal outcome the caller
// may surface. Anything else fails with a ResolutionError.
package resolve

import (
	"fmt"
	"strings"

	"github.com/atelierink/sketchd/scene"
)

// Strategy names the resolution path that produced a result.
type Strategy string

const (
	ByID        Strategy = "id"
	ByName      Strategy = "name"
	ByNameFold  Strategy = "name_fold"
	ByColorKind Strategy = "color_kind"
	ByColor     Strategy = "color"
	ByKind      Strategy = "kind"
)

// Result is a successful resolution.
type Result struct {
	ID       string
	Strategy Strategy

	// Ambiguous is set when several shapes matched and the first in
	// document order was chosen.
	Ambiguous bool

	// Candidates holds every id that matched the winning strategy, in
	// document order. Len > 1 only when Ambiguous.
	Candidates []string
}

// Reason classifies a resolution failure.
type Reason string

const (
	// NotFound: a color+kind phrase matched nothing.
	NotFound Reason = "not_found"
	// NotResolvable: no strategy produced a match.
	NotResolvable Reason = "not_resolvable"
)

// ResolutionError reports an unresolved or unmatchable reference. Candidates
// carries the shapes considered, for diagnostics only.
type ResolutionError struct {
	Identifier  string
	Reason      Reason
	ColorFamily Family
	ShapeKind   scene.Kind
	Candidates  []string
}

func (e *ResolutionError) Error() string {
	if e.Reason == NotFound {
		return fmt.Sprintf("no %s %s matches %q", e.ColorFamily, e.ShapeKind, e.Identifier)
	}
	return fmt.Sprintf("cannot resolve %q to a shape", e.Identifier)
}

var kindTokens = map[string]scene.Kind{
	"rectangle": scene.KindRectangle,
	"square":    scene.KindRectangle,
	"circle":    scene.KindCircle,
	"triangle":  scene.KindTriangle,
	"line":      scene.KindLine,
	"text":      scene.KindText,
}

var familyTokens = []Family{
	FamRed, FamBlue, FamGreen, FamYellow, FamOrange,
	FamPurple, FamPink, FamGray, FamBlack, FamWhite,
}

// Resolve maps identifier to a shape id in doc. See the package comment for
// the strategy order.
func Resolve(identifier string, doc *scene.Document) (Result, error) {
	// 1. Exact id.
	if _, ok := doc.Get(identifier); ok {
		return Result{ID: identifier, Strategy: ByID, Candidates: []string{identifier}}, nil
	}

	ordered := doc.InOrder()

	// 2. Exact name.
	for _, s := range ordered {
		if s.Name != "" && s.Name == identifier {
			return Result{ID: s.ID, Strategy: ByName, Candidates: []string{s.ID}}, nil
		}
	}

	// 3. Case-insensitive name.
	for _, s := range ordered {
		if s.Name != "" && strings.EqualFold(s.Name, identifier) {
			return Result{ID: s.ID, Strategy: ByNameFold, Candidates: []string{s.ID}}, nil
		}
	}

	family, kind, hasFamily, hasKind := scanTokens(identifier)

	// 4. Color + kind.
	if hasFamily && hasKind {
		var ids []string
		for _, s := range ordered {
			if s.Kind == kind && ClassifyHex(s.Color) == family {
				ids = append(ids, s.ID)
			}
		}
		switch len(ids) {
		case 0:
			return Result{}, &ResolutionError{
				Identifier:  identifier,
				Reason:      NotFound,
				ColorFamily: family,
				ShapeKind:   kind,
			}
		case 1:
			return Result{ID: ids[0], Strategy: ByColorKind, Candidates: ids}, nil
		default:
			return Result{ID: ids[0], Strategy: ByColorKind, Candidates: ids, Ambiguous: true}, nil
		}
	}

	// 5. Color alone — unique match required.
	if hasFamily {
		var ids []string
		for _, s := range ordered {
			if ClassifyHex(s.Color) == family {
				ids = append(ids, s.ID)
			}
		}
		if len(ids) == 1 {
			return Result{ID: ids[0], Strategy: ByColor, Candidates: ids}, nil
		}
	}

	// 6. Kind alone — unique match required.
	if hasKind {
		var ids []string
		for _, s := range ordered {
			if s.Kind == kind {
				ids = append(ids, s.ID)
			}
		}
		if len(ids) == 1 {
			return Result{ID: ids[0], Strategy: ByKind, Candidates: ids}, nil
		}
	}

	return Result{}, &ResolutionError{
		Identifier: identifier,
		Reason:     NotResolvable,
		Candidates: describeAll(ordered),
	}
}

// scanTokens looks for one color-family token and one kind token in the
// identifier. Matching is word-based and case-insensitive; the first hit of
// each category wins.
func scanTokens(identifier string) (Family, scene.Kind, bool, bool) {
	var (
		family    Family
		kind      scene.Kind
		hasFamily bool
		hasKind   bool
	)
	for _, word := range strings.Fields(strings.ToLower(identifier)) {
		word = strings.Trim(word, ".,;:!?\"'()")
		if !hasFamily {
			for _, f := range familyTokens {
				if word == string(f) || (f == FamGray && word == "grey") {
					family, hasFamily = f, true
					break
				}
			}
		}
		if !hasKind {
			if k, ok := kindTokens[word]; ok {
				kind, hasKind = k, true
			}
		}
	}
	return family, kind, hasFamily, hasKind
}

func describeAll(shapes []scene.Shape) []string {
	out := make([]string, 0, len(shapes))
	for _, s := range shapes {
		desc := fmt.Sprintf("%s %s %s", s.ID, s.Kind, s.Color)
		if s.Name != "" {
			desc += fmt.Sprintf(" %q", s.Name)
		}
		out = append(out, desc)
	}
	return out
}
