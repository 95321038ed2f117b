package resolve

import "strings"

// Family is a coarse color family used for fuzzy shape references.
type Family string

const (
	FamRed    Family = "red"
	FamBlue   Family = "blue"
	FamGreen  Family = "green"
	FamYellow Family = "yellow"
	FamOrange Family = "orange"
	FamPurple Family = "purple"
	FamPink   Family = "pink"
	FamGray   Family = "gray"
	FamBlack  Family = "black"
	FamWhite  Family = "white"

	// FamUnknown means the color classifies into no family (e.g. cyan).
	FamUnknown Family = ""
)

// Classification thresholds. A channel "materially exceeds" another when the
// difference is at least domGap; achromatic colors have a max−min spread of
// at most achromaticSpread and are split into white/black/gray by brightness.
const (
	achromaticSpread = 30
	whiteFloor       = 200 // min channel at or above → white
	blackCeil        = 60  // max channel at or below → black
	domGap           = 40  // base dominance gap (green/blue)
	redGap           = 60  // red needs a larger gap to avoid orange/pink bleed
	brightFloor      = 180 // "high" channel for yellow
	yellowGap        = 80  // min(r,g) must exceed b by this for yellow
	purpleGap        = 50  // min(r,b) must exceed g for purple
)

// ClassifyHex maps a hex color ("#RGB" or "#RRGGBB", case-insensitive) to
// its family via channel dominance — never exact hex equality. The check
// order is fixed: achromatic, yellow, orange, pink, purple, red, green,
// blue; the first match wins, making classification deterministic.
func ClassifyHex(hex string) Family {
	r, g, b, ok := parseHex(hex)
	if !ok {
		return FamUnknown
	}

	max := max3(r, g, b)
	min := min3(r, g, b)

	if max-min <= achromaticSpread {
		switch {
		case min >= whiteFloor:
			return FamWhite
		case max <= blackCeil:
			return FamBlack
		default:
			return FamGray
		}
	}

	switch {
	case r >= brightFloor && g >= brightFloor && absInt(r-g) <= domGap && min2(r, g)-b >= yellowGap:
		return FamYellow
	case r >= 200 && g >= 80 && g <= 180 && b <= 100 && r-b >= 100:
		return FamOrange
	case r >= 200 && b >= 100 && r-g >= redGap && b > g:
		return FamPink
	case min2(r, b)-g >= purpleGap:
		return FamPurple
	case r >= 120 && r-g >= redGap && r-b >= redGap:
		return FamRed
	case g >= 100 && g-r >= domGap && g-b >= domGap:
		return FamGreen
	case b >= 100 && b-r >= domGap && b-g >= domGap:
		return FamBlue
	}
	return FamUnknown
}

func parseHex(hex string) (r, g, b int, ok bool) {
	s := strings.TrimPrefix(strings.TrimSpace(hex), "#")
	switch len(s) {
	case 3:
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	case 6:
	default:
		return 0, 0, 0, false
	}
	for i := 0; i < 6; i += 2 {
		v, valid := hexByte(s[i], s[i+1])
		if !valid {
			return 0, 0, 0, false
		}
		switch i {
		case 0:
			r = v
		case 2:
			g = v
		case 4:
			b = v
		}
	}
	return r, g, b, true
}

func hexByte(hi, lo byte) (int, bool) {
	h, ok1 := hexNibble(hi)
	l, ok2 := hexNibble(lo)
	return h<<4 | l, ok1 && ok2
}

func hexNibble(c byte) (int, bool) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), true
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10, true
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10, true
	}
	return 0, false
}

func max3(a, b, c int) int { return max2(max2(a, b), c) }
func min3(a, b, c int) int { return min2(min2(a, b), c) }

func max2(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min2(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
