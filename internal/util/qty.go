package util

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

const unitAlternation = `ea|each|pcs|pc|pieces?|units?|box(?:es)?|bx|cs|cases?|pk|packs?|sets?|rolls?|pairs?|pr|ft|feet|m|meters?|kg|lbs?|gal|l`

var (
	unitPattern     = regexp.MustCompile(`(?i)\b(` + unitAlternation + `)\b`)
	unitToken       = regexp.MustCompile(`(?i)^(` + unitAlternation + `)\.?$`)
	withUnitPattern = regexp.MustCompile(`(?i)(?:^|[^0-9.,])(\d{1,3}(?:,\d{3})+|\d+(?:\.\d+)?)\s*(` + unitAlternation + `)\b`)
	numberPattern   = regexp.MustCompile(`(?:^|[^0-9.,])(\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?)`)
	leadingFloat    = regexp.MustCompile(`^[+-]?(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?`)
)

type ParsedQty struct {
	Qty    *float64
	Unit   *string
	QtyRaw *string
}

// ParseQty finds the quantity in a free-text order line. A number directly
// followed by a unit wins; otherwise the last number on the line is used.
func ParseQty(input string) ParsedQty {
	line := strings.ReplaceAll(input, "\u00A0", " ")

	qtyRaw := ""
	qtyToken := ""
	unit := ""

	if wm := withUnitPattern.FindAllStringSubmatch(line, -1); len(wm) > 0 {
		first := wm[0]
		qtyRaw = strings.TrimSpace(first[1] + " " + first[2])
		qtyToken = strings.TrimSpace(first[1])
		unit = first[2]
	} else if nm := numberPattern.FindAllStringSubmatch(line, -1); len(nm) > 0 {
		last := nm[len(nm)-1]
		qtyRaw = strings.TrimSpace(last[1])
		qtyToken = qtyRaw
	}

	var out ParsedQty
	if qtyToken != "" {
		if parsed, err := strconv.ParseFloat(strings.ReplaceAll(qtyToken, ",", ""), 64); err == nil {
			out.Qty = FloatPtr(parsed)
		}
		out.QtyRaw = StringPtr(qtyRaw)
	}
	if unit == "" {
		if um := unitPattern.FindStringSubmatch(line); len(um) > 1 {
			unit = um[1]
		}
	}
	if unit != "" {
		out.Unit = StringPtr(NormalizeUnit(unit))
	}
	return out
}

// IsUnit reports whether token is a whole unit of measure such as "EA" or "box".
func IsUnit(token string) bool {
	return unitToken.MatchString(strings.TrimSpace(token))
}

func NormalizeUnit(unit string) string {
	u := strings.ToLower(strings.TrimSpace(unit))
	switch u {
	case "ea", "each", "pcs", "pc", "piece", "pieces", "unit", "units":
		return "ea"
	case "box", "boxes", "bx":
		return "box"
	case "cs", "case", "cases":
		return "case"
	case "pk", "pack", "packs":
		return "pack"
	case "ft", "feet":
		return "ft"
	case "m", "meter", "meters":
		return "m"
	case "lb", "lbs":
		return "lb"
	default:
		return u
	}
}

// ParseLeadingFloat parses the longest numeric prefix of s after leading
// whitespace, the way browsers implement parseFloat: "36 ea" is 36 and
// "1,200" is 1. ok is false when there is no numeric prefix, as in "$5".
func ParseLeadingFloat(s string) (float64, bool) {
	s = strings.TrimLeft(s, " \t\r\n\u00A0")
	for _, inf := range []string{"Infinity", "+Infinity", "-Infinity"} {
		if strings.HasPrefix(s, inf) {
			if inf[0] == '-' {
				return math.Inf(-1), true
			}
			return math.Inf(1), true
		}
	}
	prefix := leadingFloat.FindString(s)
	if prefix == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(prefix, 64)
	if err != nil {
		// exponent overflow: ParseFloat still returns ±Inf with ErrRange
		if ne, isNum := err.(*strconv.NumError); isNum && ne.Err == strconv.ErrRange {
			return v, true
		}
		return 0, false
	}
	return v, true
}

// NumberOrZero is ParseLeadingFloat with unparseable and non-finite input
// mapped to zero.
func NumberOrZero(s string) float64 {
	v, ok := ParseLeadingFloat(s)
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// ParseAmount reads a money-like cell such as "$1,234.50" or "(12.00)".
func ParseAmount(s string) (float64, bool) {
	clean := strings.TrimSpace(s)
	negative := strings.HasPrefix(clean, "(") && strings.HasSuffix(clean, ")")
	clean = strings.Trim(clean, "()")
	clean = strings.NewReplacer("$", "", "€", "", "£", "", ",", "", " ", "").Replace(clean)
	if clean == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, false
	}
	if negative {
		v = -v
	}
	return v, true
}
