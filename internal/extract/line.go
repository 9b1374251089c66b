package extract

import (
	"regexp"
	"strings"

	"poflow/internal"
	"poflow/internal/util"
)

var (
	ignorePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^--+$`),
		regexp.MustCompile(`(?i)^(thanks|thank you|regards|best regards|sincerely)\b`),
		regexp.MustCompile(`(?i)^(tel|phone|fax)[:\s]`),
		regexp.MustCompile(`(?i)^e-?mail[:\s]`),
		regexp.MustCompile(`(?i)^http`),
		regexp.MustCompile(`(?i)^page \d+( of \d+)?$`),
		regexp.MustCompile(`(?i)^(sub-?total|total|tax|shipping|freight|grand total)\b`),
	}
	reLetters = regexp.MustCompile(`[A-Za-z]`)
)

// ParseLine reads one free-text order line such as
// "Steel Bolt M8 100 EA 0.25 25.00". Trailing numbers are read as quantity,
// unit price and total, in that order; a unit token anywhere in the tail is
// the unit. Lines without a description or a quantity are rejected.
func ParseLine(line string) (internal.RawRow, bool) {
	compact := util.NormalizeSpaces(line)
	if compact == "" || isLikelyNoise(compact) || isHeaderLine(compact) {
		return nil, false
	}

	tokens := strings.Fields(compact)
	// "3. Bolt ..." and "3 Bolt ..." carry a line number, not a quantity.
	if len(tokens) > 2 && isLineNumber(tokens[0]) && !isNumeric(tokens[1]) {
		tokens = tokens[1:]
	}

	tail := len(tokens)
	for tail > 0 && (isNumeric(tokens[tail-1]) || util.IsUnit(tokens[tail-1])) {
		tail--
	}
	if tail == 0 {
		return nil, false
	}

	var numbers []string
	unit := ""
	for _, tok := range tokens[tail:] {
		if isNumeric(tok) {
			numbers = append(numbers, tok)
			continue
		}
		if unit == "" {
			unit = tok
		}
	}

	desc := strings.Join(tokens[:tail], " ")
	desc = strings.Trim(desc, " -:;|,")
	if !reLetters.MatchString(desc) {
		return nil, false
	}

	row := internal.RawRow{internal.KeyRequestItem: desc}
	if unit != "" {
		row[internal.KeyUnit] = unit
	}
	switch n := len(numbers); {
	case n >= 3:
		row[internal.KeyQuantity] = numbers[n-3]
		row[internal.KeyPrice] = numbers[n-2]
		row[internal.KeyTotal] = numbers[n-1]
	case n == 2:
		row[internal.KeyQuantity] = numbers[0]
		row[internal.KeyPrice] = numbers[1]
	case n == 1:
		row[internal.KeyQuantity] = numbers[0]
	default:
		// "Bolt M8, 100 pcs" keeps its quantity inside the description.
		parsed := util.ParseQty(desc)
		if parsed.Qty == nil || parsed.Unit == nil {
			return nil, false
		}
		raw := *parsed.QtyRaw
		rest := strings.Replace(desc, raw, " ", 1)
		if rest == desc {
			rest = strings.Replace(desc, strings.ReplaceAll(raw, " ", ""), " ", 1)
		}
		row[internal.KeyQuantity] = util.FirstNonEmpty(strings.Fields(raw)...)
		row[internal.KeyUnit] = *parsed.Unit
		row[internal.KeyRequestItem] = strings.Trim(util.NormalizeSpaces(rest), " -:;|,")
	}
	return row, true
}

func isLikelyNoise(line string) bool {
	for _, re := range ignorePatterns {
		if re.MatchString(strings.TrimSpace(line)) {
			return true
		}
	}
	return false
}

func isHeaderLine(line string) bool {
	l := strings.ToLower(line)
	return (strings.Contains(l, "description") || strings.Contains(l, "item")) &&
		(strings.Contains(l, "qty") || strings.Contains(l, "quantity"))
}

func isNumeric(tok string) bool {
	_, ok := util.ParseAmount(tok)
	return ok
}

var reLineNumber = regexp.MustCompile(`^\d{1,3}[.)]?$`)

func isLineNumber(tok string) bool {
	return reLineNumber.MatchString(tok)
}
