package extract

import (
	"regexp"
	"strings"

	"poflow/internal"
)

var reSkipColumn = regexp.MustCompile(`^(item\s*)?(#|no\.?|num(ber)?|line(\s*no\.?)?|sku|part\s*(no\.?|#|number))$`)

// classifyHeader maps a column header to a raw key. Price and total are
// checked first because "unit price" and "total qty" also mention other
// columns.
func classifyHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	switch {
	case h == "" || reSkipColumn.MatchString(h):
		return ""
	case strings.Contains(h, "unit cost"):
		return internal.KeyUnitCost
	case strings.Contains(h, "price") || strings.Contains(h, "rate") || h == "cost":
		return internal.KeyPrice
	case strings.Contains(h, "total") || strings.Contains(h, "amount") || strings.Contains(h, "ext"):
		return internal.KeyTotal
	case strings.Contains(h, "qty") || strings.Contains(h, "quantity"):
		return internal.KeyQuantity
	case h == "uom" || h == "u/m" || h == "unit" || h == "units" || strings.Contains(h, "measure"):
		return internal.KeyUnit
	case strings.Contains(h, "desc") || strings.Contains(h, "item") || strings.Contains(h, "product") ||
		strings.Contains(h, "name") || strings.Contains(h, "material"):
		return internal.KeyRequestItem
	default:
		return ""
	}
}

// inferColumns looks for a header row in the first rows of a grid. It returns
// the column keys and the index of the header row, or -1 when none is found.
func inferColumns(grid [][]string) ([]string, int) {
	limit := min(len(grid), 5)
	for i := 0; i < limit; i++ {
		keys := make([]string, len(grid[i]))
		found := map[string]bool{}
		for j, cell := range grid[i] {
			key := classifyHeader(cell)
			if key == "" || found[key] {
				continue
			}
			keys[j] = key
			found[key] = true
		}
		if found[internal.KeyRequestItem] && len(found) >= 2 {
			return keys, i
		}
	}
	return nil, -1
}

var positionalKeys = []string{internal.KeyRequestItem, internal.KeyQuantity, internal.KeyUnit, internal.KeyPrice, internal.KeyTotal}

func parseGrid(grid [][]string) []internal.RawRow {
	keys, headerIdx := inferColumns(grid)
	if headerIdx < 0 {
		keys = positionalKeys
	}

	out := []internal.RawRow{}
	for i := headerIdx + 1; i < len(grid); i++ {
		row := internal.RawRow{}
		for j, cell := range grid[i] {
			if j >= len(keys) || keys[j] == "" {
				continue
			}
			if cell = strings.TrimSpace(cell); cell != "" {
				row[keys[j]] = cell
			}
		}
		desc := row[internal.KeyRequestItem]
		if desc == "" || !reLetters.MatchString(desc) || isLikelyNoise(desc) {
			continue
		}
		if headerIdx < 0 && !isNumeric(row[internal.KeyQuantity]) {
			continue
		}
		out = append(out, row)
	}
	return out
}
