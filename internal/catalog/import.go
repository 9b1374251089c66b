package catalog

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"poflow/internal"
	"poflow/internal/util"
)

// Store is where imported products land.
type Store interface {
	UpsertProducts(products []internal.ProductRecord) error
	SetMetadata(key, value string) error
}

type ImportService struct {
	store   Store
	matcher *Matcher
	log     zerolog.Logger
}

// NewImportService imports into store. matcher may be nil; when set its
// index is rebuilt after every import.
func NewImportService(store Store, matcher *Matcher, log zerolog.Logger) *ImportService {
	return &ImportService{store: store, matcher: matcher, log: log.With().Str("component", "catalog").Logger()}
}

func (s *ImportService) ImportFile(path string) (int, error) {
	products, err := ReadCatalogFile(path)
	if err != nil {
		return 0, err
	}
	if err := s.store.UpsertProducts(products); err != nil {
		return 0, err
	}
	_ = s.store.SetMetadata("catalog.last_import", time.Now().UTC().Format(time.RFC3339))
	_ = s.store.SetMetadata("catalog.last_import_file", filepath.Base(path))

	if s.matcher != nil {
		if err := s.matcher.Refresh(); err != nil {
			return len(products), err
		}
	}
	s.log.Info().Str("file", path).Int("products", len(products)).Msg("catalog imported")
	return len(products), nil
}

// ReadCatalogFile reads products from an .xlsx or .csv file whose first row
// names the columns.
func ReadCatalogFile(path string) ([]internal.ProductRecord, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err = xlsxRows(blob)
	case ".csv":
		rows, err = csvRows(bytes.NewReader(blob))
	default:
		return nil, fmt.Errorf("unsupported catalog file: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return productsFromRows(rows)
}

func xlsxRows(blob []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(blob))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.GetRows(f.GetSheetName(0))
}

func csvRows(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	return cr.ReadAll()
}

type catalogColumns struct {
	sku, header, unit, codes int
}

func inferCatalogColumns(headers []string) catalogColumns {
	cols := catalogColumns{sku: -1, header: -1, unit: -1, codes: -1}
	for i, h := range headers {
		h = strings.ToLower(strings.TrimSpace(h))
		switch {
		case cols.codes < 0 && (strings.Contains(h, "alt") || strings.Contains(h, "codes") || strings.Contains(h, "alias")):
			cols.codes = i
		case cols.sku < 0 && (h == "sku" || h == "code" || h == "id" || strings.Contains(h, "part") || strings.Contains(h, "item no")):
			cols.sku = i
		case cols.header < 0 && (strings.Contains(h, "desc") || strings.Contains(h, "name") || strings.Contains(h, "title") || h == "header" || h == "product"):
			cols.header = i
		case cols.unit < 0 && (h == "uom" || h == "unit" || h == "units" || strings.Contains(h, "measure")):
			cols.unit = i
		}
	}
	return cols
}

func productsFromRows(rows [][]string) ([]internal.ProductRecord, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("catalog is empty")
	}
	cols := inferCatalogColumns(rows[0])
	if cols.header < 0 {
		return nil, fmt.Errorf("catalog has no description column")
	}

	cell := func(row []string, i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	out := make([]internal.ProductRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		header := util.NormalizeSpaces(cell(row, cols.header))
		if header == "" {
			continue
		}
		p := internal.ProductRecord{
			SKU:    util.FirstNonEmpty(cell(row, cols.sku), header),
			Header: header,
		}
		if unit := cell(row, cols.unit); unit != "" {
			p.Unit = util.StringPtr(unit)
		}
		for _, code := range strings.FieldsFunc(cell(row, cols.codes), func(r rune) bool { return r == ';' || r == ',' || r == '|' }) {
			if code = strings.TrimSpace(code); code != "" {
				p.Codes = append(p.Codes, code)
			}
		}

		raw := map[string]string{}
		for i, h := range rows[0] {
			if v := cell(row, i); v != "" {
				raw[strings.TrimSpace(h)] = v
			}
		}
		blob, _ := json.Marshal(raw)
		p.RawJSON = string(blob)

		out = append(out, p)
	}
	return out, nil
}
