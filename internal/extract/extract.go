// Package extract turns purchase-order documents into raw rows keyed the same
// way as the remote extraction service, so either can feed a session.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	pdf "github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"poflow/internal"
	"poflow/internal/util"
)

var ErrUnsupported = errors.New("unsupported document type")

const mediaTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Extractor struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Extractor {
	return &Extractor{log: log.With().Str("component", "extract").Logger()}
}

func (e *Extractor) Extract(ctx context.Context, doc internal.Document) ([]internal.RawRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		rows []internal.RawRow
		err  error
	)
	switch kind := documentKind(doc); kind {
	case "pdf":
		rows, err = ParsePDF(doc.Data)
	case "xlsx":
		rows, err = ParseXLSX(doc.Data)
	case "html":
		rows = ParseHTMLTables(string(doc.Data))
	case "text":
		rows = ParseText(string(doc.Data))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, doc.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", doc.Name, err)
	}

	e.log.Debug().Str("file", doc.Name).Int("rows", len(rows)).Msg("document parsed")
	return rows, nil
}

func documentKind(doc internal.Document) string {
	contentType := doc.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(doc.Data)
	}
	mediaType, _, _ := mime.ParseMediaType(contentType)

	switch {
	case mediaType == internal.MediaTypePDF:
		return "pdf"
	case mediaType == mediaTypeXLSX:
		return "xlsx"
	case mediaType == "text/html":
		return "html"
	}

	switch strings.ToLower(filepath.Ext(doc.Name)) {
	case ".pdf":
		return "pdf"
	case ".xlsx":
		return "xlsx"
	case ".html", ".htm":
		return "html"
	case ".txt":
		return "text"
	}
	if mediaType == "text/plain" {
		return "text"
	}
	return ""
}

// ParsePDF reads the text layer page by page and keeps every line that looks
// like an order line.
func ParsePDF(content []byte) ([]internal.RawRow, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, err
	}

	out := []internal.RawRow{}
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		out = append(out, ParseText(text)...)
	}
	return out, nil
}

// ParseText parses free text such as an email body, one line at a time.
func ParseText(text string) []internal.RawRow {
	out := []internal.RawRow{}
	for _, line := range splitLines(text) {
		if row, ok := ParseLine(line); ok {
			out = append(out, row)
		}
	}
	return out
}

func ParseXLSX(content []byte) ([]internal.RawRow, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := []internal.RawRow{}
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) == 0 {
			continue
		}
		out = append(out, parseGrid(rows)...)
	}
	return out, nil
}

func ParseHTMLTables(html string) []internal.RawRow {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	out := []internal.RawRow{}
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		grid := [][]string{}
		table.Find("tr").Each(func(_ int, row *goquery.Selection) {
			cells := []string{}
			row.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, util.NormalizeSpaces(cell.Text()))
			})
			grid = append(grid, cells)
		})
		if len(grid) < 2 {
			return
		}
		out = append(out, parseGrid(grid)...)
	})
	return out
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
