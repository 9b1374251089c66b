package remote

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"poflow/internal"
)

// ExtractionClient posts a document as the multipart field "file" and reads
// the rows from "result_data".
type ExtractionClient struct {
	url string
	c   *client
}

func NewExtractionClient(endpoint string, opts Options) *ExtractionClient {
	return &ExtractionClient{url: endpoint, c: newClient("extraction", opts)}
}

type extractionResponse struct {
	ResultData []map[string]any `json:"result_data"`
}

func (e *ExtractionClient) Extract(ctx context.Context, doc internal.Document) ([]internal.RawRow, error) {
	var resp extractionResponse
	if err := e.c.postFile(ctx, e.url, "file", doc, &resp); err != nil {
		return nil, err
	}

	out := make([]internal.RawRow, 0, len(resp.ResultData))
	for _, raw := range resp.ResultData {
		row := make(internal.RawRow, len(raw))
		for k, v := range raw {
			if s, ok := cellString(v); ok {
				row[k] = s
			}
		}
		out = append(out, row)
	}
	return out, nil
}

// cellString renders a JSON scalar the way it would appear in a table cell.
// Nulls, objects and arrays are dropped.
func cellString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case json.Number:
		return t.String(), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}
