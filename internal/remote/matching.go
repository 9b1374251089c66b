package remote

import (
	"context"
	"net/http"

	"poflow/internal"
)

// MatchClient asks the matching service for candidates of a batch of
// queries: {"queries": [...]} -> {"results": {query: [{match, score}]}}.
type MatchClient struct {
	url string
	c   *client
}

func NewMatchClient(endpoint string, opts Options) *MatchClient {
	return &MatchClient{url: endpoint, c: newClient("matching", opts)}
}

type matchRequest struct {
	Queries []string `json:"queries"`
}

type matchResponse struct {
	Results map[string][]internal.Match `json:"results"`
}

func (m *MatchClient) MatchBatch(ctx context.Context, queries []string) (map[string][]internal.Match, error) {
	var resp matchResponse
	if err := m.c.doJSON(ctx, http.MethodPost, m.url, matchRequest{Queries: queries}, &resp); err != nil {
		return nil, err
	}
	if resp.Results == nil {
		resp.Results = map[string][]internal.Match{}
	}
	return resp.Results, nil
}
