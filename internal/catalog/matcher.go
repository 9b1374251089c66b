package catalog

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/agnivade/levenshtein"
	"github.com/rs/zerolog"

	"poflow/internal"
	"poflow/internal/util"
)

const (
	codeScore   = 99
	headerScore = 95
	// fuzzy ranking looks at this many products when no query token hits
	scanLimit = 1500
)

// ProductSource supplies the catalog the matcher indexes.
type ProductSource interface {
	ListProducts() ([]internal.ProductRecord, error)
}

type MatcherOptions struct {
	TopN     int
	MinScore float64
}

// Matcher proposes catalog candidates for order lines, scored 0 to 100.
// The index is built from the source on first use and on Refresh.
type Matcher struct {
	source ProductSource
	opts   MatcherOptions
	log    zerolog.Logger

	mu    sync.Mutex
	index *Index
}

func NewMatcher(source ProductSource, opts MatcherOptions, log zerolog.Logger) *Matcher {
	if opts.TopN <= 0 {
		opts.TopN = 5
	}
	return &Matcher{source: source, opts: opts, log: log.With().Str("component", "matcher").Logger()}
}

// Refresh rebuilds the index from the product source.
func (m *Matcher) Refresh() error {
	products, err := m.source.ListProducts()
	if err != nil {
		return err
	}
	idx := BuildIndex(products)

	m.mu.Lock()
	m.index = idx
	m.mu.Unlock()

	m.log.Debug().Int("products", idx.Len()).Msg("catalog index built")
	return nil
}

func (m *Matcher) currentIndex() (*Index, error) {
	m.mu.Lock()
	idx := m.index
	m.mu.Unlock()
	if idx != nil {
		return idx, nil
	}
	if err := m.Refresh(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index, nil
}

// MatchBatch returns a candidate list for every query, possibly empty.
func (m *Matcher) MatchBatch(ctx context.Context, queries []string) (map[string][]internal.Match, error) {
	idx, err := m.currentIndex()
	if err != nil {
		return nil, err
	}

	out := make(map[string][]internal.Match, len(queries))
	for _, q := range queries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, done := out[q]; done {
			continue
		}
		out[q] = m.match(idx, q)
	}
	return out, nil
}

func (m *Matcher) match(idx *Index, query string) []internal.Match {
	if util.LooksLikeCode(query) {
		if byCode := idx.ByCode[util.NormalizeCode(query)]; len(byCode) > 0 {
			return m.fixed(byCode, codeScore)
		}
	}

	normalized := util.NormalizeHeader(query)
	if exact := idx.ByHeader[normalized]; len(exact) > 0 {
		return m.fixed(exact, headerScore)
	}

	return m.rank(idx, normalized)
}

func (m *Matcher) fixed(products []internal.ProductRecord, score float64) []internal.Match {
	out := make([]internal.Match, 0, min(len(products), m.opts.TopN))
	for _, p := range products {
		if len(out) == m.opts.TopN {
			break
		}
		out = append(out, internal.Match{Match: matchLabel(p), Score: score})
	}
	return out
}

func (m *Matcher) rank(idx *Index, query string) []internal.Match {
	queryTokens := util.Tokenize(query)
	ids := map[int]struct{}{}
	for _, token := range queryTokens {
		for id := range idx.TokenToProductIDs[token] {
			ids[id] = struct{}{}
		}
	}
	if len(ids) == 0 {
		for id := range idx.ProductsByID {
			ids[id] = struct{}{}
			if len(ids) >= scanLimit {
				break
			}
		}
	}

	type scored struct {
		product internal.ProductRecord
		score   float64
	}
	candidates := make([]scored, 0, len(ids))
	for id := range ids {
		header := idx.NormalizedHeaderByID[id]
		score := ScoreHeader(query, header, queryTokens, util.Tokenize(header))
		if score < m.opts.MinScore {
			continue
		}
		candidates = append(candidates, scored{product: idx.ProductsByID[id], score: score})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].product.ID < candidates[j].product.ID
	})
	if len(candidates) > m.opts.TopN {
		candidates = candidates[:m.opts.TopN]
	}

	out := make([]internal.Match, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, internal.Match{Match: matchLabel(c.product), Score: c.score})
	}
	return out
}

// ScoreHeader blends bigram similarity, query token coverage and edit
// distance into a 0 to 100 score rounded to one decimal.
func ScoreHeader(query, candidate string, queryTokens, candidateTokens []string) float64 {
	dice := util.DiceCoefficient(query, candidate)
	edit := editSimilarity(query, candidate)
	if len(queryTokens) == 0 || len(candidateTokens) == 0 {
		return round1(100 * (0.7*dice + 0.3*edit))
	}

	set := map[string]struct{}{}
	for _, t := range candidateTokens {
		set[t] = struct{}{}
	}
	overlap := 0
	for _, t := range queryTokens {
		if _, ok := set[t]; ok {
			overlap++
		}
	}
	tokenScore := float64(overlap) / float64(len(queryTokens))
	return round1(100 * (0.5*dice + 0.3*tokenScore + 0.2*edit))
}

func editSimilarity(a, b string) float64 {
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 0
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func matchLabel(p internal.ProductRecord) string {
	if p.SKU != "" {
		return p.SKU
	}
	return p.Header
}
