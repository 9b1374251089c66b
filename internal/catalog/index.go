package catalog

import (
	"poflow/internal"
	"poflow/internal/util"
)

type Index struct {
	ProductsByID         map[int]internal.ProductRecord
	ByCode               map[string][]internal.ProductRecord
	ByHeader             map[string][]internal.ProductRecord
	TokenToProductIDs    map[string]map[int]struct{}
	NormalizedHeaderByID map[int]string
}

func BuildIndex(products []internal.ProductRecord) *Index {
	idx := &Index{
		ProductsByID:         map[int]internal.ProductRecord{},
		ByCode:               map[string][]internal.ProductRecord{},
		ByHeader:             map[string][]internal.ProductRecord{},
		TokenToProductIDs:    map[string]map[int]struct{}{},
		NormalizedHeaderByID: map[int]string{},
	}

	for _, p := range products {
		idx.ProductsByID[p.ID] = p
		normHeader := util.NormalizeHeader(p.Header)
		idx.NormalizedHeaderByID[p.ID] = normHeader
		idx.ByHeader[normHeader] = append(idx.ByHeader[normHeader], p)

		addCode := func(code string) {
			norm := util.NormalizeCode(code)
			if norm == "" {
				return
			}
			for _, existing := range idx.ByCode[norm] {
				if existing.ID == p.ID {
					return
				}
			}
			idx.ByCode[norm] = append(idx.ByCode[norm], p)
		}

		addCode(p.SKU)
		for _, code := range p.Codes {
			addCode(code)
		}

		for _, token := range util.Tokenize(p.Header) {
			if _, ok := idx.TokenToProductIDs[token]; !ok {
				idx.TokenToProductIDs[token] = map[int]struct{}{}
			}
			idx.TokenToProductIDs[token][p.ID] = struct{}{}
		}
	}

	return idx
}

func (idx *Index) Len() int {
	return len(idx.ProductsByID)
}
