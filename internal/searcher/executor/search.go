package executor

import (
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/snippet"
)

// SearchResult is one ranked document.
type SearchResult struct {
	Filename   string   `json:"filename"`
	Similarity float64  `json:"similarity"`
	Snippets   []string `json:"snippets"`
}

// Search ranks ix against query and attaches snippets of contextSize words
// on each side of every match. Documents that score above zero but yield no
// snippet are dropped. The index is only read.
func Search(ix *index.Index, query string, contextSize int) []SearchResult {
	return searchTokens(ix, tokenizer.Tokenize(query), contextSize)
}

func searchTokens(ix *index.Index, tokens []string, contextSize int) []SearchResult {
	results := make([]SearchResult, 0)
	for _, s := range ranker.Rank(ix, tokens) {
		snippets, ok := snippet.Generate(s.Document.RawText, tokens, contextSize)
		if !ok {
			continue
		}
		results = append(results, SearchResult{
			Filename:   s.Document.Filename,
			Similarity: s.Similarity,
			Snippets:   snippets,
		})
	}
	return results
}
