// Package index holds the immutable TF-IDF corpus built from a set of
// documents. Build runs three passes separated by global barriers: term
// frequency, inverse document frequency, then per-document TF-IDF.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/tracing"
)

// Index is a built corpus. It is never mutated after Build returns.
type Index struct {
	Documents []*Document

	// DocumentFrequency counts every occurrence of a token across the whole
	// corpus. Despite the name it is not the number of documents that
	// contain the token; IDF is computed from this occurrence count.
	DocumentFrequency map[string]int
	IDF               map[string]float64

	// Generation identifies the snapshot; the engine bumps it per build.
	Generation uint64
	BuiltAt    time.Time
}

// Stats summarises a built index.
type Stats struct {
	Documents    int    `json:"documents"`
	UniqueTokens int    `json:"unique_tokens"`
	TotalTokens  int    `json:"total_tokens"`
	Generation   uint64 `json:"generation"`
}

// Build computes weights for docs and returns the corpus. workers bounds the
// tokenizing goroutines of the TF pass; zero or less means GOMAXPROCS.
func Build(ctx context.Context, docs []*Document, workers int) (*Index, error) {
	if len(docs) == 0 {
		return nil, apperrors.ErrNoDocuments
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	logger := slog.Default().With("component", "index")

	ix := &Index{
		Documents:         docs,
		DocumentFrequency: make(map[string]int),
		IDF:               make(map[string]float64),
	}

	counts, err := termFrequencyPass(ctx, docs, workers)
	if err != nil {
		return nil, err
	}
	// Merge in document order after the barrier so the result never
	// depends on goroutine scheduling.
	for _, c := range counts {
		for token, n := range c {
			ix.DocumentFrequency[token] += n
		}
	}
	logger.Info("term frequency pass complete",
		"documents", len(docs),
		"unique_tokens", len(ix.DocumentFrequency),
	)

	_, span := tracing.StartChildSpan(ctx, "index.idf")
	n := float64(len(docs))
	for token, df := range ix.DocumentFrequency {
		ix.IDF[token] = 1 + math.Log(n/float64(df))
	}
	span.SetAttr("tokens", len(ix.IDF))
	span.End()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	_, span = tracing.StartChildSpan(ctx, "index.tfidf")
	for _, doc := range docs {
		var sum float64
		for token, tf := range doc.TermFrequency {
			w := tf * ix.IDF[token]
			doc.TFIDF[token] = w
			sum += w * w
		}
		doc.Magnitude = math.Sqrt(sum)
	}
	span.End()

	ix.BuiltAt = time.Now().UTC()
	return ix, nil
}

// termFrequencyPass tokenizes every document, fills TermFrequency and
// TotalTokens, and returns each document's raw token counts.
func termFrequencyPass(ctx context.Context, docs []*Document, workers int) ([]map[string]int, error) {
	ctx, span := tracing.StartChildSpan(ctx, "index.tf")
	defer span.End()
	span.SetAttr("workers", workers)

	counts := make([]map[string]int, len(docs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, doc := range docs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			tokens := tokenizer.Tokenize(doc.RawText)
			c := make(map[string]int)
			for _, t := range tokens {
				c[t]++
			}
			doc.TotalTokens = len(tokens)
			total := float64(len(tokens))
			for token, n := range c {
				doc.TermFrequency[token] = float64(n) / total
			}
			counts[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("term frequency pass: %w", err)
	}
	return counts, nil
}

// Stats reports document and token totals.
func (ix *Index) Stats() Stats {
	total := 0
	for _, doc := range ix.Documents {
		total += doc.TotalTokens
	}
	return Stats{
		Documents:    len(ix.Documents),
		UniqueTokens: len(ix.DocumentFrequency),
		TotalTokens:  total,
		Generation:   ix.Generation,
	}
}

// IDFOrDefault returns the token's IDF, or 1 for tokens never seen in the
// corpus.
func (ix *Index) IDFOrDefault(token string) float64 {
	if idf, ok := ix.IDF[token]; ok {
		return idf
	}
	return 1.0
}
