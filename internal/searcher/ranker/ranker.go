// Package ranker scores documents against a query by cosine similarity of
// TF-IDF vectors.
package ranker

import (
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
)

// Scored is a document with positive similarity to the query.
type Scored struct {
	Document   *index.Document
	Similarity float64
}

// QueryWeights returns the query vector. Each distinct token weighs
// (1/len(tokens)) * idf, where idf falls back to 1 for tokens the corpus has
// never seen. A repeated token keeps the per-occurrence weight rather than
// accumulating.
func QueryWeights(ix *index.Index, tokens []string) map[string]float64 {
	weights := make(map[string]float64, len(tokens))
	if len(tokens) == 0 {
		return weights
	}
	tf := 1 / float64(len(tokens))
	for _, t := range tokens {
		weights[t] = tf * ix.IDFOrDefault(t)
	}
	return weights
}

// Magnitude is the Euclidean norm of a weight vector.
func Magnitude(v map[string]float64) float64 {
	var sum float64
	for _, w := range v {
		sum += w * w
	}
	return math.Sqrt(sum)
}

// Cosine returns the similarity between the query vector and doc. The dot
// product runs over query terms only; the document norm is the one stored
// by Build and covers all of its entries. A zero norm on either side
// yields 0.
func Cosine(query map[string]float64, queryMagnitude float64, doc *index.Document) float64 {
	docMagnitude := doc.Magnitude
	if queryMagnitude == 0 || docMagnitude == 0 {
		return 0
	}
	var dot float64
	for t, w := range query {
		dot += w * doc.TFIDF[t]
	}
	sim := dot / (queryMagnitude * docMagnitude)
	if math.IsNaN(sim) {
		return 0
	}
	return sim
}

// Rank scores every document and returns those with similarity above zero,
// highest first. Equal scores keep index order.
func Rank(ix *index.Index, tokens []string) []Scored {
	query := QueryWeights(ix, tokens)
	qm := Magnitude(query)
	scored := make([]Scored, 0)
	for _, doc := range ix.Documents {
		sim := Cosine(query, qm, doc)
		if sim <= 0 {
			continue
		}
		scored = append(scored, Scored{Document: doc, Similarity: sim})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})
	return scored
}
