package index

// Document is one source file and the weights derived from its text. The
// maps are filled by Build and never written again, so a built Document is
// safe to read from many goroutines.
type Document struct {
	Filename string
	RawText  string

	// TermFrequency is count/TotalTokens for every token in RawText.
	TermFrequency map[string]float64
	// TFIDF holds TermFrequency[t] * IDF[t]. Tokens absent from the
	// document have no entry.
	TFIDF map[string]float64
	// Magnitude is the Euclidean norm of TFIDF, set by the TF-IDF pass.
	Magnitude   float64
	TotalTokens int
}

// NewDocument returns an unweighted document ready for Build.
func NewDocument(filename, rawText string) *Document {
	return &Document{
		Filename:      filename,
		RawText:       rawText,
		TermFrequency: make(map[string]float64),
		TFIDF:         make(map[string]float64),
	}
}
