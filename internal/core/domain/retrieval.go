package domain

// Document is one unit of reference material, identified by its source
// filename. Embedding may be nil when the embedding backend was unavailable
// at build time; such documents are still searchable lexically.
type Document struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Species   string    `json:"species,omitempty"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// EvidenceItem is one retrieved snippet with its relevance score. The score
// is cosine similarity on the vector path and a keyword hit count on the
// lexical path; scores from different paths are not comparable.
type EvidenceItem struct {
	ID    string  `json:"id"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}
