package usecase

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/myvet-app/triage-assistant/internal/core/domain"
)

// cosineEpsilon keeps the denominator nonzero for degenerate vectors.
const cosineEpsilon = 1e-10

// Cosine returns the cosine similarity of two vectors. Mismatched lengths
// compare over the shorter prefix; a zero vector scores near zero.
func Cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	return dot / (math.Sqrt(na)*math.Sqrt(nb) + cosineEpsilon)
}

// TopKByVector ranks documents by cosine similarity against the query
// vector. Documents without an embedding score zero. Ties keep the original
// insertion order.
func TopKByVector(docs []domain.Document, query []float32, k int, species string) []domain.EvidenceItem {
	scores := make([]float64, len(docs))
	for i, doc := range docs {
		if len(doc.Embedding) == 0 {
			continue
		}
		scores[i] = Cosine(query, doc.Embedding)
	}
	return rankEvidence(docs, scores, k, species)
}

// TopKLexical ranks documents by summed case-insensitive substring
// occurrences of the query terms. This path has no external dependency and
// never fails.
func TopKLexical(docs []domain.Document, queryText string, k int, species string) []domain.EvidenceItem {
	terms := tokenizeTerms(queryText)
	scores := make([]float64, len(docs))
	for i, doc := range docs {
		scores[i] = lexicalScore(doc.Text, terms)
	}
	return rankEvidence(docs, scores, k, species)
}

func tokenizeTerms(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func lexicalScore(docText string, terms []string) float64 {
	if len(terms) == 0 {
		return 0
	}
	lower := strings.ToLower(docText)
	var total int
	for _, term := range terms {
		total += strings.Count(lower, term)
	}
	return float64(total)
}

// rankEvidence sorts descending by score with insertion order as tie-break,
// then applies the species preference in three tiers: documents tagged with
// the query species first, untagged documents next, documents tagged with a
// different species last. Score order is preserved within each tier.
func rankEvidence(docs []domain.Document, scores []float64, k int, species string) []domain.EvidenceItem {
	if k <= 0 || len(docs) == 0 {
		return []domain.EvidenceItem{}
	}

	order := make([]int, len(docs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	if species != "" {
		same := make([]int, 0, len(order))
		untagged := make([]int, 0, len(order))
		mismatched := make([]int, 0, len(order))
		for _, idx := range order {
			switch docs[idx].Species {
			case species:
				same = append(same, idx)
			case "":
				untagged = append(untagged, idx)
			default:
				mismatched = append(mismatched, idx)
			}
		}
		order = append(append(same, untagged...), mismatched...)
	}

	if k > len(order) {
		k = len(order)
	}
	items := make([]domain.EvidenceItem, 0, k)
	for _, idx := range order[:k] {
		items = append(items, domain.EvidenceItem{
			ID:    docs[idx].ID,
			Text:  docs[idx].Text,
			Score: scores[idx],
		})
	}
	return items
}
