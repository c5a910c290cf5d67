package recall

import (
	"math"
	"regexp"
	"strings"
)

// stopWords is the filter Tokenize applies for the recall engine's
// in-memory BM25 (§4.2.1). Dhyana's concept tracking keeps its own list.
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "is": true, "are": true, "was": true, "were": true,
	"be": true, "been": true, "being": true, "have": true, "has": true, "had": true,
	"do": true, "does": true, "did": true, "this": true, "that": true, "these": true,
	"those": true, "it": true, "its": true, "as": true, "from": true, "into": true,
	"about": true, "than": true, "then": true, "so": true, "if": true, "not": true,
	"no": true, "can": true, "will": true, "would": true, "should": true, "could": true,
	"i": true, "you": true, "we": true, "they": true, "he": true, "she": true,
}

var tokenRe = regexp.MustCompile(`[a-z0-9]+`)

// Tokenize lowercases and splits into alphanumeric tokens, dropping
// stop-words and anything shorter than 3 characters.
func Tokenize(text string) []string {
	tokens := tokenRe.FindAllString(strings.ToLower(text), -1)
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if len(tok) < 3 || stopWords[tok] {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// bm25Doc is one document in the in-memory lexical corpus.
type bm25Doc struct {
	id     string
	tokens []string
	freq   map[string]int
}

// BM25Index is a small in-memory Okapi BM25 index over the memory-scope
// corpus (§4.2.1: k1=1.2, b=0.75).
type BM25Index struct {
	k1, b   float64
	docs    []bm25Doc
	df      map[string]int
	avgLen  float64
	totalDF int
}

// NewBM25Index constructs an empty index with the spec's fixed constants.
func NewBM25Index() *BM25Index {
	return &BM25Index{k1: 1.2, b: 0.75, df: map[string]int{}}
}

// Add indexes one document under id.
func (idx *BM25Index) Add(id, text string) {
	tokens := Tokenize(text)
	freq := make(map[string]int, len(tokens))
	seen := map[string]bool{}
	for _, t := range tokens {
		freq[t]++
		if !seen[t] {
			idx.df[t]++
			seen[t] = true
		}
	}
	idx.docs = append(idx.docs, bm25Doc{id: id, tokens: tokens, freq: freq})
	idx.recomputeAvgLen()
}

func (idx *BM25Index) recomputeAvgLen() {
	if len(idx.docs) == 0 {
		idx.avgLen = 0
		return
	}
	var total int
	for _, d := range idx.docs {
		total += len(d.tokens)
	}
	idx.avgLen = float64(total) / float64(len(idx.docs))
}

// BM25Hit is one scored match.
type BM25Hit struct {
	ID    string
	Score float64
}

// Search scores every document against the query and returns hits sorted by
// score descending.
func (idx *BM25Index) Search(query string) []BM25Hit {
	queryTokens := Tokenize(query)
	n := float64(len(idx.docs))
	if n == 0 || len(queryTokens) == 0 {
		return nil
	}

	var hits []BM25Hit
	for _, d := range idx.docs {
		score := idx.scoreDoc(d, queryTokens, n)
		if score > 0 {
			hits = append(hits, BM25Hit{ID: d.id, Score: score})
		}
	}
	sortHitsDescending(hits)
	return hits
}

func (idx *BM25Index) scoreDoc(d bm25Doc, queryTokens []string, n float64) float64 {
	var score float64
	docLen := float64(len(d.tokens))
	for _, qt := range queryTokens {
		f := float64(d.freq[qt])
		if f == 0 {
			continue
		}
		df := float64(idx.df[qt])
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))
		numerator := f * (idx.k1 + 1)
		denominator := f + idx.k1*(1-idx.b+idx.b*docLen/idx.avgLen)
		score += idf * numerator / denominator
	}
	return score
}

func sortHitsDescending(hits []BM25Hit) {
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].Score > hits[j-1].Score; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}
}
