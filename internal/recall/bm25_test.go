package recall

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenizeDropsStopWordsAndShortTokens(t *testing.T) {
	tokens := Tokenize("The quick fox is in a box")
	require.Equal(t, []string{"quick", "fox", "box"}, tokens)
}

func TestBM25RanksExactMatchHigher(t *testing.T) {
	idx := NewBM25Index()
	idx.Add("doc-1", "the recall engine uses cosine similarity for vectors")
	idx.Add("doc-2", "sessions are stored as markdown files on disk")

	hits := idx.Search("cosine similarity vectors")
	require.NotEmpty(t, hits)
	require.Equal(t, "doc-1", hits[0].ID)
}

func TestBM25EmptyCorpusReturnsNil(t *testing.T) {
	idx := NewBM25Index()
	require.Nil(t, idx.Search("anything"))
}
