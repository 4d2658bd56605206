package feedback

import (
	"errors"
	"sort"
	"strings"

	"github.com/james-bowman/nlp"
	"github.com/james-bowman/nlp/measures/pairwise"
	"gonum.org/v1/gonum/mat"
)

// ErrEmptyVocabulary is returned when pruning leaves no terms
var ErrEmptyVocabulary = errors.New("empty vocabulary after pruning")

// termTokeniser splits documents that are already normalized into tokens and
// drops stop words. It satisfies nlp.Tokeniser.
type termTokeniser struct {
	stop map[string]bool
}

func (t termTokeniser) ForEachIn(input string, process func(token string)) {
	for _, term := range strings.Fields(input) {
		if !t.stop[term] {
			process(term)
		}
	}
}

func (t termTokeniser) Tokenise(input string) []string {
	var terms []string
	t.ForEachIn(input, func(term string) { terms = append(terms, term) })
	return terms
}

// vectorizer is a unigram TF-IDF model over a pruned vocabulary
type vectorizer struct {
	counts *nlp.CountVectoriser
	tfidf  *nlp.TfidfTransformer
}

// fitVectorizer learns the vocabulary and idf weights of docs. Terms present in
// more than maxDF of the documents and stop words are dropped.
func fitVectorizer(docs [][]string, maxDF float64) (*vectorizer, error) {
	n := len(docs)
	if n == 0 {
		return nil, ErrEmptyVocabulary
	}

	texts := make([]string, n)
	for i, doc := range docs {
		texts[i] = strings.Join(doc, " ")
	}

	counts := nlp.NewCountVectoriser()
	counts.Tokeniser = termTokeniser{stop: stopWords}
	counts.Fit(texts...)
	if len(counts.Vocabulary) == 0 {
		return nil, ErrEmptyVocabulary
	}
	matrix, err := counts.Transform(texts...)
	if err != nil {
		return nil, err
	}

	// max-df pruning happens on the fitted vocabulary, before idf is learned
	maxCount := maxDF * float64(n)
	terms := make([]string, 0, len(counts.Vocabulary))
	for term, row := range counts.Vocabulary {
		if float64(docFreq(matrix, row)) <= maxCount {
			terms = append(terms, term)
		}
	}
	if len(terms) == 0 {
		return nil, ErrEmptyVocabulary
	}
	sort.Strings(terms)

	counts.Vocabulary = make(map[string]int, len(terms))
	for i, term := range terms {
		counts.Vocabulary[term] = i
	}
	matrix, err = counts.Transform(texts...)
	if err != nil {
		return nil, err
	}

	tfidf := nlp.NewTfidfTransformer()
	tfidf.Fit(matrix)
	return &vectorizer{counts: counts, tfidf: tfidf}, nil
}

// docFreq counts the documents (columns) in which a term row is non-zero
func docFreq(m mat.Matrix, row int) int {
	_, cols := m.Dims()
	df := 0
	for j := 0; j < cols; j++ {
		if m.At(row, j) != 0 {
			df++
		}
	}
	return df
}

func (v *vectorizer) size() int { return len(v.counts.Vocabulary) }

// transform returns the tf-idf vector of tokens. Unknown terms are ignored.
func (v *vectorizer) transform(tokens []string) (*mat.VecDense, error) {
	counts, err := v.counts.Transform(strings.Join(tokens, " "))
	if err != nil {
		return nil, err
	}
	weighted, err := v.tfidf.Transform(counts)
	if err != nil {
		return nil, err
	}

	rows, _ := weighted.Dims()
	vec := mat.NewVecDense(rows, nil)
	for i := 0; i < rows; i++ {
		vec.SetVec(i, weighted.At(i, 0))
	}
	return vec, nil
}

// cosine is the cosine similarity of a and b, 0 when either is all zeros
func cosine(a, b mat.Vector) float64 {
	if mat.Norm(a, 2) == 0 || mat.Norm(b, 2) == 0 {
		return 0
	}
	return pairwise.CosineSimilarity(a, b)
}

var stopWords = func() map[string]bool {
	words := []string{
		// english
		"a", "about", "above", "after", "again", "against", "all", "also", "am", "an", "and",
		"any", "are", "as", "at", "be", "because", "been", "before", "being", "below",
		"between", "both", "but", "by", "can", "could", "did", "do", "does", "doing", "down",
		"during", "each", "etc", "few", "for", "from", "further", "had", "has", "have",
		"having", "he", "her", "here", "hers", "him", "his", "how", "i", "if", "in", "into",
		"is", "it", "its", "itself", "just", "may", "me", "more", "most", "must", "my", "no",
		"nor", "not", "now", "of", "off", "on", "once", "only", "or", "other", "our", "ours",
		"out", "over", "own", "same", "she", "should", "so", "some", "such", "than", "that",
		"the", "their", "them", "then", "there", "these", "they", "this", "those", "through",
		"to", "too", "under", "until", "up", "upon", "us", "very", "via", "was", "we", "well",
		"were", "what", "when", "where", "which", "while", "who", "whom", "why", "will",
		"with", "within", "would", "you", "your", "yours",
		// french
		"au", "aux", "avec", "ce", "ces", "dans", "de", "des", "du", "elle", "en", "est",
		"et", "il", "ils", "la", "le", "les", "leur", "mais", "nos", "notre", "nous", "ou",
		"par", "pas", "pour", "qui", "que", "sa", "se", "ses", "son", "sur", "un", "une",
		"vos", "votre", "vous",
	}
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}()
