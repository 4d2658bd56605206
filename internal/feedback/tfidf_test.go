package feedback

import (
	"errors"
	"math"
	"testing"
)

func TestFitVectorizer(t *testing.T) {
	docs := [][]string{
		{"golang", "golang", "backend", "remote"},
		{"cobol", "remote"},
	}

	v, err := fitVectorizer(docs, 0.9)
	if err != nil {
		t.Fatalf("fitVectorizer failed: %v", err)
	}

	if _, ok := v.counts.Vocabulary["remote"]; ok {
		t.Error("term present in every document should be pruned")
	}
	for _, term := range []string{"golang", "backend", "cobol"} {
		if _, ok := v.counts.Vocabulary[term]; !ok {
			t.Errorf("expected %q in vocabulary", term)
		}
	}
	if v.size() != 3 {
		t.Errorf("expected 3 terms, got %d", v.size())
	}

	first, err := v.transform(docs[0])
	if err != nil {
		t.Fatalf("transform failed: %v", err)
	}
	if got := cosine(first, first); math.Abs(got-1) > 1e-9 {
		t.Errorf("a document should be identical to itself, got %v", got)
	}

	second, err := v.transform(docs[1])
	if err != nil {
		t.Fatalf("transform failed: %v", err)
	}
	if got := cosine(first, second); got != 0 {
		t.Errorf("disjoint documents should be orthogonal, got %v", got)
	}
}

func TestFitVectorizerStopWords(t *testing.T) {
	v, err := fitVectorizer([][]string{{"the", "golang", "and"}, {}}, 0.9)
	if err != nil {
		t.Fatalf("fitVectorizer failed: %v", err)
	}
	if v.size() != 1 {
		t.Errorf("expected only golang in vocabulary, got %v", v.counts.Vocabulary)
	}
}

func TestFitVectorizerEmpty(t *testing.T) {
	tests := []struct {
		name string
		docs [][]string
	}{
		{"no documents", nil},
		{"only stop words", [][]string{{"the", "and"}, {"pour", "les"}}},
		{"every term shared", [][]string{{"remote"}, {"remote"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fitVectorizer(tt.docs, 0.9)
			if !errors.Is(err, ErrEmptyVocabulary) {
				t.Errorf("expected ErrEmptyVocabulary, got %v", err)
			}
		})
	}
}

func TestTransformUnknownTerms(t *testing.T) {
	v, err := fitVectorizer([][]string{{"golang"}, {"cobol"}}, 0.9)
	if err != nil {
		t.Fatalf("fitVectorizer failed: %v", err)
	}

	vec, err := v.transform([]string{"haskell"})
	if err != nil {
		t.Fatalf("transform failed: %v", err)
	}
	for i := 0; i < vec.Len(); i++ {
		if vec.AtVec(i) != 0 {
			t.Fatalf("unknown terms should give a zero vector, got %v", vec.AtVec(i))
		}
	}

	known, _ := v.transform([]string{"golang"})
	if got := cosine(vec, known); got != 0 {
		t.Errorf("similarity with a zero vector should be 0, got %v", got)
	}
}

func TestRareTermsWeighMore(t *testing.T) {
	docs := [][]string{
		{"golang", "kafka"},
		{"golang", "cobol"},
		{"java", "cobol"},
	}
	v, err := fitVectorizer(docs, 1)
	if err != nil {
		t.Fatalf("fitVectorizer failed: %v", err)
	}

	vec, err := v.transform([]string{"golang", "kafka"})
	if err != nil {
		t.Fatalf("transform failed: %v", err)
	}
	golang := vec.AtVec(v.counts.Vocabulary["golang"])
	kafka := vec.AtVec(v.counts.Vocabulary["kafka"])
	if kafka <= golang {
		t.Errorf("term in one document should outweigh a term in two, got kafka=%v golang=%v", kafka, golang)
	}
}
