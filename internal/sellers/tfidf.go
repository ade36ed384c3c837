package sellers

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// Vectorizer is a TF-IDF model fitted over the seller corpus. Query vectors
// are projected onto the fitted vocabulary, so terms unseen during fitting
// contribute nothing to the similarity.
type Vectorizer struct {
	vocabulary map[string]int
	idf        []float64
	dimension  int
	pattern    *regexp.Regexp
	stopwords  map[string]struct{}
}

func NewVectorizer() *Vectorizer {
	return &Vectorizer{
		vocabulary: make(map[string]int),
		pattern:    regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`),
		stopwords:  englishStopwords(),
	}
}

// Fit builds the vocabulary and smoothed IDF weights from the corpus. An
// empty corpus leaves the model with dimension zero, which makes every
// similarity zero.
func (v *Vectorizer) Fit(corpus []string) {
	df := make(map[string]int)
	for _, text := range corpus {
		seen := make(map[string]struct{})
		for _, tok := range v.tokenize(text) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}

	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	v.vocabulary = make(map[string]int, len(terms))
	v.idf = make([]float64, len(terms))
	n := float64(len(corpus))
	for i, term := range terms {
		v.vocabulary[term] = i
		v.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1.0
	}
	v.dimension = len(terms)
}

// Transform computes the L2-normalized TF-IDF vector for text.
func (v *Vectorizer) Transform(text string) []float64 {
	vec := make([]float64, v.dimension)
	tf := make(map[int]int)
	total := 0
	for _, tok := range v.tokenize(text) {
		if idx, ok := v.vocabulary[tok]; ok {
			tf[idx]++
			total++
		}
	}
	if total == 0 {
		return vec
	}
	for idx, count := range tf {
		vec[idx] = float64(count) / float64(total) * v.idf[idx]
	}
	norm := 0.0
	for _, x := range vec {
		norm += x * x
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}

func Dot(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func (v *Vectorizer) tokenize(text string) []string {
	raw := v.pattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, isStop := v.stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func englishStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to",
		"of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were",
		"be", "been", "being", "it", "this", "that", "these", "those", "from",
		"up", "down", "over", "under", "again", "further", "than", "so", "such",
		"into", "about", "between", "through", "during", "before", "after",
		"above", "below", "out", "off", "own", "same", "too", "very", "can",
		"will", "just", "don", "should", "now",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
