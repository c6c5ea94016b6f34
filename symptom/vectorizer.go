package symptom

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// DefaultMaxFeatures ограничение размера словаря
const DefaultMaxFeatures = 1000

// ErrEmptyVocabulary словарь пуст после удаления стоп-слов
var ErrEmptyVocabulary = errors.New("empty vocabulary: documents contain only stop words")

// TfidfVectorizer TF-IDF векторизатор: сырые частоты, сглаженный idf
// (ln((1+n)/(1+df))+1) и L2-нормировка строки
type TfidfVectorizer struct {
	Vocabulary []string
	IDF        []float64

	index map[string]int
}

// FitTfidf строит словарь и idf по документам
func FitTfidf(docs []string, maxFeatures int) (*TfidfVectorizer, error) {
	if len(docs) == 0 {
		return nil, errors.New("no documents to fit")
	}
	if maxFeatures <= 0 {
		maxFeatures = DefaultMaxFeatures
	}

	termFreq := make(map[string]int)
	docFreq := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]bool)
		for _, tok := range Tokenize(doc) {
			termFreq[tok]++
			if !seen[tok] {
				seen[tok] = true
				docFreq[tok]++
			}
		}
	}
	if len(termFreq) == 0 {
		return nil, ErrEmptyVocabulary
	}

	terms := make([]string, 0, len(termFreq))
	for term := range termFreq {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	// Отбираем самые частые термины, при равенстве - по алфавиту
	if len(terms) > maxFeatures {
		sort.SliceStable(terms, func(i, j int) bool {
			return termFreq[terms[i]] > termFreq[terms[j]]
		})
		terms = terms[:maxFeatures]
		sort.Strings(terms)
	}

	n := float64(len(docs))
	idf := make([]float64, len(terms))
	for i, term := range terms {
		idf[i] = math.Log((1+n)/(1+float64(docFreq[term]))) + 1
	}

	return newTfidfVectorizer(terms, idf)
}

func newTfidfVectorizer(vocabulary []string, idf []float64) (*TfidfVectorizer, error) {
	if len(vocabulary) != len(idf) {
		return nil, fmt.Errorf("vocabulary size %d does not match idf size %d", len(vocabulary), len(idf))
	}
	index := make(map[string]int, len(vocabulary))
	for i, term := range vocabulary {
		if _, dup := index[term]; dup {
			return nil, fmt.Errorf("duplicate vocabulary term %q", term)
		}
		index[term] = i
	}
	return &TfidfVectorizer{Vocabulary: vocabulary, IDF: idf, index: index}, nil
}

// Size количество признаков
func (v *TfidfVectorizer) Size() int {
	return len(v.Vocabulary)
}

// Transform возвращает L2-нормированный TF-IDF вектор текста.
// Текст без известных терминов дает нулевой вектор.
func (v *TfidfVectorizer) Transform(text string) []float64 {
	vec := make([]float64, len(v.Vocabulary))
	for _, tok := range Tokenize(text) {
		if i, ok := v.index[tok]; ok {
			vec[i]++
		}
	}

	var sumSq float64
	for i := range vec {
		if vec[i] == 0 {
			continue
		}
		vec[i] *= v.IDF[i]
		sumSq += vec[i] * vec[i]
	}
	if sumSq > 0 {
		norm := math.Sqrt(sumSq)
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}
