package symptom

import (
	"errors"
	"fmt"
	"math"
)

// DefaultAlpha сглаживание Лапласа
const DefaultAlpha = 1.0

// NaiveBayes мультиномиальный наивный байесовский классификатор
type NaiveBayes struct {
	Labels         []string
	ClassLogPrior  []float64
	FeatureLogProb [][]float64
}

// FitNaiveBayes обучает модель по векторам признаков.
// Порядок меток - порядок первого появления в labels.
func FitNaiveBayes(vectors [][]float64, labels []string, alpha float64) (*NaiveBayes, error) {
	if len(vectors) == 0 {
		return nil, errors.New("no training vectors")
	}
	if len(vectors) != len(labels) {
		return nil, fmt.Errorf("got %d vectors for %d labels", len(vectors), len(labels))
	}
	if alpha <= 0 {
		alpha = DefaultAlpha
	}
	nFeatures := len(vectors[0])
	if nFeatures == 0 {
		return nil, ErrEmptyVocabulary
	}

	classIndex := make(map[string]int)
	var classes []string
	for _, label := range labels {
		if _, ok := classIndex[label]; !ok {
			classIndex[label] = len(classes)
			classes = append(classes, label)
		}
	}

	classCount := make([]float64, len(classes))
	featureCount := make([][]float64, len(classes))
	for c := range featureCount {
		featureCount[c] = make([]float64, nFeatures)
	}
	for i, vec := range vectors {
		if len(vec) != nFeatures {
			return nil, fmt.Errorf("vector %d has %d features, want %d", i, len(vec), nFeatures)
		}
		c := classIndex[labels[i]]
		classCount[c]++
		for j, x := range vec {
			if x < 0 {
				return nil, fmt.Errorf("negative feature value in vector %d", i)
			}
			featureCount[c][j] += x
		}
	}

	total := float64(len(vectors))
	model := &NaiveBayes{
		Labels:         classes,
		ClassLogPrior:  make([]float64, len(classes)),
		FeatureLogProb: make([][]float64, len(classes)),
	}
	for c := range classes {
		model.ClassLogPrior[c] = math.Log(classCount[c]) - math.Log(total)

		var sum float64
		for _, fc := range featureCount[c] {
			sum += fc
		}
		denom := math.Log(sum + alpha*float64(nFeatures))
		model.FeatureLogProb[c] = make([]float64, nFeatures)
		for j, fc := range featureCount[c] {
			model.FeatureLogProb[c][j] = math.Log(fc+alpha) - denom
		}
	}
	return model, nil
}

// validate проверяет согласованность размерностей модели
func (m *NaiveBayes) validate(nFeatures int) error {
	if len(m.Labels) == 0 {
		return errors.New("model has no labels")
	}
	if len(m.ClassLogPrior) != len(m.Labels) || len(m.FeatureLogProb) != len(m.Labels) {
		return fmt.Errorf("model has %d labels but %d priors and %d feature rows",
			len(m.Labels), len(m.ClassLogPrior), len(m.FeatureLogProb))
	}
	for c, row := range m.FeatureLogProb {
		if len(row) != nFeatures {
			return fmt.Errorf("feature row %d has %d entries, want %d", c, len(row), nFeatures)
		}
	}
	return nil
}

// PredictProba возвращает распределение вероятностей по меткам в порядке Labels
func (m *NaiveBayes) PredictProba(vec []float64) ([]float64, error) {
	if err := m.validate(len(vec)); err != nil {
		return nil, err
	}

	jll := make([]float64, len(m.Labels))
	maxLL := math.Inf(-1)
	for c := range m.Labels {
		ll := m.ClassLogPrior[c]
		for j, x := range vec {
			if x != 0 {
				ll += x * m.FeatureLogProb[c][j]
			}
		}
		jll[c] = ll
		if ll > maxLL {
			maxLL = ll
		}
	}
	if math.IsInf(maxLL, 0) || math.IsNaN(maxLL) {
		return nil, errors.New("degenerate joint log likelihood")
	}

	var sum float64
	probs := make([]float64, len(jll))
	for c, ll := range jll {
		probs[c] = math.Exp(ll - maxLL)
		sum += probs[c]
	}
	for c := range probs {
		probs[c] /= sum
	}
	return probs, nil
}

// Argmax индекс наиболее вероятной метки (первый при равенстве)
func Argmax(probs []float64) int {
	best := -1
	for i, p := range probs {
		if best < 0 || p > probs[best] {
			best = i
		}
	}
	return best
}
