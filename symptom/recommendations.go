package symptom

import (
	"fmt"
	"strings"
)

const defaultRecommendation = "Please consult with a healthcare professional for proper diagnosis."

// Границы уровней уверенности (строгое сравнение "больше")
const (
	highConfidence     = 0.7
	moderateConfidence = 0.4
)

// Band уровень уверенности прогноза
type Band int

const (
	BandLow Band = iota
	BandModerate
	BandHigh
)

// ConfidenceBand относит оценку к уровню
func ConfidenceBand(score float64) Band {
	switch {
	case score > highConfidence:
		return BandHigh
	case score > moderateConfidence:
		return BandModerate
	default:
		return BandLow
	}
}

// GenerateRecommendations формирует текст рекомендаций по состояниям в порядке conditions
func GenerateRecommendations(conditions []string, confidence map[string]float64) string {
	if len(conditions) == 0 {
		return defaultRecommendation
	}

	sentences := make([]string, 0, len(conditions))
	for _, condition := range conditions {
		name := DisplayName(condition)
		switch ConfidenceBand(confidence[condition]) {
		case BandHigh:
			sentences = append(sentences, fmt.Sprintf("High probability of %s. Please consult a doctor immediately.", name))
		case BandModerate:
			sentences = append(sentences, fmt.Sprintf("Moderate probability of %s. Consider consulting a doctor.", name))
		default:
			sentences = append(sentences, fmt.Sprintf("Low probability of %s. Monitor symptoms and consult if they worsen.", name))
		}
	}
	return strings.Join(sentences, " ")
}

// DisplayName человекочитаемое имя метки: heart_attack -> heart attack
func DisplayName(label string) string {
	return strings.ReplaceAll(label, "_", " ")
}
