package symptom

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Версия формата артефакта - увеличивать при изменении modelArtifact
const artifactSchemaVersion uint16 = 1

// errArtifactNotFound артефакт еще не сохранялся
var errArtifactNotFound = errors.New("model artifact not found")

// modelArtifact сохраняемое состояние обученного классификатора
type modelArtifact struct {
	Schema uint16 `msgpack:"schema"`

	Vocabulary []string  `msgpack:"vocabulary"`
	IDF        []float64 `msgpack:"idf"`

	Labels         []string    `msgpack:"labels"`
	ClassLogPrior  []float64   `msgpack:"class_log_prior"`
	FeatureLogProb [][]float64 `msgpack:"feature_log_prob"`

	TrainedAt       time.Time `msgpack:"trained_at"`
	TrainingRows    int       `msgpack:"training_rows"`
	HoldoutRows     int       `msgpack:"holdout_rows"`
	HoldoutAccuracy float64   `msgpack:"holdout_accuracy"`
}

func artifactFromState(st *trainedState) *modelArtifact {
	return &modelArtifact{
		Schema:          artifactSchemaVersion,
		Vocabulary:      st.vectorizer.Vocabulary,
		IDF:             st.vectorizer.IDF,
		Labels:          st.model.Labels,
		ClassLogPrior:   st.model.ClassLogPrior,
		FeatureLogProb:  st.model.FeatureLogProb,
		TrainedAt:       st.info.TrainedAt,
		TrainingRows:    st.info.TrainingRows,
		HoldoutRows:     st.info.HoldoutRows,
		HoldoutAccuracy: st.info.HoldoutAccuracy,
	}
}

func (a *modelArtifact) toState() (*trainedState, error) {
	if a.Schema != artifactSchemaVersion {
		return nil, fmt.Errorf("artifact schema %d, want %d", a.Schema, artifactSchemaVersion)
	}
	vectorizer, err := newTfidfVectorizer(a.Vocabulary, a.IDF)
	if err != nil {
		return nil, err
	}
	model := &NaiveBayes{
		Labels:         a.Labels,
		ClassLogPrior:  a.ClassLogPrior,
		FeatureLogProb: a.FeatureLogProb,
	}
	if err := model.validate(vectorizer.Size()); err != nil {
		return nil, err
	}
	return &trainedState{
		vectorizer: vectorizer,
		model:      model,
		info: TrainingInfo{
			TrainedAt:       a.TrainedAt,
			TrainingRows:    a.TrainingRows,
			HoldoutRows:     a.HoldoutRows,
			HoldoutAccuracy: a.HoldoutAccuracy,
			FromArtifact:    true,
		},
	}, nil
}

// loadArtifact читает артефакт с диска
func loadArtifact(path string) (*trainedState, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errArtifactNotFound
		}
		return nil, err
	}
	defer f.Close()

	var a modelArtifact
	if err := msgpack.NewDecoder(f).Decode(&a); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	return a.toState()
}

// saveArtifact записывает артефакт через временный файл и атомарную замену
func saveArtifact(path string, st *trainedState) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, "symptom-model-*.tmp")
	if err != nil {
		return err
	}
	tmpName := f.Name()
	defer os.Remove(tmpName)

	if err := msgpack.NewEncoder(f).Encode(artifactFromState(st)); err != nil {
		f.Close()
		return fmt.Errorf("encode artifact: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
