package symptom

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"testing"
)

func quietConfig(cfg Config) Config {
	cfg.Logf = func(string, ...interface{}) {}
	return cfg
}

func newFallbackChecker(t *testing.T) *Checker {
	t.Helper()
	c := New(quietConfig(Config{DisableTraining: true}))
	if c.Mode() != ModeFallback {
		t.Fatalf("expected fallback mode, got %q", c.Mode())
	}
	return c
}

func newTrainedChecker(t *testing.T) *Checker {
	t.Helper()
	c := New(quietConfig(Config{}))
	if c.Mode() != ModeTrained {
		t.Fatalf("expected trained mode, got %q (degradations: %v)", c.Mode(), c.Degradations())
	}
	return c
}

// checkInvariants проверяет совпадение ключей и порядок по убыванию уверенности
func checkInvariants(t *testing.T, p Prediction) {
	t.Helper()
	if len(p.Conditions) > TopN {
		t.Fatalf("expected at most %d conditions, got %d", TopN, len(p.Conditions))
	}
	if len(p.Conditions) != len(p.Confidence) {
		t.Fatalf("conditions %v and confidence %v differ in size", p.Conditions, p.Confidence)
	}
	for i, label := range p.Conditions {
		score, ok := p.Confidence[label]
		if !ok {
			t.Fatalf("condition %q missing from confidence map", label)
		}
		if score < 0 || score > 1 {
			t.Fatalf("confidence for %q out of range: %v", label, score)
		}
		if i > 0 && p.Confidence[p.Conditions[i-1]] < score {
			t.Fatalf("conditions not sorted by confidence: %v %v", p.Conditions, p.Confidence)
		}
	}
}

func TestFallbackScoring(t *testing.T) {
	c := newFallbackChecker(t)

	p := c.Predict("Fever, headache and FATIGUE since yesterday")
	checkInvariants(t, p)

	if got := p.Confidence["flu"]; got != 0.75 {
		t.Fatalf("expected flu confidence 0.75, got %v", got)
	}
	want := []string{"flu", "strep_throat", "lupus"}
	if !reflect.DeepEqual(p.Conditions, want) {
		t.Fatalf("expected %v, got %v", want, p.Conditions)
	}
	wantText := "High probability of flu. Please consult a doctor immediately. " +
		"Low probability of strep throat. Monitor symptoms and consult if they worsen. " +
		"Low probability of lupus. Monitor symptoms and consult if they worsen."
	if p.Recommendations != wantText {
		t.Fatalf("unexpected recommendations:\n%s", p.Recommendations)
	}
}

func TestFallbackNoMatches(t *testing.T) {
	c := newFallbackChecker(t)

	p := c.Predict("everything is fine")
	if len(p.Conditions) != 0 || len(p.Confidence) != 0 {
		t.Fatalf("expected empty result, got %v %v", p.Conditions, p.Confidence)
	}
	if p.Conditions == nil || p.Confidence == nil {
		t.Fatal("expected non-nil empty collections")
	}
	if p.Recommendations != "Please consult with a healthcare professional for proper diagnosis." {
		t.Fatalf("unexpected recommendations: %q", p.Recommendations)
	}
}

func TestFallbackHeartAttack(t *testing.T) {
	c := newFallbackChecker(t)

	p := c.Predict("chest pain, shortness of breath and sweating")
	checkInvariants(t, p)
	if len(p.Conditions) == 0 || p.Conditions[0] != "heart_attack" {
		t.Fatalf("expected heart_attack first, got %v", p.Conditions)
	}
	if !strings.HasPrefix(p.Recommendations, "High probability of heart attack.") {
		t.Fatalf("unexpected recommendations: %q", p.Recommendations)
	}
}

func TestKeywordTableShape(t *testing.T) {
	table := KeywordTable()
	if len(table) != 19 {
		t.Fatalf("expected 19 entries, got %d", len(table))
	}
	if table[0].Condition != "flu" || table[18].Condition != "diabetes" {
		t.Fatalf("unexpected table order: %s .. %s", table[0].Condition, table[18].Condition)
	}
	if len(table[18].Keywords) != 5 {
		t.Fatalf("expected 5 diabetes keywords, got %v", table[18].Keywords)
	}

	// Копия не должна разделять память с таблицей
	table[0].Keywords[0] = "changed"
	if KeywordTable()[0].Keywords[0] != "fever" {
		t.Fatal("KeywordTable returned shared slice")
	}
}

func TestTrainingCorpusShape(t *testing.T) {
	corpus := TrainingCorpus()
	if len(corpus) != 20 {
		t.Fatalf("expected 20 rows, got %d", len(corpus))
	}
	labels := make(map[string]int)
	for _, ex := range corpus {
		labels[ex.Condition]++
	}
	if len(labels) != 19 {
		t.Fatalf("expected 19 labels, got %d", len(labels))
	}
	if labels["diabetes"] != 2 {
		t.Fatalf("expected diabetes twice, got %d", labels["diabetes"])
	}
}

func TestTrainedPrediction(t *testing.T) {
	c := newTrainedChecker(t)

	inputs := []string{
		"fever headache fatigue",
		"cough chest pain shortness of breath",
		"I feel anxious and my mood changes a lot",
		"completely unrelated words",
		"",
	}
	labels := make(map[string]bool)
	for _, l := range c.Status().Labels {
		labels[l] = true
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			p := c.Predict(input)
			checkInvariants(t, p)
			if len(p.Conditions) != TopN {
				t.Fatalf("expected %d conditions, got %v", TopN, p.Conditions)
			}
			var sum float64
			for _, label := range p.Conditions {
				if !labels[label] {
					t.Fatalf("unknown label %q", label)
				}
				sum += p.Confidence[label]
			}
			if sum > 1+1e-9 {
				t.Fatalf("top probabilities sum above 1: %v", sum)
			}
		})
	}
}

func TestTrainedTiesKeepLabelOrder(t *testing.T) {
	c := newTrainedChecker(t)
	index := make(map[string]int)
	for i, l := range c.Status().Labels {
		index[l] = i
	}

	// Без известных слов остаются только априорные вероятности, и метки
	// с одинаковой частотой получают равные оценки
	for _, input := range []string{"", "the and of", "completely unrelated words"} {
		p := c.Predict(input)
		checkInvariants(t, p)
		ties := 0
		for i := 1; i < len(p.Conditions); i++ {
			prev, cur := p.Conditions[i-1], p.Conditions[i]
			if p.Confidence[prev] != p.Confidence[cur] {
				continue
			}
			ties++
			if index[prev] > index[cur] {
				t.Errorf("%q: tie %s/%s out of label order", input, prev, cur)
			}
		}
		if ties == 0 {
			t.Errorf("%q: expected tied conditions, got %v", input, p.Confidence)
		}
	}
}

func TestPredictIdempotent(t *testing.T) {
	for name, c := range map[string]*Checker{
		"trained":  newTrainedChecker(t),
		"fallback": newFallbackChecker(t),
	} {
		t.Run(name, func(t *testing.T) {
			first := c.Predict("nausea vomiting stomach pain")
			second := c.Predict("nausea vomiting stomach pain")
			if !reflect.DeepEqual(first, second) {
				t.Fatalf("predictions differ: %+v vs %+v", first, second)
			}
		})
	}
}

func TestTrainingIsDeterministic(t *testing.T) {
	a := newTrainedChecker(t)
	b := newTrainedChecker(t)
	if !reflect.DeepEqual(a.Status().Labels, b.Status().Labels) {
		t.Fatalf("label order differs: %v vs %v", a.Status().Labels, b.Status().Labels)
	}
	pa := a.Predict("joint pain swelling")
	pb := b.Predict("joint pain swelling")
	if !reflect.DeepEqual(pa, pb) {
		t.Fatalf("predictions differ: %+v vs %+v", pa, pb)
	}
}

func TestPredictFailureReturnsSafeDefault(t *testing.T) {
	vectorizer, err := newTfidfVectorizer([]string{"cough", "fever"}, []float64{1, 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	broken := &Checker{
		state: &trainedState{
			vectorizer: vectorizer,
			model: &NaiveBayes{
				Labels:         []string{"flu"},
				ClassLogPrior:  []float64{0},
				FeatureLogProb: [][]float64{{-1}}, // размерность не совпадает со словарем
			},
		},
		logf: func(string, ...interface{}) {},
	}

	cases := map[string]*Checker{
		"dimension_mismatch": broken,
		"no_state":           {logf: func(string, ...interface{}) {}},
		"nil_checker":        nil,
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			got := c.Predict("cough")
			if !reflect.DeepEqual(got, SafeDefault()) {
				t.Fatalf("expected safe default, got %+v", got)
			}
		})
	}

	_, err = broken.predict("cough")
	var predErr *PredictionError
	if !errors.As(err, &predErr) {
		t.Fatalf("expected PredictionError, got %v", err)
	}
}

func TestArtifactRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := quietConfig(Config{
		ModelPath: filepath.Join(dir, "model.mp"),
		DataPath:  filepath.Join(dir, "data.csv"),
	})

	first := New(cfg)
	if first.Mode() != ModeTrained {
		t.Fatalf("expected trained mode, got %q", first.Mode())
	}
	if len(first.Degradations()) != 0 {
		t.Fatalf("unexpected degradations: %v", first.Degradations())
	}
	if _, err := os.Stat(cfg.DataPath); err != nil {
		t.Fatalf("dataset was not synthesized: %v", err)
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		t.Fatalf("artifact was not written: %v", err)
	}

	second := New(cfg)
	status := second.Status()
	if status.Training == nil || !status.Training.FromArtifact {
		t.Fatalf("expected model loaded from artifact, got %+v", status)
	}
	input := "sore throat fever swollen glands"
	if !reflect.DeepEqual(first.Predict(input), second.Predict(input)) {
		t.Fatal("loaded model predicts differently from trained model")
	}
}

func TestCorruptArtifactTriggersRetrain(t *testing.T) {
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "model.mp")
	if err := os.WriteFile(modelPath, []byte("not a model"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := New(quietConfig(Config{ModelPath: modelPath}))
	if c.Mode() != ModeTrained {
		t.Fatalf("expected trained mode, got %q", c.Mode())
	}
	degradations := c.Degradations()
	if len(degradations) != 1 {
		t.Fatalf("expected one degradation, got %v", degradations)
	}
	var artErr *ArtifactError
	if !errors.As(degradations[0], &artErr) || artErr.Op != "load" {
		t.Fatalf("expected artifact load error, got %v", degradations[0])
	}

	// Артефакт перезаписан корректным
	again := New(quietConfig(Config{ModelPath: modelPath}))
	if len(again.Degradations()) != 0 {
		t.Fatalf("expected clean load, got %v", again.Degradations())
	}
}

func TestSchemaMismatchIsIgnored(t *testing.T) {
	st, err := train(quietConfig(Config{}))
	if err != nil {
		t.Fatalf("train failed: %v", err)
	}
	a := artifactFromState(st)
	a.Schema = artifactSchemaVersion + 1
	if _, err := a.toState(); err == nil {
		t.Fatal("expected schema mismatch error")
	}
}

func TestTrainingFailureFallsBack(t *testing.T) {
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "data.csv")
	if err := os.WriteFile(dataPath, []byte("text,label\nfever,flu\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := New(quietConfig(Config{DataPath: dataPath}))
	if c.Mode() != ModeFallback {
		t.Fatalf("expected fallback mode, got %q", c.Mode())
	}
	var trainErr *TrainingError
	if len(c.Degradations()) != 1 || !errors.As(c.Degradations()[0], &trainErr) {
		t.Fatalf("expected training error, got %v", c.Degradations())
	}
	if trainErr.Stage != "dataset" {
		t.Fatalf("expected dataset stage, got %q", trainErr.Stage)
	}

	p := c.Predict("fever headache fatigue")
	if p.Confidence["flu"] != 0.75 {
		t.Fatalf("fallback path not used: %+v", p)
	}
}

func TestRequireDatasetDoesNotSynthesizeCorpus(t *testing.T) {
	dataPath := filepath.Join(t.TempDir(), "missing.csv")

	c := New(quietConfig(Config{DataPath: dataPath, RequireDataset: true}))
	if c.Mode() != ModeFallback {
		t.Fatalf("expected fallback mode, got %q", c.Mode())
	}
	if len(c.Degradations()) != 1 || !errors.Is(c.Degradations()[0], os.ErrNotExist) {
		t.Fatalf("expected missing dataset error, got %v", c.Degradations())
	}
	if _, err := os.Stat(dataPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("dataset must not be created, stat err = %v", err)
	}

	if c := New(quietConfig(Config{DataPath: dataPath})); c.Mode() != ModeTrained {
		t.Fatalf("expected corpus training without RequireDataset, got %q", c.Mode())
	}
	if _, err := os.Stat(dataPath); err != nil {
		t.Fatalf("corpus should be written by default: %v", err)
	}
}

func TestStopWordsOnlyDatasetFallsBack(t *testing.T) {
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "data.csv")
	if err := os.WriteFile(dataPath, []byte("symptoms,condition\nthe and of,flu\nit is,cold\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := New(quietConfig(Config{DataPath: dataPath, TestSize: 0.01}))
	var trainErr *TrainingError
	if len(c.Degradations()) != 1 || !errors.As(c.Degradations()[0], &trainErr) {
		t.Fatalf("expected training error, got %v", c.Degradations())
	}
	if !errors.Is(trainErr, ErrEmptyVocabulary) {
		t.Fatalf("expected empty vocabulary, got %v", trainErr)
	}
}

func TestStatusLabels(t *testing.T) {
	fallback := newFallbackChecker(t).Status()
	if len(fallback.Labels) != 19 || fallback.Training != nil {
		t.Fatalf("unexpected fallback status: %+v", fallback)
	}

	trained := newTrainedChecker(t).Status()
	if trained.Training == nil || trained.Training.TrainingRows != 16 || trained.Training.HoldoutRows != 4 {
		t.Fatalf("unexpected training info: %+v", trained.Training)
	}
	if trained.Vocabulary == 0 {
		t.Fatal("expected non-empty vocabulary")
	}
	labels := append([]string(nil), trained.Labels...)
	sort.Strings(labels)
	for i := 1; i < len(labels); i++ {
		if labels[i] == labels[i-1] {
			t.Fatalf("duplicate label %q", labels[i])
		}
	}
}
