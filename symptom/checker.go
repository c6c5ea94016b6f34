package symptom

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"
)

// Режимы работы классификатора
const (
	ModeTrained  = "trained"
	ModeFallback = "fallback"
)

const (
	// TopN максимальное число возвращаемых состояний
	TopN = 3

	// GeneralConsultation метка безопасного ответа
	GeneralConsultation = "general_consultation"

	// DefaultTestSize доля отложенной выборки
	DefaultTestSize = 0.2
	// DefaultSeed seed перемешивания набора
	DefaultSeed int64 = 42
)

// Config настройки построения классификатора
type Config struct {
	// ModelPath путь к артефакту модели; пустой - не загружать и не сохранять
	ModelPath string
	// DataPath путь к CSV набору; пустой - встроенный корпус в памяти
	DataPath string

	MaxFeatures int
	TestSize    float64
	Seed        int64
	Alpha       float64

	// SkipArtifact игнорировать сохраненный артефакт и переобучить модель
	SkipArtifact bool
	// DisableTraining сразу использовать таблицу ключевых фраз
	DisableTraining bool
	// RequireDataset не создавать набор из встроенного корпуса, если файла нет
	RequireDataset bool

	// Logf функция логирования, по умолчанию log.Printf
	Logf func(format string, args ...interface{})
}

// ArtifactError ошибка загрузки или сохранения артефакта модели
type ArtifactError struct {
	Op   string // load | save
	Path string
	Err  error
}

func (e *ArtifactError) Error() string {
	return fmt.Sprintf("symptom model artifact %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ArtifactError) Unwrap() error { return e.Err }

// TrainingError ошибка обучения модели
type TrainingError struct {
	Stage string // dataset | vectorize | fit
	Err   error
}

func (e *TrainingError) Error() string {
	return fmt.Sprintf("symptom model training failed at %s: %v", e.Stage, e.Err)
}

func (e *TrainingError) Unwrap() error { return e.Err }

// PredictionError ошибка при вычислении прогноза
type PredictionError struct {
	Err error
}

func (e *PredictionError) Error() string {
	return fmt.Sprintf("symptom prediction failed: %v", e.Err)
}

func (e *PredictionError) Unwrap() error { return e.Err }

var errUnknownState = errors.New("classifier state is not initialized")

// Prediction результат анализа симптомов
type Prediction struct {
	Conditions      []string           `json:"conditions"`
	Confidence      map[string]float64 `json:"confidence"`
	Recommendations string             `json:"recommendations"`
}

// SafeDefault ответ при внутренней ошибке прогноза
func SafeDefault() Prediction {
	return Prediction{
		Conditions:      []string{GeneralConsultation},
		Confidence:      map[string]float64{GeneralConsultation: 0.5},
		Recommendations: defaultRecommendation,
	}
}

// TrainingInfo сведения об обучении модели
type TrainingInfo struct {
	TrainedAt       time.Time `json:"trained_at"`
	TrainingRows    int       `json:"training_rows"`
	HoldoutRows     int       `json:"holdout_rows"`
	HoldoutAccuracy float64   `json:"holdout_accuracy"`
	FromArtifact    bool      `json:"from_artifact"`
}

// Status описание активного состояния классификатора
type Status struct {
	Mode         string        `json:"mode"`
	Labels       []string      `json:"labels"`
	Vocabulary   int           `json:"vocabulary_size,omitempty"`
	Training     *TrainingInfo `json:"training,omitempty"`
	Degradations []string      `json:"degradations,omitempty"`
	BuiltAt      time.Time     `json:"built_at"`
}

// rankedCondition метка с оценкой
type rankedCondition struct {
	label string
	score float64
}

// classifierState активное состояние: *trainedState или *fallbackState
type classifierState interface {
	mode() string
	labels() []string
}

// trainedState обученные векторизатор и модель
type trainedState struct {
	vectorizer *TfidfVectorizer
	model      *NaiveBayes
	info       TrainingInfo
}

func (s *trainedState) mode() string     { return ModeTrained }
func (s *trainedState) labels() []string { return s.model.Labels }

func (s *trainedState) rank(symptoms string) ([]rankedCondition, error) {
	vec := s.vectorizer.Transform(symptoms)
	probs, err := s.model.PredictProba(vec)
	if err != nil {
		return nil, err
	}
	ranked := make([]rankedCondition, len(probs))
	for i, p := range probs {
		ranked[i] = rankedCondition{label: s.model.Labels[i], score: p}
	}
	return ranked, nil
}

// fallbackState таблица ключевых фраз
type fallbackState struct {
	table []KeywordEntry
}

func (s *fallbackState) mode() string { return ModeFallback }

func (s *fallbackState) labels() []string {
	out := make([]string, len(s.table))
	for i, entry := range s.table {
		out[i] = entry.Condition
	}
	return out
}

// rank оценка = доля ключевых фраз состояния, найденных в тексте как подстроки
func (s *fallbackState) rank(symptoms string) []rankedCondition {
	lowered := strings.ToLower(symptoms)
	var ranked []rankedCondition
	for _, entry := range s.table {
		if len(entry.Keywords) == 0 {
			continue
		}
		matched := 0
		for _, kw := range entry.Keywords {
			if strings.Contains(lowered, kw) {
				matched++
			}
		}
		if matched > 0 {
			ranked = append(ranked, rankedCondition{
				label: entry.Condition,
				score: float64(matched) / float64(len(entry.Keywords)),
			})
		}
	}
	return ranked
}

// Checker классификатор симптомов. После создания состояние не меняется,
// поэтому один экземпляр безопасно разделять между горутинами.
type Checker struct {
	state        classifierState
	degradations []error
	builtAt      time.Time
	logf         func(format string, args ...interface{})
}

// New строит классификатор: артефакт -> обучение -> таблица ключевых фраз.
// Ошибки не фатальны: каждая деградация логируется и доступна через Degradations.
func New(cfg Config) *Checker {
	cfg = cfg.withDefaults()
	c := &Checker{logf: cfg.Logf}

	if cfg.DisableTraining {
		c.state = newFallbackState()
		c.builtAt = time.Now()
		return c
	}

	if cfg.ModelPath != "" && !cfg.SkipArtifact {
		st, err := loadArtifact(cfg.ModelPath)
		if err == nil {
			c.logf("[INFO] symptom model loaded from %s (%d labels)", cfg.ModelPath, len(st.model.Labels))
			c.state = st
			c.builtAt = time.Now()
			return c
		}
		if !errors.Is(err, errArtifactNotFound) {
			c.degrade(&ArtifactError{Op: "load", Path: cfg.ModelPath, Err: err})
		}
	}

	st, err := train(cfg)
	if err != nil {
		c.degrade(err)
		c.state = newFallbackState()
		c.builtAt = time.Now()
		return c
	}
	c.logf("[INFO] symptom model trained on %d rows, holdout accuracy %.2f over %d rows",
		st.info.TrainingRows, st.info.HoldoutAccuracy, st.info.HoldoutRows)

	if cfg.ModelPath != "" {
		if err := saveArtifact(cfg.ModelPath, st); err != nil {
			c.degrade(&ArtifactError{Op: "save", Path: cfg.ModelPath, Err: err})
		}
	}
	c.state = st
	c.builtAt = time.Now()
	return c
}

func (cfg Config) withDefaults() Config {
	if cfg.MaxFeatures <= 0 {
		cfg.MaxFeatures = DefaultMaxFeatures
	}
	if cfg.TestSize <= 0 || cfg.TestSize >= 1 {
		cfg.TestSize = DefaultTestSize
	}
	if cfg.Seed == 0 {
		cfg.Seed = DefaultSeed
	}
	if cfg.Alpha <= 0 {
		cfg.Alpha = DefaultAlpha
	}
	if cfg.Logf == nil {
		cfg.Logf = log.Printf
	}
	return cfg
}

func newFallbackState() *fallbackState {
	return &fallbackState{table: KeywordTable()}
}

func (c *Checker) degrade(err error) {
	c.degradations = append(c.degradations, err)
	c.logf("[WARNING] %v", err)
}

// train обучает TF-IDF + наивный Байес на наборе из cfg.DataPath
func train(cfg Config) (*trainedState, error) {
	cfg = cfg.withDefaults()

	var examples []TrainingExample
	var err error
	if cfg.RequireDataset {
		examples, err = ReadDatasetFile(cfg.DataPath)
	} else {
		examples, err = LoadOrCreateDataset(cfg.DataPath)
	}
	if err != nil {
		return nil, &TrainingError{Stage: "dataset", Err: err}
	}
	trainSet, test := SplitDataset(examples, cfg.TestSize, cfg.Seed)

	docs := make([]string, len(trainSet))
	labels := make([]string, len(trainSet))
	for i, ex := range trainSet {
		docs[i] = ex.Symptoms
		labels[i] = ex.Condition
	}

	vectorizer, err := FitTfidf(docs, cfg.MaxFeatures)
	if err != nil {
		return nil, &TrainingError{Stage: "vectorize", Err: err}
	}
	vectors := make([][]float64, len(docs))
	for i, doc := range docs {
		vectors[i] = vectorizer.Transform(doc)
	}
	model, err := FitNaiveBayes(vectors, labels, cfg.Alpha)
	if err != nil {
		return nil, &TrainingError{Stage: "fit", Err: err}
	}

	st := &trainedState{
		vectorizer: vectorizer,
		model:      model,
		info: TrainingInfo{
			TrainedAt:    time.Now().UTC(),
			TrainingRows: len(trainSet),
			HoldoutRows:  len(test),
		},
	}
	if len(test) > 0 {
		correct := 0
		for _, ex := range test {
			probs, err := model.PredictProba(vectorizer.Transform(ex.Symptoms))
			if err != nil {
				return nil, &TrainingError{Stage: "fit", Err: err}
			}
			if model.Labels[Argmax(probs)] == ex.Condition {
				correct++
			}
		}
		st.info.HoldoutAccuracy = float64(correct) / float64(len(test))
	}
	return st, nil
}

// Mode активный режим классификатора
func (c *Checker) Mode() string {
	if c == nil || c.state == nil {
		return ""
	}
	return c.state.mode()
}

// Degradations ошибки, из-за которых классификатор перешел на более простой режим
func (c *Checker) Degradations() []error {
	if c == nil {
		return nil
	}
	return append([]error(nil), c.degradations...)
}

// Status сводка состояния для API
func (c *Checker) Status() Status {
	if c == nil {
		return Status{}
	}
	st := Status{Mode: c.Mode(), BuiltAt: c.builtAt}
	if c.state != nil {
		st.Labels = append([]string(nil), c.state.labels()...)
	}
	if ts, ok := c.state.(*trainedState); ok {
		info := ts.info
		st.Training = &info
		st.Vocabulary = ts.vectorizer.Size()
	}
	for _, err := range c.degradations {
		st.Degradations = append(st.Degradations, err.Error())
	}
	return st
}

// Predict анализирует симптомы. Никогда не возвращает ошибку:
// при внутреннем сбое отдается SafeDefault.
func (c *Checker) Predict(symptoms string) Prediction {
	p, err := c.predict(symptoms)
	if err != nil {
		if c != nil && c.logf != nil {
			c.logf("[ERROR] %v", err)
		}
		return SafeDefault()
	}
	return p
}

func (c *Checker) predict(symptoms string) (p Prediction, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PredictionError{Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if c == nil {
		return Prediction{}, &PredictionError{Err: errUnknownState}
	}

	var ranked []rankedCondition
	switch st := c.state.(type) {
	case *trainedState:
		ranked, err = st.rank(symptoms)
		if err != nil {
			return Prediction{}, &PredictionError{Err: err}
		}
	case *fallbackState:
		ranked = st.rank(symptoms)
	default:
		return Prediction{}, &PredictionError{Err: errUnknownState}
	}

	top := topConditions(ranked, TopN)
	p = Prediction{
		Conditions: make([]string, 0, len(top)),
		Confidence: make(map[string]float64, len(top)),
	}
	for _, rc := range top {
		p.Conditions = append(p.Conditions, rc.label)
		p.Confidence[rc.label] = rc.score
	}
	p.Recommendations = GenerateRecommendations(p.Conditions, p.Confidence)
	return p, nil
}

// topConditions сортирует по убыванию оценки (устойчиво к исходному порядку)
// и возвращает первые n
func topConditions(ranked []rankedCondition, n int) []rankedCondition {
	sorted := append([]rankedCondition(nil), ranked...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].score > sorted[j].score
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
