package symptom

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

const (
	symptomsColumn  = "symptoms"
	conditionColumn = "condition"
)

// LoadDataset читает CSV с колонками symptoms и condition
func LoadDataset(r io.Reader) ([]TrainingExample, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("dataset is empty")
		}
		return nil, fmt.Errorf("failed to read dataset header: %w", err)
	}

	symIdx, condIdx := -1, -1
	for i, col := range header {
		switch strings.TrimSpace(strings.ToLower(col)) {
		case symptomsColumn:
			symIdx = i
		case conditionColumn:
			condIdx = i
		}
	}
	if symIdx < 0 || condIdx < 0 {
		return nil, fmt.Errorf("dataset header must contain %q and %q columns", symptomsColumn, conditionColumn)
	}

	var examples []TrainingExample
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read dataset line %d: %w", line, err)
		}
		if len(record) <= symIdx || len(record) <= condIdx {
			return nil, fmt.Errorf("dataset line %d: missing columns", line)
		}
		condition := strings.TrimSpace(record[condIdx])
		if condition == "" {
			return nil, fmt.Errorf("dataset line %d: empty condition", line)
		}
		examples = append(examples, TrainingExample{
			Symptoms:  record[symIdx],
			Condition: condition,
		})
	}
	if len(examples) == 0 {
		return nil, errors.New("dataset has no rows")
	}
	return examples, nil
}

// WriteDataset записывает набор в CSV
func WriteDataset(w io.Writer, examples []TrainingExample) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{symptomsColumn, conditionColumn}); err != nil {
		return err
	}
	for _, ex := range examples {
		if err := writer.Write([]string{ex.Symptoms, ex.Condition}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadDatasetFile читает набор из существующего файла
func ReadDatasetFile(path string) ([]TrainingExample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()
	return LoadDataset(f)
}

// LoadOrCreateDataset читает набор из path; если файла нет - записывает
// туда встроенный корпус и возвращает его. Пустой path - только корпус в памяти.
func LoadOrCreateDataset(path string) ([]TrainingExample, error) {
	if path == "" {
		return TrainingCorpus(), nil
	}

	examples, err := ReadDatasetFile(path)
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		return examples, err
	}

	examples = TrainingCorpus()
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create dataset dir: %w", err)
		}
	}
	out, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create dataset: %w", err)
	}
	if err := WriteDataset(out, examples); err != nil {
		out.Close()
		return nil, fmt.Errorf("failed to write dataset: %w", err)
	}
	if err := out.Close(); err != nil {
		return nil, fmt.Errorf("failed to write dataset: %w", err)
	}
	return examples, nil
}

// SplitDataset перемешивает набор с фиксированным seed и отделяет
// ceil(testSize*n) строк в тестовую часть. Если после разбиения обучающая
// часть оказалась бы пустой, весь набор идет в обучение.
func SplitDataset(examples []TrainingExample, testSize float64, seed int64) (train, test []TrainingExample) {
	n := len(examples)
	if n == 0 {
		return nil, nil
	}
	nTest := int(math.Ceil(testSize * float64(n)))
	if nTest <= 0 || nTest >= n {
		return append([]TrainingExample(nil), examples...), nil
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	for i, idx := range perm {
		if i < nTest {
			test = append(test, examples[idx])
		} else {
			train = append(train, examples[idx])
		}
	}
	return train, test
}
