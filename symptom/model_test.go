package symptom

import (
	"bytes"
	"math"
	"reflect"
	"strings"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"Fever, Headache & fatigue", []string{"fever", "headache", "fatigue"}},
		{"back pain and a cough", []string{"pain", "cough"}},
		{"Naïve café fever", []string{"naive", "cafe", "fever"}},
		{"x y z", []string{}},
		{"blood_pressure 140/90", []string{"blood_pressure", "140", "90"}},
	}
	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			got := Tokenize(tc.input)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestFitTfidf(t *testing.T) {
	v, err := FitTfidf([]string{"cough fever", "fever rash"}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []string{"cough", "fever", "rash"}; !reflect.DeepEqual(v.Vocabulary, want) {
		t.Fatalf("expected vocabulary %v, got %v", want, v.Vocabulary)
	}
	// fever встречается в обоих документах: idf = ln(3/3)+1
	if v.IDF[1] != 1 {
		t.Fatalf("expected idf 1 for fever, got %v", v.IDF[1])
	}
	if want := math.Log(3.0/2.0) + 1; math.Abs(v.IDF[0]-want) > 1e-12 {
		t.Fatalf("expected idf %v for cough, got %v", want, v.IDF[0])
	}

	vec := v.Transform("cough cough fever unknown")
	var norm float64
	for _, x := range vec {
		norm += x * x
	}
	if math.Abs(norm-1) > 1e-9 {
		t.Fatalf("expected unit vector, got squared norm %v", norm)
	}
	if vec[2] != 0 {
		t.Fatalf("expected zero weight for rash, got %v", vec[2])
	}

	zero := v.Transform("nothing known")
	for _, x := range zero {
		if x != 0 {
			t.Fatalf("expected zero vector, got %v", zero)
		}
	}
}

func TestFitTfidfMaxFeatures(t *testing.T) {
	v, err := FitTfidf([]string{"fever fever cough", "fever rash"}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(v.Vocabulary, []string{"fever"}) {
		t.Fatalf("expected most frequent term only, got %v", v.Vocabulary)
	}
}

func TestNaiveBayes(t *testing.T) {
	vectors := [][]float64{{1, 0}, {0, 1}, {1, 0}}
	labels := []string{"b", "a", "b"}
	model, err := FitNaiveBayes(vectors, labels, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(model.Labels, []string{"b", "a"}) {
		t.Fatalf("expected first-appearance label order, got %v", model.Labels)
	}
	if want := math.Log(2.0 / 3.0); math.Abs(model.ClassLogPrior[0]-want) > 1e-12 {
		t.Fatalf("unexpected prior %v", model.ClassLogPrior[0])
	}

	probs, err := model.PredictProba([]float64{1, 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(probs[0]+probs[1]-1) > 1e-12 {
		t.Fatalf("probabilities do not sum to 1: %v", probs)
	}
	if Argmax(probs) != 0 {
		t.Fatalf("expected label b, got %v", probs)
	}

	if _, err := model.PredictProba([]float64{1}); err == nil {
		t.Fatal("expected dimension error")
	}
}

func TestSplitDataset(t *testing.T) {
	corpus := TrainingCorpus()
	train, test := SplitDataset(corpus, 0.2, 42)
	if len(train) != 16 || len(test) != 4 {
		t.Fatalf("expected 16/4 split, got %d/%d", len(train), len(test))
	}
	again, _ := SplitDataset(corpus, 0.2, 42)
	if !reflect.DeepEqual(train, again) {
		t.Fatal("split is not deterministic")
	}

	all, none := SplitDataset(corpus[:1], 0.2, 42)
	if len(all) != 1 || len(none) != 0 {
		t.Fatalf("expected single row kept for training, got %d/%d", len(all), len(none))
	}
}

func TestDatasetCSVRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteDataset(&buf, TrainingCorpus()); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "symptoms,condition\n") {
		t.Fatalf("unexpected header: %q", buf.String()[:30])
	}
	got, err := LoadDataset(&buf)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !reflect.DeepEqual(got, TrainingCorpus()) {
		t.Fatal("dataset changed after round trip")
	}
}

func TestLoadDatasetErrors(t *testing.T) {
	tests := map[string]string{
		"empty":           "",
		"missing_columns": "text,label\na,b\n",
		"no_rows":         "symptoms,condition\n",
		"empty_condition": "symptoms,condition\nfever,\n",
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadDataset(strings.NewReader(input)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
