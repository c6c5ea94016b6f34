package symptom

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestHolderSwap(t *testing.T) {
	fallback := New(quietConfig(Config{DisableTraining: true}))
	h := NewHolder(fallback)
	if h.Current() != fallback {
		t.Fatal("holder does not return initial checker")
	}

	trained := New(quietConfig(Config{}))
	if prev := h.Swap(trained); prev != fallback {
		t.Fatal("swap returned wrong previous checker")
	}
	if h.Current().Mode() != ModeTrained {
		t.Fatalf("expected trained checker, got %q", h.Current().Mode())
	}
}

func TestWatchRetrainsOnDatasetChange(t *testing.T) {
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "data.csv")
	if err := os.WriteFile(dataPath, []byte("bad,header\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := quietConfig(Config{DataPath: dataPath})
	h := NewHolder(New(cfg))
	if h.Current().Mode() != ModeFallback {
		t.Fatalf("expected fallback for broken dataset, got %q", h.Current().Mode())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, h, cfg) }()

	// Даем наблюдателю подписаться на каталог
	time.Sleep(200 * time.Millisecond)

	f, err := os.Create(dataPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := WriteDataset(f, TrainingCorpus()); err != nil {
		t.Fatal(err)
	}
	f.Close()

	deadline := time.Now().Add(5 * time.Second)
	for h.Current().Mode() != ModeTrained {
		if time.Now().After(deadline) {
			t.Fatal("classifier was not retrained after dataset change")
		}
		time.Sleep(50 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("watch returned error: %v", err)
	}
}

func TestWatchKeepsModelWhenDatasetMovedAway(t *testing.T) {
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "data.csv")
	f, err := os.Create(dataPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := WriteDataset(f, TrainingCorpus()); err != nil {
		t.Fatal(err)
	}
	f.Close()

	cfg := quietConfig(Config{DataPath: dataPath})
	initial := New(cfg)
	if initial.Mode() != ModeTrained {
		t.Fatalf("expected trained checker, got %q", initial.Mode())
	}
	h := NewHolder(initial)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, h, cfg) }()
	time.Sleep(200 * time.Millisecond)

	if err := os.Rename(dataPath, filepath.Join(dir, "data.csv.bak")); err != nil {
		t.Fatal(err)
	}
	time.Sleep(3 * reloadDebounce)

	if _, err := os.Stat(dataPath); !os.IsNotExist(err) {
		t.Fatalf("dataset must not be recreated after rename, stat err = %v", err)
	}
	if h.Current() != initial {
		t.Fatal("classifier must not be replaced when the dataset is gone")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("watch returned error: %v", err)
	}
}

func TestWatchRequiresDataPath(t *testing.T) {
	if err := Watch(context.Background(), NewHolder(nil), Config{}); err == nil {
		t.Fatal("expected error without dataset path")
	}
}
