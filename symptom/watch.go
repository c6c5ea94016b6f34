package symptom

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Holder хранит текущий экземпляр классификатора. Экземпляры не изменяются;
// при переобучении подменяется указатель целиком.
type Holder struct {
	current atomic.Pointer[Checker]
}

// NewHolder создает Holder с начальным классификатором
func NewHolder(c *Checker) *Holder {
	h := &Holder{}
	h.current.Store(c)
	return h
}

// Current текущий классификатор
func (h *Holder) Current() *Checker {
	return h.current.Load()
}

// Swap подменяет классификатор и возвращает предыдущий
func (h *Holder) Swap(c *Checker) *Checker {
	return h.current.Swap(c)
}

// Predict прогноз текущим классификатором
func (h *Holder) Predict(symptoms string) Prediction {
	return h.Current().Predict(symptoms)
}

// reloadDebounce пауза перед переобучением: редакторы пишут файл в несколько событий
const reloadDebounce = 500 * time.Millisecond

// Watch следит за CSV набором cfg.DataPath и при его изменении обучает новый
// классификатор (игнорируя сохраненный артефакт) и подменяет им текущий.
// Если обучение не удалось, остается прежний экземпляр.
// Блокируется до отмены ctx.
func Watch(ctx context.Context, h *Holder, cfg Config) error {
	if cfg.DataPath == "" {
		return fmt.Errorf("dataset path is not configured")
	}
	cfg = cfg.withDefaults()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Следим за каталогом: при атомарной замене файла его inode меняется
	dir := filepath.Dir(cfg.DataPath)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	target := filepath.Clean(cfg.DataPath)

	var timer *time.Timer
	var timerC <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				timer.Reset(reloadDebounce)
			}
			timerC = timer.C
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			cfg.Logf("[WARNING] symptom dataset watcher: %v", err)
		case <-timerC:
			timerC = nil
			// Файл переименован или удален: обучаться не на чем
			if _, err := os.Stat(cfg.DataPath); err != nil {
				cfg.Logf("[WARNING] symptom dataset %s unavailable, keeping %s classifier: %v", cfg.DataPath, h.Current().Mode(), err)
				continue
			}
			retrainCfg := cfg
			retrainCfg.SkipArtifact = true
			retrainCfg.DisableTraining = false
			retrainCfg.RequireDataset = true
			next := New(retrainCfg)
			// Обученная модель не заменяется резервной таблицей
			if next.Mode() != ModeTrained {
				cfg.Logf("[WARNING] symptom dataset %s rejected, keeping %s classifier", cfg.DataPath, h.Current().Mode())
				continue
			}
			h.Swap(next)
			cfg.Logf("[INFO] symptom classifier reloaded from %s, mode %s", cfg.DataPath, next.Mode())
		}
	}
}
