package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/LovationAdmin/gst-api/utils"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// SeedWatcher imports PDFs that appear in the seed directory. Events for one
// file are debounced so a copy in progress is imported once, after it settles.
type SeedWatcher struct {
	seeder   *Seeder
	Debounce time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
	wg      sync.WaitGroup
}

func NewSeedWatcher(seeder *Seeder) *SeedWatcher {
	return &SeedWatcher{
		seeder:   seeder,
		Debounce: time.Second,
		pending:  map[string]*time.Timer{},
	}
}

// Run watches until ctx is cancelled.
func (w *SeedWatcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.seeder.Dir(), 0o755); err != nil {
		return fmt.Errorf("failed to create seed dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.seeder.Dir()); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.seeder.Dir(), err)
	}
	utils.Logger().Info("👀 Watching seed directory", zap.String("dir", w.seeder.Dir()))

	defer w.stopPending()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".pdf") {
				continue
			}
			w.schedule(ctx, event.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			utils.Logger().Warn("⚠️ Seed watcher error", zap.Error(err))
		}
	}
}

func (w *SeedWatcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		if t.Stop() {
			w.wg.Done()
		}
	}

	w.wg.Add(1)
	var timer *time.Timer
	timer = time.AfterFunc(w.Debounce, func() {
		defer w.wg.Done()

		w.mu.Lock()
		if w.pending[path] == timer {
			delete(w.pending, path)
		}
		w.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		updates, err := w.seeder.ImportFile(ctx, path)
		if err != nil {
			utils.Logger().Warn("❌ Failed to import seed PDF", zap.String("file", path), zap.Error(err))
			return
		}
		utils.Logger().Info("📄 Imported seed PDF", zap.String("file", path), zap.Int("updates", len(updates)))
	})
	w.pending[path] = timer
}

func (w *SeedWatcher) stopPending() {
	w.mu.Lock()
	for path, t := range w.pending {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
	w.mu.Unlock()
	w.wg.Wait()
}
