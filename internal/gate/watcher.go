package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultReloadDebounce = 250 * time.Millisecond

// WatcherOptions configures a policy file Watcher.
type WatcherOptions struct {
	Path     string
	Gate     *Gate
	Logger   *slog.Logger
	Debounce time.Duration
	// OnReload is called after every reload attempt, with the error if it failed.
	OnReload func(err error)
}

// Watcher reloads a policy file into a Gate when the file changes.
// A file that fails to parse leaves the previous policy in place.
type Watcher struct {
	path     string
	gate     *Gate
	logger   *slog.Logger
	debounce time.Duration
	onReload func(error)

	mu      sync.Mutex
	pending bool
}

// NewWatcher validates opts.
func NewWatcher(opts WatcherOptions) (*Watcher, error) {
	if opts.Path == "" {
		return nil, errors.New("policy path is required")
	}
	if opts.Gate == nil {
		return nil, errors.New("gate is required")
	}
	abs, err := filepath.Abs(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve policy path: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = defaultReloadDebounce
	}
	return &Watcher{
		path:     abs,
		gate:     opts.Gate,
		logger:   logger.With("component", "gate_policy_watcher", "path", abs),
		debounce: debounce,
		onReload: opts.OnReload,
	}, nil
}

// Run watches the policy file's directory until ctx is done. Watching the
// directory survives editors that replace the file on save.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	w.logger.InfoContext(ctx, "watching gate policy")

	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.WarnContext(ctx, "policy watcher error", "error", err)
		case <-ticker.C:
			w.flushPending(ctx)
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if filepath.Clean(ev.Name) != w.path {
		return
	}
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return
	}
	w.mu.Lock()
	w.pending = true
	w.mu.Unlock()
}

func (w *Watcher) flushPending(ctx context.Context) {
	w.mu.Lock()
	pending := w.pending
	w.pending = false
	w.mu.Unlock()
	if !pending {
		return
	}
	err := w.Reload()
	if err != nil {
		w.logger.ErrorContext(ctx, "gate policy reload failed; keeping previous policy", "error", err)
	} else {
		w.logger.InfoContext(ctx, "gate policy reloaded", "rules", len(w.gate.Policy().Rules()))
	}
	if w.onReload != nil {
		w.onReload(err)
	}
}

// Reload reads the policy file now and swaps it in on success.
func (w *Watcher) Reload() error {
	p, err := LoadPolicyFile(w.path)
	if err != nil {
		return err
	}
	w.gate.SetPolicy(p)
	return nil
}
