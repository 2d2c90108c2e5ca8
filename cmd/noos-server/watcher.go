package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/retaildata/noosengine/pkg/tasks"
)

// hotFolderWatcher watches a configured directory for whole TSV files
// dropped in by an operator and submits each one as an upload Task once
// it has quiesced — this is a filesystem-level submission path alongside
// the HTTP upload endpoint, never a partial stream: a file is only
// submitted once no further write events have arrived for debounce.
type hotFolderWatcher struct {
	watcher   *fsnotify.Watcher
	server    *server
	debounce  time.Duration
	pending   map[string]*time.Timer
	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
}

// newHotFolderWatcher starts watching dir, submitting upload Tasks for
// any *.tsv file whose name matches a known file kind once it quiesces.
func newHotFolderWatcher(dir string, debounce time.Duration, s *server) (*hotFolderWatcher, error) {
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	hw := &hotFolderWatcher{
		watcher:  fsw,
		server:   s,
		debounce: debounce,
		pending:  make(map[string]*time.Timer),
		ctx:      ctx,
		cancel:   cancel,
	}
	go hw.loop()
	return hw, nil
}

func (hw *hotFolderWatcher) loop() {
	for {
		select {
		case <-hw.ctx.Done():
			return
		case event, ok := <-hw.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			hw.schedule(event.Name)
		case err, ok := <-hw.watcher.Errors:
			if !ok {
				return
			}
			hw.server.logger.Errorf("hot-folder watcher error: %v", err)
		}
	}
}

// schedule debounces rapid write events on the same path, only acting
// once debounce has elapsed since the last observed event for it.
func (hw *hotFolderWatcher) schedule(path string) {
	hw.mu.Lock()
	defer hw.mu.Unlock()

	if t, exists := hw.pending[path]; exists {
		t.Stop()
	}
	hw.pending[path] = time.AfterFunc(hw.debounce, func() {
		hw.mu.Lock()
		delete(hw.pending, path)
		hw.mu.Unlock()
		hw.submit(path)
	})
}

// submit reads a quiesced file and submits it as an UPLOAD task, inferring
// the file kind from its base filename (styles.tsv, stores.tsv, skus.tsv,
// sales.tsv). Any other filename is ignored.
func (hw *hotFolderWatcher) submit(path string) {
	base := strings.ToLower(filepath.Base(path))
	if filepath.Ext(base) != ".tsv" {
		return
	}
	name := strings.TrimSuffix(base, filepath.Ext(base))
	kind, err := parseFileKind(name)
	if err != nil {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		hw.server.logger.Errorf("hot-folder watcher failed to read %s: %v", path, err)
		return
	}

	payload, err := json.Marshal(uploadPayload{Kind: string(kind), FileName: base, Data: data})
	if err != nil {
		hw.server.logger.Errorf("hot-folder watcher failed to encode payload for %s: %v", path, err)
		return
	}

	if _, err := hw.server.engine.Submit(hw.ctx, tasks.TypeUpload, payload); err != nil {
		if tasks.KindOf(err) == tasks.KindBusy {
			hw.server.logger.Warnf("hot-folder watcher deferred %s: upload pool at capacity", path)
			if hw.ctx.Err() == nil {
				hw.schedule(path)
			}
			return
		}
		hw.server.logger.Errorf("hot-folder watcher failed to submit %s: %v", path, err)
	}
}

// Close stops the watcher and releases its fsnotify handle.
func (hw *hotFolderWatcher) Close() error {
	hw.cancel()
	hw.mu.Lock()
	for _, t := range hw.pending {
		t.Stop()
	}
	hw.mu.Unlock()
	return hw.watcher.Close()
}
