// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package skill

import (
	"context"
	"log/slog"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher keeps a skill Set loaded from a directory and reloads it when
// descriptor files change. Readers call Current and always see a fully
// loaded set; a reload that fails keeps the previous set.
type Watcher struct {
	dir string

	mu  sync.RWMutex
	set *Set
}

// Watch loads dir and starts watching it for changes until ctx is done.
func Watch(ctx context.Context, dir string) (*Watcher, error) {
	set, err := LoadDir(dir)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{dir: dir, set: set}
	go w.loop(ctx, fw)
	return w, nil
}

// Current returns the most recently loaded set.
func (w *Watcher) Current() *Set {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.set
}

func (w *Watcher) loop(ctx context.Context, fw *fsnotify.Watcher) {
	defer fw.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-fw.Events:
			if !ok {
				return
			}
			set, err := LoadDir(w.dir)
			if err != nil {
				slog.Warn("skill reload failed, keeping previous set",
					"dir", w.dir, "error", err)
				continue
			}
			w.mu.Lock()
			w.set = set
			w.mu.Unlock()
			slog.Debug("skill set reloaded", "dir", w.dir, "skills", len(set.Skills()))
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			slog.Warn("skill watcher error", "dir", w.dir, "error", err)
		}
	}
}
