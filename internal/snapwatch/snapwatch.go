// Package snapwatch reports when the game rewrites a snapshot file.
package snapwatch

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const DefaultDebounce = 100 * time.Millisecond

// Reload names a snapshot file that settled after a write.
type Reload struct {
	Path string
	At   time.Time
}

// Watcher watches either one snapshot file or every snapshot in a directory.
// Events are debounced per file so a burst of writes yields one Reload.
type Watcher struct {
	Target   string
	Debounce time.Duration
	Reloads  <-chan Reload

	dir     string
	file    string
	reloads chan Reload
	done    chan struct{}
	watcher *fsnotify.Watcher
	log     zerolog.Logger
}

func New(target string, log zerolog.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(target)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		Target:   abs,
		Debounce: DefaultDebounce,
		done:     make(chan struct{}),
		watcher:  fw,
		log:      log.With().Str("component", "snapwatch").Logger(),
	}
	if fi, err := os.Stat(abs); err == nil && fi.IsDir() {
		w.dir = abs
	} else {
		w.dir, w.file = filepath.Dir(abs), abs
	}
	ch := make(chan Reload, 16)
	w.reloads, w.Reloads = ch, ch
	return w, nil
}

// Start watches the directory holding the target. Watching the directory
// rather than the file survives the rename-into-place most writers use.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.dir); err != nil {
		return err
	}
	go w.loop()
	return nil
}

// Stop closes the watcher; Reloads is closed once the loop exits.
func (w *Watcher) Stop() {
	_ = w.watcher.Close()
	<-w.done
	close(w.reloads)
}

func (w *Watcher) matches(name string) bool {
	if w.file != "" {
		return filepath.Clean(name) == w.file
	}
	return strings.HasSuffix(name, ".json") || strings.HasSuffix(name, ".json.zst")
}

func (w *Watcher) loop() {
	defer close(w.done)

	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	pending := make(map[string]time.Time)
	ticker := time.NewTicker(debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.matches(event.Name) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				pending[filepath.Clean(event.Name)] = time.Now()
			}

		case now := <-ticker.C:
			for file, t := range pending {
				if now.Sub(t) < debounce {
					continue
				}
				delete(pending, file)
				select {
				case w.reloads <- Reload{Path: file, At: now}:
				default:
					w.log.Warn().Str("path", file).Msg("reload dropped; consumer is behind")
				}
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("watch error")
		}
	}
}
