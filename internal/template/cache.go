package template

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// cacheTTL bounds how long a validation report may be served without
// re-reading the template, even absent filesystem events.
const cacheTTL = time.Hour

// ValidationCache memoizes validation reports per template file, keyed by
// path plus mtime plus size so an edited template never serves a stale
// report. A filesystem watcher on the templates directory additionally
// evicts entries the moment a template changes.
type ValidationCache struct {
	db      *badger.DB
	logger  *zap.Logger
	watcher *fsnotify.Watcher
	done    chan struct{}
}

type cachedReport struct {
	ModTime int64  `json:"mod_time"`
	Size    int64  `json:"size"`
	Report  Report `json:"report"`
}

// NewValidationCache creates a cache over an existing badger handle.
func NewValidationCache(db *badger.DB, logger *zap.Logger) *ValidationCache {
	return &ValidationCache{
		db:     db,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Watch starts evicting cache entries on changes under dir. Safe to skip;
// the mtime check alone keeps the cache correct, watching just makes
// eviction immediate.
func (c *ValidationCache) Watch(dir string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return err
	}
	c.watcher = w

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
					c.evict(ev.Name)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				c.logger.Warn("template watcher error", zap.Error(err))
			case <-c.done:
				return
			}
		}
	}()
	return nil
}

// Close stops the watcher. The badger handle is owned by the caller.
func (c *ValidationCache) Close() {
	close(c.done)
	if c.watcher != nil {
		c.watcher.Close()
	}
}

// Get returns a cached report for path if the file is unchanged.
func (c *ValidationCache) Get(path string) (Report, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return Report{}, false
	}

	var cached cachedReport
	err = c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(cacheKey(path))
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return json.Unmarshal(val, &cached)
	})
	if err != nil {
		return Report{}, false
	}

	if cached.ModTime != info.ModTime().UnixNano() || cached.Size != info.Size() {
		return Report{}, false
	}
	return cached.Report, true
}

// Put stores a report for path keyed to the file's current stat.
func (c *ValidationCache) Put(path string, report Report) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}

	val, err := json.Marshal(cachedReport{
		ModTime: info.ModTime().UnixNano(),
		Size:    info.Size(),
		Report:  report,
	})
	if err != nil {
		return
	}

	err = c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(cacheKey(path), val).WithTTL(cacheTTL)
		return txn.SetEntry(entry)
	})
	if err != nil {
		c.logger.Warn("failed to cache validation report", zap.String("path", path), zap.Error(err))
	}
}

func (c *ValidationCache) evict(path string) {
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(cacheKey(path))
	})
	if err != nil && err != badger.ErrKeyNotFound {
		c.logger.Warn("failed to evict validation cache entry", zap.String("path", path), zap.Error(err))
	}
}

func cacheKey(path string) []byte {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return []byte(fmt.Sprintf("validate:%s", abs))
}
