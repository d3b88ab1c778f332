// Package watcher provides file system monitoring for the agent's
// configuration, reloading it when the file changes on disk.
package watcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/recipeclip/agent/internal/config"
	log "github.com/sirupsen/logrus"
)

// Watcher watches the configuration file and invokes a reload callback
// when its content actually changes.
type Watcher struct {
	configPath     string
	reloadCallback func(*config.Config)
	watcher        *fsnotify.Watcher
	lastConfigHash string
}

// NewWatcher creates a new configuration watcher.
func NewWatcher(configPath string, reloadCallback func(*config.Config)) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		configPath:     configPath,
		reloadCallback: reloadCallback,
		watcher:        fsWatcher,
	}, nil
}

// Start begins watching until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	// Watch the directory rather than the file; editors replace files and
	// a watch on the old inode would go quiet.
	if err := w.watcher.Add(filepath.Dir(w.configPath)); err != nil {
		log.Errorf("failed to watch config directory: %v", err)
		return err
	}
	w.lastConfigHash = w.hashFile(w.configPath)
	log.Debugf("watching config file: %s", w.configPath)

	go w.loop(ctx)
	return nil
}

// Stop closes the underlying file system watcher.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.configPath) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.handleConfigChange()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Errorf("config watcher error: %v", err)
		}
	}
}

func (w *Watcher) handleConfigChange() {
	hash := w.hashFile(w.configPath)
	if hash == "" || hash == w.lastConfigHash {
		return
	}
	w.lastConfigHash = hash

	cfg, err := config.LoadConfig(w.configPath)
	if err != nil {
		log.Errorf("failed to reload config: %v", err)
		return
	}
	if err = cfg.ExpandAuthDir(); err != nil {
		log.Errorf("failed to expand auth dir in reloaded config: %v", err)
		return
	}
	log.Infof("configuration reloaded from %s", w.configPath)
	w.reloadCallback(cfg)
}

func (w *Watcher) hashFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
