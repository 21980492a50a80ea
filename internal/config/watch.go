package config

import (
	"fmt"
	"log"
	"path/filepath"

	"github.com/Dicklesworthstone/hud/internal/watcher"
)

// Watch starts watching the config file for changes and calls onChange
// with the freshly loaded config. It returns a close function that
// stops watching.
func Watch(path string, onChange func(*Config)) (func(), error) {
	if path == "" {
		path = DefaultPath()
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving config path: %w", err)
	}
	path = absPath

	w, err := watcher.New(func(events []watcher.Event) {
		relevant := false
		for _, e := range events {
			if filepath.Clean(e.Path) == filepath.Clean(path) {
				relevant = true
				break
			}
		}
		if !relevant {
			return
		}
		cfg, err := Load(path)
		if err != nil {
			log.Printf("config reload failed: %v", err)
			return
		}
		if onChange != nil {
			onChange(cfg)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("creating config watcher: %w", err)
	}

	// Watch the directory so the file can be created or replaced by
	// rename after the watch starts.
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watching config dir: %w", err)
	}

	return func() { w.Close() }, nil
}
