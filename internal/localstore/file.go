// Package localstore is the client's small durable key/value storage.
package localstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is the ledger file under the client's state directory.
const DefaultFileName = "local.yaml"

type yamlFile struct {
	Entries map[string]string `yaml:"entries"`
}

// File keeps every key in one YAML document. Each Set rewrites the file
// through a temp file and rename, so a crash leaves the old or the new
// content, never a torn write.
type File struct {
	mu   sync.Mutex
	path string
}

func NewFile(path string) *File {
	return &File{path: path}
}

// DefaultPath resolves the ledger location under the user config dir.
func DefaultPath(appName string) (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(dir, appName, DefaultFileName), nil
}

func (f *File) Path() string { return f.path }

func (f *File) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries, err := f.read()
	if err != nil {
		return "", false, err
	}
	v, ok := entries[key]
	return v, ok, nil
}

// Set stores value under key. An empty value removes the key.
func (f *File) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries, err := f.read()
	if err != nil {
		return err
	}
	if value == "" {
		delete(entries, key)
	} else {
		entries[key] = value
	}
	return f.write(entries)
}

func (f *File) read() (map[string]string, error) {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read local store: %w", err)
	}
	var doc yamlFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse local store yaml: %w", err)
	}
	if doc.Entries == nil {
		doc.Entries = map[string]string{}
	}
	return doc.Entries, nil
}

func (f *File) write(entries map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create local store directory: %w", err)
	}
	serialized, err := yaml.Marshal(yamlFile{Entries: entries})
	if err != nil {
		return fmt.Errorf("marshal local store yaml: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, serialized, 0o600); err != nil {
		return fmt.Errorf("write local store: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replace local store: %w", err)
	}
	return nil
}
