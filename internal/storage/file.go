package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileRecorder appends events as JSON lines.
type FileRecorder struct {
	path string
	mu   sync.Mutex
}

func NewFileRecorder(path string) (*FileRecorder, error) {
	if err := ensureFile(path); err != nil {
		return nil, fmt.Errorf("failed to init log file: %w", err)
	}
	return &FileRecorder{path: path}, nil
}

func (r *FileRecorder) AppendInteraction(event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open append: %w", err)
	}
	defer func(f *os.File) { _ = f.Close() }(f)
	if err := json.NewEncoder(f).Encode(event); err != nil {
		return fmt.Errorf("encode append: %w", err)
	}
	return nil
}

func (r *FileRecorder) LoadInteractions() ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("open read: %w", err)
	}
	defer func(f *os.File) { _ = f.Close() }(f)
	s := bufio.NewScanner(f)
	buf := make([]byte, 0, 1024*1024)
	s.Buffer(buf, 10*1024*1024)
	var events []Event
	for s.Scan() {
		line := s.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return events, nil
}

// FileKV keeps every key in a single JSON object on disk. It suits the
// small, low-write quota records of a single node.
type FileKV struct {
	path string
	mu   sync.Mutex
}

func NewFileKV(path string) (*FileKV, error) {
	if err := ensureFile(path); err != nil {
		return nil, fmt.Errorf("touch file: %w", err)
	}
	return &FileKV{path: path}, nil
}

func (r *FileKV) Get(key string) ([]byte, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items, err := r.loadUnlocked()
	if err != nil {
		return nil, false, err
	}
	v, ok := items[key]
	if !ok {
		return nil, false, nil
	}
	return []byte(v), true, nil
}

func (r *FileKV) Set(key string, value []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	items, err := r.loadUnlocked()
	if err != nil {
		return err
	}
	items[key] = string(value)
	return r.saveUnlocked(items)
}

func (r *FileKV) Delete(key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	items, err := r.loadUnlocked()
	if err != nil {
		return err
	}
	if _, ok := items[key]; !ok {
		return nil
	}
	delete(items, key)
	return r.saveUnlocked(items)
}

func (r *FileKV) loadUnlocked() (map[string]string, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer func(f *os.File) { _ = f.Close() }(f)
	items := map[string]string{}
	if err := json.NewDecoder(f).Decode(&items); err != nil {
		// empty or malformed -> start fresh
		return map[string]string{}, nil
	}
	return items, nil
}

func (r *FileKV) saveUnlocked(items map[string]string) error {
	f, err := os.OpenFile(r.path, os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open write: %w", err)
	}
	defer func(f *os.File) { _ = f.Close() }(f)
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(items)
}

func ensureFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}
