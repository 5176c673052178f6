package storage

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/natefinch/atomic"
)

// LocalStorage keeps wardrobe bitmaps on disk under one root directory.
// Paths handed in and out are relative to that root.
type LocalStorage struct {
	root string
}

// FileInfo describes a stored file.
type FileInfo struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// NewLocalStorage ensures the root and the given subdirectories exist.
func NewLocalStorage(root string, dirs ...string) (*LocalStorage, error) {
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	s := &LocalStorage{root: abs}
	for _, dir := range append([]string{""}, dirs...) {
		path, err := s.resolve(dir)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory %s: %w", dir, err)
		}
	}
	return s, nil
}

// Root returns the absolute storage root.
func (s *LocalStorage) Root() string { return s.root }

// Save atomically writes data to rel, creating parent directories.
func (s *LocalStorage) Save(rel string, data []byte) (string, error) {
	return s.SaveStream(rel, bytes.NewReader(data))
}

// SaveStream atomically copies r into rel.
func (s *LocalStorage) SaveStream(rel string, r io.Reader) (string, error) {
	path, err := s.resolve(rel)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("prepare directory: %w", err)
	}
	if err := atomic.WriteFile(path, r); err != nil {
		return "", fmt.Errorf("write %s: %w", rel, err)
	}
	return filepath.ToSlash(rel), nil
}

// Copy duplicates src into dst atomically.
func (s *LocalStorage) Copy(src, dst string) error {
	f, err := s.Open(src)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck
	_, err = s.SaveStream(dst, f)
	return err
}

// Open returns a read-only handle for the stored file.
func (s *LocalStorage) Open(rel string) (*os.File, error) {
	path, err := s.resolve(rel)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", rel, err)
	}
	return file, nil
}

// Exists reports whether rel is an existing regular file.
func (s *LocalStorage) Exists(rel string) bool {
	path, err := s.resolve(rel)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Delete removes a stored file if present.
func (s *LocalStorage) Delete(rel string) error {
	path, err := s.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %s: %w", rel, err)
	}
	return nil
}

// List walks dir and returns every regular file below it, oldest first.
func (s *LocalStorage) List(dir string) ([]FileInfo, error) {
	base, err := s.resolve(dir)
	if err != nil {
		return nil, err
	}
	files := make([]FileInfo, 0)
	err = filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == base {
				return fs.SkipDir
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		files = append(files, FileInfo{Path: filepath.ToSlash(rel), Size: info.Size(), ModTime: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].ModTime.Before(files[j].ModTime) })
	return files, nil
}

// OlderThan lists files under dir whose modification time is before now-ttl.
func (s *LocalStorage) OlderThan(dir string, ttl time.Duration, now time.Time) ([]FileInfo, error) {
	files, err := s.List(dir)
	if err != nil {
		return nil, err
	}
	cutoff := now.Add(-ttl)
	out := files[:0]
	for _, f := range files {
		if f.ModTime.Before(cutoff) {
			out = append(out, f)
		}
	}
	return out, nil
}

// Path exposes the absolute path of rel.
func (s *LocalStorage) Path(rel string) string {
	path, err := s.resolve(rel)
	if err != nil {
		return ""
	}
	return path
}

func (s *LocalStorage) resolve(rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("path %q must be relative to the storage root", rel)
	}
	path := filepath.Join(s.root, filepath.FromSlash(rel))
	if path != s.root && !strings.HasPrefix(path, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the storage root", rel)
	}
	return path, nil
}
