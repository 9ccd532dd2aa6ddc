// Package cache manages the local mirror of fetched pin versions.
//
// Layout mirrors the remote exactly: <root>/<pin>/<version>/<file>. Files
// are written to a temporary name and renamed into place, so a crash
// mid-download never leaves an entry Lookup would accept, and concurrent
// fetches of the same version are idempotent.
package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/sourcegraph/conc/pool"
)

// Manager owns one cache root directory.
type Manager struct {
	root        string
	budget      int64 // bytes; 0 means unlimited
	concurrency int
}

func New(root string, budget int64, concurrency int) *Manager {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Manager{root: root, budget: budget, concurrency: concurrency}
}

func (m *Manager) Root() string { return m.root }

// Dir returns the local directory for one version.
func (m *Manager) Dir(pin, version string) string {
	return filepath.Join(m.root, pin, version)
}

// Valid reports whether one file is present with the expected size. A size
// below zero means "unknown", which degrades to a presence check.
func (m *Manager) Valid(pin, version, file string, size int64) bool {
	info, err := os.Stat(filepath.Join(m.Dir(pin, version), file))
	if err != nil || info.IsDir() {
		return false
	}
	return size < 0 || info.Size() == size
}

// Lookup reports whether a version is fully materialized: every listed
// file present with its recorded size. Partially downloaded entries are a
// miss, never a partial hit.
func (m *Manager) Lookup(pin, version string, files []string, sizes []int64) ([]string, bool) {
	paths := make([]string, len(files))
	for i, file := range files {
		size := int64(-1)
		if i < len(sizes) {
			size = sizes[i]
		}
		if !m.Valid(pin, version, file, size) {
			return nil, false
		}
		paths[i] = filepath.Join(m.Dir(pin, version), file)
	}
	return paths, true
}

// WriteFile atomically places data under the version's cache directory and
// returns the final path.
func (m *Manager) WriteFile(pin, version, file string, data []byte) (string, error) {
	dir := m.Dir(pin, version)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+file+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write %s: %w", file, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close %s: %w", file, err)
	}
	dst := filepath.Join(dir, file)
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("rename %s: %w", file, err)
	}
	return dst, nil
}

// Materialize downloads every file not already valid in the cache through
// fetch and writes it atomically. Transfers run in parallel; on any
// failure the already-completed files remain (they are individually valid)
// but Lookup for the version keeps reporting a miss.
func (m *Manager) Materialize(ctx context.Context, pin, version string, files []string, sizes []int64, fetch func(ctx context.Context, name string) ([]byte, error)) error {
	p := pool.New().WithMaxGoroutines(m.concurrency).WithContext(ctx).WithCancelOnError()

	for i, file := range files {
		size := int64(-1)
		if i < len(sizes) {
			size = sizes[i]
		}
		if m.Valid(pin, version, file, size) {
			continue
		}
		p.Go(func(ctx context.Context) error {
			data, err := fetch(ctx, file)
			if err != nil {
				return err
			}
			if _, err := m.WriteFile(pin, version, file, data); err != nil {
				return err
			}
			return nil
		})
	}

	return p.Wait()
}

// Touch records the version as just used; eviction is oldest-first by this
// marker.
func (m *Manager) Touch(pin, version string) {
	dir := m.Dir(pin, version)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return
	}
	now := time.Now()
	_ = os.Chtimes(dir, now, now)
}

// Invalidate removes one version's cache entry, or every entry for the pin
// when version is empty.
func (m *Manager) Invalidate(pin, version string) error {
	target := filepath.Join(m.root, pin)
	if version != "" {
		target = m.Dir(pin, version)
	}
	if err := os.RemoveAll(target); err != nil {
		return fmt.Errorf("invalidate %s: %w", target, err)
	}
	return nil
}

type entry struct {
	pin     string
	version string
	size    int64
	used    time.Time
}

// Evict enforces the size budget by removing whole version directories
// oldest-first. The most recently used entry is always kept, even when it
// alone exceeds the budget.
func (m *Manager) Evict() error {
	if m.budget <= 0 {
		return nil
	}

	entries, total, err := m.scan()
	if err != nil {
		return err
	}
	if total <= m.budget {
		return nil
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].used.Before(entries[j].used) })

	for _, e := range entries[:len(entries)-1] {
		if total <= m.budget {
			break
		}
		if err := m.Invalidate(e.pin, e.version); err != nil {
			return err
		}
		total -= e.size
	}
	return nil
}

// scan walks the two-level pin/version layout and sizes every entry.
func (m *Manager) scan() ([]entry, int64, error) {
	var entries []entry
	var total int64

	pins, err := os.ReadDir(m.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("scan cache: %w", err)
	}
	for _, p := range pins {
		if !p.IsDir() {
			continue
		}
		versions, err := os.ReadDir(filepath.Join(m.root, p.Name()))
		if err != nil {
			continue
		}
		for _, v := range versions {
			if !v.IsDir() {
				continue
			}
			dir := filepath.Join(m.root, p.Name(), v.Name())
			info, err := os.Stat(dir)
			if err != nil {
				continue
			}
			size := dirSize(dir)
			entries = append(entries, entry{
				pin:     p.Name(),
				version: v.Name(),
				size:    size,
				used:    info.ModTime(),
			})
			total += size
		}
	}
	return entries, total, nil
}

func dirSize(dir string) int64 {
	var size int64
	_ = filepath.WalkDir(dir, func(_ string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			size += info.Size()
		}
		return nil
	})
	return size
}
