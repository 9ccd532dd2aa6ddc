package remote

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Folder is a Store over a local (or mounted network) directory tree.
// Files are written to a temporary name and renamed into place so readers
// on a shared mount never observe torn writes.
type Folder struct {
	base string
}

// NewFolder creates the board directory if needed and returns a store
// rooted at it.
func NewFolder(base string) (*Folder, error) {
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("resolve board path %q: %w", base, err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("create board dir: %w", err)
	}
	return &Folder{base: abs}, nil
}

func (f *Folder) String() string { return "folder://" + f.base }

// resolve maps a slash path onto the base directory, refusing escapes.
func (f *Folder) resolve(p string) string {
	p = path.Clean("/" + p)
	return filepath.Join(f.base, filepath.FromSlash(strings.TrimPrefix(p, "/")))
}

func (f *Folder) PathExists(_ context.Context, p string) (bool, error) {
	_, err := os.Stat(f.resolve(p))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", p, err)
}

func (f *Folder) ListDir(_ context.Context, p string) ([]Entry, error) {
	dirents, err := os.ReadDir(f.resolve(p))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("list %s: %w", p, ErrNotFound)
		}
		return nil, fmt.Errorf("list %s: %w", p, err)
	}
	entries := make([]Entry, 0, len(dirents))
	for _, d := range dirents {
		entries = append(entries, Entry{Name: d.Name(), IsFile: !d.IsDir()})
	}
	return entries, nil
}

func (f *Folder) GetFile(_ context.Context, p string) ([]byte, error) {
	data, err := os.ReadFile(f.resolve(p))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("get %s: %w", p, ErrNotFound)
		}
		return nil, fmt.Errorf("get %s: %w", p, err)
	}
	return data, nil
}

func (f *Folder) PutFile(_ context.Context, p string, data []byte) error {
	dst := f.resolve(p)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("put %s: %w", p, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".tmp-*")
	if err != nil {
		return fmt.Errorf("put %s: %w", p, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("put %s: %w", p, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("put %s: %w", p, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("put %s: %w", p, err)
	}
	return nil
}

func (f *Folder) DeleteFile(_ context.Context, p string) error {
	dst := f.resolve(p)
	if err := os.Remove(dst); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("delete %s: %w", p, ErrNotFound)
		}
		return fmt.Errorf("delete %s: %w", p, err)
	}
	f.pruneEmpty(filepath.Dir(dst))
	return nil
}

func (f *Folder) MkDir(_ context.Context, p string) error {
	if err := os.MkdirAll(f.resolve(p), 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", p, err)
	}
	return nil
}

// pruneEmpty removes now-empty parent directories up to the base, so a pin
// whose files were all deleted stops existing.
func (f *Folder) pruneEmpty(dir string) {
	for dir != f.base && strings.HasPrefix(dir, f.base) {
		if err := os.Remove(dir); err != nil {
			return // non-empty or busy, stop
		}
		dir = filepath.Dir(dir)
	}
}
