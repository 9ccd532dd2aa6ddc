package pinboard

import (
	"os"
	"path/filepath"

	"github.com/aweris/pinboard/internal/remote"
)

// Options configures an opened board.
type Options struct {
	CacheDir    string
	Subdir      string
	Versioned   bool
	CacheBudget int64
	Concurrency int
	Auth        Authenticator
	Remote      RemoteStore
}

// Option is a functional option for configuring Open.
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		CacheDir:    defaultCacheDir(),
		Versioned:   true,
		Concurrency: remote.DefaultConcurrency,
	}
}

// WithCacheDir sets the local cache root directory.
func WithCacheDir(dir string) Option {
	return func(o *Options) { o.CacheDir = dir }
}

// WithSubdir scopes the board to a logical sub-namespace at the remote.
func WithSubdir(subdir string) Option {
	return func(o *Options) { o.Subdir = subdir }
}

// WithVersioned controls whether writes append new versions (the default)
// or overwrite a single implicit version.
func WithVersioned(versioned bool) Option {
	return func(o *Options) { o.Versioned = versioned }
}

// WithCacheBudget caps the local cache size in bytes; zero means unlimited.
// When exceeded, least recently used versions are evicted whole.
func WithCacheBudget(bytes int64) Option {
	return func(o *Options) { o.CacheBudget = bytes }
}

// WithConcurrency sets the number of parallel per-file transfers.
func WithConcurrency(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.Concurrency = n
		}
	}
}

// WithAuth sets custom registry authentication.
func WithAuth(auth Authenticator) Option {
	return func(o *Options) { o.Auth = auth }
}

// WithBasicAuth sets static registry credentials.
func WithBasicAuth(username, password string) Option {
	return func(o *Options) {
		o.Auth = &remote.StaticAuthenticator{Username: username, Password: password}
	}
}

// WithRemoteStore injects a custom backend; the Open target is ignored.
func WithRemoteStore(store RemoteStore) Option {
	return func(o *Options) { o.Remote = store }
}

func defaultCacheDir() string {
	if xdgCache := os.Getenv("XDG_CACHE_HOME"); xdgCache != "" {
		return filepath.Join(xdgCache, "pinboard")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "pinboard")
	}
	return ".pinboard"
}

func expandPath(path string) string {
	if len(path) > 1 && path[:2] == "~/" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
