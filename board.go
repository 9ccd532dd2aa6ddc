package pinboard

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/aweris/pinboard/internal/cache"
	"github.com/aweris/pinboard/internal/remote"
)

// Board is a configured handle on one pin store: a remote endpoint, a
// logical sub-namespace, and a local cache. Handles are immutable after
// Open and safe for concurrent use; only the cache directory's contents
// change underneath.
//
// Publish contract: Store uploads the metadata blob before the data files,
// so a version becomes visible to readers as soon as its metadata lands
// remotely. ReadMeta succeeding therefore means the version is announced,
// not that every listed file is fetchable yet; Fetch surfaces not-found
// for files a crashed or still-running writer has not uploaded.
type Board struct {
	store RemoteStore
	cache *cache.Manager

	subdir      string
	versioned   bool
	concurrency int
}

var pinNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Open creates or opens a board. The target selects the backend:
// "folder:///path" (or a bare path) for a directory tree,
// "oci://host/repo:tag" for an OCI registry. WithRemoteStore bypasses
// target parsing entirely.
func Open(target string, opts ...Option) (*Board, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	store := options.Remote
	if store == nil {
		var err error
		store, err = openRemote(target, options)
		if err != nil {
			return nil, err
		}
	}

	cacheDir := expandPath(options.CacheDir)
	if options.Subdir != "" {
		cacheDir = filepath.Join(cacheDir, options.Subdir)
	}
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	return &Board{
		store:       store,
		cache:       cache.New(cacheDir, options.CacheBudget, options.Concurrency),
		subdir:      options.Subdir,
		versioned:   options.Versioned,
		concurrency: options.Concurrency,
	}, nil
}

func openRemote(target string, options *Options) (RemoteStore, error) {
	switch {
	case strings.HasPrefix(target, "oci://"):
		return remote.NewOCI(strings.TrimPrefix(target, "oci://"), options.Auth)
	case strings.HasPrefix(target, "folder://"):
		return remote.NewFolder(strings.TrimPrefix(target, "folder://"))
	case target != "":
		return remote.NewFolder(target)
	}
	return nil, errors.New("pinboard: no board target given")
}

func (b *Board) Subdir() string      { return b.subdir }
func (b *Board) Versioned() bool     { return b.versioned }
func (b *Board) CacheDir() string    { return b.cache.Root() }
func (b *Board) Remote() RemoteStore { return b.store }

func (b *Board) pinPath(name string) string {
	return path.Join(b.subdir, name)
}

func (b *Board) versionPath(name, version string) string {
	return path.Join(b.subdir, name, version)
}

func (b *Board) filePath(name, version, file string) string {
	return path.Join(b.subdir, name, version, file)
}

// List returns the pin names under the board's namespace, sorted. Names
// are reported verbatim; no per-entry existence validation happens here.
func (b *Board) List(ctx context.Context) ([]string, error) {
	entries, err := b.store.ListDir(ctx, b.subdir)
	if err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("list board: %w: %w", ErrRemoteUnavailable, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsFile {
			names = append(names, e.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Exists reports whether a pin's remote path is present, independent of
// version completeness.
func (b *Board) Exists(ctx context.Context, name string) (bool, error) {
	if !pinNamePattern.MatchString(name) {
		return false, fmt.Errorf("pin %q: %w", name, ErrInvalidPinName)
	}
	ok, err := b.store.PathExists(ctx, b.pinPath(name))
	if err != nil {
		return false, fmt.Errorf("probe pin %q: %w: %w", name, ErrRemoteUnavailable, err)
	}
	return ok, nil
}

// Versions returns the pin's version IDs sorted ascending by creation
// time. Listing entries that do not parse as version IDs are ignored.
func (b *Board) Versions(ctx context.Context, name string) ([]string, error) {
	ok, err := b.Exists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("pin %q: %w", name, ErrPinNotFound)
	}
	entries, err := b.store.ListDir(ctx, b.pinPath(name))
	if err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("list pin %q: %w: %w", name, ErrRemoteUnavailable, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	return ParseVersions(names), nil
}

// ReadMeta resolves version (empty means latest), downloads the metadata
// blob into the cache path for that version and decodes it. The blob is
// always re-read from the remote; cached metadata is never served stale.
func (b *Board) ReadMeta(ctx context.Context, name, version string) (LocalMeta, error) {
	available, err := b.Versions(ctx, name)
	if err != nil {
		return LocalMeta{}, err
	}
	resolved, err := ResolveVersion(version, available)
	if err != nil {
		return LocalMeta{}, fmt.Errorf("pin %q: %w", name, err)
	}

	data, err := b.store.GetFile(ctx, b.filePath(name, resolved, MetaFileName))
	if err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			// The version directory parsed but its metadata blob is gone:
			// a published-but-incomplete or corrupted version.
			return LocalMeta{}, fmt.Errorf("pin %q version %q: %w", name, resolved, ErrVersionNotFound)
		}
		return LocalMeta{}, fmt.Errorf("read metadata for %q: %w: %w", name, ErrRemoteUnavailable, err)
	}

	m, err := DecodeMeta(data)
	if err != nil {
		return LocalMeta{}, fmt.Errorf("pin %q version %q: %w", name, resolved, err)
	}
	if _, err := b.cache.WriteFile(name, resolved, MetaFileName, data); err != nil {
		return LocalMeta{}, fmt.Errorf("%w: %w", ErrCacheWrite, err)
	}

	return LocalMeta{
		Meta:    m,
		Name:    name,
		Version: resolved,
		Dir:     b.cache.Dir(name, resolved),
	}, nil
}

// Fetch materializes a version locally: reads its metadata, then downloads
// every listed file not already valid in the cache. On success each file
// the metadata lists is present in the returned LocalMeta's directory.
func (b *Board) Fetch(ctx context.Context, name, version string) (LocalMeta, error) {
	lm, err := b.ReadMeta(ctx, name, version)
	if err != nil {
		return LocalMeta{}, err
	}
	b.cache.Touch(name, lm.Version)

	err = b.cache.Materialize(ctx, name, lm.Version, lm.Meta.File, lm.Meta.FileSize,
		func(ctx context.Context, file string) ([]byte, error) {
			data, err := b.store.GetFile(ctx, b.filePath(name, lm.Version, file))
			if err != nil {
				if errors.Is(err, remote.ErrNotFound) {
					return nil, fmt.Errorf("file %q: %w", file, err)
				}
				return nil, fmt.Errorf("file %q: %w: %w", file, ErrRemoteUnavailable, err)
			}
			return data, nil
		})
	if err != nil {
		return LocalMeta{}, fmt.Errorf("fetch %q@%s: %w", name, lm.Version, err)
	}

	if err := b.cache.Evict(); err != nil {
		return LocalMeta{}, fmt.Errorf("%w: %w", ErrCacheWrite, err)
	}
	return lm, nil
}

// StoreOption overrides per-call write behavior.
type StoreOption func(*storeOptions)

type storeOptions struct {
	versioned *bool
}

// StoreVersioned overrides the board's versioning mode for one Store call.
func StoreVersioned(versioned bool) StoreOption {
	return func(o *storeOptions) { o.versioned = &versioned }
}

// Store publishes a new version of a pin from local files. The metadata
// record is completed from the files (names, sizes, fingerprint), uploaded
// first, then the data files follow in parallel. Returns the pin name.
//
// With versioning disabled the write lands in a single fixed slot,
// replacing whatever it held.
func (b *Board) Store(ctx context.Context, name string, files []string, meta Meta, opts ...StoreOption) (string, error) {
	if !pinNamePattern.MatchString(name) {
		return "", fmt.Errorf("pin %q: %w", name, ErrInvalidPinName)
	}
	if len(files) == 0 {
		return "", fmt.Errorf("pin %q: no files to store", name)
	}

	var so storeOptions
	for _, opt := range opts {
		opt(&so)
	}
	versioned := b.versioned
	if so.versioned != nil {
		versioned = *so.versioned
	}

	meta.File = make([]string, len(files))
	meta.FileSize = make([]int64, len(files))
	contents := make(map[string][]byte, len(files))
	for i, p := range files {
		data, err := os.ReadFile(p)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", p, err)
		}
		base := filepath.Base(p)
		if !validFileName(base) {
			return "", fmt.Errorf("pin %q: file path %q has no storable name", name, p)
		}
		meta.File[i] = base
		meta.FileSize[i] = int64(len(data))
		contents[base] = data
	}
	meta.PinHash = Fingerprint(meta)
	meta.Created = time.Now().UTC().Format(versionTimeLayout)
	if meta.APIVersion == 0 {
		meta.APIVersion = metaAPIVersion
	}

	version := NewVersionID(meta.PinHash)
	if !versioned {
		version = unversionedID
	}

	encoded, err := EncodeMeta(meta)
	if err != nil {
		return "", err
	}

	if err := b.store.MkDir(ctx, b.pinPath(name)); err != nil {
		return "", fmt.Errorf("create pin %q: %w: %w", name, ErrRemoteUnavailable, err)
	}
	if !versioned {
		// Empty the slot so files from the previous write never outlive it.
		if err := b.deleteVersionFiles(ctx, name, version); err != nil && !errors.Is(err, remote.ErrNotFound) {
			return "", err
		}
		if err := b.cache.Invalidate(name, version); err != nil {
			return "", fmt.Errorf("%w: %w", ErrCacheWrite, err)
		}
	}

	// Metadata first: a reader that can see the version can enumerate what
	// to expect. The window between this upload and the last data file is
	// the documented announced-but-incomplete state.
	if err := b.store.PutFile(ctx, b.filePath(name, version, MetaFileName), encoded); err != nil {
		return "", fmt.Errorf("upload metadata for %q: %w: %w", name, ErrRemoteUnavailable, err)
	}

	p := pool.New().WithMaxGoroutines(b.concurrency).WithContext(ctx).WithCancelOnError()
	for base, data := range contents {
		p.Go(func(ctx context.Context) error {
			if err := b.store.PutFile(ctx, b.filePath(name, version, base), data); err != nil {
				return fmt.Errorf("upload %s: %w: %w", base, ErrRemoteUnavailable, err)
			}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return "", fmt.Errorf("store %q: %w", name, err)
	}

	// Write through to the cache: the bytes just uploaded are, by
	// construction, identical to the remote version.
	if _, err := b.cache.WriteFile(name, version, MetaFileName, encoded); err != nil {
		return "", fmt.Errorf("%w: %w", ErrCacheWrite, err)
	}
	for base, data := range contents {
		if _, err := b.cache.WriteFile(name, version, base, data); err != nil {
			return "", fmt.Errorf("%w: %w", ErrCacheWrite, err)
		}
	}
	b.cache.Touch(name, version)

	if err := b.cache.Evict(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrCacheWrite, err)
	}
	return name, nil
}

// Delete removes every version of a pin, remotely and from the cache.
func (b *Board) Delete(ctx context.Context, name string) error {
	versions, err := b.Versions(ctx, name)
	if err != nil {
		return err
	}
	for _, v := range versions {
		if err := b.deleteVersionFiles(ctx, name, v); err != nil && !errors.Is(err, remote.ErrNotFound) {
			return err
		}
	}
	if err := b.cache.Invalidate(name, ""); err != nil {
		return fmt.Errorf("%w: %w", ErrCacheWrite, err)
	}
	return nil
}

// DeleteVersion removes one version of a pin. The pin keeps existing even
// if this was its last version; subsequent reads fail with ErrNoVersions.
func (b *Board) DeleteVersion(ctx context.Context, name, version string) error {
	if version == "" {
		return fmt.Errorf("pin %q: version required", name)
	}
	ok, err := b.Exists(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("pin %q: %w", name, ErrPinNotFound)
	}
	if err := b.deleteVersionFiles(ctx, name, version); err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			return fmt.Errorf("pin %q version %q: %w", name, version, ErrVersionNotFound)
		}
		return err
	}
	// Keep the namespace entry alive: a pin emptied this way still exists,
	// its Versions just come back empty.
	if err := b.store.MkDir(ctx, b.pinPath(name)); err != nil {
		return fmt.Errorf("pin %q: %w: %w", name, ErrRemoteUnavailable, err)
	}
	if err := b.cache.Invalidate(name, version); err != nil {
		return fmt.Errorf("%w: %w", ErrCacheWrite, err)
	}
	return nil
}

func (b *Board) deleteVersionFiles(ctx context.Context, name, version string) error {
	entries, err := b.store.ListDir(ctx, b.versionPath(name, version))
	if err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			return err
		}
		return fmt.Errorf("list %q@%s: %w: %w", name, version, ErrRemoteUnavailable, err)
	}
	for _, e := range entries {
		if !e.IsFile {
			continue
		}
		err := b.store.DeleteFile(ctx, b.filePath(name, version, e.Name))
		if err != nil && !errors.Is(err, remote.ErrNotFound) {
			return fmt.Errorf("delete %q@%s/%s: %w: %w", name, version, e.Name, ErrRemoteUnavailable, err)
		}
	}
	return nil
}
