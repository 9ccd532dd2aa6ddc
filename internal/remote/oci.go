package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/empty"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	gcr "github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/remote/transport"
	"github.com/google/go-containerregistry/pkg/v1/types"
	"github.com/klauspost/compress/zstd"
)

// indexLabel holds the path index in the board image's config: a JSON map
// from slash path to the layer carrying that file.
const indexLabel = "dev.pinboard.index"

// dirMarker is the reserved index entry that keeps an otherwise empty
// directory alive, mirroring what an empty directory is on a filesystem
// backend. ListDir hides it; PathExists honors it; DeleteFile prunes it
// once its directory holds nothing else.
const dirMarker = ".dir"

// OCI is a Store over a single tagged image in an OCI registry. Every file
// is one zstd-compressed layer; the config label maps paths to layers.
// Mutations are read-modify-write on the manifest, serialized per handle.
type OCI struct {
	ref         name.Reference
	auth        Authenticator
	concurrency int

	mu sync.Mutex // serializes manifest read-modify-write
}

// layerInfo records where a path lives. DiffID is kept so manifests can be
// rebuilt without downloading and decompressing existing layers.
type layerInfo struct {
	Digest string `json:"digest"`
	DiffID string `json:"diffID"`
	Size   int64  `json:"size"`
}

// NewOCI creates a store from a standard image ref (e.g. "ttl.sh/org/pins:main").
func NewOCI(imageRef string, auth Authenticator) (*OCI, error) {
	ref, err := name.ParseReference(imageRef, name.WithDefaultTag("latest"))
	if err != nil {
		return nil, fmt.Errorf("invalid image ref %q: %w", imageRef, err)
	}
	return &OCI{ref: ref, auth: auth, concurrency: DefaultConcurrency}, nil
}

// SetConcurrency sets the number of parallel blob uploads per push.
func (r *OCI) SetConcurrency(n int) {
	if n > 0 {
		r.concurrency = n
	}
}

func (r *OCI) String() string   { return "oci://" + r.ref.String() }
func (r *OCI) Registry() string { return r.ref.Context().RegistryStr() }

func cleanPath(p string) string {
	return strings.TrimPrefix(path.Clean("/"+p), "/")
}

func (r *OCI) PathExists(ctx context.Context, p string) (bool, error) {
	_, index, err := r.load(ctx)
	if err != nil {
		return false, err
	}
	p = cleanPath(p)
	if p == "" {
		return true, nil
	}
	for key := range index {
		if key == p || strings.HasPrefix(key, p+"/") {
			return true, nil
		}
	}
	return false, nil
}

func (r *OCI) ListDir(ctx context.Context, p string) ([]Entry, error) {
	_, index, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	p = cleanPath(p)
	prefix := ""
	if p != "" {
		prefix = p + "/"
	}

	seen := make(map[string]bool)
	matched := false
	var entries []Entry
	for key := range index {
		rel, ok := strings.CutPrefix(key, prefix)
		if !ok {
			continue
		}
		matched = true
		child, _, nested := strings.Cut(rel, "/")
		if child == dirMarker && !nested {
			continue
		}
		if seen[child] {
			continue
		}
		seen[child] = true
		entries = append(entries, Entry{Name: child, IsFile: !nested})
	}
	if p != "" && !matched {
		return nil, fmt.Errorf("list %s: %w", p, ErrNotFound)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func (r *OCI) GetFile(ctx context.Context, p string) ([]byte, error) {
	img, index, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	info, ok := index[cleanPath(p)]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", p, ErrNotFound)
	}
	hash, err := v1.NewHash(info.Digest)
	if err != nil {
		return nil, fmt.Errorf("get %s: bad layer digest: %w", p, err)
	}
	layer, err := img.LayerByDigest(hash)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", p, err)
	}
	rc, err := layer.Compressed()
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", p, err)
	}
	compressed, err := io.ReadAll(rc)
	if cerr := rc.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", p, err)
	}
	data, err := zstdDecoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("get %s: decompress: %w", p, err)
	}
	return data, nil
}

func (r *OCI) PutFile(ctx context.Context, p string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	img, index, err := r.load(ctx)
	if err != nil {
		return err
	}
	layer := newFileLayer(data)
	digest, err := layer.Digest()
	if err != nil {
		return fmt.Errorf("put %s: %w", p, err)
	}
	diffID, err := layer.DiffID()
	if err != nil {
		return fmt.Errorf("put %s: %w", p, err)
	}
	index[cleanPath(p)] = layerInfo{
		Digest: digest.String(),
		DiffID: diffID.String(),
		Size:   int64(len(data)),
	}
	added := map[string]v1.Layer{digest.String(): layer}
	if err := r.save(ctx, img, index, added); err != nil {
		return fmt.Errorf("put %s: %w", p, err)
	}
	return nil
}

func (r *OCI) DeleteFile(ctx context.Context, p string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	img, index, err := r.load(ctx)
	if err != nil {
		return err
	}
	key := cleanPath(p)
	if _, ok := index[key]; !ok {
		return fmt.Errorf("delete %s: %w", p, ErrNotFound)
	}
	delete(index, key)
	pruneMarkers(index, key)
	if err := r.save(ctx, img, index, nil); err != nil {
		return fmt.Errorf("delete %s: %w", p, err)
	}
	return nil
}

// pruneMarkers walks up from a just-deleted key and drops directory
// markers whose directory holds nothing else, the way a filesystem backend
// prunes emptied parent directories.
func pruneMarkers(index map[string]layerInfo, key string) {
	for dir := path.Dir(key); dir != "." && dir != "/"; dir = path.Dir(dir) {
		prefix := dir + "/"
		marker := prefix + dirMarker
		for k := range index {
			if strings.HasPrefix(k, prefix) && k != marker {
				return
			}
		}
		delete(index, marker)
	}
}

// MkDir records a directory marker in the index so the path keeps existing
// with no files under it.
func (r *OCI) MkDir(ctx context.Context, p string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	img, index, err := r.load(ctx)
	if err != nil {
		return err
	}
	p = cleanPath(p)
	if p == "" {
		return nil
	}
	key := p + "/" + dirMarker
	if _, ok := index[key]; ok {
		return nil
	}
	layer := newFileLayer(nil)
	digest, err := layer.Digest()
	if err != nil {
		return fmt.Errorf("mkdir %s: %w", p, err)
	}
	diffID, err := layer.DiffID()
	if err != nil {
		return fmt.Errorf("mkdir %s: %w", p, err)
	}
	index[key] = layerInfo{Digest: digest.String(), DiffID: diffID.String()}
	added := map[string]v1.Layer{digest.String(): layer}
	if err := r.save(ctx, img, index, added); err != nil {
		return fmt.Errorf("mkdir %s: %w", p, err)
	}
	return nil
}

// load fetches the board image and its path index. A missing tag is an
// empty board, not an error.
func (r *OCI) load(ctx context.Context) (v1.Image, map[string]layerInfo, error) {
	img, err := retry(ctx, 3, func() (v1.Image, error) {
		return gcr.Image(r.ref, r.remoteOptions(ctx)...)
	})
	if err != nil {
		if isNotFound(err) {
			return empty.Image, make(map[string]layerInfo), nil
		}
		return nil, nil, fmt.Errorf("fetch %s: %w", r.ref, err)
	}

	cfg, err := img.ConfigFile()
	if err != nil {
		return nil, nil, fmt.Errorf("get config: %w", err)
	}
	index := make(map[string]layerInfo)
	if raw := cfg.Config.Labels[indexLabel]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &index); err != nil {
			return nil, nil, fmt.Errorf("parse index label: %w", err)
		}
	}
	return img, index, nil
}

func isNotFound(err error) bool {
	var terr *transport.Error
	return errors.As(err, &terr) && terr.StatusCode == http.StatusNotFound
}

// save rebuilds the board image so it references exactly the layers the
// index names, then pushes the manifest. Existing layers are reattached by
// digest without being downloaded.
func (r *OCI) save(ctx context.Context, prev v1.Image, index map[string]layerInfo, added map[string]v1.Layer) error {
	img := empty.Image

	seen := make(map[string]bool)
	var layers []v1.Layer
	for _, info := range index {
		if seen[info.Digest] {
			continue
		}
		seen[info.Digest] = true

		if layer, ok := added[info.Digest]; ok {
			layers = append(layers, layer)
			continue
		}
		hash, err := v1.NewHash(info.Digest)
		if err != nil {
			return fmt.Errorf("bad layer digest %q: %w", info.Digest, err)
		}
		inner, err := prev.LayerByDigest(hash)
		if err != nil {
			return fmt.Errorf("layer %s: %w", info.Digest, err)
		}
		diffID, err := v1.NewHash(info.DiffID)
		if err != nil {
			return fmt.Errorf("bad layer diffID %q: %w", info.DiffID, err)
		}
		layers = append(layers, &reattachedLayer{inner: inner, diffID: diffID})
	}

	if len(layers) > 0 {
		var err error
		img, err = mutate.AppendLayers(img, layers...)
		if err != nil {
			return fmt.Errorf("append layers: %w", err)
		}
	}

	cfg, err := img.ConfigFile()
	if err != nil {
		return fmt.Errorf("get config: %w", err)
	}
	indexJSON, err := json.Marshal(index)
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}
	cfg = cfg.DeepCopy()
	cfg.Config.Labels = map[string]string{indexLabel: string(indexJSON)}
	img, err = mutate.ConfigFile(img, cfg)
	if err != nil {
		return fmt.Errorf("set config: %w", err)
	}

	options := r.remoteOptions(ctx)
	options = append(options, gcr.WithJobs(r.concurrency))
	_, err = retry(ctx, 3, func() (struct{}, error) {
		return struct{}{}, gcr.Write(r.ref, img, options...)
	})
	if err != nil {
		return fmt.Errorf("push %s: %w", r.ref, err)
	}
	return nil
}

func (r *OCI) remoteOptions(ctx context.Context) []gcr.Option {
	options := []gcr.Option{gcr.WithContext(ctx)}
	if r.auth != nil {
		username, password, err := r.auth.Authenticate(r.Registry())
		if err == nil && username != "" {
			return append(options, gcr.WithAuth(&authn.Basic{
				Username: username,
				Password: password,
			}))
		}
	}
	return append(options, gcr.WithAuthFromKeychain(authn.DefaultKeychain))
}

var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	zstdDecoder, _ = zstd.NewReader(nil)
)

// fileLayer implements v1.Layer for one file's bytes, zstd-compressed for
// transfer.
type fileLayer struct {
	compressed   []byte
	uncompressed []byte
}

func newFileLayer(data []byte) *fileLayer {
	return &fileLayer{
		compressed:   zstdEncoder.EncodeAll(data, nil),
		uncompressed: data,
	}
}

func (l *fileLayer) Digest() (v1.Hash, error) {
	h, _, err := v1.SHA256(bytes.NewReader(l.compressed))
	return h, err
}

func (l *fileLayer) DiffID() (v1.Hash, error) {
	h, _, err := v1.SHA256(bytes.NewReader(l.uncompressed))
	return h, err
}

func (l *fileLayer) Compressed() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(l.compressed)), nil
}

func (l *fileLayer) Uncompressed() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(l.uncompressed)), nil
}

func (l *fileLayer) Size() (int64, error)                { return int64(len(l.compressed)), nil }
func (l *fileLayer) MediaType() (types.MediaType, error) { return types.OCILayerZStd, nil }

// reattachedLayer wraps a registry-backed layer with its recorded diffID so
// rebuilding a manifest never has to download and decompress the blob.
type reattachedLayer struct {
	inner  v1.Layer
	diffID v1.Hash
}

func (l *reattachedLayer) Digest() (v1.Hash, error)  { return l.inner.Digest() }
func (l *reattachedLayer) DiffID() (v1.Hash, error)  { return l.diffID, nil }
func (l *reattachedLayer) Size() (int64, error)      { return l.inner.Size() }
func (l *reattachedLayer) MediaType() (types.MediaType, error) {
	return l.inner.MediaType()
}

func (l *reattachedLayer) Compressed() (io.ReadCloser, error) {
	return l.inner.Compressed()
}

func (l *reattachedLayer) Uncompressed() (io.ReadCloser, error) {
	rc, err := l.inner.Compressed()
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(rc)
	if cerr := rc.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return nil, err
	}
	raw, err := zstdDecoder.DecodeAll(data, nil)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func retry[T any](ctx context.Context, maxAttempts int, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		// Don't retry definitive registry answers like 404.
		var terr *transport.Error
		if errors.As(err, &terr) && terr.StatusCode >= 400 && terr.StatusCode < 500 {
			return zero, err
		}
		lastErr = err
		if i < maxAttempts-1 {
			delay := time.Duration(1<<i) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return zero, lastErr
}
