// Package pinboard implements a versioned pin store: named collections of
// immutable versions, each a metadata record plus one or more data files,
// kept on a remote store and mirrored through a local on-disk cache.
//
// A pin is a logical name; every write publishes a new immutable version
// identified by a sortable timestamp plus a short content-derived suffix.
// Reads go through the cache: metadata is always re-read from the remote,
// data files are downloaded once and served locally afterwards.
//
// Basic usage (folder-backed board):
//
//	b, _ := pinboard.Open("folder:///var/lib/pins")
//
//	// Publish a new version
//	_, _ = b.Store(ctx, "mtcars", []string{"mtcars.csv"}, pinboard.Meta{
//		Type:  "table",
//		Title: "Motor Trend road tests",
//	})
//
//	// Materialize the latest version locally
//	lm, _ := b.Fetch(ctx, "mtcars", "")
//	data, _ := os.ReadFile(lm.Path("mtcars.csv"))
//
//	// Inspect
//	pins, _ := b.List(ctx)
//	vers, _ := b.Versions(ctx, "mtcars")
//
//	// Remove
//	_ = b.DeleteVersion(ctx, "mtcars", vers[0])
//	_ = b.Delete(ctx, "mtcars")
//
// With an OCI registry as the remote:
//
//	b, _ := pinboard.Open("oci://ttl.sh/myorg/pins:main")
//
// Boards opened with WithVersioned(false) overwrite a single implicit
// version instead of appending; individual Store calls can override the
// board default with StoreVersioned.
package pinboard
