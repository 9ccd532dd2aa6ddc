package pinboard

import "github.com/aweris/pinboard/internal/remote"

// RemoteStore is the collaborator contract a board runs against: a
// file-level view of the remote endpoint. Built-in backends cover a plain
// directory tree and an OCI registry; custom backends plug in through
// WithRemoteStore and must return ErrNotFound from GetFile and DeleteFile
// for absent paths.
type RemoteStore = remote.Store

// DirEntry is one name in a RemoteStore directory listing.
type DirEntry = remote.Entry

// Authenticator provides credentials for registry-backed boards.
type Authenticator = remote.Authenticator
