package pinboard

import (
	"errors"

	"github.com/aweris/pinboard/internal/remote"
)

// ErrNotFound is the absence error RemoteStore implementations return from
// GetFile and DeleteFile. Board operations translate it into one of the
// specific kinds below.
var ErrNotFound = remote.ErrNotFound

var (
	ErrPinNotFound       = errors.New("pinboard: pin not found")
	ErrVersionNotFound   = errors.New("pinboard: version not found")
	ErrNoVersions        = errors.New("pinboard: pin has no versions")
	ErrInvalidPinName    = errors.New("pinboard: invalid pin name")
	ErrCorruptMetadata   = errors.New("pinboard: corrupt metadata")
	ErrRemoteUnavailable = errors.New("pinboard: remote unavailable")
	ErrCacheWrite        = errors.New("pinboard: cache write failed")
)
