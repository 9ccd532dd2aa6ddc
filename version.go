package pinboard

import (
	"fmt"
	"regexp"
	"sort"
	"time"
)

// versionTimeLayout is the sortable UTC timestamp embedded in version IDs.
// Nanosecond digits are fixed-width, so lexicographic order of well-formed
// IDs equals chronological order even for writes within the same second.
const versionTimeLayout = "20060102T150405.000000000Z"

// versionSuffixLen is the number of fingerprint hex characters appended to
// the timestamp. The suffix keeps concurrent writes of distinct content
// from colliding on identical timestamps.
const versionSuffixLen = 5

// unversionedID is the fixed slot written by boards with versioning
// disabled. It is grammar-valid so listing and resolution treat it like any
// other version; the epoch timestamp sorts it before real versions.
const unversionedID = "19700101T000000.000000000Z-00000"

var versionIDPattern = regexp.MustCompile(`^[0-9]{8}T[0-9]{6}\.[0-9]{9}Z-[0-9a-f]{5}$`)

// NewVersionID derives a version ID from the current time and a metadata
// fingerprint (see Fingerprint).
func NewVersionID(fingerprint string) string {
	return versionIDAt(time.Now(), fingerprint)
}

func versionIDAt(t time.Time, fingerprint string) string {
	suffix := fingerprint
	if len(suffix) > versionSuffixLen {
		suffix = suffix[:versionSuffixLen]
	}
	for len(suffix) < versionSuffixLen {
		suffix += "0"
	}
	return t.UTC().Format(versionTimeLayout) + "-" + suffix
}

// ParseVersions filters directory entry names down to well-formed version
// IDs and returns them sorted ascending by embedded timestamp. Names that
// do not match the version grammar are backend listing noise and dropped.
func ParseVersions(names []string) []string {
	versions := make([]string, 0, len(names))
	for _, name := range names {
		if versionIDPattern.MatchString(name) {
			versions = append(versions, name)
		}
	}
	sort.Strings(versions)
	return versions
}

// ResolveVersion picks the version to read from an ascending list of
// available versions. An empty request selects the latest.
func ResolveVersion(requested string, available []string) (string, error) {
	if len(available) == 0 {
		return "", ErrNoVersions
	}
	if requested == "" {
		return available[len(available)-1], nil
	}
	for _, v := range available {
		if v == requested {
			return v, nil
		}
	}
	return "", fmt.Errorf("version %q: %w", requested, ErrVersionNotFound)
}
