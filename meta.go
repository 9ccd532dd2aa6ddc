package pinboard

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// MetaFileName is the well-known metadata blob inside every version
// directory. Its presence at the remote is the existence oracle for a
// version.
const MetaFileName = "data.txt"

// metaAPIVersion is the schema version written into new records.
const metaAPIVersion = 1

// Meta describes one published version of a pin: the data files it owns,
// a type tag for the payload shape, and free-form descriptive fields.
type Meta struct {
	File        []string       `yaml:"file"`
	FileSize    []int64        `yaml:"file_size,omitempty"`
	PinHash     string         `yaml:"pin_hash,omitempty"`
	Type        string         `yaml:"type,omitempty"`
	Title       string         `yaml:"title,omitempty"`
	Description string         `yaml:"description,omitempty"`
	Created     string         `yaml:"created,omitempty"`
	APIVersion  int            `yaml:"api_version"`
	User        map[string]any `yaml:"user,omitempty"`
}

// EncodeMeta serializes a record as YAML.
func EncodeMeta(m Meta) ([]byte, error) {
	data, err := yaml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return data, nil
}

// DecodeMeta parses a metadata blob. Blobs that do not parse, that name no
// data files, or whose file names would resolve outside the version
// directory are reported as corrupt rather than silently defaulted.
func DecodeMeta(data []byte) (Meta, error) {
	var m Meta
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Meta{}, fmt.Errorf("%w: %v", ErrCorruptMetadata, err)
	}
	if len(m.File) == 0 {
		return Meta{}, fmt.Errorf("%w: no data files listed", ErrCorruptMetadata)
	}
	for _, f := range m.File {
		if !validFileName(f) {
			return Meta{}, fmt.Errorf("%w: bad file name %q", ErrCorruptMetadata, f)
		}
	}
	return m, nil
}

// validFileName reports whether a data file name is a plain base name that
// stays inside its version directory.
func validFileName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`)
}

// Fingerprint hashes the semantic content of a record: the file set and the
// descriptive fields. File enumeration order and the created timestamp do
// not affect the result, so repeated writes of identical content produce
// comparable fingerprints. The User map is excluded too: free-form
// annotations do not define new content, and the timestamp component of
// the version ID keeps such writes distinct.
func Fingerprint(m Meta) string {
	items := make([]string, 0, len(m.File))
	for i, f := range m.File {
		var size int64
		if i < len(m.FileSize) {
			size = m.FileSize[i]
		}
		items = append(items, fmt.Sprintf("file\x00%s\x00%d", f, size))
	}
	sort.Strings(items)
	items = append(items,
		"type\x00"+m.Type,
		"title\x00"+m.Title,
		"description\x00"+m.Description,
	)
	h := sha256.Sum256([]byte(strings.Join(items, "\n")))
	return hex.EncodeToString(h[:])
}

// LocalMeta is a decoded metadata record bound to a resolved version and
// its local cache directory.
type LocalMeta struct {
	Meta    Meta
	Name    string
	Version string
	Dir     string
}

// Path returns the local path of one of the version's files.
func (m LocalMeta) Path(file string) string {
	return filepath.Join(m.Dir, file)
}
