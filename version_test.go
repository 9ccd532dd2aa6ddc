package pinboard

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionIDOrdering(t *testing.T) {
	t1 := time.Date(2024, 1, 1, 10, 30, 0, 0, time.UTC)
	t2 := time.Date(2024, 1, 1, 10, 30, 1, 0, time.UTC)

	// Suffixes deliberately sort against the timestamps.
	id1 := versionIDAt(t1, "fffff")
	id2 := versionIDAt(t2, "00000")

	assert.Less(t, id1, id2)
}

func TestVersionIDGrammar(t *testing.T) {
	id := versionIDAt(time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC), "abcdef0123")
	assert.Equal(t, "20240315T080000.000000000Z-abcde", id)
	assert.True(t, versionIDPattern.MatchString(id))

	// Short fingerprints are padded to the suffix length.
	short := versionIDAt(time.Now(), "ab")
	assert.True(t, versionIDPattern.MatchString(short))
}

func TestParseVersionsFiltersNoise(t *testing.T) {
	names := []string{
		"20240102T000000.000000000Z-def00",
		".DS_Store",
		"20240101T000000.000000000Z-abc00",
		"not-a-version",
		"20240101T000000.000000000Z-ABCDE", // uppercase suffix is malformed
		"data.txt",
	}

	versions := ParseVersions(names)

	assert.Equal(t, []string{
		"20240101T000000.000000000Z-abc00",
		"20240102T000000.000000000Z-def00",
	}, versions)
}

func TestResolveVersionDefaultIsLatest(t *testing.T) {
	available := []string{"20240101T000000.000000000Z-abc00", "20240102T000000.000000000Z-def00"}

	v, err := ResolveVersion("", available)
	require.NoError(t, err)
	assert.Equal(t, "20240102T000000.000000000Z-def00", v)
}

func TestResolveVersionExplicit(t *testing.T) {
	available := []string{"20240101T000000.000000000Z-abc00", "20240102T000000.000000000Z-def00"}

	v, err := ResolveVersion("20240101T000000.000000000Z-abc00", available)
	require.NoError(t, err)
	assert.Equal(t, "20240101T000000.000000000Z-abc00", v)

	_, err = ResolveVersion("20240103T000000.000000000Z-eeeee", available)
	assert.True(t, errors.Is(err, ErrVersionNotFound))
}

func TestResolveVersionEmpty(t *testing.T) {
	_, err := ResolveVersion("", nil)
	assert.True(t, errors.Is(err, ErrNoVersions))

	_, err = ResolveVersion("20240101T000000.000000000Z-abc00", nil)
	assert.True(t, errors.Is(err, ErrNoVersions))
}
