package manifest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pithecene-io/stager/archive"
	"github.com/pithecene-io/stager/chunker"
)

func stagedFixture(t *testing.T) (string, Manifest) {
	t.Helper()
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "data.bin.zip")
	content := []byte("0123456789abcdefghij-tail")
	require.NoError(t, os.WriteFile(archivePath, content, 0o644))

	parts, err := chunker.Split(archivePath, 10)
	require.NoError(t, err)

	art := archive.Artifact{Path: archivePath, EntryName: "data.bin", Size: int64(len(content))}
	created := time.Date(2026, 10, 17, 8, 0, 0, 0, time.FixedZone("x", 3600))
	return dir, New("sid-1", art, 10, parts, created)
}

func TestNew(t *testing.T) {
	_, m := stagedFixture(t)

	assert.Equal(t, FormatVersion, m.Version)
	assert.Equal(t, "sid-1", m.StagingID)
	assert.Equal(t, "data.bin.zip", m.Archive)
	assert.Equal(t, "data.bin", m.Entry)
	assert.Equal(t, time.UTC, m.CreatedAt.Location())
	require.Len(t, m.Parts, 3)
	assert.Equal(t, Part{
		Name:  "data.bin.zip.001",
		Seq:   1,
		Size:  10,
		XXH64: formatDigest(xxhash.Sum64String("0123456789")),
	}, m.Parts[0])
	assert.Equal(t, int64(25), m.Total())
}

func TestWriteReadRoundTrip(t *testing.T) {
	dir, m := stagedFixture(t)
	path := PathFor(filepath.Join(dir, m.Archive))

	require.NoError(t, Write(path, m))
	assert.NoFileExists(t, path+".tmp")

	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestReadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Read(filepath.Join(dir, "missing.json"))
	assert.ErrorContains(t, err, "manifest not found")

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o644))
	_, err = Read(bad)
	assert.ErrorContains(t, err, "invalid manifest")

	future := filepath.Join(dir, "future.json")
	require.NoError(t, os.WriteFile(future, []byte(`{"version": 99}`), 0o644))
	_, err = Read(future)
	assert.ErrorContains(t, err, "unsupported manifest version 99")
}

func TestReadRejectsPartNamesOutsideDir(t *testing.T) {
	for _, name := range []string{"../secret", "sub/data.bin.zip.001", "/etc/passwd", "..", ""} {
		t.Run(name, func(t *testing.T) {
			dir, m := stagedFixture(t)
			m.Parts[0].Name = name
			path := PathFor(filepath.Join(dir, m.Archive))
			require.NoError(t, Write(path, m))

			_, err := Read(path)
			assert.ErrorContains(t, err, "not a plain file name")
			assert.Error(t, m.Verify(dir))
		})
	}
}

func TestVerify(t *testing.T) {
	dir, m := stagedFixture(t)
	require.NoError(t, m.Verify(dir))

	// Same size, different content.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data.bin.zip.002"), []byte("ABCDEFGHIJ"), 0o644))
	assert.ErrorIs(t, m.Verify(dir), ErrMismatch)
}

func TestVerifyDetectsTruncation(t *testing.T) {
	dir, m := stagedFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data.bin.zip.003"), []byte("-ta"), 0o644))
	assert.ErrorIs(t, m.Verify(dir), ErrMismatch)
}

func TestVerifyMissingPart(t *testing.T) {
	dir, m := stagedFixture(t)
	require.NoError(t, os.Remove(filepath.Join(dir, "data.bin.zip.001")))
	err := m.Verify(dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestChunkerPartsJoinBack(t *testing.T) {
	dir, m := stagedFixture(t)

	parts := m.ChunkerParts(dir)
	require.Len(t, parts, 3)
	assert.Equal(t, xxhash.Sum64String("0123456789"), parts[0].Digest)

	out := filepath.Join(dir, "rebuilt.zip")
	n, err := chunker.Join(parts, out)
	require.NoError(t, err)
	assert.Equal(t, m.ArchiveSize, n)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdefghij-tail", string(data))
}
