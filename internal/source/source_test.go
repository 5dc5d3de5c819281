package source

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestFileSource_OpenAndKeys(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bitcoin_data.csv", "Date,Close\n2024-01-01,1\n")
	abs := writeFile(t, t.TempDir(), "gold.csv", "Date,Close\n")

	src := NewFileSource(dir, map[string]string{
		"bitcoin": "bitcoin_data.csv",
		"gold":    abs,
		"sp500":   "missing.csv",
	})
	assert.Equal(t, []string{"bitcoin", "gold", "sp500"}, src.Keys())
	assert.True(t, src.Has("gold"))

	rc, err := src.Open(context.Background(), "bitcoin")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Contains(t, string(body), "2024-01-01")

	path, err := src.Path("gold")
	require.NoError(t, err)
	assert.Equal(t, abs, path)

	_, err = src.Open(context.Background(), "sp500")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnknownAsset)
}

func TestFileSource_UnknownAsset(t *testing.T) {
	src := NewFileSource(t.TempDir(), map[string]string{})

	_, err := src.Open(context.Background(), "doge")
	assert.ErrorIs(t, err, ErrUnknownAsset)

	_, err = src.Fingerprint("doge")
	assert.ErrorIs(t, err, ErrUnknownAsset)
	assert.False(t, src.Has("doge"))
}

func TestFileSource_CanceledContext(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.csv", "Date,Close\n")
	src := NewFileSource(dir, map[string]string{"a": "a.csv"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := src.Open(ctx, "a")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFileSource_FingerprintChangesWithContent(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.csv", "Date,Close\n")
	src := NewFileSource(dir, map[string]string{"a": "a.csv"})

	before, err := src.Fingerprint("a")
	require.NoError(t, err)

	again, err := src.Fingerprint("a")
	require.NoError(t, err)
	assert.Equal(t, before, again)

	require.NoError(t, os.WriteFile(path, []byte("Date,Close\n2024-01-01,5\n"), 0o600))
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))

	after, err := src.Fingerprint("a")
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
}
