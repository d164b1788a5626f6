// Package testutil holds shared test helpers.
package testutil

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// WriteFile writes content to a file under dir, creating parent
// directories.
func WriteFile(t *testing.T, dir, path, content string) {
	t.Helper()
	fullPath := filepath.Join(dir, filepath.FromSlash(path))
	require.NoError(t, os.MkdirAll(filepath.Dir(fullPath), 0o755))
	require.NoError(t, os.WriteFile(fullPath, []byte(content), 0o644))
}

// WriteBinary writes raw bytes to a file under dir.
func WriteBinary(t *testing.T, dir, path string, content []byte) {
	t.Helper()
	fullPath := filepath.Join(dir, filepath.FromSlash(path))
	require.NoError(t, os.MkdirAll(filepath.Dir(fullPath), 0o755))
	require.NoError(t, os.WriteFile(fullPath, content, 0o644))
}

// ReadFile reads content from a file under dir.
func ReadFile(t *testing.T, dir, path string) string {
	t.Helper()
	content, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(path)))
	require.NoError(t, err)
	return string(content)
}

// FileExists checks if a file exists under dir.
func FileExists(t *testing.T, dir, path string) bool {
	t.Helper()
	_, err := os.Stat(filepath.Join(dir, filepath.FromSlash(path)))
	return err == nil
}

// NormalizeHTML normalizes HTML for comparison (whitespace between tags).
func NormalizeHTML(html string) string {
	html = regexp.MustCompile(`\s+`).ReplaceAllString(html, " ")
	html = regexp.MustCompile(`>\s+<`).ReplaceAllString(html, "><")
	return strings.TrimSpace(html)
}
