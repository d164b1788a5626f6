package fscache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solemnwarning/chmweb/internal/testutil"
)

func TestExistsAndIsDir(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "sub/file.htm", "x")
	c := New(dir, nil)

	assert.True(t, c.Exists("sub/file.htm"))
	assert.True(t, c.Exists("sub"))
	assert.False(t, c.Exists("missing"))

	assert.True(t, c.IsDir("sub"))
	assert.False(t, c.IsDir("sub/file.htm"))
	assert.False(t, c.IsDir("missing"))
}

func TestChildren(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "a.htm", "x")
	testutil.WriteFile(t, dir, "B.htm", "x")
	c := New(dir, nil)

	kids := c.Children("")
	assert.ElementsMatch(t, []string{"a.htm", "B.htm"}, kids)

	// Non-directory and missing directories yield empty lists.
	assert.Empty(t, c.Children("a.htm"))
	assert.Empty(t, c.Children("missing"))
}

func TestChildrenMemoised(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "a.htm", "x")
	c := New(dir, nil)

	require.Len(t, c.Children(""), 1)
	testutil.WriteFile(t, dir, "b.htm", "x")

	// Still the memoised view until an explicit reset.
	assert.Len(t, c.Children(""), 1)
	c.Reset()
	assert.Len(t, c.Children(""), 2)
}

func TestCaseInsensitiveChildren(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "Fig6-2.gif", "x")
	testutil.WriteFile(t, dir, "other.gif", "x")
	c := New(dir, nil)

	matches := c.CaseInsensitiveChildren("", "fig6-2.GIF")
	assert.Equal(t, []string{"Fig6-2.gif"}, matches)

	assert.Empty(t, c.CaseInsensitiveChildren("", "nothing.gif"))
}

func TestMissingDirDoesNotWarn(t *testing.T) {
	dir := t.TempDir()
	var warnings []string
	c := New(dir, func(format string, args ...interface{}) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	})

	// A missing directory is not warned about; discovery probes these
	// constantly.
	c.Children("missing")
	c.Children("missing")
	assert.Empty(t, warnings)
}
