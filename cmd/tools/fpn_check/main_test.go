package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanReportsMalformedSaves(t *testing.T) {
	dir := t.TempDir()
	good := "$ CATEGORIES\nSnacks\n$ SOURCES\n$ DEALS\n$ ITEMS\nPeanuts,Snacks,-,2.5,10\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.fpn"), []byte(good), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	bad, err := scan(dir)
	require.NoError(t, err)
	assert.Empty(t, bad)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.fpn"), []byte("$ CATEGORIES\n$ ITEMS\n"), 0o644))
	bad, err = scan(dir)
	require.NoError(t, err)
	require.Len(t, bad, 1)
	assert.Contains(t, bad[0], "broken.fpn")
}

func TestScanMissingDirectory(t *testing.T) {
	_, err := scan(filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
}

func TestRootDirDefaultsToSaveDir(t *testing.T) {
	assert.Equal(t, "./saves", rootDir(nil))
	assert.Equal(t, "/var/pos", rootDir([]string{"/var/pos"}))
}
