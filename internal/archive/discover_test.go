package archive

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatestDir(t *testing.T) {
	root := t.TempDir()
	reports := filepath.Join(root, "reports")
	old := filepath.Join(reports, "NVDA_20260701_090000")
	recent := filepath.Join(reports, "NVDA_20260801_090000")
	other := filepath.Join(reports, "AAPL_20260801_090000")
	require.NoError(t, os.MkdirAll(old, 0o755))
	require.NoError(t, os.MkdirAll(recent, 0o755))
	require.NoError(t, os.MkdirAll(other, 0o755))

	// Glob matching is name based, but selection is by modification time.
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	dir, ok := LatestDir(root, "NVDA")
	require.True(t, ok)
	assert.Equal(t, recent, dir)
}

func TestLatestDir_NoMatches(t *testing.T) {
	root := t.TempDir()

	_, ok := LatestDir(root, "NVDA")
	assert.False(t, ok)
}
