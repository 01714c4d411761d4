package platform

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDataDirUsesXDGDataHomeOnDefaultBranch(t *testing.T) {
	if runtime.GOOS == osWindows || runtime.GOOS == osDarwin || runtime.GOOS == osAndroid {
		t.Skip("XDG fallback only applies on the default branch")
	}

	t.Setenv("XDG_DATA_HOME", "/tmp/xdg-data")
	dir, err := GetDataDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/tmp/xdg-data", "platune"), dir)
}

func TestGetDataDirFallsBackToHomeDotLocalShare(t *testing.T) {
	if runtime.GOOS == osWindows || runtime.GOOS == osDarwin || runtime.GOOS == osAndroid {
		t.Skip("XDG fallback only applies on the default branch")
	}

	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("HOME", "/home/tester")
	dir, err := GetDataDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/home/tester", ".local", "share", "platune"), dir)
}

func TestGetCacheDirUsesXDGCacheHomeOnDefaultBranch(t *testing.T) {
	if runtime.GOOS == osWindows || runtime.GOOS == osDarwin || runtime.GOOS == osAndroid {
		t.Skip("XDG fallback only applies on the default branch")
	}

	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg-cache")
	dir, err := GetCacheDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/tmp/xdg-cache", "platune"), dir)
}

func TestGetConfigDirUsesXDGConfigHomeOnDefaultBranch(t *testing.T) {
	if runtime.GOOS == osWindows || runtime.GOOS == osDarwin || runtime.GOOS == osAndroid {
		t.Skip("XDG fallback only applies on the default branch")
	}

	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-config")
	dir, err := GetConfigDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/tmp/xdg-config", "platune"), dir)
}
