package platform

import (
	"os"
	"path/filepath"
	"runtime"
)

const (
	osWindows = "windows"
	osDarwin  = "darwin"
	osAndroid = "android"

	appName         = "platune"
	androidBundleID = "com.platune.player"
)

// dirSpec names the per-OS path segments for one of the three standard
// directories (data, cache, config); resolveDir does the GOOS switch
// once and plugs in whichever spec the caller wants.
type dirSpec struct {
	windowsEnvVar  string   // APPDATA or LOCALAPPDATA
	windowsProfile []string // fallback path under %USERPROFILE% when the env var is unset
	windowsSuffix  []string // extra segments appended after appName (e.g. "Cache")
	darwinSuffix   []string // under ~/Library
	androidSuffix  string   // under /data/data/<bundle>/
	xdgEnvVar      string   // XDG_*_HOME
	xdgFallback    []string // under $HOME when the XDG var is unset
}

func resolveDir(spec dirSpec) (string, error) {
	switch runtime.GOOS {
	case osWindows:
		if v := os.Getenv(spec.windowsEnvVar); v != "" {
			return filepath.Join(append([]string{v, appName}, spec.windowsSuffix...)...), nil
		}
		profile := append(append([]string{os.Getenv("USERPROFILE")}, spec.windowsProfile...), appName)
		return filepath.Join(append(profile, spec.windowsSuffix...)...), nil

	case osDarwin:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(append([]string{home}, append(spec.darwinSuffix, appName)...)...), nil

	case osAndroid:
		if androidData := os.Getenv("ANDROID_DATA"); androidData != "" {
			return filepath.Join(androidData, "data", androidBundleID, spec.androidSuffix), nil
		}
		return filepath.Join("/data/data", androidBundleID, spec.androidSuffix), nil

	default:
		if xdg := os.Getenv(spec.xdgEnvVar); xdg != "" {
			return filepath.Join(xdg, appName), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(append(append([]string{home}, spec.xdgFallback...), appName)...), nil
	}
}

// GetDataDir returns the platform-specific data directory for the player.
func GetDataDir() (string, error) {
	return resolveDir(dirSpec{
		windowsEnvVar:  "APPDATA",
		windowsProfile: []string{"AppData", "Roaming"},
		darwinSuffix:   []string{"Library", "Application Support"},
		androidSuffix:  "files",
		xdgEnvVar:      "XDG_DATA_HOME",
		xdgFallback:    []string{".local", "share"},
	})
}

// GetCacheDir returns the platform-specific cache directory for the player.
func GetCacheDir() (string, error) {
	return resolveDir(dirSpec{
		windowsEnvVar:  "LOCALAPPDATA",
		windowsProfile: []string{"AppData", "Local"},
		windowsSuffix:  []string{"Cache"},
		darwinSuffix:   []string{"Library", "Caches"},
		androidSuffix:  "cache",
		xdgEnvVar:      "XDG_CACHE_HOME",
		xdgFallback:    []string{".cache"},
	})
}

// GetConfigDir returns the platform-specific configuration directory for the player.
func GetConfigDir() (string, error) {
	return resolveDir(dirSpec{
		windowsEnvVar:  "APPDATA",
		windowsProfile: []string{"AppData", "Roaming"},
		darwinSuffix:   []string{"Library", "Preferences"},
		androidSuffix:  "files",
		xdgEnvVar:      "XDG_CONFIG_HOME",
		xdgFallback:    []string{".config"},
	})
}
