package config

import (
	"os"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyToolEnvOverridesPrefersBareToolEnvNames(t *testing.T) {
	t.Setenv("YT_DLP_PATH", "/opt/bin/yt-dlp")
	t.Setenv("FFMPEG_PATH", "/opt/bin/ffmpeg")
	t.Setenv("PLATUNE_GLOBAL_FILE_URL", "https://example.com/library")
	t.Setenv("PLATUNE_MTLS_CLIENT_CERT_PATH", "/etc/platune/cert.pem")
	t.Setenv("PLATUNE_MTLS_CLIENT_KEY_PATH", "/etc/platune/key.pem")

	var cfg Config
	cfg.Resolver.YtDlpPath = "yt-dlp"
	cfg.Resolver.FfmpegPath = "ffmpeg"

	applyToolEnvOverrides(&cfg)

	assert.Equal(t, "/opt/bin/yt-dlp", cfg.Resolver.YtDlpPath)
	assert.Equal(t, "/opt/bin/ffmpeg", cfg.Resolver.FfmpegPath)
	assert.Equal(t, "https://example.com/library", cfg.Resolver.GlobalFileURL)
	assert.Equal(t, "/etc/platune/cert.pem", cfg.Resolver.MTLSClientCertPath)
	assert.Equal(t, "/etc/platune/key.pem", cfg.Resolver.MTLSClientKeyPath)
}

func TestApplyToolEnvOverridesLeavesValuesWhenUnset(t *testing.T) {
	os.Unsetenv("YT_DLP_PATH")
	os.Unsetenv("FFMPEG_PATH")
	os.Unsetenv("PLATUNE_GLOBAL_FILE_URL")

	var cfg Config
	cfg.Resolver.YtDlpPath = "configured-yt-dlp"

	applyToolEnvOverrides(&cfg)

	assert.Equal(t, "configured-yt-dlp", cfg.Resolver.YtDlpPath)
	assert.Equal(t, "", cfg.Resolver.GlobalFileURL)
}

func TestOptimizeForPlatformRaisesResampleChunkToPlatformMinimum(t *testing.T) {
	var cfg Config
	cfg.Player.ResampleChunkSize = 64
	optimizeForPlatform(&cfg)

	switch runtime.GOOS {
	case "linux":
		assert.Equal(t, 1024, cfg.Player.ResampleChunkSize)
	case "windows", "darwin":
		assert.Equal(t, 512, cfg.Player.ResampleChunkSize)
	default:
		assert.Equal(t, 64, cfg.Player.ResampleChunkSize)
	}
}

func TestOptimizeForPlatformLeavesLargerChunkUntouched(t *testing.T) {
	var cfg Config
	cfg.Player.ResampleChunkSize = 4096
	optimizeForPlatform(&cfg)
	assert.Equal(t, 4096, cfg.Player.ResampleChunkSize)
}

func TestEnsureDirectoriesCreatesCacheDir(t *testing.T) {
	dir := t.TempDir() + "/nested/cache"
	cfg := &Config{CacheDir: dir}

	require := assert.New(t)
	require.NoError(ensureDirectories(cfg))

	info, err := os.Stat(dir)
	require.NoError(err)
	require.True(info.IsDir())
}
