package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"

	"github.com/jrmoore/platune/internal/platform"
)

// Config is the engine's own configuration surface. A collaborator
// embedding this module (RPC layer, library manager, tray UI) loads
// its own sections from the same file alongside this one.
type Config struct {
	Debug bool `mapstructure:"debug"`

	Player struct {
		QueueChannelCapacity int     `mapstructure:"queue_channel_capacity"`
		ResampleChunkSize    int     `mapstructure:"resample_chunk_size"`
		EnableResampling     bool    `mapstructure:"enable_resampling"`
		DefaultVolume        float64 `mapstructure:"default_volume"`
	} `mapstructure:"player"`

	Output struct {
		DeviceName string  `mapstructure:"device_name"`
		SampleRate float64 `mapstructure:"sample_rate"`
		Channels   int     `mapstructure:"channels"`
	} `mapstructure:"output"`

	Resolver struct {
		YtDlpPath          string `mapstructure:"yt_dlp_path"`
		FfmpegPath         string `mapstructure:"ffmpeg_path"`
		GlobalFileURL      string `mapstructure:"global_file_url"`
		MTLSClientCertPath string `mapstructure:"mtls_client_cert_path"`
		MTLSClientKeyPath  string `mapstructure:"mtls_client_key_path"`
		RateLimit          struct {
			RequestsPerSecond int `mapstructure:"requests_per_second"`
			BurstSize         int `mapstructure:"burst_size"`
		} `mapstructure:"rate_limit"`
	} `mapstructure:"resolver"`

	CacheDir string `mapstructure:"cache_dir"`
}

// Load reads configuration from configPath (or the platform config
// directory / ./configs / . when empty), overlaying PLATUNE_-prefixed
// environment variables, falling back to defaults for anything unset.
func Load(configPath string) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		configDir, err := platform.GetConfigDir()
		if err != nil {
			return nil, err
		}
		viper.AddConfigPath(configDir)
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("PLATUNE")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	applyToolEnvOverrides(&cfg)

	if err := ensureDirectories(&cfg); err != nil {
		return nil, err
	}

	optimizeForPlatform(&cfg)

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("debug", false)

	viper.SetDefault("player.queue_channel_capacity", 2)
	viper.SetDefault("player.resample_chunk_size", 1024)
	viper.SetDefault("player.enable_resampling", true)
	viper.SetDefault("player.default_volume", 0.7)

	viper.SetDefault("output.device_name", "")
	viper.SetDefault("output.sample_rate", 44100)
	viper.SetDefault("output.channels", 2)

	viper.SetDefault("resolver.yt_dlp_path", "yt-dlp")
	viper.SetDefault("resolver.ffmpeg_path", "ffmpeg")
	viper.SetDefault("resolver.rate_limit.requests_per_second", 100)
	viper.SetDefault("resolver.rate_limit.burst_size", 10)

	cacheDir, _ := platform.GetCacheDir()
	viper.SetDefault("cache_dir", cacheDir)
}

// applyToolEnvOverrides lets the bare env vars that the external
// extractor/ffmpeg tooling and mTLS identity already use win over the
// PLATUNE_RESOLVER_* auto-env names, since those names are a contract
// with the tools themselves rather than part of this config schema.
func applyToolEnvOverrides(cfg *Config) {
	if v := os.Getenv("YT_DLP_PATH"); v != "" {
		cfg.Resolver.YtDlpPath = v
	}
	if v := os.Getenv("FFMPEG_PATH"); v != "" {
		cfg.Resolver.FfmpegPath = v
	}
	if v := os.Getenv("PLATUNE_GLOBAL_FILE_URL"); v != "" {
		cfg.Resolver.GlobalFileURL = v
	}
	if v := os.Getenv("PLATUNE_MTLS_CLIENT_CERT_PATH"); v != "" {
		cfg.Resolver.MTLSClientCertPath = v
	}
	if v := os.Getenv("PLATUNE_MTLS_CLIENT_KEY_PATH"); v != "" {
		cfg.Resolver.MTLSClientKeyPath = v
	}
}

func optimizeForPlatform(cfg *Config) {
	switch runtime.GOOS {
	case "linux":
		if cfg.Player.ResampleChunkSize < 1024 {
			cfg.Player.ResampleChunkSize = 1024
		}
	case "windows", "darwin":
		if cfg.Player.ResampleChunkSize < 512 {
			cfg.Player.ResampleChunkSize = 512
		}
	}
}

func ensureDirectories(cfg *Config) error {
	return os.MkdirAll(cfg.CacheDir, 0755)
}

// Save writes the current configuration to the platform config
// directory as config.yaml.
func (c *Config) Save() error {
	configDir, err := platform.GetConfigDir()
	if err != nil {
		return err
	}

	configFile := filepath.Join(configDir, "config.yaml")
	return viper.WriteConfigAs(configFile)
}
