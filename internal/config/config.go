package config

import (
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Storage  StorageConfig
	Media    MediaConfig
	Download DownloadConfig
	Registry RegistryConfig
}

type ServerConfig struct {
	Port      string
	Env       string
	BodyLimit int // bytes
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret     string
	JWTExpiration int // hours
	SigningSecret string
	APIKey        string
	GrantTTL      int // seconds, default TTL for chunk grants
	RequireGrants bool
}

type StorageConfig struct {
	Root           string
	TempDir        string
	ChunkDuration  int // seconds per chunk
	DefaultQuality string
}

type MediaConfig struct {
	FFmpegPath  string
	FFprobePath string
}

type DownloadConfig struct {
	TimeoutSeconds int
	MaxBytes       int64
}

type RegistryConfig struct {
	Backend string // "memory" or "redis"
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("server.port", "3000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.body_limit", 500*1024*1024)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("auth.jwt_secret", "change-me-in-production")
	viper.SetDefault("auth.jwt_expiration", 24)
	viper.SetDefault("auth.signing_secret", "change-me-in-production")
	viper.SetDefault("auth.api_key", "")
	viper.SetDefault("auth.grant_ttl", 3600)
	viper.SetDefault("auth.require_grants", false)
	viper.SetDefault("storage.root", "./data/videos")
	viper.SetDefault("storage.temp_dir", "")
	viper.SetDefault("storage.chunk_duration", 10)
	viper.SetDefault("storage.default_quality", "720p")
	viper.SetDefault("media.ffmpeg_path", "ffmpeg")
	viper.SetDefault("media.ffprobe_path", "ffprobe")
	viper.SetDefault("download.timeout_seconds", 600)
	viper.SetDefault("download.max_bytes", int64(4*1024*1024*1024))
	viper.SetDefault("registry.backend", "memory")

	// Config file is optional
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	return &Config{
		Server: ServerConfig{
			Port:      viper.GetString("server.port"),
			Env:       viper.GetString("server.env"),
			BodyLimit: viper.GetInt("server.body_limit"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Auth: AuthConfig{
			JWTSecret:     viper.GetString("auth.jwt_secret"),
			JWTExpiration: viper.GetInt("auth.jwt_expiration"),
			SigningSecret: viper.GetString("auth.signing_secret"),
			APIKey:        viper.GetString("auth.api_key"),
			GrantTTL:      viper.GetInt("auth.grant_ttl"),
			RequireGrants: viper.GetBool("auth.require_grants"),
		},
		Storage: StorageConfig{
			Root:           viper.GetString("storage.root"),
			TempDir:        viper.GetString("storage.temp_dir"),
			ChunkDuration:  viper.GetInt("storage.chunk_duration"),
			DefaultQuality: viper.GetString("storage.default_quality"),
		},
		Media: MediaConfig{
			FFmpegPath:  viper.GetString("media.ffmpeg_path"),
			FFprobePath: viper.GetString("media.ffprobe_path"),
		},
		Download: DownloadConfig{
			TimeoutSeconds: viper.GetInt("download.timeout_seconds"),
			MaxBytes:       viper.GetInt64("download.max_bytes"),
		},
		Registry: RegistryConfig{
			Backend: viper.GetString("registry.backend"),
		},
	}, nil
}
