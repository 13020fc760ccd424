package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Storage    StorageConfig    `yaml:"storage"`
	JWT        JWTConfig        `yaml:"jwt"`
	Transcode  TranscodeConfig  `yaml:"transcode"`
	Thumbnail  ThumbnailConfig  `yaml:"thumbnail"`
	Pagination PaginationConfig `yaml:"pagination"`
	Log        LogConfig        `yaml:"log"`
}

type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

type DatabaseConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	Database     string `yaml:"database"`
	Charset      string `yaml:"charset"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

type RedisConfig struct {
	Host                  string `yaml:"host"`
	Port                  int    `yaml:"port"`
	Password              string `yaml:"password"`
	DB                    int    `yaml:"db"`
	ProcessingStatusTTL   int    `yaml:"processing_status_ttl"`
}

type StorageConfig struct {
	BasePath            string   `yaml:"base_path"`
	MaxFileSize         int64    `yaml:"max_file_size"`
	AllowedExtensions   []string `yaml:"allowed_extensions"`
	ChunkBufferSize     int      `yaml:"chunk_buffer_size"`
	ChunkRetentionHours int      `yaml:"chunk_retention_hours"`
	CleanupInterval     int      `yaml:"cleanup_interval"`
	DefaultUserQuota    int64    `yaml:"default_user_quota"`
}

type JWTConfig struct {
	Secret      string `yaml:"secret"`
	ExpireHours int    `yaml:"expire_hours"`
}

type TranscodeConfig struct {
	Enabled             bool   `yaml:"enabled"`
	TargetCodec         string `yaml:"target_codec"`
	WorkerCount         int    `yaml:"worker_count"`
	QueueSize           int    `yaml:"queue_size"`
	GPUUtilThreshold    int    `yaml:"gpu_util_threshold"`
	GPUTimeoutMinutes   int    `yaml:"gpu_timeout_minutes"`
	CPUTimeoutMinutes   int    `yaml:"cpu_timeout_minutes"`
	ProbeTimeoutSeconds int    `yaml:"probe_timeout_seconds"`
}

type ThumbnailConfig struct {
	Width   int `yaml:"width"`
	Height  int `yaml:"height"`
	Quality int `yaml:"quality"`
}

type PaginationConfig struct {
	DefaultPageSize int    `yaml:"default_page_size"`
	MaxPageSize     int    `yaml:"max_page_size"`
	DefaultSortBy   string `yaml:"default_sort_by"`
	DefaultOrder    string `yaml:"default_order"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

var AppConfig *Config

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	AppConfig = &cfg
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Storage.ChunkBufferSize <= 0 {
		cfg.Storage.ChunkBufferSize = 1024 * 1024
	}
	if cfg.Storage.ChunkRetentionHours <= 0 {
		cfg.Storage.ChunkRetentionHours = 24
	}
	if cfg.Storage.CleanupInterval <= 0 {
		cfg.Storage.CleanupInterval = 3600
	}
	if cfg.Transcode.TargetCodec == "" {
		cfg.Transcode.TargetCodec = "h264"
	}
	if cfg.Transcode.WorkerCount <= 0 {
		cfg.Transcode.WorkerCount = 2
	}
	if cfg.Transcode.QueueSize <= 0 {
		cfg.Transcode.QueueSize = 64
	}
	if cfg.Transcode.GPUUtilThreshold <= 0 {
		cfg.Transcode.GPUUtilThreshold = 80
	}
	if cfg.Transcode.GPUTimeoutMinutes <= 0 {
		cfg.Transcode.GPUTimeoutMinutes = 60
	}
	if cfg.Transcode.CPUTimeoutMinutes <= 0 {
		cfg.Transcode.CPUTimeoutMinutes = 120
	}
	if cfg.Transcode.ProbeTimeoutSeconds <= 0 {
		cfg.Transcode.ProbeTimeoutSeconds = 30
	}
	if cfg.Redis.ProcessingStatusTTL <= 0 {
		cfg.Redis.ProcessingStatusTTL = 86400
	}
	if cfg.JWT.ExpireHours <= 0 {
		cfg.JWT.ExpireHours = 24
	}
	if cfg.Pagination.DefaultPageSize <= 0 {
		cfg.Pagination.DefaultPageSize = 20
	}
	if cfg.Pagination.MaxPageSize <= 0 {
		cfg.Pagination.MaxPageSize = 100
	}
	if cfg.Pagination.DefaultSortBy == "" {
		cfg.Pagination.DefaultSortBy = "created_at"
	}
	if cfg.Pagination.DefaultOrder == "" {
		cfg.Pagination.DefaultOrder = "desc"
	}
}
