// Package config loads bucketnav configuration.
//
// Sources are layered, later ones winning: built-in defaults, a config file
// (bucketnav.yaml in the working directory or the user config dir), the
// environment (BUCKETNAV_ prefix), then runtime overrides passed to Load.
package config

import "time"

// Config is the full application configuration.
type Config struct {
	Server   ServerConfig  `mapstructure:"server"`
	Logging  LoggingConfig `mapstructure:"logging"`
	Browse   BrowseConfig  `mapstructure:"browse"`
	S3       S3Config      `mapstructure:"s3"`
	MinIO    MinIOConfig   `mapstructure:"minio"`
	GCS      GCSConfig     `mapstructure:"gcs"`
	Admin    AdminConfig   `mapstructure:"admin"`
	File     FileConfig    `mapstructure:"file"`
	ReadOnly bool          `mapstructure:"readonly"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host            string        `mapstructure:"host" validate:"required"`
	Port            int           `mapstructure:"port" validate:"gte=0,lte=65535"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" validate:"gt=0"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`

	// MaxUploadBytes caps a multipart upload request.
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes" validate:"gt=0"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level   string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Profile string `mapstructure:"profile" validate:"oneof=structured console"`
}

// BrowseConfig tunes the browse core.
type BrowseConfig struct {
	PageSize int           `mapstructure:"page_size" validate:"gte=1,lte=1000"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`

	// UploadParallel caps in-flight puts per batch.
	UploadParallel int `mapstructure:"upload_parallel" validate:"gte=1,lte=20"`

	// DeleteRate paces batch deletes in keys per second. Zero is unpaced.
	DeleteRate float64 `mapstructure:"delete_rate" validate:"gte=0"`
}

// S3Config configures the s3:// gateway.
type S3Config struct {
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint" validate:"omitempty,url"`
	Profile         string `mapstructure:"profile"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	ForcePathStyle  bool   `mapstructure:"force_path_style"`
}

// MinIOConfig configures the minio:// gateway.
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint" validate:"omitempty,hostname_port"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Region    string `mapstructure:"region"`
}

// GCSConfig configures the gs:// gateway.
type GCSConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
	Endpoint        string `mapstructure:"endpoint" validate:"omitempty,url"`
}

// AdminConfig configures the admin:// gateway.
type AdminConfig struct {
	Endpoint string `mapstructure:"endpoint" validate:"omitempty,url"`
	Token    string `mapstructure:"token"`
}

// FileConfig configures the file:// gateway. Buckets are directories under
// Root.
type FileConfig struct {
	Root string `mapstructure:"root" validate:"required"`
}
