package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "BUCKETNAV"

// EnvSpec maps an environment variable to a config path.
type EnvSpec struct {
	Name string
	Path string
}

var (
	configMu   sync.RWMutex
	appConfig  *Config
	configFile string
)

// SetConfigFile pins the config file. An empty path restores discovery.
func SetConfigFile(path string) {
	configMu.Lock()
	defer configMu.Unlock()
	configFile = path
}

// Load builds the configuration and makes it the current one.
func Load(ctx context.Context, overrides ...map[string]any) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	configMu.RLock()
	file := configFile
	configMu.RUnlock()

	v := viper.New()
	SetDefaults(v)

	if err := readConfigFile(v, file); err != nil {
		return nil, err
	}

	v.SetEnvPrefix(EnvPrefix)
	for _, spec := range getEnvSpecs() {
		if err := v.BindEnv(spec.Path, spec.Name); err != nil {
			return nil, fmt.Errorf("bind %s: %w", spec.Name, err)
		}
	}

	// Set, not MergeConfigMap: overrides must outrank the environment.
	for _, o := range overrides {
		for key, val := range flatten("", o) {
			v.Set(key, val)
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	configMu.Lock()
	appConfig = &cfg
	configMu.Unlock()
	return &cfg, nil
}

// GetConfig returns the most recently loaded config, or nil.
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct constraints.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid config: %s: failed %q", verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// SetDefaults registers built-in defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.max_upload_bytes", int64(512<<20))

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "structured")

	v.SetDefault("browse.page_size", 1000)
	v.SetDefault("browse.cache_ttl", "30s")
	v.SetDefault("browse.upload_parallel", 20)
	v.SetDefault("browse.delete_rate", 0.0)

	v.SetDefault("s3.region", "")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.profile", "")
	v.SetDefault("s3.access_key_id", "")
	v.SetDefault("s3.secret_access_key", "")
	v.SetDefault("s3.force_path_style", false)

	v.SetDefault("minio.endpoint", "")
	v.SetDefault("minio.access_key", "")
	v.SetDefault("minio.secret_key", "")
	v.SetDefault("minio.use_ssl", true)
	v.SetDefault("minio.region", "")

	v.SetDefault("gcs.credentials_file", "")
	v.SetDefault("gcs.endpoint", "")

	v.SetDefault("admin.endpoint", "")
	v.SetDefault("admin.token", "")

	v.SetDefault("file.root", ".")

	v.SetDefault("readonly", false)
}

func readConfigFile(v *viper.Viper, file string) error {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", file, err)
		}
		return nil
	}

	v.SetConfigName("bucketnav")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	for _, dir := range getUserConfigPaths() {
		v.AddConfigPath(dir)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func flatten(prefix string, m map[string]any) map[string]any {
	out := map[string]any{}
	for k, val := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := val.(map[string]any); ok {
			for nk, nv := range flatten(key, nested) {
				out[nk] = nv
			}
			continue
		}
		out[key] = val
	}
	return out
}

func getUserConfigPaths() []string {
	var paths []string
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "bucketnav"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".bucketnav"))
	}
	return paths
}

func getEnvSpecs() []EnvSpec {
	specs := []struct{ suffix, path string }{
		{"HOST", "server.host"},
		{"PORT", "server.port"},
		{"READ_TIMEOUT", "server.read_timeout"},
		{"WRITE_TIMEOUT", "server.write_timeout"},
		{"IDLE_TIMEOUT", "server.idle_timeout"},
		{"SHUTDOWN_TIMEOUT", "server.shutdown_timeout"},
		{"MAX_UPLOAD_BYTES", "server.max_upload_bytes"},
		{"LOG_LEVEL", "logging.level"},
		{"LOG_PROFILE", "logging.profile"},
		{"PAGE_SIZE", "browse.page_size"},
		{"CACHE_TTL", "browse.cache_ttl"},
		{"UPLOAD_PARALLEL", "browse.upload_parallel"},
		{"DELETE_RATE", "browse.delete_rate"},
		{"S3_REGION", "s3.region"},
		{"S3_ENDPOINT", "s3.endpoint"},
		{"S3_PROFILE", "s3.profile"},
		{"S3_ACCESS_KEY_ID", "s3.access_key_id"},
		{"S3_SECRET_ACCESS_KEY", "s3.secret_access_key"},
		{"S3_FORCE_PATH_STYLE", "s3.force_path_style"},
		{"MINIO_ENDPOINT", "minio.endpoint"},
		{"MINIO_ACCESS_KEY", "minio.access_key"},
		{"MINIO_SECRET_KEY", "minio.secret_key"},
		{"MINIO_USE_SSL", "minio.use_ssl"},
		{"MINIO_REGION", "minio.region"},
		{"GCS_CREDENTIALS_FILE", "gcs.credentials_file"},
		{"GCS_ENDPOINT", "gcs.endpoint"},
		{"ADMIN_ENDPOINT", "admin.endpoint"},
		{"ADMIN_TOKEN", "admin.token"},
		{"FILE_ROOT", "file.root"},
		{"READONLY", "readonly"},
	}
	out := make([]EnvSpec, len(specs))
	for i, s := range specs {
		out[i] = EnvSpec{Name: EnvPrefix + "_" + s.suffix, Path: s.path}
	}
	return out
}
