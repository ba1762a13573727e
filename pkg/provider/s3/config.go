// Package s3 implements the browse gateway for AWS S3 and S3-compatible stores
// (Garage, MinIO, Wasabi) through the AWS SDK v2.
package s3

// Config configures an S3 gateway.
//
// Credentials resolve through the AWS SDK v2 default chain unless both
// AccessKeyID and SecretAccessKey are set. Profile selects a shared config
// profile.
//
// Region: when empty and no Endpoint is set, the SDK-resolved region is used
// and falls back to us-east-1. With an Endpoint no default is applied; Garage
// expects the region configured in its s3_api section (usually "garage").
type Config struct {
	// Bucket is the bucket name (required).
	Bucket string

	Region   string
	Endpoint string
	Profile  string

	AccessKeyID     string
	SecretAccessKey string

	// ForcePathStyle puts the bucket in the path. Garage and MinIO need it.
	ForcePathStyle bool

	// MaxKeys is the default listing page size. Values over 1000 are clamped.
	MaxKeys int
}

// DefaultMaxKeys is the default page size for listing operations.
const DefaultMaxKeys = 1000

// MaxAllowedKeys is the S3 page size ceiling, which also bounds DeleteObjects.
const MaxAllowedKeys = 1000

// DefaultAWSRegion is the fallback region for AWS S3 when none resolves.
const DefaultAWSRegion = "us-east-1"

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return &ConfigError{Field: "Bucket", Message: "bucket name is required"}
	}
	if (c.AccessKeyID != "") != (c.SecretAccessKey != "") {
		return &ConfigError{
			Field:   "AccessKeyID/SecretAccessKey",
			Message: "both access key ID and secret access key must be provided together",
		}
	}
	if c.MaxKeys < 0 {
		return &ConfigError{Field: "MaxKeys", Message: "must not be negative"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "s3 config: " + e.Field + ": " + e.Message
}
