package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/3leaps/bucketnav/pkg/browse"
	"github.com/3leaps/bucketnav/pkg/match"
	"github.com/3leaps/bucketnav/pkg/provider"
)

// URI parsing errors
var (
	// ErrInvalidURI indicates the URI could not be parsed.
	ErrInvalidURI = errors.New("invalid URI")

	// ErrUnsupportedProvider indicates the URI scheme is not supported.
	ErrUnsupportedProvider = errors.New("unsupported provider")

	// ErrMissingBucket indicates the URI is missing a bucket name.
	ErrMissingBucket = errors.New("missing bucket name")
)

var schemes = map[string]provider.ProviderType{
	"s3":    provider.ProviderS3,
	"minio": provider.ProviderMinIO,
	"gs":    provider.ProviderGCS,
	"gcs":   provider.ProviderGCS,
	"file":  provider.ProviderFile,
	"admin": provider.ProviderAdmin,
}

// BucketURI is a parsed bucket location.
//
// Example URIs:
//   - s3://bucket
//   - s3://bucket/logs/2024/
//   - gs://bucket/images/*.png
type BucketURI struct {
	Scheme   string
	Provider provider.ProviderType
	Bucket   string

	// Key is everything after the bucket, verbatim.
	Key string

	// Pattern is set when Key contains unescaped glob characters.
	// Level is then the folder the pattern selects in.
	Pattern string
	Level   browse.Prefix
}

// String returns the URI in canonical form.
func (u *BucketURI) String() string {
	if u.Pattern != "" {
		return fmt.Sprintf("%s://%s/%s", u.Scheme, u.Bucket, u.Pattern)
	}
	return fmt.Sprintf("%s://%s/%s", u.Scheme, u.Bucket, u.Key)
}

// IsPattern reports whether the URI selects keys by glob.
func (u *BucketURI) IsPattern() bool {
	return u.Pattern != ""
}

// IsPrefix reports whether the URI names a folder (or the bucket root).
func (u *BucketURI) IsPrefix() bool {
	return !u.IsPattern() && (u.Key == "" || strings.HasSuffix(u.Key, browse.Delimiter))
}

// Prefix returns the folder to open: the pattern level for a glob, the key
// itself for a folder, the key read as a folder otherwise.
func (u *BucketURI) Prefix() browse.Prefix {
	if u.IsPattern() {
		return u.Level
	}
	return browse.NormalizePrefix(u.Key)
}

// ParseURI parses scheme://bucket[/key].
//
// Glob characters are allowed in the last segment only, so a pattern always
// selects within one folder. Escaped metacharacters (\*) are literal.
func ParseURI(uri string) (*BucketURI, error) {
	if uri == "" {
		return nil, fmt.Errorf("%w: empty URI", ErrInvalidURI)
	}

	// Split by hand: url.Parse treats "?" in a glob as a query.
	schemeEnd := strings.Index(uri, "://")
	if schemeEnd == -1 {
		return nil, fmt.Errorf("%w: missing scheme (expected s3://...)", ErrInvalidURI)
	}
	scheme := strings.ToLower(uri[:schemeEnd])
	pt, ok := schemes[scheme]
	if !ok {
		return nil, fmt.Errorf("%w: %s (supported: s3, minio, gs, file, admin)", ErrUnsupportedProvider, scheme)
	}

	remainder := uri[schemeEnd+3:]
	bucket, key, _ := strings.Cut(remainder, "/")
	if bucket == "" {
		return nil, fmt.Errorf("%w: in %s", ErrMissingBucket, uri)
	}
	if bucket == "." || bucket == ".." || strings.ContainsAny(bucket, `\?*[]{}`) {
		return nil, fmt.Errorf("%w: invalid bucket name %q", ErrInvalidURI, bucket)
	}

	u := &BucketURI{Scheme: scheme, Provider: pt, Bucket: bucket, Key: key}
	if match.IsGlobPattern(key) {
		level, err := match.SplitLevel(key)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidURI, err)
		}
		u.Pattern = match.NormalizePattern(key)
		u.Level = level
	}
	return u, nil
}
