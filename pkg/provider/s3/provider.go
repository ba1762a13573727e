package s3

import (
	"context"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/3leaps/bucketnav/pkg/provider"
)

// api is the subset of *s3.Client the gateway calls.
type api interface {
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// Provider is the S3 gateway for one bucket.
type Provider struct {
	client  api
	bucket  string
	maxKeys int
}

var _ provider.Gateway = (*Provider)(nil)

// New creates an S3 gateway.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, &provider.ProviderError{
			Op:       "New",
			Provider: provider.ProviderS3,
			Bucket:   cfg.Bucket,
			Err:      err,
		}
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.ForcePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return newWithAPI(client, cfg.Bucket, cfg.MaxKeys), nil
}

func newWithAPI(client api, bucket string, maxKeys int) *Provider {
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}
	return &Provider{client: client, bucket: bucket, maxKeys: maxKeys}
}

func loadAWSConfig(ctx context.Context, cfg Config) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error

	// Let the SDK resolve env/profile first; only pin what the user set.
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, err
	}
	awsCfg.Region = resolveRegion(cfg.Endpoint, awsCfg.Region)
	return awsCfg, nil
}

// Bucket returns the bucket the gateway is bound to.
func (p *Provider) Bucket() string {
	return p.bucket
}

// ListWithDelimiter lists one hierarchy level, or every key under the
// prefix when Delimiter is empty.
func (p *Provider) ListWithDelimiter(ctx context.Context, opts provider.ListWithDelimiterOptions) (*provider.ListWithDelimiterResult, error) {
	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(p.bucket),
		MaxKeys: aws.Int32(int32(clampMaxKeys(opts.MaxKeys, p.maxKeys))),
	}
	if opts.Prefix != "" {
		input.Prefix = aws.String(opts.Prefix)
	}
	if opts.Delimiter != "" {
		input.Delimiter = aws.String(opts.Delimiter)
	}
	if opts.ContinuationToken != "" {
		input.ContinuationToken = aws.String(opts.ContinuationToken)
	}

	output, err := p.client.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, p.wrapError("ListWithDelimiter", opts.Prefix, err)
	}

	res := &provider.ListWithDelimiterResult{
		Objects:           summaries(output),
		CommonPrefixes:    make([]string, 0, len(output.CommonPrefixes)),
		ContinuationToken: aws.ToString(output.NextContinuationToken),
		IsTruncated:       aws.ToBool(output.IsTruncated),
	}
	for _, cp := range output.CommonPrefixes {
		res.CommonPrefixes = append(res.CommonPrefixes, aws.ToString(cp.Prefix))
	}
	return res, nil
}

// Head returns metadata for a single object.
func (p *Provider) Head(ctx context.Context, key string) (*provider.ObjectMeta, error) {
	output, err := p.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, p.wrapError("Head", key, err)
	}

	return &provider.ObjectMeta{
		ObjectSummary: provider.ObjectSummary{
			Key:          key,
			Size:         aws.ToInt64(output.ContentLength),
			ETag:         cleanETag(aws.ToString(output.ETag)),
			LastModified: aws.ToTime(output.LastModified),
		},
		ContentType: aws.ToString(output.ContentType),
		Metadata:    output.Metadata,
	}, nil
}

// PutObject creates or replaces an object.
func (p *Provider) PutObject(ctx context.Context, key string, body io.Reader, contentLength int64) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentLength >= 0 {
		input.ContentLength = aws.Int64(contentLength)
	}

	if _, err := p.client.PutObject(ctx, input); err != nil {
		return p.wrapError("PutObject", key, err)
	}
	return nil
}

// DeleteObject deletes a single object.
func (p *Provider) DeleteObject(ctx context.Context, key string) error {
	_, err := p.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return p.wrapError("DeleteObject", key, err)
	}
	return nil
}

// Close satisfies provider.Gateway; the SDK client holds nothing to release.
func (p *Provider) Close() error {
	return nil
}

func summaries(output *s3.ListObjectsV2Output) []provider.ObjectSummary {
	objects := make([]provider.ObjectSummary, 0, len(output.Contents))
	for _, obj := range output.Contents {
		objects = append(objects, provider.ObjectSummary{
			Key:          aws.ToString(obj.Key),
			Size:         aws.ToInt64(obj.Size),
			ETag:         cleanETag(aws.ToString(obj.ETag)),
			LastModified: aws.ToTime(obj.LastModified),
		})
	}
	return objects
}

// cleanETag removes surrounding quotes from an ETag value.
func cleanETag(etag string) string {
	return strings.Trim(etag, "\"")
}

// clampMaxKeys applies the gateway default and the S3 ceiling.
func clampMaxKeys(requested, gatewayDefault int) int {
	if requested <= 0 {
		requested = gatewayDefault
	}
	if requested > MaxAllowedKeys {
		return MaxAllowedKeys
	}
	return requested
}

// resolveRegion applies the us-east-1 fallback for AWS only. sdkRegion already
// reflects an explicit region, env vars and the shared profile.
func resolveRegion(endpoint, sdkRegion string) string {
	if sdkRegion != "" {
		return sdkRegion
	}
	if endpoint == "" {
		return DefaultAWSRegion
	}
	return ""
}
