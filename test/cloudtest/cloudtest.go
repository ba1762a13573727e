// Package cloudtest provides helpers for integration tests against a local
// S3-compatible endpoint (moto by default; Garage or MinIO work the same way).
//
// Tests using this package must be tagged with //go:build cloudintegration.
//
//	func TestDeleteSelection(t *testing.T) {
//	    cloudtest.SkipIfUnavailable(t)
//	    bucket := cloudtest.CreateBucket(t, ctx)
//	    cloudtest.PutObjects(t, ctx, bucket, []string{"a/1", "a/2"})
//	    // ... drive a session against the bucket ...
//	}
package cloudtest

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	s3gw "github.com/3leaps/bucketnav/pkg/provider/s3"
)

const (
	// DefaultEndpoint is the moto server endpoint.
	// Port 5555 avoids conflict with macOS AirTunes on 5000.
	DefaultEndpoint = "http://localhost:5555"

	DefaultRegion = "us-east-1"

	// TestAccessKeyID and TestSecretAccessKey are accepted by moto as-is.
	TestAccessKeyID     = "testing"
	TestSecretAccessKey = "testing"
)

var (
	// Endpoint is overridable via BUCKETNAV_TEST_ENDPOINT.
	Endpoint = getEnvOrDefault("BUCKETNAV_TEST_ENDPOINT", DefaultEndpoint)

	// Region is overridable via BUCKETNAV_TEST_REGION (use "garage" for Garage).
	Region = getEnvOrDefault("BUCKETNAV_TEST_REGION", DefaultRegion)

	AccessKeyID     = getEnvOrDefault("BUCKETNAV_TEST_ACCESS_KEY_ID", TestAccessKeyID)
	SecretAccessKey = getEnvOrDefault("BUCKETNAV_TEST_SECRET_ACCESS_KEY", TestSecretAccessKey)

	client     *s3.Client
	clientOnce sync.Once
	clientErr  error
)

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// Available reports whether the endpoint answers HTTP at all.
func Available() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, Endpoint+"/", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}

// SkipIfUnavailable skips the test if the endpoint is not reachable.
func SkipIfUnavailable(t *testing.T) {
	t.Helper()
	if !Available() {
		t.Skipf("S3 endpoint not available at %s (start with: make moto-start)", Endpoint)
	}
}

// GatewayConfig returns an s3 gateway config for bucket on the test endpoint.
func GatewayConfig(bucket string) s3gw.Config {
	return s3gw.Config{
		Bucket:          bucket,
		Endpoint:        Endpoint,
		Region:          Region,
		AccessKeyID:     AccessKeyID,
		SecretAccessKey: SecretAccessKey,
		ForcePathStyle:  true,
	}
}

// Gateway opens an s3 gateway for bucket, failing the test on error.
func Gateway(t *testing.T, ctx context.Context, bucket string) *s3gw.Provider {
	t.Helper()
	p, err := s3gw.New(ctx, GatewayConfig(bucket))
	if err != nil {
		t.Fatalf("failed to open gateway for %s: %v", bucket, err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

// Client returns a shared raw S3 client for fixtures.
func Client() (*s3.Client, error) {
	clientOnce.Do(func() {
		cfg, err := config.LoadDefaultConfig(context.Background(),
			config.WithRegion(Region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(AccessKeyID, SecretAccessKey, "")),
		)
		if err != nil {
			clientErr = fmt.Errorf("load config: %w", err)
			return
		}
		client = s3.NewFromConfig(cfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(Endpoint)
			o.UsePathStyle = true
		})
	})
	return client, clientErr
}

// ClientT returns the S3 client, failing the test on error.
func ClientT(t *testing.T) *s3.Client {
	t.Helper()
	c, err := Client()
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	return c
}

// CreateBucket creates a uniquely named bucket and registers cleanup.
func CreateBucket(t *testing.T, ctx context.Context) string {
	t.Helper()

	name := strings.ToLower(t.Name())
	name = strings.NewReplacer("/", "-", "_", "-").Replace(name)
	if len(name) > 50 {
		name = name[:50]
	}
	name = fmt.Sprintf("%s-%d", name, time.Now().UnixNano()%100000)

	if _, err := ClientT(t).CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(name)}); err != nil {
		t.Fatalf("failed to create bucket %s: %v", name, err)
	}
	t.Cleanup(func() { DeleteBucket(t, context.Background(), name) })
	return name
}

// DeleteBucket empties and deletes a bucket, logging failures.
func DeleteBucket(t *testing.T, ctx context.Context, bucket string) {
	t.Helper()
	c := ClientT(t)

	for _, key := range Keys(t, ctx, bucket) {
		if _, err := c.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)}); err != nil {
			t.Logf("warning: failed to delete object %s: %v", key, err)
		}
	}
	if _, err := c.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(bucket)}); err != nil {
		t.Logf("warning: failed to delete bucket %s: %v", bucket, err)
	}
}

// Keys returns every key in bucket, sorted.
func Keys(t *testing.T, ctx context.Context, bucket string) []string {
	t.Helper()

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(ClientT(t), &s3.ListObjectsV2Input{Bucket: aws.String(bucket)})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			t.Logf("warning: failed to list objects in bucket %s: %v", bucket, err)
			break
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	sort.Strings(keys)
	return keys
}

// PutObject uploads an object to the bucket.
func PutObject(t *testing.T, ctx context.Context, bucket, key string, content []byte) {
	t.Helper()
	_, err := ClientT(t).PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   strings.NewReader(string(content)),
	})
	if err != nil {
		t.Fatalf("failed to put object %s/%s: %v", bucket, key, err)
	}
}

// PutObjects uploads keys with small generated bodies.
func PutObjects(t *testing.T, ctx context.Context, bucket string, keys []string) {
	t.Helper()
	for _, key := range keys {
		PutObject(t, ctx, bucket, key, []byte("test content for "+key))
	}
}
