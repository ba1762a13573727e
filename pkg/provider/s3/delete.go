package s3

import (
	"context"
	"crypto/md5" //nolint:gosec // Content-MD5 header, not a security use
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go/middleware"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/3leaps/bucketnav/pkg/provider"
)

// DeletePrefix removes every object under prefix with batched DeleteObjects
// calls (at most 1000 keys each).
func (p *Provider) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	if prefix == "" || !strings.HasSuffix(prefix, "/") {
		return 0, &provider.ProviderError{Op: "DeletePrefix", Provider: provider.ProviderS3, Bucket: p.bucket, Key: prefix, Err: provider.ErrInvalidKey}
	}

	deleted := 0
	for {
		// Always restart from the beginning: the previous page is gone.
		page, err := p.ListWithDelimiter(ctx, provider.ListWithDelimiterOptions{Prefix: prefix, MaxKeys: MaxAllowedKeys})
		if err != nil {
			return deleted, err
		}
		if len(page.Objects) == 0 {
			return deleted, nil
		}

		keys := make([]string, 0, len(page.Objects))
		for _, obj := range page.Objects {
			keys = append(keys, obj.Key)
		}
		n, err := p.deleteBatch(ctx, prefix, keys)
		deleted += n
		if err != nil {
			return deleted, err
		}
		if !page.IsTruncated {
			return deleted, nil
		}
	}
}

func (p *Provider) deleteBatch(ctx context.Context, prefix string, keys []string) (int, error) {
	objects := make([]types.ObjectIdentifier, len(keys))
	for i := range keys {
		objects[i] = types.ObjectIdentifier{Key: aws.String(keys[i])}
	}

	const quiet = false
	contentMD5, err := deleteContentMD5(keys, quiet)
	if err != nil {
		return 0, p.wrapError("DeletePrefix", prefix, err)
	}

	out, err := p.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(p.bucket),
		Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(quiet)},
	}, withContentMD5(contentMD5))
	if err != nil {
		return 0, p.wrapError("DeletePrefix", prefix, err)
	}

	if len(out.Errors) > 0 {
		first := out.Errors[0]
		failure := fmt.Errorf("%d of %d objects failed to delete; %s: %s",
			len(out.Errors), len(keys), aws.ToString(first.Key), aws.ToString(first.Code))
		if sentinel := sentinelForCode(aws.ToString(first.Code)); sentinel != nil {
			failure = fmt.Errorf("%w: %v", sentinel, failure)
		}
		return len(keys) - len(out.Errors), &provider.ProviderError{
			Op:       "DeletePrefix",
			Provider: provider.ProviderS3,
			Bucket:   p.bucket,
			Key:      prefix,
			Err:      failure,
		}
	}
	return len(keys), nil
}

type deletePayload struct {
	XMLName xml.Name       `xml:"Delete"`
	Objects []deleteObject `xml:"Object"`
	Quiet   bool           `xml:"Quiet"`
}

type deleteObject struct {
	Key string `xml:"Key"`
}

// deleteContentMD5 hashes the DeleteObjects body. Garage and MinIO reject the
// request without Content-MD5.
func deleteContentMD5(keys []string, quiet bool) (string, error) {
	payload := deletePayload{Objects: make([]deleteObject, len(keys)), Quiet: quiet}
	for i, k := range keys {
		payload.Objects[i] = deleteObject{Key: k}
	}
	body, err := xml.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal delete payload: %w", err)
	}
	sum := md5.Sum(body) //nolint:gosec // required by the S3 API
	return base64.StdEncoding.EncodeToString(sum[:]), nil
}

func withContentMD5(contentMD5 string) func(*s3.Options) {
	return func(o *s3.Options) {
		o.APIOptions = append(o.APIOptions, func(stack *middleware.Stack) error {
			return stack.Finalize.Add(
				middleware.FinalizeMiddlewareFunc("AddContentMD5",
					func(ctx context.Context, in middleware.FinalizeInput, next middleware.FinalizeHandler) (middleware.FinalizeOutput, middleware.Metadata, error) {
						if req, ok := in.Request.(*smithyhttp.Request); ok {
							req.Header.Set("Content-MD5", contentMD5)
						}
						return next.HandleFinalize(ctx, in)
					}),
				middleware.Before,
			)
		})
	}
}
