package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/3leaps/bucketnav/internal/config"
	"github.com/3leaps/bucketnav/internal/observability"
	"github.com/3leaps/bucketnav/pkg/batch"
	"github.com/3leaps/bucketnav/pkg/listcache"
	"github.com/3leaps/bucketnav/pkg/provider"
	"github.com/3leaps/bucketnav/pkg/provider/admin"
	"github.com/3leaps/bucketnav/pkg/provider/file"
	"github.com/3leaps/bucketnav/pkg/provider/gcs"
	"github.com/3leaps/bucketnav/pkg/provider/minio"
	"github.com/3leaps/bucketnav/pkg/provider/s3"
	"github.com/3leaps/bucketnav/pkg/session"
	"github.com/3leaps/bucketnav/pkg/upload"
)

// openGateway connects to the bucket named by u.
func openGateway(ctx context.Context, cfg *config.Config, u *BucketURI) (provider.Gateway, error) {
	pageSize := cfg.Browse.PageSize
	switch u.Provider {
	case provider.ProviderS3:
		return s3.New(ctx, s3.Config{
			Bucket:          u.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			Profile:         cfg.S3.Profile,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			ForcePathStyle:  cfg.S3.ForcePathStyle,
			MaxKeys:         pageSize,
		})
	case provider.ProviderMinIO:
		return minio.New(ctx, minio.Config{
			Endpoint:  cfg.MinIO.Endpoint,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			UseSSL:    cfg.MinIO.UseSSL,
			Region:    cfg.MinIO.Region,
			Bucket:    u.Bucket,
			MaxKeys:   pageSize,
		})
	case provider.ProviderGCS:
		return gcs.New(ctx, gcs.Config{
			Bucket:          u.Bucket,
			CredentialsFile: cfg.GCS.CredentialsFile,
			Endpoint:        cfg.GCS.Endpoint,
			MaxKeys:         pageSize,
		})
	case provider.ProviderAdmin:
		return admin.New(admin.Config{
			Endpoint: cfg.Admin.Endpoint,
			Bucket:   u.Bucket,
			Token:    cfg.Admin.Token,
			MaxKeys:  pageSize,
		})
	case provider.ProviderFile:
		return file.New(file.Config{BaseDir: filepath.Join(cfg.File.Root, u.Bucket)})
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, u.Provider)
	}
}

// openSession opens a browse session positioned at u's folder. extra options
// are applied after the configured ones.
func openSession(ctx context.Context, cfg *config.Config, u *BucketURI, extra ...session.Option) (*session.Session, error) {
	gw, err := openGateway(ctx, cfg, u)
	if err != nil {
		return nil, err
	}
	logger := observability.CLILogger.With(zap.String("provider", u.Provider.String()))
	opts := []session.Option{
		session.WithInitialPrefix(u.Prefix()),
		session.WithPageSize(cfg.Browse.PageSize),
		session.WithLogger(logger),
		session.WithCache(listcache.New(cfg.Browse.CacheTTL, listcache.WithLogger(logger))),
		session.WithExecutor(batch.New(batch.WithLogger(logger), batch.WithRate(cfg.Browse.DeleteRate))),
		session.WithUploader(upload.New(gw, upload.WithLogger(logger), upload.WithParallel(cfg.Browse.UploadParallel))),
	}
	return session.New(gw, u.Bucket, append(opts, extra...)...), nil
}

// loadedConfig returns the config loaded by the root command, falling back
// to a fresh load for callers that bypass it.
func loadedConfig(ctx context.Context) (*config.Config, error) {
	if appConfig != nil {
		return appConfig, nil
	}
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}
	appConfig = cfg
	return cfg, nil
}
