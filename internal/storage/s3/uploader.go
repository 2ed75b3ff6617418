// Package s3 archives documents to an S3-compatible bucket.
package s3

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/JakeFAU/drhp-archiver/internal/archiver"
	blobstorage "github.com/JakeFAU/drhp-archiver/internal/storage"
)

// Config captures the bucket and client settings.
type Config struct {
	Bucket string
	Prefix string
	Region string
	// Endpoint overrides the AWS endpoint, for MinIO or other compatible stores.
	Endpoint  string
	PathStyle bool
	// CredentialsFile is an optional AWS shared-credentials file.
	CredentialsFile string
}

// PutObjectAPI is the subset of the S3 client used here.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Uploader writes documents as S3 objects.
type Uploader struct {
	client PutObjectAPI
	bucket string
	prefix string
}

// New loads the AWS configuration and builds an uploader.
func New(ctx context.Context, cfg Config) (*Uploader, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, &archiver.ConfigError{Field: "storage.bucket", Err: fmt.Errorf("bucket name is required")}
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.CredentialsFile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedCredentialsFiles([]string{cfg.CredentialsFile}))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, &archiver.ConfigError{Field: "storage.s3", Err: err}
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})
	return NewWithClient(client, cfg)
}

// NewWithClient wraps an existing client.
func NewWithClient(client PutObjectAPI, cfg Config) (*Uploader, error) {
	if client == nil {
		return nil, fmt.Errorf("s3 client is required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, &archiver.ConfigError{Field: "storage.bucket", Err: fmt.Errorf("bucket name is required")}
	}
	return &Uploader{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// Upload puts the local file under prefix/name and returns an s3:// URI.
func (u *Uploader) Upload(ctx context.Context, localPath string, name string) (string, error) {
	f, size, err := blobstorage.OpenLocal(localPath)
	if err != nil {
		return "", &archiver.UploadError{Name: name, Err: err}
	}
	defer func() { _ = f.Close() }()

	key := blobstorage.ObjectKey(u.prefix, name)
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(blobstorage.ContentType(name)),
	})
	if err != nil {
		return "", &archiver.UploadError{Name: name, Err: err}
	}
	return fmt.Sprintf("s3://%s/%s", u.bucket, key), nil
}
