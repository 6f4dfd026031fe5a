// Package storage signs crystal snapshot paths as time-limited S3 URLs.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/xtal-snapshots/crystal-snapshots/pkg/snapshots"
)

// ClientOptions describe how to reach the object store.
type ClientOptions struct {
	// Region overrides the region from the AWS environment.
	Region string

	// Endpoint points the client at an S3 compatible service such as Ceph or
	// MinIO. Empty means AWS.
	Endpoint string

	// PathStyle addresses buckets as endpoint/bucket/key instead of
	// bucket.endpoint/key.
	PathStyle bool

	// Credentials replace the default AWS credential chain when set.
	Credentials aws.CredentialsProvider
}

// NewClient builds an S3 client from the default AWS configuration sources
// (environment, shared config files, instance roles) and opts.
func NewClient(ctx context.Context, opts ClientOptions) (*s3.Client, error) {
	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	if opts.Credentials != nil {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(opts.Credentials))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return newClient(cfg, opts), nil
}

func newClient(cfg aws.Config, opts ClientOptions) *s3.Client {
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.PathStyle
	})
}

// objectHeader is the part of *s3.Client used to check that an object exists.
type objectHeader interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3Signer implements snapshots.Signer with S3 presigned GET requests.
// Presigning is computed locally; nothing is sent to S3 unless object
// verification is enabled.
type S3Signer struct {
	presign *s3.PresignClient
	head    objectHeader
}

var _ snapshots.Signer = (*S3Signer)(nil)

// NewS3Signer signs with client's credentials. With verify set, every path
// is checked with a HEAD request before it is signed.
func NewS3Signer(client *s3.Client, verify bool) *S3Signer {
	s := &S3Signer{presign: s3.NewPresignClient(client)}
	if verify {
		s.head = client
	}
	return s
}

// Sign returns a presigned GET URL for the object at path in bucket.
func (s *S3Signer) Sign(ctx context.Context, bucket, path string, expires time.Duration) (string, error) {
	if bucket == "" {
		return "", errors.New("bucket is empty")
	}
	if path == "" {
		return "", errors.New("object path is empty")
	}

	if s.head != nil {
		_, err := s.head.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(path),
		})
		if err != nil {
			return "", fmt.Errorf("check s3://%s/%s: %w", bucket, path, err)
		}
	}

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(path),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", fmt.Errorf("presign s3://%s/%s: %w", bucket, path, err)
	}
	return req.URL, nil
}
