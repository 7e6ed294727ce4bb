package capture

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// PutObjectAPI is the part of *s3.Client the store uses.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config configures an S3 client for captures.
type S3Config struct {
	Region string

	// Endpoint selects an S3-compatible service instead of AWS.
	Endpoint string

	// UsePathStyle addresses buckets as endpoint/bucket/key.
	UsePathStyle bool

	// Getenv reads AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY and
	// AWS_SESSION_TOKEN. Defaults to os.Getenv.
	Getenv func(string) string
}

// NewS3Client creates an S3 client with static credentials from the
// environment.
func NewS3Client(cfg S3Config) *s3.Client {
	getenv := cfg.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	creds := aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
		return aws.Credentials{
			AccessKeyID:     getenv("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: getenv("AWS_SECRET_ACCESS_KEY"),
			SessionToken:    getenv("AWS_SESSION_TOKEN"),
			Source:          "xripc environment",
		}, nil
	})

	return s3.New(s3.Options{
		Region:      region,
		Credentials: aws.NewCredentialsCache(creds),
	}, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
}

// S3Store uploads captures as objects.
type S3Store struct {
	client PutObjectAPI
	bucket string
	prefix string
}

var _ Store = (*S3Store)(nil)

// NewS3Store creates a store uploading to bucket under prefix.
func NewS3Store(client PutObjectAPI, bucket, prefix string) *S3Store {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Store{client: client, bucket: bucket, prefix: prefix}
}

// Save uploads png and returns its s3:// location.
func (s *S3Store) Save(ctx context.Context, name string, png []byte) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}
	if len(png) == 0 {
		return "", ErrEmpty
	}

	key := s.prefix + name
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(png),
		ContentLength: aws.Int64(int64(len(png))),
		ContentType:   aws.String(ContentType),
		Metadata: map[string]string{
			"capture-time": time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return "", fmt.Errorf("capture: s3 upload %s: %w", key, err)
	}
	return "s3://" + s.bucket + "/" + key, nil
}
