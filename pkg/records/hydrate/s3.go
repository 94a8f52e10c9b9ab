package hydrate

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Config options for the S3 metadata source
type S3Config struct {
	Region          string // AWS region
	Bucket          string // S3 bucket name
	Prefix          string // Key prefix prepended to resource identifiers
	AccessKeyID     string // AWS access key ID
	SecretAccessKey string // AWS secret access key
	Endpoint        string // Optional custom endpoint for S3-compatible services
	UsePathStyle    bool   // Use path-style addressing (default: false)
}

// HeadObjectAPI is the part of the S3 client the source needs.
type HeadObjectAPI interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3MetadataSource reads resource metadata from object headers.
type S3MetadataSource struct {
	client HeadObjectAPI
	bucket string
	prefix string
}

// NewS3MetadataSource creates a source from config.
func NewS3MetadataSource(ctx context.Context, config S3Config) (*S3MetadataSource, error) {
	if config.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	if config.Region == "" {
		config.Region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(config.Region)}
	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(config.AccessKeyID, config.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Options []func(*s3.Options)
	if config.Endpoint != "" {
		s3Options = append(s3Options, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(config.Endpoint)
			o.UsePathStyle = config.UsePathStyle
		})
	}
	return NewS3MetadataSourceWithClient(s3.NewFromConfig(awsCfg, s3Options...), config.Bucket, config.Prefix), nil
}

// NewS3MetadataSourceWithClient creates a source over an existing client.
func NewS3MetadataSourceWithClient(client HeadObjectAPI, bucket, prefix string) *S3MetadataSource {
	return &S3MetadataSource{client: client, bucket: bucket, prefix: prefix}
}

// Metadata issues a HeadObject for prefix+id. The name comes from the
// "filename" user metadata, falling back to the last key segment.
func (s *S3MetadataSource) Metadata(ctx context.Context, id string) (*Metadata, error) {
	key := s.prefix + strings.TrimPrefix(id, TempPrefix)
	result, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNoMetadata, key)
		}
		return nil, fmt.Errorf("failed to get object metadata: %w", err)
	}

	md := &Metadata{
		Name:        path.Base(key),
		ContentType: "application/octet-stream",
		Size:        aws.ToInt64(result.ContentLength),
		ModDate:     aws.ToTime(result.LastModified),
		ETag:        strings.Trim(aws.ToString(result.ETag), "\""),
	}
	if result.ContentType != nil {
		md.ContentType = *result.ContentType
	}
	if name := result.Metadata["filename"]; name != "" {
		md.Name = name
	}
	return md, nil
}

// isNotFound matches the typed HeadObject miss and the bare API error codes
// S3-compatible services return instead.
func isNotFound(err error) bool {
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
