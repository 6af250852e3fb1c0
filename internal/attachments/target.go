package attachments

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"studio-backend/internal/shared/util"
)

const (
	presignExpires       = 15 * time.Minute
	defaultRegion        = "us-east-1"
	defaultUploadsPrefix = "attachments/"
)

// UploadTarget is a short-lived destination for one direct PUT transfer.
type UploadTarget struct {
	URL        string
	StorageKey string
	ExpiresIn  time.Duration
}

// TargetIssuer requests upload targets from the storage collaborator.
type TargetIssuer interface {
	IssueTarget(ctx context.Context, userID, fileName, mediaType string, size int64) (UploadTarget, error)
}

// S3Issuer issues presigned PUT URLs against an S3 bucket.
type S3Issuer struct {
	presign *s3.PresignClient
	bucket  string
	prefix  string
}

// NewS3IssuerFromEnv builds an S3Issuer from UPLOADS_S3_* environment.
func NewS3IssuerFromEnv(ctx context.Context) (*S3Issuer, error) {
	region := strings.TrimSpace(os.Getenv("AWS_REGION"))
	if region == "" {
		region = defaultRegion
	}
	bucket := strings.TrimSpace(os.Getenv("UPLOADS_S3_BUCKET"))
	if bucket == "" {
		return nil, fmt.Errorf("UPLOADS_S3_BUCKET is required")
	}
	prefix := strings.TrimSpace(os.Getenv("UPLOADS_S3_PREFIX"))
	if prefix == "" {
		prefix = defaultUploadsPrefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &S3Issuer{
		presign: s3.NewPresignClient(s3.NewFromConfig(cfg)),
		bucket:  bucket,
		prefix:  prefix,
	}, nil
}

// IssueTarget presigns a PUT for the declared file metadata.
func (i *S3Issuer) IssueTarget(ctx context.Context, userID, fileName, mediaType string, size int64) (UploadTarget, error) {
	sanitized, err := util.SanitizeFileName(fileName)
	if err != nil {
		return UploadTarget{}, fmt.Errorf("%w: %s", ErrUnsupportedType, fileName)
	}

	key := path.Join(i.prefix, util.OwnerKey(userID), uuid.NewString()+"-"+sanitized)

	out, err := i.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(i.bucket),
		Key:           aws.String(key),
		ContentType:   aws.String(mediaType),
		ContentLength: aws.Int64(size),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = presignExpires
	})
	if err != nil {
		return UploadTarget{}, fmt.Errorf("presign put bucket=%s key=%s: %w", i.bucket, key, err)
	}

	return UploadTarget{
		URL:        out.URL,
		StorageKey: key,
		ExpiresIn:  presignExpires,
	}, nil
}

var _ TargetIssuer = (*S3Issuer)(nil)
