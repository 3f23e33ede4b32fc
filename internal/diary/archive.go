package diary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"photocal/internal/models"
)

// Archive is the record written when a day is ended.
type Archive struct {
	Owner      string             `json:"owner"`
	Date       string             `json:"date"`
	ArchivedAt time.Time          `json:"archivedAt"`
	Entries    []models.FoodEntry `json:"entries"`
	Totals     models.Nutrients   `json:"totals"`
}

// Archiver stores ended days and returns where the record was written.
type Archiver interface {
	Archive(ctx context.Context, rec Archive) (string, error)
}

// ObjectPutter is the subset of the S3 client used for archiving.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Archiver struct {
	client ObjectPutter
	bucket string
	prefix string
}

func NewS3Archiver(client ObjectPutter, bucket, prefix string) *S3Archiver {
	return &S3Archiver{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// NewS3ArchiverFromEnv loads AWS credentials the usual way (environment,
// shared config, instance role).
func NewS3ArchiverFromEnv(ctx context.Context, region, bucket, prefix string) (*S3Archiver, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config for S3: %w", err)
	}
	return NewS3Archiver(s3.NewFromConfig(cfg), bucket, prefix), nil
}

// Key builds the object key for rec.
func (a *S3Archiver) Key(rec Archive) string {
	owner := strings.ReplaceAll(rec.Owner, ":", "-")
	name := fmt.Sprintf("%s-%s.json", rec.Date, uuid.NewString())
	return path.Join(a.prefix, owner, name)
}

func (a *S3Archiver) Archive(ctx context.Context, rec Archive) (string, error) {
	body, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("failed to encode archive: %w", err)
	}

	key := a.Key(rec)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", a.bucket, key), nil
}
