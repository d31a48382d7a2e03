package archive

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"path"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
)

// S3Backend uploads archived artifacts to an AWS S3 bucket with a
// public-read ACL, grounded on the teacher's S3Store — adapted from its
// presigned-GET URL scheme to spec §4.5's public-object URL form
// (https://<bucket>.s3.amazonaws.com/<dst>).
type S3Backend struct {
	client *s3.Client
	bucket string
	log    zerolog.Logger
}

// NewS3Backend creates an S3 archive backend.
func NewS3Backend(ctx context.Context, bucket, region, accessKeyID, secretAccessKey string, log zerolog.Logger) (*S3Backend, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if accessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("archive: aws config: %w", err)
	}
	return &S3Backend{
		client: s3.NewFromConfig(awsCfg),
		bucket: bucket,
		log:    log.With().Str("component", "s3-archive").Logger(),
	}, nil
}

func (b *S3Backend) Name() string { return "s3" }

func (b *S3Backend) UploadFile(ctx context.Context, src, dst, partition string) (string, bool) {
	data, err := readFile(src)
	if err != nil {
		b.log.Error().Err(err).Str("src", src).Msg("s3 archive: read source failed")
		return "", false
	}
	key := path.Join(partition, dst)
	contentType := mime.TypeByExtension(filepath.Ext(dst))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		ACL:         s3types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		b.log.Error().Err(err).Str("key", key).Msg("s3 archive: put object failed")
		return "", false
	}

	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", b.bucket, key), true
}

func (b *S3Backend) CleanFiles(ctx context.Context, root string, days int) (int, bool) {
	cutoff := time.Now().AddDate(0, 0, -days)
	prefix := root + "/"

	var toDelete []s3types.ObjectIdentifier
	removed := 0

	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			b.log.Error().Err(err).Str("prefix", prefix).Msg("s3 archive: list objects failed")
			return removed, false
		}
		for _, obj := range page.Contents {
			if obj.LastModified != nil && obj.LastModified.Before(cutoff) {
				toDelete = append(toDelete, s3types.ObjectIdentifier{Key: obj.Key})
			}
		}
	}

	for i := 0; i < len(toDelete); i += 1000 {
		end := i + 1000
		if end > len(toDelete) {
			end = len(toDelete)
		}
		batch := toDelete[i:end]
		out, err := b.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(b.bucket),
			Delete: &s3types.Delete{Objects: batch},
		})
		if err != nil {
			b.log.Error().Err(err).Msg("s3 archive: delete objects failed")
			return removed, false
		}
		removed += len(out.Deleted)
	}
	return removed, true
}
