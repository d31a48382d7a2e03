package archive

import (
	"context"
	"fmt"
	"mime"
	"path"
	"path/filepath"
	"time"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSBackend uploads archived artifacts to Google Cloud Storage, grounded
// on the bucket-handle + Writer/iterator idiom in
// friggdb/backend/gcs/gcs.go.
type GCSBackend struct {
	bucket *storage.BucketHandle
	name   string
	log    zerolog.Logger
}

// NewGCSBackend creates a GCS archive backend. credentialsFile may be empty
// to use application-default credentials.
func NewGCSBackend(ctx context.Context, bucketName, credentialsFile string, log zerolog.Logger) (*GCSBackend, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("archive: gcs client: %w", err)
	}
	return &GCSBackend{
		bucket: client.Bucket(bucketName),
		name:   bucketName,
		log:    log.With().Str("component", "gcs-archive").Logger(),
	}, nil
}

func (b *GCSBackend) Name() string { return "gcs" }

func (b *GCSBackend) UploadFile(ctx context.Context, src, dst, partition string) (string, bool) {
	data, err := readFile(src)
	if err != nil {
		b.log.Error().Err(err).Str("src", src).Msg("gcs archive: read source failed")
		return "", false
	}
	key := path.Join(partition, dst)
	obj := b.bucket.Object(key)

	w := obj.NewWriter(ctx)
	contentType := mime.TypeByExtension(filepath.Ext(dst))
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		b.log.Error().Err(err).Str("key", key).Msg("gcs archive: write failed")
		return "", false
	}
	if err := w.Close(); err != nil {
		b.log.Error().Err(err).Str("key", key).Msg("gcs archive: close failed")
		return "", false
	}

	if err := obj.ACL().Set(ctx, storage.AllUsers, storage.RoleReader); err != nil {
		b.log.Error().Err(err).Str("key", key).Msg("gcs archive: make public failed")
		return "", false
	}

	attrs, err := obj.Attrs(ctx)
	if err != nil {
		b.log.Error().Err(err).Str("key", key).Msg("gcs archive: read attrs failed")
		return "", false
	}
	return attrs.MediaLink, true
}

func (b *GCSBackend) CleanFiles(ctx context.Context, root string, days int) (int, bool) {
	cutoff := time.Now().AddDate(0, 0, -days)
	removed := 0

	it := b.bucket.Objects(ctx, &storage.Query{Prefix: root + "/"})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			b.log.Error().Err(err).Str("root", root).Msg("gcs archive: list objects failed")
			return removed, false
		}
		if attrs.Updated.Before(cutoff) {
			if err := b.bucket.Object(attrs.Name).Delete(ctx); err == nil {
				removed++
			}
		}
	}
	return removed, true
}
