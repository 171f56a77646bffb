package gcs

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/receipt-ledger/internal/logger"
)

const uploadTimeout = 2 * time.Minute

// BucketSource is a document source over the PDF objects under a prefix.
// Source ids are gs:// URIs.
type BucketSource struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewBucketSource creates a source for bucket/prefix. It assumes Application
// Default Credentials are configured.
func NewBucketSource(ctx context.Context, bucket, prefix string) (*BucketSource, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewBucketSource: create storage client: %w", err)
	}
	return &BucketSource{client: client, bucket: bucket, prefix: prefix}, nil
}

// Close closes the storage client.
func (s *BucketSource) Close() error {
	return s.client.Close()
}

// List returns the URIs of every PDF object under the prefix.
func (s *BucketSource) List(ctx context.Context) ([]string, error) {
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: s.prefix})

	var uris []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("List: iterate objects in %s: %w", s.bucket, err)
		}
		if !isPDF(attrs.Name) {
			continue
		}
		uris = append(uris, FormatURI(s.bucket, attrs.Name))
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("bucket", s.bucket).
		Str("prefix", s.prefix).
		Int("objects", len(uris)).
		Msg("Listed receipt objects")
	return uris, nil
}

// Fetch downloads the object bytes for a gs:// URI.
func (s *BucketSource) Fetch(ctx context.Context, uri string) ([]byte, error) {
	bucket, object, err := ParseURI(uri)
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}

	rc, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading object %s/%s: %w", bucket, object, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading bytes: %w", err)
	}

	return data, nil
}

// Upload copies a local file into the bucket under prefix+name and returns its URI.
func (s *BucketSource) Upload(ctx context.Context, name, filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("Upload: open file %q: %w", filePath, err)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	object := s.prefix + name
	w := s.client.Bucket(s.bucket).Object(object).NewWriter(ctx)
	w.ContentType = "application/pdf"

	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("Upload: copy file to GCS writer: %w", err)
	}

	// Close finalizes the upload.
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("Upload: finalize upload: %w", err)
	}

	return FormatURI(s.bucket, object), nil
}
