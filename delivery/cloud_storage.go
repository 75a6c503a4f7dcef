package delivery

import (
	"context"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/trialsink"
	"google.golang.org/api/iterator"
)

// CloudStorageOption configures a CloudStorage.
type CloudStorageOption func(*CloudStorage)

// WithPrefix sets the object name prefix, e.g. "exports/".
func WithPrefix(prefix string) CloudStorageOption {
	return func(s *CloudStorage) {
		s.prefix = prefix
	}
}

// WithStorageClient sets the Cloud Storage client. If not set, NewCloudStorage creates one
// with application default credentials.
func WithStorageClient(client *storage.Client) CloudStorageOption {
	return func(s *CloudStorage) {
		s.client = client
	}
}

// CloudStorage stores exports as objects in a Cloud Storage bucket.
type CloudStorage struct {
	bucket string
	prefix string
	client *storage.Client
}

var _ trialsink.Deliverer = (*CloudStorage)(nil)

// NewCloudStorage creates a CloudStorage for the given bucket.
func NewCloudStorage(ctx context.Context, bucket string, opts ...CloudStorageOption) (*CloudStorage, error) {
	if bucket == "" {
		return nil, goerr.New("bucket is required")
	}

	s := &CloudStorage{bucket: bucket}
	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create Cloud Storage client")
		}
		s.client = client
	}

	return s, nil
}

// Deliver writes data to the object {prefix}{filename} with the given content type.
func (s *CloudStorage) Deliver(ctx context.Context, filename, contentType string, data []byte) error {
	if err := validateFilename(filename); err != nil {
		return err
	}

	objectName := s.prefix + filename
	w := s.client.Bucket(s.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return goerr.Wrap(err, "failed to write export object",
			goerr.V("bucket", s.bucket),
			goerr.V("object", objectName),
		)
	}
	if err := w.Close(); err != nil {
		return goerr.Wrap(err, "failed to finalize export object",
			goerr.V("bucket", s.bucket),
			goerr.V("object", objectName),
		)
	}

	return nil
}

// List returns the CSV exports under the prefix, pageSize at a time.
func (s *CloudStorage) List(ctx context.Context, pageSize int, pageToken string) (*ListResponse, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: s.prefix})
	pager := iterator.NewPager(it, pageSize, pageToken)

	var attrs []*storage.ObjectAttrs
	nextToken, err := pager.NextPage(&attrs)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list objects",
			goerr.V("bucket", s.bucket),
			goerr.V("prefix", s.prefix),
		)
	}

	resp := &ListResponse{NextPageToken: nextToken}
	for _, attr := range attrs {
		name := strings.TrimPrefix(attr.Name, s.prefix)
		// nested "directories" are not exports of this prefix
		if !strings.HasSuffix(name, csvSuffix) || strings.Contains(name, "/") {
			continue
		}
		resp.Entries = append(resp.Entries, Entry{
			Name:      name,
			Size:      attr.Size,
			UpdatedAt: attr.Updated,
		})
	}

	return resp, nil
}

// Close releases the underlying client.
func (s *CloudStorage) Close() error {
	return s.client.Close()
}
