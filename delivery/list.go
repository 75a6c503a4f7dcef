package delivery

import (
	"context"
	"errors"
	"time"
)

// DefaultPageSize is the page size used by List when none is given.
const DefaultPageSize = 20

const csvSuffix = ".csv"

var (
	// ErrInvalidFilename is returned for a filename that is empty or contains a path.
	ErrInvalidFilename = errors.New("invalid export filename")

	// ErrDuplicateExport is returned by SQLite when the filename is already archived.
	ErrDuplicateExport = errors.New("export already exists")

	// ErrNoDeliverer is returned by a Fallback without deliverers.
	ErrNoDeliverer = errors.New("no deliverer configured")
)

// Entry describes one stored export without its content.
type Entry struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListResponse is one page of stored exports.
type ListResponse struct {
	Entries       []Entry
	NextPageToken string
}

// Lister lists stored exports page by page.
type Lister interface {
	List(ctx context.Context, pageSize int, pageToken string) (*ListResponse, error)
}

var (
	_ Lister = (*File)(nil)
	_ Lister = (*CloudStorage)(nil)
	_ Lister = (*SQLite)(nil)
)
