package delivery

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/trialsink"
)

// File stores exports as files in a local directory.
type File struct {
	dir string
}

var _ trialsink.Deliverer = (*File)(nil)

// NewFile creates a File that writes to the given directory.
func NewFile(dir string) *File {
	return &File{dir: dir}
}

// Dir returns the target directory.
func (f *File) Dir() string {
	return f.dir
}

// Deliver writes data to {dir}/{filename}, creating the directory if needed.
func (f *File) Deliver(_ context.Context, filename, _ string, data []byte) error {
	if err := validateFilename(filename); err != nil {
		return err
	}

	if err := os.MkdirAll(f.dir, 0750); err != nil {
		return goerr.Wrap(err, "failed to create export directory", goerr.V("dir", f.dir))
	}

	filePath := filepath.Join(f.dir, filename)
	if err := os.WriteFile(filePath, data, 0600); err != nil {
		return goerr.Wrap(err, "failed to write export file", goerr.V("path", filePath))
	}

	return nil
}

// List returns the CSV exports in the directory sorted by name, pageSize at a time. pageToken
// is the NextPageToken of a previous page.
func (f *File) List(_ context.Context, pageSize int, pageToken string) (*ListResponse, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read directory", goerr.V("dir", f.dir))
	}

	var files []Entry
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), csvSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, Entry{
			Name:      e.Name(),
			Size:      info.Size(),
			UpdatedAt: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Name < files[j].Name
	})

	startIdx := 0
	if pageToken != "" {
		lastFile, err := decodePageToken(pageToken)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid page token")
		}
		startIdx = sort.Search(len(files), func(i int) bool {
			return files[i].Name > lastFile
		})
	}

	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	endIdx := min(startIdx+pageSize, len(files))

	resp := &ListResponse{
		Entries: files[startIdx:endIdx],
	}
	if endIdx < len(files) {
		resp.NextPageToken = encodePageToken(files[endIdx-1].Name)
	}

	return resp, nil
}

func validateFilename(filename string) error {
	if filename == "" || filename != filepath.Base(filename) || filename == "." || filename == ".." {
		return goerr.Wrap(ErrInvalidFilename, "cannot deliver export", goerr.V("filename", filename))
	}
	return nil
}

func encodePageToken(name string) string {
	return base64.URLEncoding.EncodeToString([]byte(name))
}

func decodePageToken(token string) (string, error) {
	b, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return "", goerr.Wrap(err, "failed to decode page token")
	}
	return string(b), nil
}
