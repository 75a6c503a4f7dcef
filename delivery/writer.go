package delivery

import (
	"context"
	"io"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/trialsink"
)

// Writer writes the data of every delivery to an io.Writer, typically os.Stdout.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

var _ trialsink.Deliverer = (*Writer)(nil)

// NewWriter creates a Writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Deliver writes data followed by a newline. The filename and content type are ignored.
func (x *Writer) Deliver(_ context.Context, filename, _ string, data []byte) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if _, err := x.w.Write(data); err != nil {
		return goerr.Wrap(err, "failed to write export", goerr.V("filename", filename))
	}
	if _, err := io.WriteString(x.w, "\n"); err != nil {
		return goerr.Wrap(err, "failed to write export", goerr.V("filename", filename))
	}
	return nil
}
