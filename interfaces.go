package trialsink

import "context"

//go:generate go tool moq -out mock/mock.go -pkg mock . RemoteSession Deliverer

// RemoteSession is a results session on a remote service. The host opens it at startup; Saver
// only checks whether it is active, uploads the table and closes it.
type RemoteSession interface {
	// Active reports whether the session is open and accepts uploads.
	Active() bool
	// Upload stores content under filename in the session. It makes exactly one attempt and
	// returns ErrSessionInactive without any I/O when the session is not active.
	Upload(ctx context.Context, filename, content string) error
	// Close marks the session as completed. The session is no longer active afterwards even if
	// the returned error is not nil.
	Close(ctx context.Context) error
}

// Deliverer stores data under filename at a durable destination other than the remote session.
type Deliverer interface {
	Deliver(ctx context.Context, filename, contentType string, data []byte) error
}

// DelivererFunc adapts a function to the Deliverer interface.
type DelivererFunc func(ctx context.Context, filename, contentType string, data []byte) error

// Deliver calls f.
func (f DelivererFunc) Deliver(ctx context.Context, filename, contentType string, data []byte) error {
	return f(ctx, filename, contentType, data)
}
