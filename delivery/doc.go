// Package delivery provides trialsink.Deliverer implementations that store an exported table
// outside the remote session: a local directory, a Cloud Storage bucket, a SQLite archive, any
// io.Writer, and an ordered Fallback chain of those.
package delivery
