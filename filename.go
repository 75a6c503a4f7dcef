package trialsink

import (
	"fmt"
	"strings"
	"time"
)

// ContentTypeCSV is the content type of an exported table.
const ContentTypeCSV = "text/csv; charset=utf-8"

const unknownParticipant = "unknown"

// RemoteFilename returns the filename used for uploads to the remote session.
func RemoteFilename(participantID string, at time.Time) string {
	return fmt.Sprintf("PARTICIPANT_%s_%d.csv", filenamePart(participantID), at.UnixMilli())
}

// LocalFilename returns the filename used for local delivery.
func LocalFilename(participantID string, at time.Time) string {
	return fmt.Sprintf("experiment_data_%s_%d.csv", filenamePart(participantID), at.UnixMilli())
}

// filenamePart makes the participant ID safe to embed in a single path element. Characters outside
// [A-Za-z0-9._-] become '_'.
func filenamePart(id string) string {
	if id == "" {
		return unknownParticipant
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, id)
}
