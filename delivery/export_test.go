package delivery

import "time"

func (s *SQLite) SetClock(now func() time.Time) {
	s.now = now
}
