package pavlovia

import (
	"net/url"
	"strings"
)

const hostDomain = "pavlovia.org"

// HostedBy returns a HostCheck that reports whether origin, the URL the experiment is served
// from, belongs to the Pavlovia domain.
func HostedBy(origin string) HostCheck {
	return func() bool {
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.Contains(u.Hostname(), hostDomain)
	}
}
