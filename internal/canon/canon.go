// Package canon reduces job URLs to the canonical form used as the dedup key.
package canon

import (
	"net/url"
	"strings"

	"github.com/amishk599/jobscout/internal/model"
)

// Canonicalize strips the query string and fragment from rawURL, keeping
// scheme, host and path. Unparseable input is cut at the first '?' or '#'.
func Canonicalize(rawURL string) model.JobLink {
	rawURL = strings.TrimSpace(rawURL)
	u, err := url.Parse(rawURL)
	if err != nil {
		if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
			rawURL = rawURL[:i]
		}
		return model.JobLink(rawURL)
	}
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	return model.JobLink(u.String())
}
