package callback

import (
	"fmt"
	"net/url"
	"strings"
)

// Params are the query parameters of an OAuth redirect.
type Params struct {
	Code  string
	State string

	// ProviderError is set when the user denied access or Google rejected
	// the request, e.g. "access_denied".
	ProviderError            string
	ProviderErrorDescription string
}

// ParseRedirect extracts the OAuth parameters from a redirect URL. Absolute
// and path-relative URLs are accepted. Missing parameters are not an error
// here; Handle decides what is required.
func ParseRedirect(raw string) (Params, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Params{}, fmt.Errorf("invalid redirect URL: %w", err)
	}
	q := u.Query()
	return Params{
		Code:                     strings.TrimSpace(q.Get("code")),
		State:                    strings.TrimSpace(q.Get("state")),
		ProviderError:            strings.TrimSpace(q.Get("error")),
		ProviderErrorDescription: strings.TrimSpace(q.Get("error_description")),
	}, nil
}
