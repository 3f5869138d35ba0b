package fetch

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// EndpointKind enumerates the request templates the racing API exposes to us.
type EndpointKind int

const (
	NextRaces EndpointKind = iota + 1
)

// Endpoint is a request description. Resolve turns it into method + URL.
type Endpoint struct {
	Kind  EndpointKind
	Count int // NextRaces: how many races to request
}

const apiVersionPath = "/rest/v1/"

// Resolve maps the endpoint onto baseURL. It is pure: no I/O, no state.
func (e Endpoint) Resolve(baseURL string) (method string, target string, err error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", "", fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return "", "", fmt.Errorf("base url %q needs scheme and host", baseURL)
	}

	switch e.Kind {
	case NextRaces:
		if e.Count <= 0 {
			return "", "", fmt.Errorf("next races: count must be positive, got %d", e.Count)
		}
		u := *base
		u.Path = strings.TrimRight(base.Path, "/") + apiVersionPath + "racing/"
		q := url.Values{}
		q.Set("method", "nextraces")
		q.Set("count", strconv.Itoa(e.Count))
		u.RawQuery = q.Encode()
		return http.MethodGet, u.String(), nil
	}
	return "", "", fmt.Errorf("unknown endpoint kind %d", e.Kind)
}
