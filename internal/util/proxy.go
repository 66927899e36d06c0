package util

import (
	"fmt"
	"net/http"
	"net/url"
)

// NewProxyFunc returns the proxy selector for side requests (robots.txt)
// so that they leave through the same proxy as the browser. An empty proxy
// falls back to the environment.
func NewProxyFunc(proxy string) (func(*http.Request) (*url.URL, error), error) {
	if proxy == "" {
		return http.ProxyFromEnvironment, nil
	}

	parsed, err := url.Parse(proxy)
	if err != nil {
		return nil, fmt.Errorf("parse proxy %q: %w", proxy, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("proxy %q must be an absolute URL", proxy)
	}

	return http.ProxyURL(parsed), nil
}
