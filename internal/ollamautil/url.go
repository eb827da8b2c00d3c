// Package ollamautil holds the small amount of plumbing shared by the
// embedding and LLM clients that talk to an Ollama daemon.
package ollamautil

import (
	"fmt"
	"net/url"
	"strings"
)

// ParseHost turns a bare host:port or full URL into the *url.URL the Ollama
// API client expects, defaulting to http:// when no scheme is given.
func ParseHost(host string) (*url.URL, error) {
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("parse ollama host %q: %w", host, err)
	}
	return u, nil
}
