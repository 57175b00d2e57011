package httpclient

import (
	"errors"
	"net/http"
	"time"

	"govai/internal/logging"
)

// DefaultUserAgent is sent on every outbound request that does not set one.
const DefaultUserAgent = "gov-ai-demo/1.0"

const maxRedirects = 10

// New returns an http.Client for outbound calls. It honors proxy environment
// variables, stops after ten redirects and stamps DefaultUserAgent.
func New(timeout time.Duration, logger logging.Logger) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	log := logging.OrNop(logger)

	return &http.Client{
		Timeout:   timeout,
		Transport: &userAgentTransport{base: Transport(), agent: DefaultUserAgent},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				log.Warn("stopped after %d redirects at %s", len(via), req.URL)
				return errors.New("stopped after 10 redirects")
			}
			return nil
		},
	}
}

// Transport returns a clone of the default transport with the standard proxy
// policy.
func Transport() *http.Transport {
	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return &http.Transport{Proxy: http.ProxyFromEnvironment}
	}
	transport := base.Clone()
	transport.Proxy = http.ProxyFromEnvironment
	return transport
}

type userAgentTransport struct {
	base  http.RoundTripper
	agent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return t.base.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", t.agent)
	return t.base.RoundTrip(clone)
}
