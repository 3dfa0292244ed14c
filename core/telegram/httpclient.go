package telegram

import (
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/timebot/core/telegram/netutil"
)

// Transport tuning for api.telegram.org.
const (
	dialTimeout      = 5 * time.Second
	tlsTimeout       = 5 * time.Second
	idleTimeout      = 30 * time.Second
	keepAlive        = 30 * time.Second
	transportRetries = 3
	transportBackoff = 2 * time.Second

	// getUpdates keeps the response open for the whole long-poll timeout.
	headerSlack = 10 * time.Second
	// voice notes are downloaded through the same client.
	downloadSlack = 50 * time.Second
)

// BuildHTTPClient returns the client used by the bot. Requests failing with
// a retryable transport error are replayed with linear backoff.
func BuildHTTPClient(longPoll time.Duration) *http.Client {
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: keepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       idleTimeout,
		TLSHandshakeTimeout:   tlsTimeout,
		ResponseHeaderTimeout: longPoll + headerSlack,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{
		Timeout:   longPoll + downloadSlack,
		Transport: &retryTransport{base: base, retries: transportRetries, backoff: transportBackoff},
	}
}

type retryTransport struct {
	base    http.RoundTripper
	retries int
	backoff time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req)
	for attempt := 1; err != nil && attempt <= t.retries && netutil.ShouldRetry(err); attempt++ {
		if req.Body != nil && req.GetBody == nil {
			break
		}
		if werr := sleepCtx(req, t.backoff*time.Duration(attempt)); werr != nil {
			return nil, werr
		}
		again, cerr := replay(req)
		if cerr != nil {
			return nil, cerr
		}
		resp, err = base.RoundTrip(again)
	}
	return resp, err
}

// replay clones req with a fresh body.
func replay(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		clone.Body = body
	}
	return clone, nil
}

func sleepCtx(req *http.Request, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-req.Context().Done():
		return req.Context().Err()
	case <-timer.C:
		return nil
	}
}
