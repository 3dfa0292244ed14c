package telegram

import (
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedTransport struct {
	errs   []error
	bodies []string
}

func (s *scriptedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Body != nil {
		b, _ := io.ReadAll(req.Body)
		s.bodies = append(s.bodies, string(b))
	}
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return nil, err
	}
	return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader("{}"))}, nil
}

func dialErr() error { return &net.OpError{Op: "dial", Err: errors.New("connection refused")} }

func TestRetryTransportReplaysBody(t *testing.T) {
	base := &scriptedTransport{errs: []error{dialErr(), dialErr()}}
	rt := &retryTransport{base: base, retries: 3}

	req, err := http.NewRequest(http.MethodPost, "https://api.telegram.org/botX/sendMessage", strings.NewReader(`{"text":"hi"}`))
	require.NoError(t, err)
	resp, err := rt.RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{`{"text":"hi"}`, `{"text":"hi"}`, `{"text":"hi"}`}, base.bodies)
}

func TestRetryTransportGivesUp(t *testing.T) {
	base := &scriptedTransport{errs: []error{dialErr(), dialErr(), dialErr()}}
	rt := &retryTransport{base: base, retries: 2}

	req, err := http.NewRequest(http.MethodGet, "https://api.telegram.org/botX/getMe", nil)
	require.NoError(t, err)
	_, err = rt.RoundTrip(req)
	require.Error(t, err)
	assert.Empty(t, base.errs)
}

func TestRetryTransportSkipsPermanentErrors(t *testing.T) {
	base := &scriptedTransport{errs: []error{errors.New("tls: bad certificate"), dialErr()}}
	rt := &retryTransport{base: base, retries: 3}

	req, err := http.NewRequest(http.MethodGet, "https://api.telegram.org/botX/getMe", nil)
	require.NoError(t, err)
	_, err = rt.RoundTrip(req)
	require.EqualError(t, err, "tls: bad certificate")
	assert.Len(t, base.errs, 1)
}

func TestBuildHTTPClientTimeouts(t *testing.T) {
	c := BuildHTTPClient(0)
	assert.Equal(t, downloadSlack, c.Timeout)
	_, ok := c.Transport.(*retryTransport)
	assert.True(t, ok)
}
