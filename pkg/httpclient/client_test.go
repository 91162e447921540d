package httpclient

import (
	"bytes"
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockHTTPClient struct {
	mock.Mock
}

func (m *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	args := m.Called(req)
	err := args.Error(1)
	if args.Get(0) != nil {
		return args.Get(0).(*http.Response), err
	}
	return nil, err
}

func okResponse(body string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"text/html; charset=utf-8"}},
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
	}
}

func TestNew(t *testing.T) {
	t.Run("default timeout", func(t *testing.T) {
		c := New(0)
		assert.Equal(t, DefaultHTTPTimeout, c.secure.(*http.Client).Timeout)
		assert.Equal(t, DefaultHTTPTimeout, c.insecure.(*http.Client).Timeout)
	})
	t.Run("検証なしクライアントは InsecureSkipVerify", func(t *testing.T) {
		c := New(3 * time.Second)
		secure := c.secure.(*http.Client).Transport.(*http.Transport)
		insecure := c.insecure.(*http.Client).Transport.(*http.Transport)
		assert.False(t, secure.TLSClientConfig.InsecureSkipVerify)
		assert.True(t, insecure.TLSClientConfig.InsecureSkipVerify)
	})
	t.Run("options", func(t *testing.T) {
		m := new(MockHTTPClient)
		c := New(time.Second, WithHTTPClient(m), WithUserAgent("ua/1.0"), WithMaxBodySize(42))
		assert.Equal(t, m, c.secure)
		assert.Equal(t, m, c.insecure)
		assert.Equal(t, "ua/1.0", c.userAgent)
		assert.Equal(t, int64(42), c.maxBodySize)
	})
}

func TestGet_SelectsDoerAndSetsHeaders(t *testing.T) {
	secure := new(MockHTTPClient)
	insecure := new(MockHTTPClient)

	secure.On("Do", mock.MatchedBy(func(req *http.Request) bool {
		return req.Header.Get("User-Agent") == UserAgent &&
			req.Header.Get("Accept-Language") == "en-US,en;q=0.5" &&
			req.Header.Get("Accept-Encoding") == ""
	})).Return(okResponse("<html>secure</html>"), nil).Once()
	insecure.On("Do", mock.Anything).Return(okResponse("<html>insecure</html>"), nil).Once()

	c := New(time.Second, WithDoers(secure, insecure))

	r, err := c.Get(context.Background(), "https://example.com", true)
	require.NoError(t, err)
	assert.Equal(t, "<html>secure</html>", r.Body)

	r, err = c.Get(context.Background(), "https://example.com", false)
	require.NoError(t, err)
	assert.Equal(t, "<html>insecure</html>", r.Body)

	secure.AssertExpectations(t)
	insecure.AssertExpectations(t)
}

func TestGet_RedirectHistory(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/middle", http.StatusFound)
	})
	mux.HandleFunc("/middle", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/final", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>done</body></html>")
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	r, err := New(2*time.Second).Get(context.Background(), ts.URL+"/start", true)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, r.StatusCode)
	assert.Equal(t, ts.URL+"/start", r.URL)
	assert.Equal(t, ts.URL+"/final", r.FinalURL)
	assert.Equal(t, []string{ts.URL + "/start", ts.URL + "/middle"}, r.Redirects)
	assert.Equal(t, 2, r.RedirectCount())
}

func TestGet_NonSuccessStatusReturnsResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer ts.Close()

	r, err := New(2*time.Second).Get(context.Background(), ts.URL, true)
	require.Error(t, err)
	require.NotNil(t, r, "ステータスエラーでもレスポンスを返す")
	assert.Equal(t, http.StatusNotFound, r.StatusCode)
	assert.True(t, IsStatusError(err))
	assert.Equal(t, ClassStatus, Classify(err))
}

func TestGet_DecodesCharset(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		_, _ = w.Write([]byte{'c', 'a', 'f', 0xE9})
	}))
	defer ts.Close()

	r, err := New(2*time.Second).Get(context.Background(), ts.URL, true)
	require.NoError(t, err)
	assert.Equal(t, "café", r.Body)
}

func TestGet_SelfSignedCertificate(t *testing.T) {
	ts := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>tls</html>")
	}))
	defer ts.Close()

	c := New(2 * time.Second)

	_, err := c.Get(context.Background(), ts.URL, true)
	require.Error(t, err)
	assert.Equal(t, ClassTLS, Classify(err), "自己署名証明書は TLS エラーに分類される: %v", err)

	r, err := c.Get(context.Background(), ts.URL, false)
	require.NoError(t, err)
	assert.Equal(t, "<html>tls</html>", r.Body)
}

func TestHead(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.Header().Set("X-Probe", "yes")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	r, err := New(2*time.Second).Head(context.Background(), ts.URL, true)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, r.StatusCode)
	assert.Equal(t, "yes", r.Header.Get("X-Probe"))
	assert.Empty(t, r.Body)
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorClass
	}{
		{"nil", nil, ClassNone},
		{"unknown authority", fmt.Errorf("wrap: %w", x509.UnknownAuthorityError{}), ClassTLS},
		{"hostname mismatch", x509.HostnameError{Host: "example.com"}, ClassTLS},
		{"proxyconnect", &net.OpError{Op: "proxyconnect", Net: "tcp", Err: errors.New("refused")}, ClassProxy},
		{"status", &StatusError{StatusCode: 500}, ClassStatus},
		{"deadline", context.DeadlineExceeded, ClassTimeout},
		{"net timeout", &net.OpError{Op: "dial", Err: timeoutErr{}}, ClassTimeout},
		{"connection refused", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, ClassNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.err))
		})
	}
}
