package lookup

import (
	"context"
	"crypto/x509"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tlsServerPort(t *testing.T, ts *httptest.Server) int {
	t.Helper()
	_, portStr, err := net.SplitHostPort(ts.Listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return port
}

func TestTLSProber_Probe(t *testing.T) {
	ts := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer ts.Close()
	port := tlsServerPort(t, ts)

	t.Run("信頼済み証明書で成功", func(t *testing.T) {
		pool := x509.NewCertPool()
		pool.AddCert(ts.Certificate())
		p := NewTLSProber(time.Second, WithPort(port), WithRootCAs(pool))
		assert.NoError(t, p.Probe(context.Background(), "127.0.0.1"))
	})

	t.Run("未知の認証局は失敗", func(t *testing.T) {
		p := NewTLSProber(time.Second, WithPort(port))
		assert.Error(t, p.Probe(context.Background(), "127.0.0.1"))
	})

	t.Run("空のホスト", func(t *testing.T) {
		assert.Error(t, NewTLSProber(time.Second).Probe(context.Background(), ""))
	})
}

func TestTLSProber_ConnectionRefused(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	p := NewTLSProber(500*time.Millisecond, WithPort(port))
	assert.Error(t, p.Probe(context.Background(), "127.0.0.1"))
}

func TestNewTLSProber_Defaults(t *testing.T) {
	p := NewTLSProber(0)
	assert.Equal(t, DefaultTLSTimeout, p.timeout)
	assert.Equal(t, DefaultTLSPort, p.port)
}
