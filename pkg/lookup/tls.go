package lookup

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"time"
)

const (
	DefaultTLSTimeout = 5 * time.Second
	DefaultTLSPort    = 443
)

// TLSProber は指定ホストとのTLSハンドシェイクが成立するかを確認します。証明書は検証します。
type TLSProber struct {
	timeout time.Duration
	port    int
	roots   *x509.CertPool
}

// TLSOption は TLSProber の設定を行う関数型です。
type TLSOption func(*TLSProber)

// WithPort は接続先ポートを変更します。
func WithPort(port int) TLSOption {
	return func(p *TLSProber) {
		if port > 0 {
			p.port = port
		}
	}
}

// WithRootCAs は検証に使うルート証明書を差し替えます。nil ならシステムの証明書を使います。
func WithRootCAs(pool *x509.CertPool) TLSOption {
	return func(p *TLSProber) {
		p.roots = pool
	}
}

func NewTLSProber(timeout time.Duration, options ...TLSOption) *TLSProber {
	if timeout <= 0 {
		timeout = DefaultTLSTimeout
	}
	p := &TLSProber{timeout: timeout, port: DefaultTLSPort}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// Probe はハンドシェイクに成功すれば nil を返します。
func (p *TLSProber) Probe(ctx context.Context, host string) error {
	if host == "" {
		return fmt.Errorf("TLS確認の対象ホストが空です")
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: p.timeout},
		Config: &tls.Config{
			ServerName: host,
			RootCAs:    p.roots,
			MinVersion: tls.VersionTLS12,
		},
	}

	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, fmt.Sprint(p.port)))
	if err != nil {
		return fmt.Errorf("TLSハンドシェイクに失敗しました (%s:%d): %w", host, p.port, err)
	}
	return conn.Close()
}
