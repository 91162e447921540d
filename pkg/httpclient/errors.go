package httpclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
)

// ErrorClass はフェッチ失敗の分類です。試行ごとのログに error_class として記録します。
type ErrorClass string

const (
	ClassNone    ErrorClass = ""
	ClassTLS     ErrorClass = "tls"
	ClassProxy   ErrorClass = "proxy"
	ClassTimeout ErrorClass = "timeout"
	ClassStatus  ErrorClass = "http_status"
	ClassNetwork ErrorClass = "network"
)

// Classify はエラーを TLS / プロキシ / タイムアウト / HTTPステータス / その他ネットワークに分類します。
func Classify(err error) ErrorClass {
	switch {
	case err == nil:
		return ClassNone
	case isProxyError(err):
		return ClassProxy
	case isCertOrHandshakeError(err):
		return ClassTLS
	case IsStatusError(err):
		return ClassStatus
	case isTimeout(err):
		return ClassTimeout
	default:
		return ClassNetwork
	}
}

func isCertOrHandshakeError(err error) bool {
	var (
		verifyErr  *tls.CertificateVerificationError
		recordErr  tls.RecordHeaderError
		alertErr   tls.AlertError
		unknownCA  x509.UnknownAuthorityError
		hostErr    x509.HostnameError
		invalidErr x509.CertificateInvalidError
	)
	return errors.As(err, &verifyErr) ||
		errors.As(err, &recordErr) ||
		errors.As(err, &alertErr) ||
		errors.As(err, &unknownCA) ||
		errors.As(err, &hostErr) ||
		errors.As(err, &invalidErr)
}

func isProxyError(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "proxyconnect"
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
