package urlnorm

import (
	"strconv"
	"strings"
)

const (
	SchemeHTTP  = "http"
	SchemeHTTPS = "https"
)

// Normalize は、URLが http:// または https:// で始まらない場合に http:// を補完します。
// ホスト部の妥当性はここでは検証しません。不正なURLは後段のフェッチ失敗として表面化します。
func Normalize(rawURL string) string {
	if strings.HasPrefix(rawURL, "http://") || strings.HasPrefix(rawURL, "https://") {
		return rawURL
	}
	return "http://" + rawURL
}

// ParsedURL は正規化済みURLを一度だけ分解した結果です。1回の解析の間は変更しません。
type ParsedURL struct {
	Scheme    string // 小文字化したスキーム
	Authority string // userinfo と port を含むネットロケーション
	Hostname  string // userinfo と port を除いた小文字のホスト名
	Port      string // 明示ポート (なければ空)
	Path      string
	RawQuery  string
	Fragment  string
}

// Parse はURL文字列を scheme / authority / path / query / fragment に分解します。
// net/url.Parse と異なり失敗しません。空白や不正なホストもそのまま保持され、判定は後段に委ねます。
func Parse(rawURL string) ParsedURL {
	var p ParsedURL
	rest := rawURL

	if i := strings.Index(rest, ":"); i > 0 && isSchemeToken(rest[:i]) {
		p.Scheme = strings.ToLower(rest[:i])
		rest = rest[i+1:]
	}

	if strings.HasPrefix(rest, "//") {
		rest = rest[2:]
		end := strings.IndexAny(rest, "/?#")
		if end < 0 {
			end = len(rest)
		}
		p.Authority = rest[:end]
		rest = rest[end:]
	}

	if i := strings.Index(rest, "#"); i >= 0 {
		p.Fragment = rest[i+1:]
		rest = rest[:i]
	}
	if i := strings.Index(rest, "?"); i >= 0 {
		p.RawQuery = rest[i+1:]
		rest = rest[:i]
	}
	p.Path = rest

	p.Hostname, p.Port = splitHostPort(p.Authority)
	return p
}

// String は fragment を除いた "scheme://authority/path?query" を再構成します。
// フェッチ時に実際に使用するURLの形式です。
func (p ParsedURL) String() string {
	var b strings.Builder
	b.WriteString(p.Scheme)
	b.WriteString("://")
	b.WriteString(p.Authority)
	b.WriteString(p.Path)
	if p.RawQuery != "" {
		b.WriteString("?")
		b.WriteString(p.RawQuery)
	}
	return b.String()
}

// WithScheme はスキームだけを置き換えた兄弟URLを返します。
func (p ParsedURL) WithScheme(scheme string) ParsedURL {
	p.Scheme = scheme
	return p
}

// AlternateScheme は http と https の相互のフォールバック先を返します。
// それ以外のスキームにはフォールバック先がないため空文字を返します。
func AlternateScheme(scheme string) string {
	switch scheme {
	case SchemeHTTP:
		return SchemeHTTPS
	case SchemeHTTPS:
		return SchemeHTTP
	default:
		return ""
	}
}

func isSchemeToken(s string) bool {
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.'):
		default:
			return false
		}
	}
	return s != ""
}

// splitHostPort は authority から userinfo を除き、ホスト名と数値ポートを取り出します。
func splitHostPort(authority string) (host, port string) {
	hostport := authority
	if i := strings.LastIndex(hostport, "@"); i >= 0 {
		hostport = hostport[i+1:]
	}

	if strings.HasPrefix(hostport, "[") {
		end := strings.Index(hostport, "]")
		if end < 0 {
			return strings.ToLower(hostport), ""
		}
		host = hostport[1:end]
		tail := hostport[end+1:]
		if strings.HasPrefix(tail, ":") && isPort(tail[1:]) {
			port = tail[1:]
		}
		return strings.ToLower(host), port
	}

	host = hostport
	if i := strings.LastIndex(hostport, ":"); i >= 0 {
		host = hostport[:i]
		if isPort(hostport[i+1:]) {
			port = hostport[i+1:]
		}
	}
	return strings.ToLower(host), port
}

func isPort(s string) bool {
	if s == "" {
		return false
	}
	n, err := strconv.Atoi(s)
	return err == nil && n > 0 && n <= 65535
}
