package features

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shouni/go-phish-features/pkg/urlnorm"
)

// DefaultShorteners は短縮URLサービスとみなすドメインの一覧です。
var DefaultShorteners = []string{
	"bit.ly", "tinyurl.com", "goo.gl", "t.co", "ow.ly", "is.gd", "buff.ly",
	"bit.do", "mcaf.ee", "rebrand.ly", "tiny.cc", "cutt.ly",
}

var ipv4AuthorityRe = regexp.MustCompile(`^\d+\.\d+\.\d+\.\d+$`)

// LexicalDeriver はURL文字列だけから特徴量を計算します。ネットワークには触れません。
type LexicalDeriver struct {
	shorteners []string
}

// NewLexicalDeriver は短縮URLサービスの一覧を受け取ります。空の場合は DefaultShorteners を使います。
func NewLexicalDeriver(shorteners []string) *LexicalDeriver {
	list := make([]string, 0, len(shorteners))
	for _, s := range shorteners {
		if s = strings.TrimSpace(s); s != "" {
			list = append(list, s)
		}
	}
	if len(list) == 0 {
		list = append(list, DefaultShorteners...)
	}
	return &LexicalDeriver{shorteners: list}
}

// Derive は LexicalKeys の特徴量を計算します。
// url は取得に使ったURL (取得前なら正規化済みURL)、p は最初に解析したURLです。
func (d *LexicalDeriver) Derive(p urlnorm.ParsedURL, url string) Set {
	authority := p.Authority

	set := Set{
		URLLength:              utf8.RuneCountInString(url),
		HavingIPAddress:        sign(!ipv4AuthorityRe.MatchString(authority)),
		ShortiningService:      sign(d.isShortened(url)),
		HavingAtSymbol:         sign(strings.Contains(url, "@")),
		DoubleSlashRedirecting: sign(hasDoubleSlashAfterScheme(url)),
		PrefixSuffix:           sign(strings.Contains(authority, "-")),
		Port:                   sign(p.Port != ""),
		HTTPSToken:             sign(p.Scheme == urlnorm.SchemeHTTPS),
	}

	// ラベル数 n > 2 なら n-2
	if labels := strings.Split(authority, "."); len(labels) > 2 {
		set[HavingSubDomain] = len(labels) - 2
	} else {
		set[HavingSubDomain] = -1
	}

	return set
}

// isShortened はURL全体に対する部分一致です。microsoft.com が t.co に一致するような誤検知も含みます。
func (d *LexicalDeriver) isShortened(url string) bool {
	for _, s := range d.shorteners {
		if strings.Contains(url, s) {
			return true
		}
	}
	return false
}

// 先頭7文字 ("https:/" の長さ) より後ろに "//" があるか
func hasDoubleSlashAfterScheme(url string) bool {
	runes := []rune(url)
	if len(runes) <= 7 {
		return false
	}
	return strings.Contains(string(runes[7:]), "//")
}

func sign(b bool) int {
	if b {
		return 1
	}
	return -1
}
