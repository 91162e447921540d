package features

import (
	"testing"

	"github.com/shouni/go-phish-features/pkg/urlnorm"
	"github.com/stretchr/testify/assert"
)

func deriveLexical(raw string) Set {
	u := urlnorm.Normalize(raw)
	return NewLexicalDeriver(nil).Derive(urlnorm.Parse(u), u)
}

func TestLexicalDeriver_Derive(t *testing.T) {
	t.Run("基本", func(t *testing.T) {
		set := deriveLexical("example.com")
		assert.Equal(t, Set{
			URLLength:              len("http://example.com"),
			HavingIPAddress:        1,
			ShortiningService:      -1,
			HavingAtSymbol:         -1,
			DoubleSlashRedirecting: -1,
			PrefixSuffix:           -1,
			HavingSubDomain:        -1,
			Port:                   -1,
			HTTPSToken:             -1,
		}, set)
	})

	t.Run("IPアドレス", func(t *testing.T) {
		assert.Equal(t, -1, deriveLexical("http://192.168.1.1/login")[HavingIPAddress])
		assert.Equal(t, 1, deriveLexical("http://192.168.1.1:8080/login")[HavingIPAddress], "ポート付きは一致しない")
		assert.Equal(t, 1, deriveLexical("http://example.com")[HavingIPAddress])
	})

	t.Run("サブドメイン", func(t *testing.T) {
		assert.Equal(t, 2, deriveLexical("http://a.b.example.com")[HavingSubDomain])
		assert.Equal(t, 1, deriveLexical("http://www.example.com")[HavingSubDomain])
		assert.Equal(t, -1, deriveLexical("http://example.com")[HavingSubDomain])
	})

	t.Run("短縮URL", func(t *testing.T) {
		assert.Equal(t, 1, deriveLexical("https://bit.ly/abc")[ShortiningService])
		assert.Equal(t, 1, deriveLexical("https://cutt.ly/abc")[ShortiningService])
		assert.Equal(t, 1, deriveLexical("https://microsoft.com")[ShortiningService], "部分一致のため t.co に一致する")
		assert.Equal(t, -1, deriveLexical("https://example.org")[ShortiningService])
	})

	t.Run("記号とポート", func(t *testing.T) {
		set := deriveLexical("https://user@secure-login.example.com:8443/a//b")
		assert.Equal(t, 1, set[HavingAtSymbol])
		assert.Equal(t, 1, set[DoubleSlashRedirecting])
		assert.Equal(t, 1, set[PrefixSuffix])
		assert.Equal(t, 1, set[Port])
		assert.Equal(t, 1, set[HTTPSToken])
	})

	t.Run("スキームの区切りは二重スラッシュとみなさない", func(t *testing.T) {
		assert.Equal(t, -1, deriveLexical("https://example.com/path")[DoubleSlashRedirecting])
		assert.Equal(t, -1, deriveLexical("http://")[DoubleSlashRedirecting])
	})

	t.Run("文字数はルーン単位", func(t *testing.T) {
		assert.Equal(t, len([]rune("http://例え.jp")), deriveLexical("例え.jp")[URLLength])
	})

	t.Run("自身のキーのみ", func(t *testing.T) {
		set := deriveLexical("https://a.b.example.com")
		assert.Len(t, set, len(LexicalKeys))
		for _, k := range LexicalKeys {
			assert.True(t, set.Has(k), k)
		}
	})
}

func TestLexicalDeriver_Idempotent(t *testing.T) {
	d := NewLexicalDeriver(nil)
	u := "http://login-paypal.com.secure.example.net:81/@//x"
	p := urlnorm.Parse(u)
	assert.Equal(t, d.Derive(p, u), d.Derive(p, u))
}

func TestLexicalDeriver_UpdatedURL(t *testing.T) {
	d := NewLexicalDeriver(nil)
	p := urlnorm.Parse("http://example.com")

	set := d.Derive(p, "https://example.com")
	assert.Equal(t, len("https://example.com"), set[URLLength], "長さは取得に使ったURLで数える")
	assert.Equal(t, -1, set[HTTPSToken], "スキームは最初に解析したURLに従う")
}

func TestNewLexicalDeriver_CustomShorteners(t *testing.T) {
	d := NewLexicalDeriver([]string{" sho.rt ", ""})
	u := "http://sho.rt/x"
	assert.Equal(t, 1, d.Derive(urlnorm.Parse(u), u)[ShortiningService])

	u = "http://bit.ly/x"
	assert.Equal(t, -1, d.Derive(urlnorm.Parse(u), u)[ShortiningService])
}
