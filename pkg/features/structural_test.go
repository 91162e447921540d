package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deriveFromHTML(t *testing.T, body string) Set {
	t.Helper()
	doc, err := ParseHTML(body)
	require.NoError(t, err)
	return DeriveStructural(doc)
}

func TestDeriveStructural(t *testing.T) {
	t.Run("フォームのみ", func(t *testing.T) {
		set := deriveFromHTML(t, `<html><body><form action="/login"><input name="u"></form></body></html>`)
		assert.Equal(t, Set{
			SFH:               1,
			SubmittingToEmail: -1,
			Iframe:            -1,
			PopupWindow:       -1,
			OnMouseover:       -1,
			RightClick:        -1,
			URLOfAnchor:       -1,
			LinksInTags:       0,
			Favicon:           -1,
		}, set)
	})

	t.Run("不審な要素を含むページ", func(t *testing.T) {
		body := `<html><head>
<link rel="shortcut icon" href="/favicon.ico">
<script>if (event.button==2) { alert("no"); }</script>
<script src="/app.js"></script>
<script>window.open("http://evil.example")</script>
</head><body>
<form action="mailto:attacker@example.com"></form>
<iframe src="http://frame.example"></iframe>
<div onmouseover="steal()">x</div>
<a href="http://a.example">a</a><a href="/relative">b</a><a name="anchor">c</a>
</body></html>`
		set := deriveFromHTML(t, body)
		assert.Equal(t, 1, set[SFH])
		assert.Equal(t, 1, set[SubmittingToEmail])
		assert.Equal(t, 1, set[Iframe])
		assert.Equal(t, 1, set[PopupWindow])
		assert.Equal(t, 1, set[RightClick])
		assert.Equal(t, 1, set[OnMouseover])
		assert.Equal(t, 1, set[URLOfAnchor])
		assert.Equal(t, 2, set[LinksInTags], "href 属性を持つ a だけを数える")
		assert.Equal(t, 1, set[Favicon])
	})

	t.Run("相対リンクのみ", func(t *testing.T) {
		set := deriveFromHTML(t, `<a href="/a">a</a><a href="page.html">b</a>`)
		assert.Equal(t, -1, set[URLOfAnchor])
		assert.Equal(t, 2, set[LinksInTags])
	})

	t.Run("icon 以外の rel は favicon とみなさない", func(t *testing.T) {
		set := deriveFromHTML(t, `<link rel="stylesheet" href="a.css"><link rel="apple-touch-icon" href="b.png">`)
		assert.Equal(t, -1, set[Favicon])
	})

	t.Run("空のHTML", func(t *testing.T) {
		set := deriveFromHTML(t, "")
		assert.Len(t, set, len(StructuralKeys))
		assert.Equal(t, -1, set[SFH])
		assert.Equal(t, 0, set[LinksInTags])
	})
}

func TestDeriveStructural_NilDocument(t *testing.T) {
	set := DeriveStructural(nil)
	assert.Empty(t, set)

	v := set.Vector()
	assert.Equal(t, 0, v[15], "取得できなかった場合 sfh は -1 ではなく 0")
}

func TestInlineScriptText(t *testing.T) {
	doc, err := ParseHTML(`<script>var a = 1;</script><script src="x.js"></script><script></script><script>var b = 2;</script>`)
	require.NoError(t, err)
	assert.Equal(t, "var a = 1; var b = 2;", inlineScriptText(doc))
}
