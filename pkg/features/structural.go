package features

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// ParseHTML はHTML文字列を走査可能なドキュメントに変換します。
func ParseHTML(body string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("HTMLの解析に失敗しました: %w", err)
	}
	return doc, nil
}

// DeriveStructural は StructuralKeys の特徴量を計算します。
// doc が nil の場合は何も設定しない空の Set を返します (ベクトル化の際に 0 になる)。
func DeriveStructural(doc *goquery.Document) Set {
	set := Set{}
	if doc == nil {
		return set
	}

	forms := doc.Find("form")
	set[SFH] = sign(forms.Length() > 0)
	set[SubmittingToEmail] = sign(forms.FilterFunction(func(_ int, s *goquery.Selection) bool {
		markup, err := goquery.OuterHtml(s)
		return err == nil && strings.Contains(markup, "mailto:")
	}).Length() > 0)

	set[Iframe] = sign(doc.Find("iframe").Length() > 0)

	scriptText := inlineScriptText(doc)
	set[PopupWindow] = sign(strings.Contains(scriptText, "window.open"))
	set[RightClick] = sign(strings.Contains(scriptText, "event.button==2"))

	markup, err := doc.Html()
	set[OnMouseover] = sign(err == nil && strings.Contains(markup, "onmouseover="))

	anchors := doc.Find("a[href]")
	set[LinksInTags] = anchors.Length()
	set[URLOfAnchor] = sign(anchors.FilterFunction(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		return strings.Contains(href, "http")
	}).Length() > 0)

	set[Favicon] = sign(doc.Find("link[rel~='icon']").Length() > 0)

	return set
}

// inlineScriptText は子がテキストノード1つだけの <script> の本文を空白区切りで連結します。
// 外部スクリプト (src 指定で本文なし) や空の <script> は含めません。
func inlineScriptText(doc *goquery.Document) string {
	var texts []string
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		n := s.Get(0)
		child := n.FirstChild
		if child == nil || child != n.LastChild || child.Type != html.TextNode || child.Data == "" {
			return
		}
		texts = append(texts, child.Data)
	})
	return strings.Join(texts, " ")
}
