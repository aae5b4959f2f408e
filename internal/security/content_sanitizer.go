// Package security はユーザー投稿内容の無害化と入力URLの検証を提供する。
package security

import (
	"net/url"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizer はユーザーが投稿したテキストのサニタイズ機能を定義する。
// 記事本文とコメント本文は保存前に SanitizeBody を、プロフィールの bio は SanitizeText を通す。
type ContentSanitizer interface {
	// SanitizeBody は本文中のHTMLを許可リストに従って無害化する。
	// 同一入力に対して常に同一出力を返す。
	SanitizeBody(raw string) string

	// SanitizeText はHTMLタグをすべて取り除く。
	SanitizeText(raw string) string
}

type contentSanitizer struct {
	body *bluemonday.Policy
	text *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerを生成する。
// 本文ポリシー:
//   - 許可タグ: p, br, a, ul, ol, li, blockquote, pre, code, strong, em, img, h1-h6
//   - script, iframe, style と on* イベント属性は除去
//   - img の src は https のみ
//   - a には target="_blank" と rel="noopener noreferrer" を付与
func NewContentSanitizer() ContentSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"p", "br", "ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em",
		"h1", "h2", "h3", "h4", "h5", "h6",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	p.AllowAttrs("src", "alt").OnElements("img")
	p.AllowURLSchemeWithCustomPolicy("https", func(u *url.URL) bool {
		return true
	})

	return &contentSanitizer{
		body: p,
		text: bluemonday.StrictPolicy(),
	}
}

func (s *contentSanitizer) SanitizeBody(raw string) string {
	return s.body.Sanitize(raw)
}

func (s *contentSanitizer) SanitizeText(raw string) string {
	return s.text.Sanitize(raw)
}
