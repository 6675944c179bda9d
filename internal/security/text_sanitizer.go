// Package security は入力文字列の無害化と外部URLの安全性検証を提供する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// maxSanitizePasses はエスケープされたマークアップを剥がす最大回数。
const maxSanitizePasses = 3

// TextSanitizer はユーザー入力のプレーンテキスト化を行うインターフェース。
// フランチャイズ名、店舗名、メニュー項目、ユーザー名の保存前に使用する。
type TextSanitizer interface {
	// Clean はHTMLタグを除去し、前後の空白を取り除いたプレーンテキストを返す。
	// &などの通常の文字はエスケープせずにそのまま残す。
	Clean(input string) string
}

// textSanitizer はbluemondayのStrictPolicyを使うTextSanitizerの実装。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// Clean はタグを除去したプレーンテキストを返す。
// "&lt;script&gt;"のようにエスケープされたタグも、アンエスケープ後に再度除去する。
func (s *textSanitizer) Clean(input string) string {
	out := input
	for i := 0; i < maxSanitizePasses; i++ {
		cleaned := html.UnescapeString(s.policy.Sanitize(out))
		if cleaned == out {
			break
		}
		out = cleaned
	}
	return strings.TrimSpace(out)
}
