// Package security はアプリケーションのセキュリティ機能を提供する。
//
// InputSanitizer は利用者が入力した名前や役割などの表示用テキストから
// HTMLマークアップを取り除く。bluemondayのStrictPolicyを使用し、
// タグは一切通過させない。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// InputSanitizer はプレーンテキスト入力のサニタイズ機能を提供する。
// bluemondayのポリシーはスレッドセーフなため、単一インスタンスを共有してよい。
type InputSanitizer struct {
	policy *bluemonday.Policy
}

// NewInputSanitizer はInputSanitizerを生成する。
func NewInputSanitizer() *InputSanitizer {
	return &InputSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// StripMarkup はタグを除去したプレーンテキストを返す。
// StrictPolicyはテキスト中の & < > などを実体参照にエスケープするため、
// 保存前に元の文字へ戻す。出力時のエスケープはテンプレート側で行う。
func (s *InputSanitizer) StripMarkup(input string) string {
	if input == "" {
		return ""
	}
	cleaned := s.policy.Sanitize(input)
	return strings.TrimSpace(html.UnescapeString(cleaned))
}
