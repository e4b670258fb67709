// Package model はドメインモデルを定義する。
package model

import (
	"time"
	"unicode/utf8"
)

// MaxFieldLength は名前・メールアドレス・役割の最大文字数（usersテーブルのVARCHAR(255)）。
const MaxFieldLength = 255

// CheckFieldLengths は各値がMaxFieldLength文字以内かを検証する。
// 超過している場合はバリデーションエラーを返す。
func CheckFieldLengths(values ...string) error {
	for _, v := range values {
		if utf8.RuneCountInString(v) > MaxFieldLength {
			return NewValidationError("Nome, e-mail e cargo devem ter no máximo 255 caracteres")
		}
	}
	return nil
}

// User は管理対象のユーザーレコードを表す。
// PasswordDigestはハッシュ値のみを保持し、平文は保持しない。
type User struct {
	ID             string
	Name           string
	Email          string
	Role           string
	PasswordDigest string
	CreatedAt      time.Time
}

// Session はサーバー側で保持するセッションレコードを表す。
// UserIDが空のセッションは未ログイン（CSRFトークン発行用）の匿名セッション。
type Session struct {
	ID         string
	UserID     string
	UserName   string
	CSRFSecret string
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

// Authenticated はセッションがログイン済みユーザーに紐付いているかを返す。
func (s *Session) Authenticated() bool {
	return s != nil && s.UserID != ""
}

// Expired は指定時刻においてセッションが期限切れかどうかを返す。
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
