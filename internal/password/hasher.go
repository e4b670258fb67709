// Package password はパスワードのハッシュ化と照合を提供する。
package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost は登録時に使用するbcryptのコスト係数。
const DefaultCost = 10

// ErrTooLong はbcryptの入力上限（72バイト）を超えるパスワードを表す。
var ErrTooLong = errors.New("password: longer than 72 bytes")

// Hasher はパスワードハッシュ処理のインターフェース。
type Hasher interface {
	// Hash は平文パスワードからダイジェストを生成する。
	Hash(plaintext string) (string, error)
	// Compare は平文とダイジェストを照合する。不一致の場合はfalseとnilを返す。
	// ダイジェストが壊れている場合などはエラーを返す。
	Compare(plaintext, digest string) (bool, error)
}

// BcryptHasher はbcryptによるHasherの実装。
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher は指定コストのBcryptHasherを生成する。
// 範囲外のコストはDefaultCostに置き換える。
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// Cost は設定済みのコスト係数を返す。
func (h *BcryptHasher) Cost() int {
	return h.cost
}

// Hash は平文パスワードをbcryptでハッシュ化する。
func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	if len(plaintext) > 72 {
		return "", ErrTooLong
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(digest), nil
}

// Compare は平文パスワードとbcryptダイジェストを照合する。
func (h *BcryptHasher) Compare(plaintext, digest string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("failed to compare password: %w", err)
}

// compile-time interface check
var _ Hasher = (*BcryptHasher)(nil)
