// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/usergate/internal/model"
)

// ストア層が返すエラー。これ以外のエラーはI/Oエラーとして扱う。
var (
	// ErrDuplicateEmail はメールアドレスの一意制約違反を表す。
	ErrDuplicateEmail = errors.New("repository: duplicate email")
	// ErrNotFound は操作対象のレコードが存在しないことを表す。
	ErrNotFound = errors.New("repository: record not found")
)

// UserFields はCreateおよびUpdateByIDで書き込むユーザー属性。
type UserFields struct {
	Name           string
	Email          string
	Role           string
	PasswordDigest string
}

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByEmail はメールアドレスの完全一致でユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// Create はユーザーを作成する。IDとCreatedAtはストアが採番する。
	// メールアドレスが重複している場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, fields UserFields) (*model.User, error)

	// UpdateByID は名前と役割のみを更新する。存在しない場合はErrNotFoundを返す。
	UpdateByID(ctx context.Context, id, name, role string) error

	// DeleteByID は指定IDのユーザーを削除する。存在しない場合はErrNotFoundを返す。
	DeleteByID(ctx context.Context, id string) error

	// ListAll は全ユーザーを作成日時の昇順で返す。
	ListAll(ctx context.Context) ([]*model.User, error)

	// Count はユーザー数を返す。
	Count(ctx context.Context) (int, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。存在しなくてもエラーにしない。
	DeleteByID(ctx context.Context, id string) error
	// DeleteExpired は指定時刻までに期限切れになったセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
