// Package auth はメールアドレスとパスワードによるログイン、ログアウト、
// ユーザー登録のフローを提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/usergate/internal/model"
	"github.com/hitoshi/usergate/internal/password"
	"github.com/hitoshi/usergate/internal/repository"
	"github.com/hitoshi/usergate/internal/session"
)

// ログイン・登録結果のメトリクスラベル。
const (
	OutcomeSuccess       = "success"
	OutcomeUnknownEmail  = "unknown_email"
	OutcomeWrongPassword = "wrong_password"
	OutcomeDuplicate     = "duplicate_email"
	OutcomeInvalid       = "invalid"
	OutcomeError         = "error"
)

// UserStore は認証フローが必要とするユーザーストアの操作。
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	Create(ctx context.Context, fields repository.UserFields) (*model.User, error)
}

// SessionStore は認証フローが必要とするセッションストアの操作。
type SessionStore interface {
	Create(ctx context.Context, session *model.Session) error
	DeleteByID(ctx context.Context, id string) error
}

// Recorder は認証結果を記録するメトリクスのインターフェース。
type Recorder interface {
	RecordLogin(outcome string)
	RecordRegistration(outcome string)
}

// Sanitizer は利用者入力からマークアップを除去する。
type Sanitizer interface {
	StripMarkup(s string) string
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// RegisterInput はユーザー登録の入力値。
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	users     UserStore
	sessions  SessionStore
	hasher    password.Hasher
	sanitizer Sanitizer
	recorder  Recorder
	config    ServiceConfig
	now       func() time.Time
}

// NewService はServiceを生成する。sanitizerとrecorderはnilでもよい。
func NewService(
	users UserStore,
	sessions SessionStore,
	hasher password.Hasher,
	sanitizer Sanitizer,
	recorder Recorder,
	config ServiceConfig,
) *Service {
	return &Service{
		users:     users,
		sessions:  sessions,
		hasher:    hasher,
		sanitizer: sanitizer,
		recorder:  recorder,
		config:    config,
		now:       time.Now,
	}
}

// Login はメールアドレスとパスワードを検証し、ユーザーに紐付く新しいセッションを発行する。
// priorSessionIDが指定された場合、そのセッションは破棄する（セッション固定化対策のローテーション）。
// 認証失敗は*model.AppError（INVALID_CREDENTIALS）、ストア・ハッシュ処理の失敗はそれ以外のエラーで返す。
func (s *Service) Login(ctx context.Context, email, plaintext, priorSessionID string) (*model.Session, error) {
	// 1. メールアドレスの完全一致でユーザーを検索
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		s.recordLogin(OutcomeError)
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		s.recordLogin(OutcomeUnknownEmail)
		slog.Info("login failed: unknown email")
		return nil, model.NewUnknownEmailError()
	}

	// 2. パスワードの照合
	ok, err := s.hasher.Compare(plaintext, user.PasswordDigest)
	if err != nil {
		s.recordLogin(OutcomeError)
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok {
		s.recordLogin(OutcomeWrongPassword)
		slog.Info("login failed: wrong password", slog.String("user_id", user.ID))
		return nil, model.NewWrongPasswordError()
	}

	// 3. セッションを発行
	sess, err := s.createSession(ctx, user)
	if err != nil {
		s.recordLogin(OutcomeError)
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	// 4. 以前のセッションを破棄（失敗してもログイン自体は成功扱い）
	if priorSessionID != "" && priorSessionID != sess.ID {
		if err := s.sessions.DeleteByID(ctx, priorSessionID); err != nil {
			slog.Warn("failed to delete prior session",
				slog.String("error", err.Error()),
			)
		}
	}

	s.recordLogin(OutcomeSuccess)
	slog.Info("user logged in", slog.String("user_id", user.ID))
	return sess, nil
}

// Logout はセッションを破棄する。存在しないセッションの破棄はエラーにしない。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	if err := s.sessions.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out")
	return nil
}

// Register はユーザーを登録する。パスワードはハッシュ化して保存し、平文は保存しない。
// 登録後の自動ログインは行わない。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	name := s.clean(in.Name)
	email := strings.TrimSpace(in.Email)
	role := s.clean(in.Role)

	if name == "" || email == "" || in.Password == "" {
		s.recordRegistration(OutcomeInvalid)
		return nil, model.NewValidationError("Nome, e-mail e senha são obrigatórios")
	}
	if err := model.CheckFieldLengths(name, email, role); err != nil {
		s.recordRegistration(OutcomeInvalid)
		return nil, err
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		if errors.Is(err, password.ErrTooLong) {
			s.recordRegistration(OutcomeInvalid)
			return nil, model.NewValidationError("A senha deve ter no máximo 72 bytes")
		}
		s.recordRegistration(OutcomeError)
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.users.Create(ctx, repository.UserFields{
		Name:           name,
		Email:          email,
		Role:           role,
		PasswordDigest: digest,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			s.recordRegistration(OutcomeDuplicate)
			return nil, model.NewDuplicateEmailError()
		}
		s.recordRegistration(OutcomeError)
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.recordRegistration(OutcomeSuccess)
	slog.Info("user registered", slog.String("user_id", user.ID))
	return user, nil
}

// createSession はユーザーに紐付くセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, user *model.User) (*model.Session, error) {
	ttl := time.Duration(s.config.SessionMaxAge) * time.Second
	sess, err := session.NewRecord(user.ID, user.Name, ttl, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return sess, nil
}

func (s *Service) clean(v string) string {
	v = strings.TrimSpace(v)
	if s.sanitizer != nil {
		v = strings.TrimSpace(s.sanitizer.StripMarkup(v))
	}
	return v
}

func (s *Service) recordLogin(outcome string) {
	if s.recorder != nil {
		s.recorder.RecordLogin(outcome)
	}
}

func (s *Service) recordRegistration(outcome string) {
	if s.recorder != nil {
		s.recorder.RecordRegistration(outcome)
	}
}
