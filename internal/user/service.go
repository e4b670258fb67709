// Package user はユーザー管理（一覧・作成・編集・削除）のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/usergate/internal/model"
	"github.com/hitoshi/usergate/internal/password"
	"github.com/hitoshi/usergate/internal/repository"
)

// Sanitizer は利用者入力からマークアップを除去する。
type Sanitizer interface {
	StripMarkup(s string) string
}

// CreateInput は管理画面からのユーザー作成の入力値。
type CreateInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// Service はユーザー管理のサービス層。
// ユーザーの削除はセッションを無効化しない。
type Service struct {
	userRepo  repository.UserRepository
	hasher    password.Hasher
	sanitizer Sanitizer
}

// NewService はServiceの新しいインスタンスを生成する。sanitizerはnilでもよい。
func NewService(
	userRepo repository.UserRepository,
	hasher password.Hasher,
	sanitizer Sanitizer,
) *Service {
	return &Service{
		userRepo:  userRepo,
		hasher:    hasher,
		sanitizer: sanitizer,
	}
}

// List は全ユーザーを作成日時の昇順で返す。
func (s *Service) List(ctx context.Context) ([]*model.User, error) {
	users, err := s.userRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// Get は指定IDのユーザーを返す。存在しない場合はNOT_FOUNDのAppErrorを返す。
func (s *Service) Get(ctx context.Context, id string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError(id)
	}
	return user, nil
}

// Create はユーザーを作成する。必須項目は名前・メールアドレス・パスワード。
func (s *Service) Create(ctx context.Context, in CreateInput) (*model.User, error) {
	name := s.clean(in.Name)
	email := strings.TrimSpace(in.Email)
	role := s.clean(in.Role)

	if name == "" || email == "" || in.Password == "" {
		return nil, model.NewValidationError("Nome, e-mail e senha são obrigatórios")
	}
	if err := model.CheckFieldLengths(name, email, role); err != nil {
		return nil, err
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		if errors.Is(err, password.ErrTooLong) {
			return nil, model.NewValidationError("A senha deve ter no máximo 72 bytes")
		}
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.userRepo.Create(ctx, repository.UserFields{
		Name:           name,
		Email:          email,
		Role:           role,
		PasswordDigest: digest,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, model.NewDuplicateEmailError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user created", slog.String("user_id", user.ID))
	return user, nil
}

// Update は名前と役割を更新する。どちらも必須で、メールアドレスとパスワードは変更しない。
func (s *Service) Update(ctx context.Context, id, name, role string) error {
	name = s.clean(name)
	role = s.clean(role)

	if name == "" || role == "" {
		return model.NewValidationError("Nome e cargo são obrigatórios")
	}
	if err := model.CheckFieldLengths(name, role); err != nil {
		return err
	}

	if err := s.userRepo.UpdateByID(ctx, id, name, role); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewUserNotFoundError(id)
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	slog.Info("user updated", slog.String("user_id", id))
	return nil
}

// Delete は指定IDのユーザーを削除する。
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.userRepo.DeleteByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewUserNotFoundError(id)
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}

	slog.Info("user deleted", slog.String("user_id", id))
	return nil
}

func (s *Service) clean(v string) string {
	v = strings.TrimSpace(v)
	if s.sanitizer != nil {
		v = strings.TrimSpace(s.sanitizer.StripMarkup(v))
	}
	return v
}
