package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
)

// PostgresUserRepoはUserRepositoryインターフェースを満たすことを検証
func TestPostgresUserRepo_ImplementsInterface(t *testing.T) {
	var _ UserRepository = (*PostgresUserRepo)(nil)
}

// PostgresSessionRepoはSessionRepositoryインターフェースを満たすことを検証
func TestPostgresSessionRepo_ImplementsInterface(t *testing.T) {
	var _ SessionRepository = (*PostgresSessionRepo)(nil)
}

func TestNewPostgresUserRepo_Initializes(t *testing.T) {
	repo := NewPostgresUserRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

func TestNewPostgresSessionRepo_Initializes(t *testing.T) {
	repo := NewPostgresSessionRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// 一意制約違反（23505）のみがErrDuplicateEmailの対象になることを検証
func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "unique violation", err: &pq.Error{Code: "23505"}, want: true},
		{name: "wrapped unique violation", err: fmt.Errorf("insert: %w", &pq.Error{Code: "23505"}), want: true},
		{name: "not null violation", err: &pq.Error{Code: "23502"}, want: false},
		{name: "plain error", err: errors.New("connection refused"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isUniqueViolation(tt.err); got != tt.want {
				t.Errorf("isUniqueViolation() = %v, want %v", got, tt.want)
			}
		})
	}
}

// UUID形式でないIDはDBに問い合わせずに未検出として扱う
func TestPostgresUserRepo_InvalidID_ShortCircuits(t *testing.T) {
	repo := NewPostgresUserRepo(nil)
	ctx := context.Background()

	user, err := repo.FindByID(ctx, "not-a-uuid")
	if err != nil {
		t.Fatalf("FindByID returned error: %v", err)
	}
	if user != nil {
		t.Errorf("expected nil user, got %+v", user)
	}

	if err := repo.UpdateByID(ctx, "not-a-uuid", "n", "r"); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateByID error = %v, want ErrNotFound", err)
	}
	if err := repo.DeleteByID(ctx, "not-a-uuid"); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteByID error = %v, want ErrNotFound", err)
	}
}

func TestNullString(t *testing.T) {
	if v := nullString(""); v.Valid {
		t.Error("empty string should map to NULL")
	}
	if v := nullString("user-1"); !v.Valid || v.String != "user-1" {
		t.Errorf("nullString(user-1) = %+v", v)
	}
}
