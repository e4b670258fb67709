package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/usergate/internal/model"
)

func TestMemoryUserRepo_CreateAndFind(t *testing.T) {
	repo := NewMemoryUserRepo()
	ctx := context.Background()

	created, err := repo.Create(ctx, UserFields{
		Name:           "Alice",
		Email:          "alice@example.com",
		Role:           "member",
		PasswordDigest: "digest",
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected store-assigned ID")
	}
	if created.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}

	byEmail, err := repo.FindByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("FindByEmail returned error: %v", err)
	}
	if byEmail == nil || byEmail.ID != created.ID {
		t.Fatalf("FindByEmail = %+v, want ID %q", byEmail, created.ID)
	}

	byID, err := repo.FindByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("FindByID returned error: %v", err)
	}
	if byID == nil || byID.Email != "alice@example.com" {
		t.Fatalf("FindByID = %+v", byID)
	}
}

func TestMemoryUserRepo_FindByEmail_ExactMatchOnly(t *testing.T) {
	repo := NewMemoryUserRepo()
	ctx := context.Background()

	if _, err := repo.Create(ctx, UserFields{Name: "A", Email: "alice@example.com"}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	user, err := repo.FindByEmail(ctx, "ALICE@example.com")
	if err != nil {
		t.Fatalf("FindByEmail returned error: %v", err)
	}
	if user != nil {
		t.Errorf("expected nil for differently-cased email, got %+v", user)
	}
}

func TestMemoryUserRepo_Create_DuplicateEmail(t *testing.T) {
	repo := NewMemoryUserRepo()
	ctx := context.Background()

	if _, err := repo.Create(ctx, UserFields{Name: "A", Email: "dup@example.com"}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	_, err := repo.Create(ctx, UserFields{Name: "B", Email: "dup@example.com"})
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("error = %v, want ErrDuplicateEmail", err)
	}

	n, _ := repo.Count(ctx)
	if n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}
}

func TestMemoryUserRepo_UpdateByID(t *testing.T) {
	repo := NewMemoryUserRepo()
	ctx := context.Background()

	u, _ := repo.Create(ctx, UserFields{Name: "A", Email: "a@example.com", Role: "member", PasswordDigest: "d"})

	if err := repo.UpdateByID(ctx, u.ID, "Alice", "admin"); err != nil {
		t.Fatalf("UpdateByID returned error: %v", err)
	}

	got, _ := repo.FindByID(ctx, u.ID)
	if got.Name != "Alice" || got.Role != "admin" {
		t.Errorf("got name=%q role=%q", got.Name, got.Role)
	}
	if got.Email != "a@example.com" || got.PasswordDigest != "d" {
		t.Error("email and digest must not change on update")
	}

	if err := repo.UpdateByID(ctx, "missing", "x", "y"); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestMemoryUserRepo_DeleteByID_FreesEmail(t *testing.T) {
	repo := NewMemoryUserRepo()
	ctx := context.Background()

	u, _ := repo.Create(ctx, UserFields{Name: "A", Email: "a@example.com"})

	if err := repo.DeleteByID(ctx, u.ID); err != nil {
		t.Fatalf("DeleteByID returned error: %v", err)
	}
	if err := repo.DeleteByID(ctx, u.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete error = %v, want ErrNotFound", err)
	}

	if _, err := repo.Create(ctx, UserFields{Name: "A2", Email: "a@example.com"}); err != nil {
		t.Errorf("email should be reusable after delete, got %v", err)
	}
}

func TestMemoryUserRepo_ListAll_OrderedByCreation(t *testing.T) {
	repo := NewMemoryUserRepo()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	repo.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	ctx := context.Background()

	for _, email := range []string{"1@example.com", "2@example.com", "3@example.com"} {
		if _, err := repo.Create(ctx, UserFields{Name: email, Email: email}); err != nil {
			t.Fatalf("Create returned error: %v", err)
		}
	}

	users, err := repo.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll returned error: %v", err)
	}
	if len(users) != 3 {
		t.Fatalf("len = %d, want 3", len(users))
	}
	for i, want := range []string{"1@example.com", "2@example.com", "3@example.com"} {
		if users[i].Email != want {
			t.Errorf("users[%d].Email = %q, want %q", i, users[i].Email, want)
		}
	}
}

func TestMemorySessionRepo_Lifecycle(t *testing.T) {
	repo := NewMemorySessionRepo()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	s := &model.Session{
		ID:         "s1",
		UserID:     "user-1",
		CSRFSecret: "secret",
		CreatedAt:  now,
		ExpiresAt:  now.Add(time.Hour),
	}
	if err := repo.Create(ctx, s); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	got, err := repo.FindByID(ctx, "s1")
	if err != nil || got == nil {
		t.Fatalf("FindByID = %v, %v", got, err)
	}
	if got.UserID != "user-1" {
		t.Errorf("UserID = %q", got.UserID)
	}

	// 期限切れ後は取得できない
	now = now.Add(time.Hour)
	got, _ = repo.FindByID(ctx, "s1")
	if got != nil {
		t.Error("expired session should not be returned")
	}

	deleted, err := repo.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpired returned error: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
	if repo.Len() != 0 {
		t.Errorf("Len = %d, want 0", repo.Len())
	}
}

func TestMemorySessionRepo_DeleteByID_Idempotent(t *testing.T) {
	repo := NewMemorySessionRepo()
	ctx := context.Background()

	if err := repo.DeleteByID(ctx, "absent"); err != nil {
		t.Errorf("deleting an absent session should not fail: %v", err)
	}
}
