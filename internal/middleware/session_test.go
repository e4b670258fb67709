package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/usergate/internal/model"
)

// --- モック定義 ---

type mockSessionLoader struct {
	loadFn func(ctx context.Context, r *http.Request) (*model.Session, error)
}

func (m *mockSessionLoader) Load(ctx context.Context, r *http.Request) (*model.Session, error) {
	if m.loadFn != nil {
		return m.loadFn(ctx, r)
	}
	return nil, nil
}

func loggedInSession() *model.Session {
	return &model.Session{
		ID:         "session-1",
		UserID:     "user-123",
		UserName:   "Alice",
		CSRFSecret: "secret-1",
		ExpiresAt:  time.Now().Add(time.Hour),
	}
}

// --- SessionLoader ---

func TestSessionLoader_InjectsSession(t *testing.T) {
	loader := &mockSessionLoader{
		loadFn: func(ctx context.Context, r *http.Request) (*model.Session, error) {
			return loggedInSession(), nil
		},
	}

	var userID, userName string
	handler := NewSessionLoader(loader)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		userID, err = UserIDFromContext(r.Context())
		if err != nil {
			t.Errorf("UserIDFromContext returned error: %v", err)
		}
		userName = UserNameFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users", nil))

	if userID != "user-123" {
		t.Errorf("userID = %q, want user-123", userID)
	}
	if userName != "Alice" {
		t.Errorf("userName = %q, want Alice", userName)
	}
}

func TestSessionLoader_NoSession_PassesThrough(t *testing.T) {
	called := false
	handler := NewSessionLoader(&mockSessionLoader{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if SessionFromContext(r.Context()) != nil {
			t.Error("expected no session in context")
		}
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/login", nil))

	if !called {
		t.Error("handler should be called")
	}
}

func TestSessionLoader_StoreError_TreatedAsNoSession(t *testing.T) {
	loader := &mockSessionLoader{
		loadFn: func(ctx context.Context, r *http.Request) (*model.Session, error) {
			return nil, errors.New("db down")
		},
	}

	called := false
	handler := NewSessionLoader(loader)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if SessionFromContext(r.Context()) != nil {
			t.Error("expected no session in context")
		}
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/login", nil))

	if !called {
		t.Error("handler should be called")
	}
}

// --- SessionGate ---

func TestSessionGate(t *testing.T) {
	expired := loggedInSession()
	expired.ExpiresAt = time.Now().Add(-time.Second)

	anonymous := loggedInSession()
	anonymous.UserID = ""

	tests := []struct {
		name       string
		session    *model.Session
		wantCalled bool
		wantStatus int
	}{
		{name: "ログイン済みは通過", session: loggedInSession(), wantCalled: true, wantStatus: http.StatusOK},
		{name: "セッション無しはリダイレクト", session: nil, wantStatus: http.StatusFound},
		{name: "匿名セッションはリダイレクト", session: anonymous, wantStatus: http.StatusFound},
		{name: "期限切れはリダイレクト", session: expired, wantStatus: http.StatusFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := NewSessionGate()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/users", nil)
			if tt.session != nil {
				req = req.WithContext(ContextWithSession(req.Context(), tt.session))
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if called != tt.wantCalled {
				t.Errorf("handler called = %v, want %v", called, tt.wantCalled)
			}
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusFound {
				if loc := w.Header().Get("Location"); loc != LoginPath {
					t.Errorf("Location = %q, want %q", loc, LoginPath)
				}
			}
		})
	}
}

func TestUserIDFromContext_Empty(t *testing.T) {
	if _, err := UserIDFromContext(context.Background()); err == nil {
		t.Error("expected error for empty context")
	}
	if name := UserNameFromContext(context.Background()); name != "" {
		t.Errorf("UserNameFromContext = %q, want empty", name)
	}
}
