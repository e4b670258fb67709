// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/usergate/internal/auth"
	"github.com/hitoshi/usergate/internal/middleware"
	"github.com/hitoshi/usergate/internal/model"
	"github.com/hitoshi/usergate/internal/view"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password, priorSessionID string) (*model.Session, error)
	Logout(ctx context.Context, sessionID string) error
	Register(ctx context.Context, in auth.RegisterInput) (*model.User, error)
}

// Renderer は画面描画のインターフェース。view.Rendererが実装する。
type Renderer interface {
	Render(w http.ResponseWriter, status int, page string, data any) error
}

// SessionCookies はセッションCookieの書き込みと削除を行う。session.Cookiesが実装する。
type SessionCookies interface {
	Set(w http.ResponseWriter, sessionID string)
	Clear(w http.ResponseWriter)
}

// AuthHandler はログイン・ログアウト・登録のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	views   Renderer
	cookies SessionCookies
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, views Renderer, cookies SessionCookies) *AuthHandler {
	return &AuthHandler{
		service: service,
		views:   views,
		cookies: cookies,
	}
}

// LoginForm はログイン画面を表示する。
// GET /login?erro=...&sucesso=...
func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	data := view.NewLoginData(
		middleware.CSRFTokenFromContext(r.Context()),
		q.Get("erro"),
		q.Get("sucesso"),
	)
	renderPage(w, h.views, view.PageLogin, data)
}

// Login はメールアドレスとパスワードでログインする。
// POST /login
// 成功時はセッションをローテーションしてCookieを設定し、/usersへリダイレクトする。
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	email := r.PostFormValue("email")
	password := r.PostFormValue("senha")

	var priorID string
	if prior := middleware.SessionFromContext(r.Context()); prior != nil {
		priorID = prior.ID
	}

	sess, err := h.service.Login(r.Context(), email, password, priorID)
	if err != nil {
		handleServiceError(w, r, err, "/login")
		return
	}

	h.cookies.Set(w, sess.ID)
	http.Redirect(w, r, "/users", http.StatusFound)
}

// Logout はセッションを破棄する。
// GET /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if sess := middleware.SessionFromContext(r.Context()); sess != nil {
		if err := h.service.Logout(r.Context(), sess.ID); err != nil {
			// 破棄に失敗してもCookieはクリアする
			slog.Error("failed to logout", slog.String("error", err.Error()))
		}
	}

	h.cookies.Clear(w)
	http.Redirect(w, r, "/login", http.StatusFound)
}

// RegisterForm はユーザー登録画面を表示する。
// GET /register?erro=...
func (h *AuthHandler) RegisterForm(w http.ResponseWriter, r *http.Request) {
	data := view.NewRegisterData(
		middleware.CSRFTokenFromContext(r.Context()),
		r.URL.Query().Get("erro"),
	)
	renderPage(w, h.views, view.PageRegister, data)
}

// Register はユーザーを登録する。自動ログインは行わない。
// POST /register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	in := auth.RegisterInput{
		Name:     r.PostFormValue("nome"),
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("senha"),
		Role:     r.PostFormValue("cargo"),
	}

	if _, err := h.service.Register(r.Context(), in); err != nil {
		handleServiceError(w, r, err, "/register")
		return
	}

	http.Redirect(w, r, "/login?sucesso=cadastro", http.StatusFound)
}
