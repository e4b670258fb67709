package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/usergate/internal/middleware"
	"github.com/hitoshi/usergate/internal/model"
	"github.com/hitoshi/usergate/internal/user"
	"github.com/hitoshi/usergate/internal/view"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	List(ctx context.Context) ([]*model.User, error)
	Get(ctx context.Context, id string) (*model.User, error)
	Create(ctx context.Context, in user.CreateInput) (*model.User, error)
	Update(ctx context.Context, id, name, role string) error
	Delete(ctx context.Context, id string) error
}

// UserHandler はユーザー管理画面のHTTPハンドラー。
// 全ルートはNewSessionGateの後に配置する。
type UserHandler struct {
	service UserServiceInterface
	views   Renderer
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface, views Renderer) *UserHandler {
	return &UserHandler{
		service: service,
		views:   views,
	}
}

// List はユーザー一覧を表示する。
// GET /users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, r, err, "")
		return
	}

	renderPage(w, h.views, view.PageUsers, view.UsersData{
		CSRFToken: middleware.CSRFTokenFromContext(r.Context()),
		UserName:  middleware.UserNameFromContext(r.Context()),
		Users:     users,
	})
}

// NewForm はユーザー作成画面を表示する。
// GET /users/new?erro=...
func (h *UserHandler) NewForm(w http.ResponseWriter, r *http.Request) {
	renderPage(w, h.views, view.PageNewUser, view.NewUserFormData(
		middleware.CSRFTokenFromContext(r.Context()),
		middleware.UserNameFromContext(r.Context()),
		r.URL.Query().Get("erro"),
	))
}

// Create はユーザーを作成する。
// POST /users/create
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	in := user.CreateInput{
		Name:     r.PostFormValue("nome"),
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("senha"),
		Role:     r.PostFormValue("cargo"),
	}

	if _, err := h.service.Create(r.Context(), in); err != nil {
		handleServiceError(w, r, err, "/users/new")
		return
	}

	http.Redirect(w, r, "/users", http.StatusFound)
}

// EditForm はユーザー編集画面を表示する。
// GET /users/edit/{id}
func (h *UserHandler) EditForm(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err, "")
		return
	}

	renderPage(w, h.views, view.PageEditUser, view.UserFormData{
		CSRFToken: middleware.CSRFTokenFromContext(r.Context()),
		UserName:  middleware.UserNameFromContext(r.Context()),
		User:      u,
	})
}

// Update はユーザーの名前と役割を更新する。メールアドレスとパスワードは変更しない。
// POST /users/update/{id}
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	name := r.PostFormValue("nome_usuario")
	role := r.PostFormValue("cargo_usuario")

	if err := h.service.Update(r.Context(), chi.URLParam(r, "id"), name, role); err != nil {
		handleServiceError(w, r, err, "")
		return
	}

	http.Redirect(w, r, "/users", http.StatusFound)
}

// Delete はユーザーを削除する。
// POST /users/delete/{id}
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, err, "")
		return
	}

	http.Redirect(w, r, "/users", http.StatusFound)
}
