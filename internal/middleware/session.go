// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/usergate/internal/model"
)

// LoginPath は未認証リクエストのリダイレクト先。
const LoginPath = "/login"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// sessionContextKey はリクエストコンテキストにセッションを格納するためのキー。
	sessionContextKey = contextKey("session")
	// csrfTokenContextKey はハンドラーへ渡すCSRFトークンのキー。
	csrfTokenContextKey = contextKey("csrf_token")
)

// SessionLoader はリクエストのCookieからセッションを読み込む。
// session.Managerが実装する。
type SessionLoader interface {
	Load(ctx context.Context, r *http.Request) (*model.Session, error)
}

// NewSessionLoader はCookieからセッションを読み込み、リクエストコンテキストに注入するミドルウェアを返す。
// セッションが無い場合もリクエストは通過させる。認証の要否はNewSessionGateで判定する。
func NewSessionLoader(loader SessionLoader) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := loader.Load(r.Context(), r)
			if err != nil {
				slog.Error("failed to load session",
					slog.String("error", err.Error()),
				)
				sess = nil
			}
			if sess == nil {
				next.ServeHTTP(w, r)
				return
			}
			annotateUserID(r.Context(), sess.UserID)
			next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), sess)))
		})
	}
}

// NewSessionGate はログイン済みセッションを要求するミドルウェアを返す。
// 未認証または期限切れの場合は/loginへ302リダイレクトし、後続のハンドラーは実行しない。
func NewSessionGate() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := SessionFromContext(r.Context())
			if !sess.Authenticated() || sess.Expired(time.Now()) {
				http.Redirect(w, r, LoginPath, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SessionFromContext はリクエストコンテキストからセッションを取得する。無い場合はnil。
func SessionFromContext(ctx context.Context) *model.Session {
	sess, _ := ctx.Value(sessionContextKey).(*model.Session)
	return sess
}

// ContextWithSession はコンテキストにセッションを注入する。
func ContextWithSession(ctx context.Context, sess *model.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, sess)
}

// UserIDFromContext はリクエストコンテキストからログイン中のユーザーIDを取得する。
// NewSessionGateを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	sess := SessionFromContext(ctx)
	if !sess.Authenticated() {
		return "", fmt.Errorf("user ID not found in context")
	}
	return sess.UserID, nil
}

// UserNameFromContext はログイン中のユーザー名を返す。未ログインの場合は空文字列。
func UserNameFromContext(ctx context.Context) string {
	sess := SessionFromContext(ctx)
	if !sess.Authenticated() {
		return ""
	}
	return sess.UserName
}
