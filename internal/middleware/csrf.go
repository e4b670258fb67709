package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/usergate/internal/model"
)

const (
	// csrfFormField はフォームからCSRFトークンを読み取る際のフィールド名。
	csrfFormField = "_csrf"

	// csrfHeaderName はリクエストヘッダーからCSRFトークンを読み取る際のヘッダー名。
	csrfHeaderName = "X-CSRF-Token"
	// csrfAltHeaderName は互換用の代替ヘッダー名。
	csrfAltHeaderName = "CSRF-Token"

	csrfSaltBytes = 12

	// maxFormBytes はフォーム本文の上限。
	maxFormBytes = 1 << 20
)

// SessionStarter は匿名セッションを開始してCookieを設定する。
// session.Managerが実装する。
type SessionStarter interface {
	Start(ctx context.Context, w http.ResponseWriter) (*model.Session, error)
}

// CSRFRecorder はCSRF拒否をメトリクスに記録する。
type CSRFRecorder interface {
	RecordCSRFRejection()
}

// NewCSRFMiddleware はCSRFトークンの発行・検証ミドルウェアを返す。
// NewSessionLoaderの後に配置する。
// 安全なメソッド（GET, HEAD, OPTIONS）はセッションの秘密値からトークンを生成してコンテキストに格納する。
// セッションが無い場合は匿名セッションを開始する。
// 状態変更メソッドはフォームの_csrfまたはX-CSRF-Tokenヘッダーのトークン検証を必須とする。
// recorderはnilでもよい。
func NewCSRFMiddleware(starter SessionStarter, recorder CSRFRecorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := SessionFromContext(r.Context())

			if isSafeMethod(r.Method) {
				ctx := r.Context()
				if sess == nil {
					started, err := starter.Start(ctx, w)
					if err != nil {
						slog.Error("failed to start session",
							slog.String("error", err.Error()),
						)
						WriteInternalServerError(w)
						return
					}
					sess = started
					ctx = ContextWithSession(ctx, sess)
				}

				token, err := GenerateCSRFToken(sess.CSRFSecret)
				if err != nil {
					slog.Error("failed to generate CSRF token", slog.String("error", err.Error()))
					WriteInternalServerError(w)
					return
				}
				ctx = context.WithValue(ctx, csrfTokenContextKey, token)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			// 状態変更メソッド: CSRFトークンを検証
			reject := func(reason string) {
				slog.Warn("CSRF validation failed",
					slog.String("reason", reason),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				if recorder != nil {
					recorder.RecordCSRFRejection()
				}
				WriteErrorResponse(w, http.StatusForbidden, model.NewCSRFRejectedError())
			}

			if sess == nil {
				reject("missing session")
				return
			}

			token := requestCSRFToken(w, r)
			if token == "" {
				reject("missing token")
				return
			}

			if !VerifyCSRFToken(sess.CSRFSecret, token) {
				reject("token mismatch")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// CSRFTokenFromContext は安全なメソッドのリクエストで発行されたCSRFトークンを返す。
func CSRFTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(csrfTokenContextKey).(string)
	return token
}

// GenerateCSRFToken はセッションの秘密値から "<salt>.<base64url(HMAC-SHA256(secret, salt))>" 形式のトークンを生成する。
// ソルトは発行ごとに新しく生成する。
func GenerateCSRFToken(secret string) (string, error) {
	b := make([]byte, csrfSaltBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	salt := base64.RawURLEncoding.EncodeToString(b)
	return salt + "." + csrfSignature(secret, salt), nil
}

// VerifyCSRFToken はトークンが秘密値から生成されたものかを定数時間比較で検証する。
func VerifyCSRFToken(secret, token string) bool {
	if secret == "" {
		return false
	}
	salt, sig, ok := strings.Cut(token, ".")
	if !ok || salt == "" || sig == "" {
		return false
	}
	expected := csrfSignature(secret, salt)
	return hmac.Equal([]byte(sig), []byte(expected))
}

func csrfSignature(secret, salt string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(salt))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// requestCSRFToken はフォームフィールド、ヘッダーの順にトークンを読み取る。
func requestCSRFToken(w http.ResponseWriter, r *http.Request) string {
	if r.Body != nil {
		r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	}
	if token := r.PostFormValue(csrfFormField); token != "" {
		return token
	}
	if token := r.Header.Get(csrfHeaderName); token != "" {
		return token
	}
	return r.Header.Get(csrfAltHeaderName)
}

// isSafeMethod はHTTPメソッドが安全（読み取り専用）かどうかを判定する。
func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}
