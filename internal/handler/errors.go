package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/hitoshi/usergate/internal/middleware"
	"github.com/hitoshi/usergate/internal/model"
)

// handleServiceError はサービス層から返されたエラーをレスポンスに変換する。
// フラグ付きのAppErrorはflagTargetへ ?erro=<flag> を付けて302リダイレクトする（PRG）。
// flagTargetが空の場合とフラグ無しのAppErrorはステータスコードとプレーンテキストで返す。
// AppError以外は内部エラーとしてログに記録し、詳細は返さない。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error, flagTarget string) {
	var appErr *model.AppError
	if errors.As(err, &appErr) {
		if appErr.Flag != "" && flagTarget != "" {
			http.Redirect(w, r, flagTarget+"?erro="+url.QueryEscape(appErr.Flag), http.StatusFound)
			return
		}
		middleware.WriteErrorResponse(w, mapAppErrorToHTTPStatus(appErr), appErr)
		return
	}

	slog.Error("internal server error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	middleware.WriteInternalServerError(w)
}

// mapAppErrorToHTTPStatus はAppErrorコードからHTTPステータスコードにマッピングする。
func mapAppErrorToHTTPStatus(appErr *model.AppError) int {
	switch appErr.Code {
	case model.ErrCodeInvalidCredentials, model.ErrCodeAccessDenied:
		return http.StatusUnauthorized
	case model.ErrCodeDuplicateEmail:
		return http.StatusConflict
	case model.ErrCodeValidation:
		return http.StatusBadRequest
	case model.ErrCodeNotFound:
		return http.StatusNotFound
	case model.ErrCodeCSRFRejected:
		return http.StatusForbidden
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// renderPage は画面を描画し、失敗時は内部エラーを返す。
func renderPage(w http.ResponseWriter, views Renderer, page string, data any) {
	if err := views.Render(w, http.StatusOK, page, data); err != nil {
		slog.Error("failed to render page",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
	}
}
