package middleware

import (
	"net/http"

	"github.com/hitoshi/usergate/internal/model"
)

// WriteErrorResponse はAppErrorのメッセージをプレーンテキストで書き込む。
// サーバーレンダリングの画面から直接表示されるため、JSONではなくテキストで返す。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, appErr *model.AppError) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(statusCode)
	_, _ = w.Write([]byte(appErr.Message))
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}
