package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/usergate/internal/model"
)

// TestWriteErrorResponse_PlainText はメッセージがプレーンテキストで書き込まれることを検証する。
func TestWriteErrorResponse_PlainText(t *testing.T) {
	w := httptest.NewRecorder()

	WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("Nome e cargo são obrigatórios"))

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q, want text/plain", ct)
	}
	if body := w.Body.String(); body != "Nome e cargo são obrigatórios" {
		t.Errorf("body = %q", body)
	}
}

// TestWriteInternalServerError_DoesNotLeakDetails は内部エラーで一般的なメッセージのみ返すことを検証する。
func TestWriteInternalServerError_DoesNotLeakDetails(t *testing.T) {
	w := httptest.NewRecorder()

	WriteInternalServerError(w)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if body := w.Body.String(); body != "Erro interno no servidor." {
		t.Errorf("body = %q, want %q", body, "Erro interno no servidor.")
	}
}

// TestWriteErrorResponse_CSRF はCSRF拒否のメッセージを検証する。
func TestWriteErrorResponse_CSRF(t *testing.T) {
	w := httptest.NewRecorder()

	WriteErrorResponse(w, http.StatusForbidden, model.NewCSRFRejectedError())

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
	if body := w.Body.String(); body != "invalid csrf token" {
		t.Errorf("body = %q, want %q", body, "invalid csrf token")
	}
}
