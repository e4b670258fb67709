// Package model はドメインモデルを定義する。
package model

import "fmt"

// AppError はハンドラー境界で処理されるユーザー起因のエラーを表す。
// Codeは閉じた集合（ErrCode*）のいずれかを取る。
type AppError struct {
	Code     string // エラーコード
	Message  string // 利用者に表示するメッセージ
	Category string // カテゴリ: auth, validation, system
	Action   string // 利用者向け対処方法
	Flag     string // リダイレクト時のクエリフラグ（erro=...）。空の場合はリダイレクトしない
}

// Error はerrorインターフェースを実装する。
func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeDuplicateEmail     = "DUPLICATE_EMAIL"
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeAccessDenied       = "ACCESS_DENIED"
	ErrCodeCSRFRejected       = "CSRF_REJECTED"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// ログイン失敗時のリダイレクトフラグ。
// 未登録メールとパスワード誤りを区別して返す（既存の画面仕様に合わせている）。
const (
	FlagUserNotFound  = "usuario_nao_encontrado"
	FlagWrongPassword = "senha_incorreta"
	FlagEmailExists   = "email_existente"
	FlagRateLimit     = "rate_limit"
)

// NewUnknownEmailError は未登録メールアドレスによるログイン失敗を生成する。
func NewUnknownEmailError() *AppError {
	return &AppError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Usuário não encontrado.",
		Category: "auth",
		Action:   "Verifique o e-mail informado ou crie uma conta.",
		Flag:     FlagUserNotFound,
	}
}

// NewWrongPasswordError はパスワード不一致によるログイン失敗を生成する。
func NewWrongPasswordError() *AppError {
	return &AppError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Senha incorreta.",
		Category: "auth",
		Action:   "Verifique a senha e tente novamente.",
		Flag:     FlagWrongPassword,
	}
}

// NewDuplicateEmailError はメールアドレス重複による登録失敗を生成する。
func NewDuplicateEmailError() *AppError {
	return &AppError{
		Code:     ErrCodeDuplicateEmail,
		Message:  "E-mail já cadastrado.",
		Category: "validation",
		Action:   "Use outro e-mail ou faça login.",
		Flag:     FlagEmailExists,
	}
}

// NewValidationError は必須項目の欠落などの入力エラーを生成する。
func NewValidationError(message string) *AppError {
	return &AppError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: "validation",
		Action:   "Preencha todos os campos obrigatórios.",
	}
}

// NewUserNotFoundError は指定IDのユーザーが存在しない場合のエラーを生成する。
func NewUserNotFoundError(userID string) *AppError {
	return &AppError{
		Code:     ErrCodeNotFound,
		Message:  "Usuário não encontrado",
		Category: "validation",
		Action:   fmt.Sprintf("Verifique o identificador: %s", userID),
	}
}

// NewAccessDeniedError は未ログインまたは期限切れセッションのエラーを生成する。
func NewAccessDeniedError() *AppError {
	return &AppError{
		Code:     ErrCodeAccessDenied,
		Message:  "Acesso negado.",
		Category: "auth",
		Action:   "Faça login novamente.",
	}
}

// NewCSRFRejectedError はCSRFトークン検証失敗のエラーを生成する。
func NewCSRFRejectedError() *AppError {
	return &AppError{
		Code:     ErrCodeCSRFRejected,
		Message:  "invalid csrf token",
		Category: "auth",
		Action:   "Recarregue a página e tente novamente.",
	}
}

// NewRateLimitedError はログイン試行回数超過のエラーを生成する。
func NewRateLimitedError() *AppError {
	return &AppError{
		Code:     ErrCodeRateLimited,
		Message:  "Muitas tentativas de login. Tente novamente em 1 minuto.",
		Category: "auth",
		Action:   "Aguarde um minuto antes de tentar novamente.",
		Flag:     FlagRateLimit,
	}
}

// NewInternalError はストアやハッシュ処理の失敗を表す汎用エラーを生成する。
// 詳細はログにのみ出力し、利用者には一般的なメッセージを返す。
func NewInternalError() *AppError {
	return &AppError{
		Code:     ErrCodeInternal,
		Message:  "Erro interno no servidor.",
		Category: "system",
		Action:   "Tente novamente mais tarde.",
	}
}
