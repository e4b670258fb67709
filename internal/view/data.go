package view

import "github.com/hitoshi/usergate/internal/model"

// ログイン画面のバナー文言（クエリのerro / sucessoに対応）
var (
	loginErrors = map[string]string{
		model.FlagUserNotFound:  "Usuário não encontrado.",
		model.FlagWrongPassword: "Senha incorreta.",
		model.FlagRateLimit:     "Muitas tentativas de login. Tente novamente em 1 minuto.",
	}
	loginSuccess = map[string]string{
		"cadastro": "Cadastro realizado com sucesso! Faça login.",
	}
	registerErrors = map[string]string{
		model.FlagEmailExists: "Este e-mail já está cadastrado.",
	}
)

// LoginData はログイン画面の描画データ。
type LoginData struct {
	CSRFToken string
	Error     string
	Success   string
}

// NewLoginData はクエリのフラグからバナー文言を解決する。未知のフラグは表示しない。
func NewLoginData(csrfToken, errFlag, successFlag string) LoginData {
	return LoginData{
		CSRFToken: csrfToken,
		Error:     loginErrors[errFlag],
		Success:   loginSuccess[successFlag],
	}
}

// RegisterData は登録画面の描画データ。
type RegisterData struct {
	CSRFToken string
	Error     string
}

// NewRegisterData はクエリのフラグからバナー文言を解決する。
func NewRegisterData(csrfToken, errFlag string) RegisterData {
	return RegisterData{
		CSRFToken: csrfToken,
		Error:     registerErrors[errFlag],
	}
}

// UsersData はユーザー一覧画面の描画データ。
type UsersData struct {
	CSRFToken string
	UserName  string // ログイン中のユーザー名
	Users     []*model.User
}

// UserFormData はユーザー作成・編集画面の描画データ。
type UserFormData struct {
	CSRFToken string
	UserName  string
	User      *model.User
	Error     string
}

// NewUserFormData は作成画面の描画データを生成する。重複メールのフラグは登録画面と同じ文言を使う。
func NewUserFormData(csrfToken, userName, errFlag string) UserFormData {
	return UserFormData{
		CSRFToken: csrfToken,
		UserName:  userName,
		Error:     registerErrors[errFlag],
	}
}
