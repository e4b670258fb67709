// Package view は埋め込みHTMLテンプレートによる画面描画を提供する。
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"
)

//go:embed templates/*.html
var templateFiles embed.FS

// 画面テンプレート名
const (
	PageLogin    = "login.html"
	PageRegister = "register.html"
	PageUsers    = "users_list.html"
	PageNewUser  = "user_new.html"
	PageEditUser = "user_edit.html"
)

var pages = []string{PageLogin, PageRegister, PageUsers, PageNewUser, PageEditUser}

const layoutFile = "layout.html"

// Renderer は画面ごとにレイアウトと結合済みのテンプレートを保持する。
// 起動時に一度だけパースし、以降は並行に使用してよい。
type Renderer struct {
	templates map[string]*template.Template
}

// NewRenderer は埋め込みテンプレートをパースしてRendererを生成する。
func NewRenderer() (*Renderer, error) {
	sub, err := fs.Sub(templateFiles, "templates")
	if err != nil {
		return nil, fmt.Errorf("failed to open templates: %w", err)
	}
	return newRenderer(sub)
}

func newRenderer(fsys fs.FS) (*Renderer, error) {
	funcs := template.FuncMap{
		"date": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02/01/2006 15:04")
		},
	}

	r := &Renderer{templates: make(map[string]*template.Template, len(pages))}
	for _, page := range pages {
		tmpl, err := template.New(layoutFile).Funcs(funcs).ParseFS(fsys, layoutFile, page)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", page, err)
		}
		r.templates[page] = tmpl
	}
	return r, nil
}

// Render は指定画面を描画する。テンプレート実行はバッファに行い、
// 失敗時に部分的なHTMLを送信しない。
func (r *Renderer) Render(w http.ResponseWriter, status int, page string, data any) error {
	tmpl, ok := r.templates[page]
	if !ok {
		return fmt.Errorf("unknown page: %s", page)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, layoutFile, data); err != nil {
		return fmt.Errorf("failed to render %s: %w", page, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
