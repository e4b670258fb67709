package session

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hitoshi/usergate/internal/model"
)

// Store はManagerが必要とするセッションストアの操作。
// repository.SessionRepositoryの部分集合として定義する。
type Store interface {
	Create(ctx context.Context, session *model.Session) error
	FindByID(ctx context.Context, id string) (*model.Session, error)
}

// Manager はリクエストに紐付くセッションの読み込みと匿名セッションの開始を行う。
type Manager struct {
	store   Store
	cookies *Cookies
	now     func() time.Time
}

// NewManager はManagerを生成する。
func NewManager(store Store, cookies *Cookies) *Manager {
	return &Manager{
		store:   store,
		cookies: cookies,
		now:     time.Now,
	}
}

// Cookies はセッションCookieのコーデックを返す。
func (m *Manager) Cookies() *Cookies {
	return m.cookies
}

// Load はリクエストのCookieからセッションを読み込む。
// Cookieが無い、署名が不正、ストアに存在しない、期限切れのいずれかの場合はnilを返す。
func (m *Manager) Load(ctx context.Context, r *http.Request) (*model.Session, error) {
	id, ok := m.cookies.ReadID(r)
	if !ok {
		return nil, nil
	}
	s, err := m.store.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if s == nil || s.Expired(m.now()) {
		return nil, nil
	}
	return s, nil
}

// Start は匿名セッションを作成してCookieを設定する。
// フォームを表示する最初のリクエストでCSRFシークレットを用意するために使う。
func (m *Manager) Start(ctx context.Context, w http.ResponseWriter) (*model.Session, error) {
	s, err := NewRecord("", "", m.cookies.MaxAge(), m.now())
	if err != nil {
		return nil, err
	}
	if err := m.store.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	m.cookies.Set(w, s.ID)
	return s, nil
}
