// Package session はセッションレコードの発行とセッションCookieの署名・検証を提供する。
package session

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/usergate/internal/model"
)

// DefaultCookieName はセッションIDを保持するCookieの名前。
const DefaultCookieName = "sid"

// ErrEmptySecret はCookie署名用シークレットが未設定であることを表す。
var ErrEmptySecret = errors.New("session: cookie secret is empty")

// CookieConfig はセッションCookieの設定。
type CookieConfig struct {
	Name   string
	Secret string // Cookie値のHMAC署名鍵
	MaxAge int    // 秒
	Secure bool
	Domain string
}

// Cookies はセッションCookieの書き込み・読み取りを行う。
// Cookie値は "<セッションID>.<HMAC-SHA256署名>" の形式で、改ざんされた値は無視する。
type Cookies struct {
	config CookieConfig
	key    []byte
}

// NewCookies はCookiesを生成する。シークレットが空の場合はエラーを返す。
func NewCookies(config CookieConfig) (*Cookies, error) {
	if config.Secret == "" {
		return nil, ErrEmptySecret
	}
	if config.Name == "" {
		config.Name = DefaultCookieName
	}
	return &Cookies{config: config, key: []byte(config.Secret)}, nil
}

// Name はCookie名を返す。
func (c *Cookies) Name() string {
	return c.config.Name
}

// MaxAge はセッションの有効期間を返す。
func (c *Cookies) MaxAge() time.Duration {
	return time.Duration(c.config.MaxAge) * time.Second
}

// Set はセッションCookieをレスポンスに設定する（HTTP Only）。
func (c *Cookies) Set(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.config.Name,
		Value:    c.sign(sessionID),
		Path:     "/",
		Domain:   c.config.Domain,
		MaxAge:   c.config.MaxAge,
		HttpOnly: true,
		Secure:   c.config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Clear はセッションCookieを削除する。
func (c *Cookies) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.config.Name,
		Value:    "",
		Path:     "/",
		Domain:   c.config.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ReadID はリクエストのCookieから署名検証済みのセッションIDを取り出す。
// Cookieが無い、または署名が不正な場合はfalseを返す。
func (c *Cookies) ReadID(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(c.config.Name)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return c.verify(cookie.Value)
}

func (c *Cookies) sign(id string) string {
	return id + "." + c.mac(id)
}

func (c *Cookies) verify(value string) (string, bool) {
	i := strings.LastIndexByte(value, '.')
	if i <= 0 || i == len(value)-1 {
		return "", false
	}
	id, sig := value[:i], value[i+1:]
	if !hmac.Equal([]byte(sig), []byte(c.mac(id))) {
		return "", false
	}
	return id, true
}

func (c *Cookies) mac(id string) string {
	m := hmac.New(sha256.New, c.key)
	m.Write([]byte(id))
	return base64.RawURLEncoding.EncodeToString(m.Sum(nil))
}

// NewRecord は新しいセッションレコードを生成する。
// セッションIDとCSRFシークレットは暗号的に安全な乱数から生成する。
// 有効期限は生成時刻からの固定TTL。
func NewRecord(userID, userName string, ttl time.Duration, now time.Time) (*model.Session, error) {
	id, err := randomHex(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}
	secret, err := randomHex(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate csrf secret: %w", err)
	}
	return &model.Session{
		ID:         id,
		UserID:     userID,
		UserName:   userName,
		CSRFSecret: secret,
		ExpiresAt:  now.Add(ttl),
		CreatedAt:  now,
	}, nil
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
