package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/usergate/internal/model"
	"golang.org/x/time/rate"
)

// レート制限の種別（メトリクスのラベル）。
const (
	LimitTypeLogin   = "login"
	LimitTypeGeneral = "general"
)

// RateLimitRecorder はレート制限による拒否をメトリクスに記録する。
type RateLimitRecorder interface {
	RecordRateLimited(limitType string)
}

// --- ログイン試行の固定ウィンドウ制限 ---

// FixedWindowConfig は固定ウィンドウ方式のレート制限設定。
type FixedWindowConfig struct {
	Limit           int           // ウィンドウあたりの許可回数
	Window          time.Duration // ウィンドウ長
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔。0の場合はクリーンアップしない
}

// DefaultFixedWindowConfig はログイン試行のデフォルト設定（1分あたり5回）を返す。
func DefaultFixedWindowConfig() FixedWindowConfig {
	return FixedWindowConfig{
		Limit:           5,
		Window:          time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

// Decision は1回の試行に対する判定結果。
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// LoginLimiter はクライアントキーごとの試行回数を判定する。
type LoginLimiter interface {
	Check(key string) Decision
}

// attemptWindow はクライアントキーごとの試行回数とウィンドウ開始時刻。
type attemptWindow struct {
	count       int
	windowStart time.Time
}

// FixedWindowLimiter はクライアントキーごとの固定ウィンドウ制限を管理する。
// ウィンドウが経過するとカウントは0に戻る。プロセス内でのみ保持する。
type FixedWindowLimiter struct {
	config FixedWindowConfig

	mu      sync.Mutex
	windows map[string]*attemptWindow

	now    func() time.Time
	stopCh chan struct{}
	once   sync.Once
}

// NewFixedWindowLimiter は新しいFixedWindowLimiterを生成する。
// CleanupIntervalが正の場合はバックグラウンドでクリーンアップを開始する。
func NewFixedWindowLimiter(config FixedWindowConfig) *FixedWindowLimiter {
	if config.Limit <= 0 {
		config.Limit = DefaultFixedWindowConfig().Limit
	}
	if config.Window <= 0 {
		config.Window = DefaultFixedWindowConfig().Window
	}

	l := &FixedWindowLimiter{
		config:  config,
		windows: make(map[string]*attemptWindow),
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}

	if config.CleanupInterval > 0 {
		go l.cleanupLoop()
	}

	return l
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。複数回呼んでもよい。
func (l *FixedWindowLimiter) Stop() {
	l.once.Do(func() { close(l.stopCh) })
}

// Check は試行を1回数え、許可するかどうかを返す。
// 加算と比較は同一のクリティカルセクションで行う。
func (l *FixedWindowLimiter) Check(key string) Decision {
	now := l.now()

	l.mu.Lock()
	w, ok := l.windows[key]
	if !ok || !now.Before(w.windowStart.Add(l.config.Window)) {
		w = &attemptWindow{windowStart: now}
		l.windows[key] = w
	}
	w.count++
	count := w.count
	resetAt := w.windowStart.Add(l.config.Window)
	l.mu.Unlock()

	remaining := l.config.Limit - count
	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		Allowed:   count <= l.config.Limit,
		Limit:     l.config.Limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}

// Len は現在管理しているクライアントキー数を返す。
func (l *FixedWindowLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

func (l *FixedWindowLimiter) cleanupLoop() {
	ticker := time.NewTicker(l.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stopCh:
			return
		}
	}
}

// cleanup はウィンドウが終了したエントリを削除する。
func (l *FixedWindowLimiter) cleanup() {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	for key, w := range l.windows {
		if !now.Before(w.windowStart.Add(l.config.Window)) {
			delete(l.windows, key)
		}
	}
}

// NewLoginRateLimitMiddleware はログイン試行のレート制限ミドルウェアを返す。
// CSRF検証と認証処理より前に配置する。
// 上限超過時は資格情報に関わらず/login?erro=rate_limitへリダイレクトする。
// recorderはnilでもよい。
func NewLoginRateLimitMiddleware(limiter LoginLimiter, trustProxy bool, recorder RateLimitRecorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ClientKey(r, trustProxy)
			d := limiter.Check(key)
			setRateLimitHeaders(w, d)

			if !d.Allowed {
				slog.Warn("rate limit exceeded",
					slog.String("client", key),
					slog.String("limit_type", LimitTypeLogin),
				)
				if recorder != nil {
					recorder.RecordRateLimited(LimitTypeLogin)
				}
				http.Redirect(w, r, LoginPath+"?erro="+model.FlagRateLimit, http.StatusFound)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientKey はレート制限に使うクライアントキーを返す。
// trustProxyがtrueの場合はX-Forwarded-Forの先頭の値を使う。
func ClientKey(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if first = strings.TrimSpace(first); first != "" {
				return first
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// setRateLimitHeaders はRateLimit-*ヘッダーを設定する。
func setRateLimitHeaders(w http.ResponseWriter, d Decision) {
	reset := int(math.Ceil(time.Until(d.ResetAt).Seconds()))
	if reset < 0 {
		reset = 0
	}
	w.Header().Set("RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("RateLimit-Remaining", strconv.Itoa(d.Remaining))
	w.Header().Set("RateLimit-Reset", strconv.Itoa(reset))
}

// --- ログイン済みユーザーごとのトークンバケット制限 ---

// RateLimiterConfig はユーザーごとのレート制限の設定を保持する。
type RateLimiterConfig struct {
	GeneralRate     rate.Limit    // 画面操作全般のレート（req/sec）。120/60 = 2 req/sec
	GeneralBurst    int           // バーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定（120 req/min/user）を返す。
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(120.0 / 60.0),
		GeneralBurst:    120,
		CleanupInterval: 5 * time.Minute,
	}
}

// userLimiter はユーザーごとのレートリミッターとアクセス時刻を保持する。
type userLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter はログイン済みユーザーごとのレート制限を管理する。
type RateLimiter struct {
	config   RateLimiterConfig
	recorder RateLimitRecorder

	mu       sync.Mutex
	limiters map[string]*userLimiter

	stopCh chan struct{}
	once   sync.Once
}

// NewRateLimiter は新しいRateLimiterを生成する。recorderはnilでもよい。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig, recorder RateLimitRecorder) *RateLimiter {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultRateLimiterConfig().CleanupInterval
	}

	rl := &RateLimiter{
		config:   config,
		recorder: recorder,
		limiters: make(map[string]*userLimiter),
		stopCh:   make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。複数回呼んでもよい。
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stopCh) })
}

// GeneralMiddleware はユーザーごとのレート制限ミドルウェアを返す。
// NewSessionGateの後に配置する。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := UserIDFromContext(r.Context())
			if err != nil {
				http.Redirect(w, r, LoginPath, http.StatusFound)
				return
			}

			if !rl.limiterFor(userID).Allow() {
				slog.Warn("rate limit exceeded",
					slog.String("user_id", userID),
					slog.String("limit_type", LimitTypeGeneral),
				)
				if rl.recorder != nil {
					rl.recorder.RecordRateLimited(LimitTypeGeneral)
				}
				writeTooManyRequests(w, rl.config.GeneralRate)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// LimiterCount は現在管理されているリミッターのエントリ数を返す。
func (rl *RateLimiter) LimiterCount() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

// limiterFor はユーザーのリミッターを取得または作成する。
func (rl *RateLimiter) limiterFor(userID string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if ul, ok := rl.limiters[userID]; ok {
		ul.lastAccess = time.Now()
		return ul.limiter
	}

	limiter := rate.NewLimiter(rl.config.GeneralRate, rl.config.GeneralBurst)
	rl.limiters[userID] = &userLimiter{
		limiter:    limiter,
		lastAccess: time.Now(),
	}
	return limiter
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup は最終アクセス時刻がCleanupIntervalの2倍を超えたエントリを削除する。
func (rl *RateLimiter) cleanup() {
	ttl := rl.config.CleanupInterval * 2
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for userID, ul := range rl.limiters {
		if now.Sub(ul.lastAccess) > ttl {
			delete(rl.limiters, userID)
		}
	}
}

// writeTooManyRequests は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはトークンが補充されるまでの推定秒数を設定する。
func writeTooManyRequests(w http.ResponseWriter, r rate.Limit) {
	retryAfterSec := 1
	if r > 0 {
		retryAfterSec = int(math.Ceil(1.0 / float64(r)))
		if retryAfterSec < 1 {
			retryAfterSec = 1
		}
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	WriteErrorResponse(w, http.StatusTooManyRequests, &model.AppError{
		Code:     model.ErrCodeRateLimited,
		Message:  "Muitas requisições. Tente novamente em instantes.",
		Category: "system",
		Action:   "Aguarde alguns segundos e tente novamente.",
	})
}
