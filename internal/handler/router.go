package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/usergate/internal/middleware"
)

// SessionManager はセッションの読み込みと匿名セッションの開始を行う。session.Managerが実装する。
type SessionManager interface {
	middleware.SessionLoader
	middleware.SessionStarter
}

// MetricsRecorder はルーター全体で使うメトリクス記録のインターフェース。
type MetricsRecorder interface {
	middleware.HTTPRecorder
	middleware.CSRFRecorder
	middleware.RateLimitRecorder
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// 共通
	Logger *slog.Logger
	Secure bool // HTTPS配信時にHSTSを付与する

	// セッション
	Sessions SessionManager
	Cookies  SessionCookies

	// レート制限
	LoginLimiter middleware.LoginLimiter
	TrustProxy   bool
	RateLimiter  *middleware.RateLimiter // nilの場合は一般レート制限を行わない

	// サービス
	AuthService AuthServiceInterface
	UserService UserServiceInterface
	Views       Renderer

	// 運用
	Metrics        MetricsRecorder // nilでもよい
	MetricsHandler http.Handler    // nilの場合は/metricsを公開しない
	Health         Pinger          // nilの場合は常に200
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → Metrics → SecurityHeaders → SessionLoader
//	  POST /login: LoginRateLimit → CSRF
//	  /users/*:    SessionGate → RateLimit(General) → CSRF
//
// 保護ルートはSessionGateをCSRFより前に置き、未ログイン時に匿名セッションを作らない。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	var (
		httpRecorder      middleware.HTTPRecorder
		csrfRecorder      middleware.CSRFRecorder
		rateLimitRecorder middleware.RateLimitRecorder
	)
	if deps.Metrics != nil {
		httpRecorder = deps.Metrics
		csrfRecorder = deps.Metrics
		rateLimitRecorder = deps.Metrics
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	if httpRecorder != nil {
		r.Use(middleware.NewMetricsMiddleware(httpRecorder))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.Secure))
	r.Use(middleware.NewSessionLoader(deps.Sessions))

	csrf := middleware.NewCSRFMiddleware(deps.Sessions, csrfRecorder)
	loginLimit := middleware.NewLoginRateLimitMiddleware(deps.LoginLimiter, deps.TrustProxy, rateLimitRecorder)

	authHandler := NewAuthHandler(deps.AuthService, deps.Views, deps.Cookies)
	userHandler := NewUserHandler(deps.UserService, deps.Views)

	// --- 運用エンドポイント ---
	r.Get("/health", NewHealthHandler(deps.Health))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- 認証不要のルート ---
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/users", http.StatusFound)
	})

	r.With(csrf).Get("/login", authHandler.LoginForm)
	r.With(loginLimit, csrf).Post("/login", authHandler.Login)
	r.Get("/logout", authHandler.Logout)

	r.Group(func(r chi.Router) {
		r.Use(csrf)
		r.Get("/register", authHandler.RegisterForm)
		r.Post("/register", authHandler.Register)
	})

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionGate())
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.GeneralMiddleware())
		}
		r.Use(csrf)

		r.Route("/users", func(r chi.Router) {
			r.Get("/", userHandler.List)
			r.Get("/new", userHandler.NewForm)
			r.Post("/create", userHandler.Create)
			r.Get("/edit/{id}", userHandler.EditForm)
			r.Post("/update/{id}", userHandler.Update)
			r.Post("/delete/{id}", userHandler.Delete)
		})
	})

	return r
}
