package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hitoshi/usergate/internal/auth"
	"github.com/hitoshi/usergate/internal/config"
	"github.com/hitoshi/usergate/internal/database"
	"github.com/hitoshi/usergate/internal/handler"
	"github.com/hitoshi/usergate/internal/logger"
	"github.com/hitoshi/usergate/internal/metrics"
	"github.com/hitoshi/usergate/internal/middleware"
	"github.com/hitoshi/usergate/internal/password"
	"github.com/hitoshi/usergate/internal/repository"
	"github.com/hitoshi/usergate/internal/security"
	"github.com/hitoshi/usergate/internal/session"
	"github.com/hitoshi/usergate/internal/user"
	"github.com/hitoshi/usergate/internal/view"
	"github.com/hitoshi/usergate/internal/worker/cleanup"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/net/netutil"
	"golang.org/x/time/rate"
)

const shutdownTimeout = 30 * time.Second

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、環境変数からConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, os.Getenv("LOG_LEVEL"))

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "3000"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("storage_backend", cfg.StorageBackend),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// stores はストレージバックエンドごとのリポジトリ一式。
type stores struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	pinger   handler.Pinger // メモリストアの場合はnil
	close    func() error
}

// openStores は設定に応じてPostgreSQLまたはメモリのリポジトリを生成する。
func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.StorageBackend == config.StorageMemory {
		slog.Warn("using in-memory storage: data is lost on restart")
		return &stores{
			users:    repository.NewMemoryUserRepo(),
			sessions: repository.NewMemorySessionRepo(),
			close:    func() error { return nil },
		}, nil
	}

	pool := database.DefaultPoolConfig()
	pool.MaxOpenConns = cfg.DBMaxOpenConns
	pool.ConnMaxLifetime = cfg.DBConnMaxLifetime
	db, err := database.Open(ctx, cfg.DatabaseURL, pool)
	if err != nil {
		return nil, err
	}

	slog.Info("database connection established")

	return &stores{
		users:    repository.NewPostgresUserRepo(db),
		sessions: repository.NewPostgresSessionRepo(db),
		pinger:   db,
		close:    db.Close,
	}, nil
}

// application は結線済みのHTTPハンドラーとバックグラウンドジョブ。
type application struct {
	handler      http.Handler
	cleanupJob   *cleanup.SessionCleanupJob
	loginLimiter *middleware.FixedWindowLimiter
	rateLimiter  *middleware.RateLimiter
}

// newApplication は全依存関係をワイヤリングする。
func newApplication(cfg *config.Config, st *stores, reg *prometheus.Registry) (*application, error) {
	// 1. メトリクス
	collector := metrics.NewCollector(reg)

	// 2. セッション
	cookies, err := session.NewCookies(session.CookieConfig{
		Secret: cfg.SessionSecret,
		MaxAge: cfg.SessionMaxAge,
		Secure: cfg.CookieSecure,
		Domain: cfg.CookieDomain,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to configure session cookies: %w", err)
	}
	manager := session.NewManager(st.sessions, cookies)

	// 3. ドメインサービス
	hasher := password.NewBcryptHasher(cfg.BcryptCost)
	sanitizer := security.NewInputSanitizer()

	authService := auth.NewService(st.users, st.sessions, hasher, sanitizer, collector,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)
	userService := user.NewService(st.users, hasher, sanitizer)

	views, err := view.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	// 4. レート制限
	loginCfg := middleware.DefaultFixedWindowConfig()
	loginCfg.Limit = cfg.LoginRateLimit
	loginCfg.Window = cfg.LoginRateWindow
	loginLimiter := middleware.NewFixedWindowLimiter(loginCfg)

	// configのRateLimitGeneralはreq/min単位なのでreq/secに変換する
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg, collector)

	// 5. ルーター
	router := handler.NewRouter(&handler.RouterDeps{
		Logger: slog.Default(),
		Secure: cfg.CookieSecure,

		Sessions: manager,
		Cookies:  cookies,

		LoginLimiter: loginLimiter,
		TrustProxy:   cfg.TrustProxy,
		RateLimiter:  rateLimiter,

		AuthService: authService,
		UserService: userService,
		Views:       views,

		Metrics:        collector,
		MetricsHandler: metrics.Handler(reg),
		Health:         st.pinger,
	})

	return &application{
		handler:      router,
		cleanupJob:   cleanup.NewSessionCleanupJob(st.sessions, slog.Default(), collector),
		loginLimiter: loginLimiter,
		rateLimiter:  rateLimiter,
	}, nil
}

// stop はレート制限のバックグラウンドゴルーチンを停止する。
func (a *application) stop() {
	a.loginLimiter.Stop()
	a.rateLimiter.Stop()
}

// newRegistry はGo/プロセスメトリクスを含むPrometheusレジストリを生成する。
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// runServe はWebサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	app, err := newApplication(cfg, st, newRegistry())
	if err != nil {
		return err
	}
	defer app.stop()

	ln, err := net.Listen("tcp", ":"+cfg.ServerPort)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	return serve(ctx, cfg, app, ln)
}

// serve はlnでHTTPサーバーとセッションクリーンアップを実行し、ctxのキャンセルで停止する。
// 同時接続数はMaxConnectionsで制限する。
func serve(ctx context.Context, cfg *config.Config, app *application, ln net.Listener) error {
	if cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, cfg.MaxConnections)
	}

	server := &http.Server{
		Handler:           app.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	jobCtx, cancelJob := context.WithCancel(ctx)
	defer cancelJob()
	go app.cleanupJob.Start(jobCtx, cfg.SessionCleanupInterval)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("web server starting",
			slog.String("addr", ln.Addr().String()),
			slog.Int("max_connections", cfg.MaxConnections),
		)
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down web server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("web server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 起動直後に1回、その後SESSION_CLEANUP_INTERVALごとに期限切れセッションを削除する。
// メモリストアはプロセス間で共有できないため、PostgreSQLのみ対応する。
func runWorker(cfg *config.Config) error {
	if cfg.StorageBackend != config.StoragePostgres {
		return fmt.Errorf("worker requires STORAGE_BACKEND=%s", config.StoragePostgres)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	reg := newRegistry()
	job := cleanup.NewSessionCleanupJob(st.sessions, slog.Default(), metrics.NewCollector(reg))

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cfg.SessionCleanupInterval),
	)

	if _, err := job.Run(ctx); err != nil {
		slog.Error("cleanup job failed", slog.String("error", err.Error()))
	}
	job.Start(ctx, cfg.SessionCleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.StorageBackend != config.StoragePostgres {
		return fmt.Errorf("migrate requires STORAGE_BACKEND=%s", config.StoragePostgres)
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	return checkHealth(url)
}

func checkHealth(url string) error {
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
